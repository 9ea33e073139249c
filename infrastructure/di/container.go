// Package di wires the persistence tier together from configuration.
package di

import (
	"context"

	"coursegraph-backend/application/gateway"
	"coursegraph-backend/infrastructure/config"
	"coursegraph-backend/infrastructure/store"
	"coursegraph-backend/infrastructure/store/dynamo"
	"coursegraph-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Tracing    *observability.TracerProvider
	Engine     store.Engine
	Dynamo     *dynamo.Engine
	Session    *store.Session
	Courseware *gateway.CoursewareGateway
	Competency *gateway.CompetencyGateway
	Scopes     *gateway.ScopeGateway
}

// Close flushes the tracer provider and the logger
func (c *Container) Close(ctx context.Context) error {
	err := c.Tracing.Shutdown(ctx)
	if err != nil {
		c.Logger.Error("Failed to shut down tracing", zap.Error(err))
	}
	_ = c.Logger.Sync()
	return err
}

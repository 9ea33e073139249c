// Package gateway exposes the logical operations of the courseware tree and
// the competency graph. Each mutation is issued as one fan-out batch across
// the entity stores and every index it touches; a failure is reported as a
// whole and callers retry the whole operation.
package gateway

import (
	"context"
	"time"

	"coursegraph-backend/pkg/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Clock returns the current time. Tests replace it to get stable timestamps.
type Clock func() time.Time

type base struct {
	tracer trace.Tracer
	now    Clock
}

func newBase() base {
	return base{tracer: observability.Tracer(), now: time.Now}
}

func (b base) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return b.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// stamp fills a missing id and creation time.
func (b base) stamp(id string, createdAt time.Time) (string, time.Time) {
	if id == "" {
		id = uuid.NewString()
	}
	if createdAt.IsZero() {
		createdAt = b.now().UTC()
	}
	return id, createdAt
}

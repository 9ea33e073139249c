//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"coursegraph-backend/application/gateway"
	"coursegraph-backend/infrastructure/config"
	"coursegraph-backend/infrastructure/persistence"

	"github.com/google/wire"
)

// StoreSet provides the engine and the session on top of it
var StoreSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracing,
	ProvideDynamoEngine,
	ProvideEngine,
	ProvideSession,
)

// PersistenceSet provides the entity stores and index views
var PersistenceSet = wire.NewSet(
	ProvideDeletePolicies,
	persistence.NewElements,
	ProvideElementDirectory,
	persistence.NewParentIndex,
	persistence.NewOrderedList,
	persistence.NewLinkIndex,
	persistence.NewTagIndex,
	persistence.NewScopeRegistry,
	persistence.NewDocumentStore,
	persistence.NewDocumentItemStore,
	persistence.NewDocumentItemIndex,
	persistence.NewAssociationGraph,
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	StoreSet,
	PersistenceSet,
	gateway.NewCoursewareGateway,
	gateway.NewCompetencyGateway,
	gateway.NewScopeGateway,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}

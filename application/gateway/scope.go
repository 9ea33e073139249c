package gateway

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/persistence"
	apperrors "coursegraph-backend/pkg/errors"
	"coursegraph-backend/pkg/observability"
	"coursegraph-backend/pkg/validation"

	"go.opentelemetry.io/otel/attribute"
)

// ScopeGateway binds courseware elements to student scopes.
type ScopeGateway struct {
	base
	scopes    *persistence.ScopeRegistry
	directory *persistence.ElementDirectory
}

// NewScopeGateway creates a new scope gateway
func NewScopeGateway(scopes *persistence.ScopeRegistry, directory *persistence.ElementDirectory) *ScopeGateway {
	return &ScopeGateway{base: newBase(), scopes: scopes, directory: directory}
}

// RegisterScope binds the element of ref to its scope. The element must
// exist with the type ref names.
func (g *ScopeGateway) RegisterScope(ctx context.Context, ref courseware.ScopeReference) (err error) {
	ctx, span := g.start(ctx, "gateway.RegisterScope",
		attribute.String("scope.urn", ref.ScopeURN),
		attribute.String("element.id", ref.ElementID),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(ref); err != nil {
		return err
	}
	t, ok, err := g.directory.ResolveType(ctx, ref.ElementID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewNotFound(fmt.Sprintf("element %s not found", ref.ElementID))
	}
	if t != ref.ElementType {
		return apperrors.NewValidationf("element %s is a %s, not a %s", ref.ElementID, t, ref.ElementType)
	}
	return g.scopes.Register(ctx, ref)
}

// UnregisterScope removes a binding; an absent binding is a no-op.
func (g *ScopeGateway) UnregisterScope(ctx context.Context, scopeURN, elementID string) (err error) {
	ctx, span := g.start(ctx, "gateway.UnregisterScope",
		attribute.String("scope.urn", scopeURN),
		attribute.String("element.id", elementID),
	)
	defer func() { observability.EndSpan(span, err) }()

	return g.scopes.Unregister(ctx, scopeURN, elementID)
}

func (g *ScopeGateway) FindScopeBindings(ctx context.Context, scopeURN string) ([]courseware.ScopeReference, error) {
	return g.scopes.FindByScope(ctx, scopeURN)
}

func (g *ScopeGateway) FindScopeBinding(ctx context.Context, elementID, scopeURN string) (courseware.ScopeReference, bool, error) {
	return g.scopes.FindByElement(ctx, elementID, scopeURN)
}

// FindElementScopes returns every binding of an element.
func (g *ScopeGateway) FindElementScopes(ctx context.Context, elementID string) ([]courseware.ScopeReference, error) {
	return g.scopes.FindScopesOfElement(ctx, elementID)
}

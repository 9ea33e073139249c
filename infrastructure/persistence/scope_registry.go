package persistence

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/store"
)

const (
	viewByScope   = "by_scope"
	viewByElement = "by_element"
)

// ScopeRegistry binds elements to student scopes, readable by scope and by
// element.
type ScopeRegistry struct {
	relation *Relation[courseware.ScopeReference]
}

// NewScopeRegistry creates a scope registry
func NewScopeRegistry(session *store.Session) (*ScopeRegistry, error) {
	relation, err := NewRelation(session, "scope",
		View[courseware.ScopeReference]{
			Name: viewByScope,
			Key: func(r courseware.ScopeReference) store.Key {
				return store.Key{PK: partition(prefixScope, r.ScopeURN), SK: r.ElementID}
			},
		},
		View[courseware.ScopeReference]{
			Name: viewByElement,
			Key: func(r courseware.ScopeReference) store.Key {
				return store.Key{PK: partition(prefixScopeElement, r.ElementID), SK: r.ScopeURN}
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return &ScopeRegistry{relation: relation}, nil
}

// Register writes the binding into both views. Registering again replaces
// the plugin reference.
func (s *ScopeRegistry) Register(ctx context.Context, ref courseware.ScopeReference) error {
	return s.relation.Put(ctx, ref)
}

// UnregisterStatements returns the deletes of the binding of elementID under scopeURN.
func (s *ScopeRegistry) UnregisterStatements(scopeURN, elementID string) []store.Statement {
	return s.relation.DeleteStatements(courseware.ScopeReference{ScopeURN: scopeURN, ElementID: elementID})
}

// Unregister removes the binding from both views; an absent binding is a no-op.
func (s *ScopeRegistry) Unregister(ctx context.Context, scopeURN, elementID string) error {
	return s.relation.session.ExecBatch(ctx, "scope.delete", s.UnregisterStatements(scopeURN, elementID))
}

// FindByScope returns every binding registered under scopeURN, ordered by element id.
func (s *ScopeRegistry) FindByScope(ctx context.Context, scopeURN string) ([]courseware.ScopeReference, error) {
	refs, err := s.relation.Query(ctx, viewByScope, partition(prefixScope, scopeURN), "")
	if err != nil {
		return nil, fmt.Errorf("failed to find bindings of scope %s: %w", scopeURN, err)
	}
	return refs, nil
}

// FindByElement returns the binding of elementID under scopeURN.
func (s *ScopeRegistry) FindByElement(ctx context.Context, elementID, scopeURN string) (courseware.ScopeReference, bool, error) {
	ref, ok, err := s.relation.Get(ctx, viewByElement, store.Key{PK: partition(prefixScopeElement, elementID), SK: scopeURN})
	if err != nil {
		return courseware.ScopeReference{}, false, fmt.Errorf("failed to find binding of %s in %s: %w", elementID, scopeURN, err)
	}
	return ref, ok, nil
}

// FindScopesOfElement returns every binding of elementID, ordered by scope.
func (s *ScopeRegistry) FindScopesOfElement(ctx context.Context, elementID string) ([]courseware.ScopeReference, error) {
	refs, err := s.relation.Query(ctx, viewByElement, partition(prefixScopeElement, elementID), "")
	if err != nil {
		return nil, fmt.Errorf("failed to find bindings of element %s: %w", elementID, err)
	}
	return refs, nil
}

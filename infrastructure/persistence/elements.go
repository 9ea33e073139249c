package persistence

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/store"
)

// DefaultDeletePolicies tombstones activities and hard-deletes every other kind.
func DefaultDeletePolicies() map[courseware.ElementType]DeletePolicy {
	return map[courseware.ElementType]DeletePolicy{
		courseware.ElementTypeActivity: Tombstone,
	}
}

// Elements groups the entity stores of every element kind with the
// directory of generic records.
type Elements struct {
	Directory    *ElementDirectory
	Activities   *EntityStore[courseware.Activity]
	Pathways     *EntityStore[courseware.Pathway]
	Interactives *EntityStore[courseware.Interactive]
	Components   *EntityStore[courseware.Component]
	Feedback     *EntityStore[courseware.Feedback]
	Scenarios    *EntityStore[courseware.Scenario]
}

func elementConfig[T any](t courseware.ElementType, id func(T) string, policies map[courseware.ElementType]DeletePolicy) EntityConfig[T] {
	return EntityConfig[T]{
		Kind:        string(t),
		ID:          id,
		ElementType: t,
		Policy:      policies[t],
	}
}

// NewElements creates the element stores. Kinds missing from policies are
// hard-deleted.
func NewElements(session *store.Session, policies map[courseware.ElementType]DeletePolicy) (*Elements, error) {
	if policies == nil {
		policies = DefaultDeletePolicies()
	}
	var (
		e   = &Elements{}
		err error
	)
	if e.Directory, err = NewElementDirectory(session); err != nil {
		return nil, err
	}
	if e.Activities, err = NewEntityStore(session, elementConfig(courseware.ElementTypeActivity,
		func(v courseware.Activity) string { return v.ID }, policies)); err != nil {
		return nil, err
	}
	if e.Pathways, err = NewEntityStore(session, elementConfig(courseware.ElementTypePathway,
		func(v courseware.Pathway) string { return v.ID }, policies)); err != nil {
		return nil, err
	}
	if e.Interactives, err = NewEntityStore(session, elementConfig(courseware.ElementTypeInteractive,
		func(v courseware.Interactive) string { return v.ID }, policies)); err != nil {
		return nil, err
	}
	if e.Components, err = NewEntityStore(session, elementConfig(courseware.ElementTypeComponent,
		func(v courseware.Component) string { return v.ID }, policies)); err != nil {
		return nil, err
	}
	if e.Feedback, err = NewEntityStore(session, elementConfig(courseware.ElementTypeFeedback,
		func(v courseware.Feedback) string { return v.ID }, policies)); err != nil {
		return nil, err
	}
	if e.Scenarios, err = NewEntityStore(session, elementConfig(courseware.ElementTypeScenario,
		func(v courseware.Scenario) string { return v.ID }, policies)); err != nil {
		return nil, err
	}
	return e, nil
}

// PutStatements returns the typed and generic record writes of el.
func (e *Elements) PutStatements(el courseware.Element) ([]store.Statement, error) {
	switch v := el.(type) {
	case *courseware.Activity:
		return e.Activities.PutStatements(*v)
	case *courseware.Pathway:
		return e.Pathways.PutStatements(*v)
	case *courseware.Interactive:
		return e.Interactives.PutStatements(*v)
	case *courseware.Component:
		return e.Components.PutStatements(*v)
	case *courseware.Feedback:
		return e.Feedback.PutStatements(*v)
	case *courseware.Scenario:
		return e.Scenarios.PutStatements(*v)
	}
	return nil, fmt.Errorf("unsupported element %T", el)
}

// DeleteStatements returns the deletes of the element ref names, following
// the delete policy of its kind.
func (e *Elements) DeleteStatements(ref courseware.ElementRef) ([]store.Statement, error) {
	switch ref.Type {
	case courseware.ElementTypeActivity:
		return e.Activities.DeleteStatements(ref.ID)
	case courseware.ElementTypePathway:
		return e.Pathways.DeleteStatements(ref.ID)
	case courseware.ElementTypeInteractive:
		return e.Interactives.DeleteStatements(ref.ID)
	case courseware.ElementTypeComponent:
		return e.Components.DeleteStatements(ref.ID)
	case courseware.ElementTypeFeedback:
		return e.Feedback.DeleteStatements(ref.ID)
	case courseware.ElementTypeScenario:
		return e.Scenarios.DeleteStatements(ref.ID)
	}
	return nil, fmt.Errorf("unsupported element type %q", ref.Type)
}

// Get reads the typed record of the element ref names.
func (e *Elements) Get(ctx context.Context, ref courseware.ElementRef) (courseware.Element, bool, error) {
	switch ref.Type {
	case courseware.ElementTypeActivity:
		return get(ctx, e.Activities, ref.ID)
	case courseware.ElementTypePathway:
		return get(ctx, e.Pathways, ref.ID)
	case courseware.ElementTypeInteractive:
		return get(ctx, e.Interactives, ref.ID)
	case courseware.ElementTypeComponent:
		return get(ctx, e.Components, ref.ID)
	case courseware.ElementTypeFeedback:
		return get(ctx, e.Feedback, ref.ID)
	case courseware.ElementTypeScenario:
		return get(ctx, e.Scenarios, ref.ID)
	}
	return nil, false, fmt.Errorf("unsupported element type %q", ref.Type)
}

// elementPtr is satisfied by pointers to the concrete element structs.
type elementPtr[T any] interface {
	*T
	courseware.Element
}

func get[T any, P elementPtr[T]](ctx context.Context, s *EntityStore[T], id string) (courseware.Element, bool, error) {
	v, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	return P(&v), true, nil
}

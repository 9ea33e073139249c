package persistence

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/store"
	"coursegraph-backend/pkg/observability"

	"go.uber.org/zap"
)

const (
	viewForward = "forward"
	viewReverse = "reverse"
)

// ParentEdge is the ownership edge between an element and its single parent.
type ParentEdge struct {
	ChildID    string                 `dynamodbav:"childId"`
	ChildType  courseware.ElementType `dynamodbav:"childType"`
	ParentID   string                 `dynamodbav:"parentId"`
	ParentType courseware.ElementType `dynamodbav:"parentType"`
}

// ParentIndex records each element's parent in two views: a forward pointer
// keyed by the child and a reverse row in the parent's children partition.
// The two rows are written concurrently and may disagree after a failure.
type ParentIndex struct {
	relation *Relation[ParentEdge]
	logger   *zap.Logger
	metrics  *observability.Metrics
}

// NewParentIndex creates a parent index
func NewParentIndex(session *store.Session) (*ParentIndex, error) {
	relation, err := NewRelation(session, "parent",
		View[ParentEdge]{
			Name: viewForward,
			Key: func(e ParentEdge) store.Key {
				return store.Key{PK: partition(prefixParent, e.ChildID), SK: sortParent}
			},
		},
		View[ParentEdge]{
			Name: viewReverse,
			Key: func(e ParentEdge) store.Key {
				return store.Key{PK: partition(prefixChildren, e.ParentID), SK: compound(string(e.ChildType), e.ChildID)}
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return &ParentIndex{relation: relation, logger: session.Logger(), metrics: session.Metrics()}, nil
}

// AttachStatements returns the forward and reverse writes of edge.
func (p *ParentIndex) AttachStatements(edge ParentEdge) ([]store.Statement, error) {
	return p.relation.PutStatements(edge)
}

// Attach records edge in both views. Attaching a child that already has a
// parent overwrites its forward pointer; the reverse row under the previous
// parent is not removed.
func (p *ParentIndex) Attach(ctx context.Context, edge ParentEdge) error {
	return p.relation.Put(ctx, edge)
}

// DetachStatements returns the deletes of both rows of edge.
func (p *ParentIndex) DetachStatements(edge ParentEdge) []store.Statement {
	return p.relation.DeleteStatements(edge)
}

// ReverseDeleteStatement returns the delete of the reverse row of edge only,
// for a child whose forward pointer names another parent.
func (p *ParentIndex) ReverseDeleteStatement(edge ParentEdge) (store.Statement, error) {
	return p.relation.ViewDeleteStatement(viewReverse, edge)
}

// Detach removes the child's forward pointer and the matching reverse row.
// The child entity is untouched. Detaching a child without a parent is a
// no-op; the removed edge is returned when there was one.
func (p *ParentIndex) Detach(ctx context.Context, childID string) (ParentEdge, bool, error) {
	edge, ok, err := p.FindParent(ctx, childID)
	if err != nil || !ok {
		return ParentEdge{}, false, err
	}
	if err := p.relation.Delete(ctx, edge); err != nil {
		return edge, true, err
	}
	return edge, true, nil
}

// FindParent returns the forward pointer of childID.
func (p *ParentIndex) FindParent(ctx context.Context, childID string) (ParentEdge, bool, error) {
	edge, ok, err := p.relation.Get(ctx, viewForward, store.Key{PK: partition(prefixParent, childID), SK: sortParent})
	if err != nil {
		return ParentEdge{}, false, fmt.Errorf("failed to find parent of %s: %w", childID, err)
	}
	return edge, ok, nil
}

// FindChildren returns the reverse rows of parentID, optionally restricted
// to one child type, ordered by child type then child id.
func (p *ParentIndex) FindChildren(ctx context.Context, parentID string, childType courseware.ElementType) ([]ParentEdge, error) {
	edges, err := p.relation.Query(ctx, viewReverse, partition(prefixChildren, parentID), sortPrefix(string(childType)))
	if err != nil {
		return nil, fmt.Errorf("failed to find children of %s: %w", parentID, err)
	}
	return edges, nil
}

// EdgeState describes how the two views of one parent edge agree.
type EdgeState struct {
	ChildID  string
	ParentID string
	// Forward is set when the child's forward pointer names ParentID.
	Forward bool
	// ForwardParentID is the parent the forward pointer names, if any.
	ForwardParentID string
	ForwardEdge     ParentEdge
	// Reverse is set when ParentID's children partition lists the child.
	Reverse bool
	// ReverseEdge is the reverse row found, if any.
	ReverseEdge ParentEdge
}

// Consistent reports whether both rows are present.
func (s EdgeState) Consistent() bool {
	return s.Forward && s.Reverse
}

// Absent reports whether neither row is present.
func (s EdgeState) Absent() bool {
	return !s.Forward && !s.Reverse
}

// HalfWritten reports whether exactly one of the two rows is present.
func (s EdgeState) HalfWritten() bool {
	return s.Forward != s.Reverse
}

// Verify reads both views of the edge between childID and parentID.
func (p *ParentIndex) Verify(ctx context.Context, childID, parentID string) (EdgeState, error) {
	state := EdgeState{ChildID: childID, ParentID: parentID}

	forward, ok, err := p.FindParent(ctx, childID)
	if err != nil {
		return state, err
	}
	if ok {
		state.ForwardParentID = forward.ParentID
		state.ForwardEdge = forward
		state.Forward = forward.ParentID == parentID
	}

	children, err := p.FindChildren(ctx, parentID, "")
	if err != nil {
		return state, err
	}
	for _, c := range children {
		if c.ChildID == childID {
			state.Reverse = true
			state.ReverseEdge = c
			break
		}
	}

	if state.HalfWritten() {
		p.metrics.ObserveDivergence("parent")
		p.logger.Warn("Parent edge is half-written",
			zap.String("childId", childID),
			zap.String("parentId", parentID),
			zap.Bool("forward", state.Forward),
			zap.Bool("reverse", state.Reverse),
			zap.String("forwardParentId", state.ForwardParentID),
		)
	}
	return state, nil
}

// Repair makes both views of the edge between childID and parentID agree
// and returns the state it found. A missing reverse row is rewritten from
// the forward pointer. A reverse row whose forward pointer is missing
// completes the attach. A reverse row whose child now points at another
// parent is stale and is removed.
func (p *ParentIndex) Repair(ctx context.Context, childID, parentID string) (EdgeState, error) {
	state, err := p.Verify(ctx, childID, parentID)
	if err != nil || !state.HalfWritten() {
		return state, err
	}

	switch {
	case state.Forward:
		return state, p.relation.Put(ctx, state.ForwardEdge)

	case state.ForwardParentID == "":
		return state, p.relation.Put(ctx, state.ReverseEdge)

	default:
		stmt, err := p.ReverseDeleteStatement(state.ReverseEdge)
		if err != nil {
			return state, err
		}
		return state, p.relation.session.Exec(ctx, stmt)
	}
}

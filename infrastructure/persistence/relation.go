package persistence

import (
	"context"
	"fmt"

	"coursegraph-backend/infrastructure/store"
)

// View is one projection of a relation's edges: the key an edge is stored
// under when looked up from one particular side.
type View[E any] struct {
	Name string
	Key  func(E) store.Key
}

type viewStatements struct {
	put, del, get, query *store.Prepared
}

// Relation keeps the edges of one relationship in every one of its views.
// Each edge is stored as one row per view, holding the edge record itself;
// puts and deletes produce one statement per view so that callers can issue
// them together in a single batch.
type Relation[E any] struct {
	session *store.Session
	name    string
	views   []View[E]
	stmts   map[string]viewStatements
}

// NewRelation prepares the statements of every view.
func NewRelation[E any](session *store.Session, name string, views ...View[E]) (*Relation[E], error) {
	if len(views) == 0 {
		return nil, fmt.Errorf("relation %s: at least one view is required", name)
	}

	r := &Relation[E]{
		session: session,
		name:    name,
		views:   views,
		stmts:   make(map[string]viewStatements, len(views)),
	}
	for _, v := range views {
		if _, dup := r.stmts[v.Name]; dup {
			return nil, fmt.Errorf("relation %s: duplicate view %s", name, v.Name)
		}
		base := name + "." + v.Name
		prepared, err := session.PrepareAll(
			store.Template{Name: base + ".put", Op: store.OpPut},
			store.Template{Name: base + ".delete", Op: store.OpDelete},
			store.Template{Name: base + ".get", Op: store.OpGet},
			store.Template{Name: base + ".query", Op: store.OpQuery},
		)
		if err != nil {
			return nil, fmt.Errorf("relation %s: %w", name, err)
		}
		r.stmts[v.Name] = viewStatements{
			put:   prepared[base+".put"],
			del:   prepared[base+".delete"],
			get:   prepared[base+".get"],
			query: prepared[base+".query"],
		}
	}
	return r, nil
}

// Name returns the relation name.
func (r *Relation[E]) Name() string {
	return r.name
}

// PutStatements returns one put per view for edge.
func (r *Relation[E]) PutStatements(edge E) ([]store.Statement, error) {
	row, err := store.MarshalRow(edge)
	if err != nil {
		return nil, err
	}
	stmts := make([]store.Statement, 0, len(r.views))
	for _, v := range r.views {
		stmts = append(stmts, r.stmts[v.Name].put.Bind(v.Key(edge)).WithRow(row))
	}
	return stmts, nil
}

// DeleteStatements returns one delete per view for edge. Each key is derived
// from the edge as given; rows stored under other keys are left in place.
func (r *Relation[E]) DeleteStatements(edge E) []store.Statement {
	stmts := make([]store.Statement, 0, len(r.views))
	for _, v := range r.views {
		stmts = append(stmts, r.stmts[v.Name].del.Bind(v.Key(edge)))
	}
	return stmts
}

// ViewDeleteStatement removes edge from a single view.
func (r *Relation[E]) ViewDeleteStatement(view string, edge E) (store.Statement, error) {
	v, s, err := r.view(view)
	if err != nil {
		return store.Statement{}, err
	}
	return s.del.Bind(v.Key(edge)), nil
}

// Put writes edge into every view.
func (r *Relation[E]) Put(ctx context.Context, edge E) error {
	stmts, err := r.PutStatements(edge)
	if err != nil {
		return err
	}
	return r.session.ExecBatch(ctx, r.name+".put", stmts)
}

// Delete removes edge from every view.
func (r *Relation[E]) Delete(ctx context.Context, edge E) error {
	return r.session.ExecBatch(ctx, r.name+".delete", r.DeleteStatements(edge))
}

// Get reads the row stored in view under key.
func (r *Relation[E]) Get(ctx context.Context, view string, key store.Key) (E, bool, error) {
	var zero E
	_, s, err := r.view(view)
	if err != nil {
		return zero, false, err
	}
	row, err := r.session.Get(ctx, s.get.Bind(key))
	if err != nil {
		return zero, false, err
	}
	if row == nil {
		return zero, false, nil
	}
	var edge E
	if err := row.Decode(&edge); err != nil {
		return zero, false, err
	}
	return edge, true, nil
}

// Query reads the edges of one partition of view in sort-key order,
// optionally restricted to sort keys starting with prefix.
func (r *Relation[E]) Query(ctx context.Context, view, partitionKey, prefix string) ([]E, error) {
	_, s, err := r.view(view)
	if err != nil {
		return nil, err
	}
	rows, err := r.session.Query(ctx, s.query.Bind(store.Key{PK: partitionKey}).WithSortPrefix(prefix))
	if err != nil {
		return nil, err
	}
	edges := make([]E, 0, len(rows))
	for _, row := range rows {
		var edge E
		if err := row.Decode(&edge); err != nil {
			return nil, err
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

func (r *Relation[E]) view(name string) (View[E], viewStatements, error) {
	for _, v := range r.views {
		if v.Name == name {
			return v, r.stmts[name], nil
		}
	}
	return View[E]{}, viewStatements{}, fmt.Errorf("relation %s: unknown view %s", r.name, name)
}

package persistence

import (
	"context"
	"fmt"
	"sort"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/store"
	apperrors "coursegraph-backend/pkg/errors"
	"coursegraph-backend/pkg/observability"

	"go.uber.org/zap"
)

// Append inserts at the end of the sequence.
const Append = -1

const (
	columnChildren = "children"
	columnTypes    = "types"
)

// Child is one member of an ordered sequence.
type Child struct {
	ID   string
	Type courseware.ElementType
}

// Children is the stored state of one ordered sequence.
type Children struct {
	IDs   []string
	Types map[string]courseware.ElementType
}

// Ordered pairs each id with its type in sequence order. Ids without a type
// are reported with an empty type.
func (c Children) Ordered() []Child {
	out := make([]Child, 0, len(c.IDs))
	for _, id := range c.IDs {
		out = append(out, Child{ID: id, Type: c.Types[id]})
	}
	return out
}

// Contains reports whether id is in the sequence.
func (c Children) Contains(id string) bool {
	for _, v := range c.IDs {
		if v == id {
			return true
		}
	}
	return false
}

// Divergence lists the disagreements between a sequence and its type map.
type Divergence struct {
	ParentID string
	// MissingTypes are ids in the sequence with no type entry.
	MissingTypes []string
	// OrphanTypes are type entries whose id is not in the sequence.
	OrphanTypes []string
}

// Consistent reports whether the type map keys equal the sequence ids.
func (d Divergence) Consistent() bool {
	return len(d.MissingTypes) == 0 && len(d.OrphanTypes) == 0
}

// TypeResolver looks up the element type of an id.
type TypeResolver interface {
	ResolveType(ctx context.Context, id string) (courseware.ElementType, bool, error)
}

// OrderedList keeps, per parent, an ordered sequence of child ids in a list
// column and a map from child id to child type in a map column of the same
// row. The two columns are written by separate statements.
type OrderedList struct {
	session *store.Session
	logger  *zap.Logger
	metrics *observability.Metrics

	get, put, del                        *store.Prepared
	listAppend, listPrepend, listReplace *store.Prepared
	listRemove, typesPut, typesRemove    *store.Prepared
}

// NewOrderedList creates an ordered list manager
func NewOrderedList(session *store.Session) (*OrderedList, error) {
	p, err := session.PrepareAll(
		store.Template{Name: "children_order.get", Op: store.OpGet},
		store.Template{Name: "children_order.put", Op: store.OpPut},
		store.Template{Name: "children_order.delete", Op: store.OpDelete},
		store.Template{Name: "children_order.append", Op: store.OpListAppend, Column: columnChildren},
		store.Template{Name: "children_order.prepend", Op: store.OpListPrepend, Column: columnChildren},
		store.Template{Name: "children_order.replace", Op: store.OpListReplace, Column: columnChildren},
		store.Template{Name: "children_order.remove", Op: store.OpListRemove, Column: columnChildren},
		store.Template{Name: "children_order.types_put", Op: store.OpMapPut, Column: columnTypes},
		store.Template{Name: "children_order.types_remove", Op: store.OpMapRemove, Column: columnTypes},
	)
	if err != nil {
		return nil, fmt.Errorf("ordered list: %w", err)
	}
	return &OrderedList{
		session:     session,
		logger:      session.Logger(),
		metrics:     session.Metrics(),
		get:         p["children_order.get"],
		put:         p["children_order.put"],
		del:         p["children_order.delete"],
		listAppend:  p["children_order.append"],
		listPrepend: p["children_order.prepend"],
		listReplace: p["children_order.replace"],
		listRemove:  p["children_order.remove"],
		typesPut:    p["children_order.types_put"],
		typesRemove: p["children_order.types_remove"],
	}, nil
}

func orderKey(parentID string) store.Key {
	return store.Key{PK: partition(prefixChildrenOrder, parentID), SK: sortList}
}

// InsertStatements returns the sequence write and the type-map write that
// insert child at position. Appends and prepends use the native list ops;
// a position inside the sequence reads the current list and replaces it.
// The sequence write is never safe to replay: a replayed insert adds the
// child again.
func (l *OrderedList) InsertStatements(ctx context.Context, parentID string, child Child, position int) ([]store.Statement, error) {
	if child.ID == "" {
		return nil, apperrors.NewValidation("child id is required")
	}
	if !child.Type.IsValid() {
		return nil, apperrors.NewValidationf("unknown child type %q", child.Type)
	}
	if position < Append {
		return nil, apperrors.NewValidationf("invalid position %d", position)
	}

	key := orderKey(parentID)
	var seq store.Statement
	switch position {
	case Append:
		seq = l.listAppend.Bind(key).WithValues(child.ID)
	case 0:
		seq = l.listPrepend.Bind(key).WithValues(child.ID)
	default:
		current, err := l.Fetch(ctx, parentID)
		if err != nil {
			return nil, err
		}
		if position >= len(current.IDs) {
			seq = l.listAppend.Bind(key).WithValues(child.ID)
			break
		}
		ids := make([]string, 0, len(current.IDs)+1)
		ids = append(ids, current.IDs[:position]...)
		ids = append(ids, child.ID)
		ids = append(ids, current.IDs[position:]...)
		seq = l.listReplace.Bind(key).WithValues(ids...)
	}

	return []store.Statement{
		seq.NonIdempotent(),
		l.typesPut.Bind(key).WithEntry(child.ID, string(child.Type)),
	}, nil
}

// AppendStatements returns the statements that append child unless the
// sequence already holds it, in which case only the type entry is written.
// A retried append after a partial failure therefore converges instead of
// adding the child twice. Two appends racing on the same child can still
// both land.
func (l *OrderedList) AppendStatements(ctx context.Context, parentID string, child Child) ([]store.Statement, error) {
	current, err := l.Fetch(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !current.Contains(child.ID) {
		return l.InsertStatements(ctx, parentID, child, Append)
	}
	if !child.Type.IsValid() {
		return nil, apperrors.NewValidationf("unknown child type %q", child.Type)
	}
	return []store.Statement{
		l.typesPut.Bind(orderKey(parentID)).WithEntry(child.ID, string(child.Type)),
	}, nil
}

// InsertAt inserts child at position, or at the end for Append or any
// position past the end.
func (l *OrderedList) InsertAt(ctx context.Context, parentID string, child Child, position int) error {
	stmts, err := l.InsertStatements(ctx, parentID, child, position)
	if err != nil {
		return err
	}
	return l.session.ExecBatch(ctx, "children_order.insert", stmts)
}

// RemoveStatements returns the removal of childID from both columns.
func (l *OrderedList) RemoveStatements(parentID, childID string) []store.Statement {
	key := orderKey(parentID)
	return []store.Statement{
		l.listRemove.Bind(key).WithValues(childID),
		l.typesRemove.Bind(key).WithMapKey(childID),
	}
}

// Remove removes every occurrence of childID. Removing an absent child is a no-op.
func (l *OrderedList) Remove(ctx context.Context, parentID, childID string) error {
	return l.session.ExecBatch(ctx, "children_order.remove", l.RemoveStatements(parentID, childID))
}

// ReplaceAllStatement returns the single-row overwrite of both columns.
func (l *OrderedList) ReplaceAllStatement(parentID string, children []Child) (store.Statement, error) {
	ids := make([]string, 0, len(children))
	types := make(map[string]string, len(children))
	for _, c := range children {
		if !c.Type.IsValid() {
			return store.Statement{}, apperrors.NewValidationf("child %s has unknown type %q", c.ID, c.Type)
		}
		ids = append(ids, c.ID)
		types[c.ID] = string(c.Type)
	}
	row := store.Row{
		columnChildren: store.StringListValue(ids),
		columnTypes:    store.StringMapValue(types),
	}
	return l.put.Bind(orderKey(parentID)).WithRow(row), nil
}

// ReplaceAll overwrites the sequence and the type map in one write.
func (l *OrderedList) ReplaceAll(ctx context.Context, parentID string, children []Child) error {
	stmt, err := l.ReplaceAllStatement(parentID, children)
	if err != nil {
		return err
	}
	return l.session.Exec(ctx, stmt)
}

// DeleteStatement removes the whole row.
func (l *OrderedList) DeleteStatement(parentID string) store.Statement {
	return l.del.Bind(orderKey(parentID))
}

// Fetch reads the sequence and the type map. A parent without children
// reads as empty.
func (l *OrderedList) Fetch(ctx context.Context, parentID string) (Children, error) {
	row, err := l.session.Get(ctx, l.get.Bind(orderKey(parentID)))
	if err != nil {
		return Children{}, fmt.Errorf("failed to fetch children of %s: %w", parentID, err)
	}
	out := Children{IDs: []string{}, Types: map[string]courseware.ElementType{}}
	if row == nil {
		return out, nil
	}
	out.IDs = row.StringList(columnChildren)
	for id, t := range row.StringMap(columnTypes) {
		out.Types[id] = courseware.ElementType(t)
	}
	return out, nil
}

// Verify compares the sequence with the type map.
func (l *OrderedList) Verify(ctx context.Context, parentID string) (Divergence, error) {
	children, err := l.Fetch(ctx, parentID)
	if err != nil {
		return Divergence{ParentID: parentID}, err
	}
	d := diverge(parentID, children)
	if !d.Consistent() {
		l.metrics.ObserveDivergence("children_order")
		l.logger.Warn("Ordered children diverge from their type map",
			zap.String("parentId", parentID),
			zap.Strings("missingTypes", d.MissingTypes),
			zap.Strings("orphanTypes", d.OrphanTypes),
		)
	}
	return d, nil
}

// Repair rewrites a diverged row so that both columns agree. Ids without a
// type entry are resolved through resolver and dropped when unknown; type
// entries without an id are dropped. It returns the divergence it found.
func (l *OrderedList) Repair(ctx context.Context, parentID string, resolver TypeResolver) (Divergence, error) {
	children, err := l.Fetch(ctx, parentID)
	if err != nil {
		return Divergence{ParentID: parentID}, err
	}
	d := diverge(parentID, children)
	if d.Consistent() {
		return d, nil
	}

	repaired := make([]Child, 0, len(children.IDs))
	for _, id := range children.IDs {
		t, ok := children.Types[id]
		if !ok {
			t, ok, err = resolver.ResolveType(ctx, id)
			if err != nil {
				return d, err
			}
			if !ok {
				l.logger.Warn("Dropping unresolvable child", zap.String("parentId", parentID), zap.String("childId", id))
				continue
			}
		}
		repaired = append(repaired, Child{ID: id, Type: t})
	}

	if err := l.ReplaceAll(ctx, parentID, repaired); err != nil {
		return d, err
	}
	l.logger.Info("Ordered children repaired",
		zap.String("parentId", parentID),
		zap.Int("children", len(repaired)),
	)
	return d, nil
}

func diverge(parentID string, c Children) Divergence {
	d := Divergence{ParentID: parentID}
	inList := make(map[string]bool, len(c.IDs))
	for _, id := range c.IDs {
		if inList[id] {
			continue
		}
		inList[id] = true
		if _, ok := c.Types[id]; !ok {
			d.MissingTypes = append(d.MissingTypes, id)
		}
	}
	for id := range c.Types {
		if !inList[id] {
			d.OrphanTypes = append(d.OrphanTypes, id)
		}
	}
	sort.Strings(d.OrphanTypes)
	return d
}

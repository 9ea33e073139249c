package persistence

import (
	"context"
	"errors"
	"sort"
	"testing"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/store"
	"coursegraph-backend/infrastructure/store/memory"
	apperrors "coursegraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activityChild(id string) Child {
	return Child{ID: id, Type: courseware.ElementTypeActivity}
}

func typeKeys(c Children) []string {
	keys := make([]string, 0, len(c.Types))
	for k := range c.Types {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func uniqueSorted(ids []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func assertKeyAgreement(t *testing.T, c Children) {
	t.Helper()
	assert.Equal(t, uniqueSorted(c.IDs), typeKeys(c), "type map keys must equal the sequence ids")
}

func TestOrderedList_InsertInTheMiddle(t *testing.T) {
	// Arrange
	ctx := context.Background()
	session, _ := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)
	require.NoError(t, list.InsertAt(ctx, "P", activityChild("X"), Append))
	require.NoError(t, list.InsertAt(ctx, "P", Child{ID: "Y", Type: courseware.ElementTypeInteractive}, Append))

	// Act
	err = list.InsertAt(ctx, "P", activityChild("Z"), 1)

	// Assert
	require.NoError(t, err)
	children, err := list.Fetch(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Z", "Y"}, children.IDs)
	assert.Equal(t, courseware.ElementTypeInteractive, children.Types["Y"])
	assertKeyAgreement(t, children)
}

func TestOrderedList_PositionsAtTheEdges(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)

	require.NoError(t, list.InsertAt(ctx, "P", activityChild("B"), 0))
	require.NoError(t, list.InsertAt(ctx, "P", activityChild("A"), 0))
	require.NoError(t, list.InsertAt(ctx, "P", activityChild("C"), 99))

	children, err := list.Fetch(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, children.IDs)
	assertKeyAgreement(t, children)

	err = list.InsertAt(ctx, "P", activityChild("D"), -2)
	assert.True(t, apperrors.IsValidation(err))
	err = list.InsertAt(ctx, "P", Child{ID: "E", Type: "LESSON"}, Append)
	assert.True(t, apperrors.IsValidation(err))
}

func TestOrderedList_FetchEmpty(t *testing.T) {
	session, _ := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)

	children, err := list.Fetch(context.Background(), "nobody")

	require.NoError(t, err)
	assert.Empty(t, children.IDs)
	assert.Empty(t, children.Types)
}

func TestOrderedList_InsertIsMarkedNonIdempotent(t *testing.T) {
	ctx := context.Background()
	session, engine := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)

	require.NoError(t, list.InsertAt(ctx, "P", activityChild("X"), Append))
	require.NoError(t, list.InsertAt(ctx, "P", activityChild("Y"), 0))
	require.NoError(t, list.InsertAt(ctx, "P", activityChild("Z"), 1))

	for _, s := range engine.Executed() {
		switch s.Template.Op {
		case store.OpListAppend, store.OpListPrepend, store.OpListReplace:
			assert.False(t, s.Idempotent, "%s must never be retried by the client", s)
		case store.OpMapPut:
			assert.True(t, s.Idempotent)
		}
	}
}

// Replaying an insert duplicates the entry. This is the documented contract
// of the sequence write, so the test asserts the duplicate.
func TestOrderedList_ReplayedInsertDuplicates(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)

	require.NoError(t, list.InsertAt(ctx, "P", activityChild("X"), Append))
	require.NoError(t, list.InsertAt(ctx, "P", activityChild("X"), Append))

	children, err := list.Fetch(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "X"}, children.IDs)
	assertKeyAgreement(t, children)
}

func TestOrderedList_AppendStatementsSkipPresentChild(t *testing.T) {
	ctx := context.Background()
	session, engine := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)

	stmts, err := list.AppendStatements(ctx, "P", activityChild("X"))
	require.NoError(t, err)
	assert.Len(t, stmts, 2)
	require.NoError(t, session.ExecBatch(ctx, "children_order.append", stmts))

	// Lose the type entry, as after a partial attach.
	engine.InjectFault(memory.FailTemplateOnce("children_order.types_put", errors.New("timeout")))
	require.NoError(t, list.ReplaceAll(ctx, "P", nil))
	stmts, err = list.AppendStatements(ctx, "P", activityChild("X"))
	require.NoError(t, err)
	require.Error(t, session.ExecBatch(ctx, "children_order.append", stmts))

	stmts, err = list.AppendStatements(ctx, "P", activityChild("X"))
	require.NoError(t, err)
	require.Len(t, stmts, 1, "a present child only gets its type entry")
	require.NoError(t, session.ExecBatch(ctx, "children_order.append", stmts))

	children, err := list.Fetch(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, []string{"X"}, children.IDs)
	assert.True(t, children.Contains("X"))
	assertKeyAgreement(t, children)
}

func TestOrderedList_RemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)
	require.NoError(t, list.ReplaceAll(ctx, "P", []Child{activityChild("X"), activityChild("Y")}))

	require.NoError(t, list.Remove(ctx, "P", "X"))
	once, err := list.Fetch(ctx, "P")
	require.NoError(t, err)
	require.NoError(t, list.Remove(ctx, "P", "X"))
	twice, err := list.Fetch(ctx, "P")
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"Y"}, twice.IDs)
	assertKeyAgreement(t, twice)

	require.NoError(t, list.Remove(ctx, "nobody", "X"), "removing from a missing row is a no-op")
}

func TestOrderedList_ReplaceAll(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)
	require.NoError(t, list.InsertAt(ctx, "P", activityChild("X"), Append))
	require.NoError(t, list.InsertAt(ctx, "P", activityChild("Y"), Append))

	require.NoError(t, list.ReplaceAll(ctx, "P", []Child{
		{ID: "Y", Type: courseware.ElementTypeActivity},
		{ID: "W", Type: courseware.ElementTypeInteractive},
	}))

	children, err := list.Fetch(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, []string{"Y", "W"}, children.IDs)
	assert.Equal(t, []Child{
		{ID: "Y", Type: courseware.ElementTypeActivity},
		{ID: "W", Type: courseware.ElementTypeInteractive},
	}, children.Ordered())
	assertKeyAgreement(t, children)
}

func TestOrderedList_DetectsAndRepairsDivergence(t *testing.T) {
	// Arrange
	ctx := context.Background()
	session, engine := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)
	elements := mustElements(t, session)
	require.NoError(t, elements.Activities.Put(ctx, courseware.Activity{ID: "X", PluginID: "p", PluginVersion: "1"}))
	require.NoError(t, elements.Interactives.Put(ctx, courseware.Interactive{ID: "Y", PluginID: "p", PluginVersion: "1"}))
	require.NoError(t, list.InsertAt(ctx, "P", activityChild("X"), Append))

	// The map write of the second insert fails after the list write landed.
	engine.InjectFault(memory.FailTemplateOnce("children_order.types_put", errors.New("write timeout")))
	err = list.InsertAt(ctx, "P", Child{ID: "Y", Type: courseware.ElementTypeInteractive}, Append)
	require.Error(t, err)
	assert.True(t, apperrors.IsPartialFanOut(err))

	// Act
	divergence, err := list.Verify(ctx, "P")

	// Assert
	require.NoError(t, err)
	assert.False(t, divergence.Consistent())
	assert.Equal(t, []string{"Y"}, divergence.MissingTypes)
	assert.Empty(t, divergence.OrphanTypes)

	found, err := list.Repair(ctx, "P", elements.Directory)
	require.NoError(t, err)
	assert.Equal(t, divergence, found)

	children, err := list.Fetch(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, children.IDs)
	assert.Equal(t, courseware.ElementTypeInteractive, children.Types["Y"])
	assertKeyAgreement(t, children)

	after, err := list.Verify(ctx, "P")
	require.NoError(t, err)
	assert.True(t, after.Consistent())
}

func TestOrderedList_RepairDropsOrphansAndUnknownIDs(t *testing.T) {
	ctx := context.Background()
	session, engine := newTestSession(t)
	list, err := NewOrderedList(session)
	require.NoError(t, err)
	elements := mustElements(t, session)
	require.NoError(t, list.ReplaceAll(ctx, "P", []Child{activityChild("X"), activityChild("Y")}))

	// Removing Y loses the list write: Y stays in the sequence, its type goes.
	engine.InjectFault(memory.FailTemplateOnce("children_order.remove", errors.New("unavailable")))
	require.Error(t, list.Remove(ctx, "P", "Y"))
	// Removing X loses the map write: X leaves the sequence, its type stays.
	engine.InjectFault(memory.FailTemplateOnce("children_order.types_remove", errors.New("unavailable")))
	require.Error(t, list.Remove(ctx, "P", "X"))

	divergence, err := list.Verify(ctx, "P")
	require.NoError(t, err)
	assert.Equal(t, []string{"Y"}, divergence.MissingTypes)
	assert.Equal(t, []string{"X"}, divergence.OrphanTypes)

	_, err = list.Repair(ctx, "P", elements.Directory)
	require.NoError(t, err)

	children, err := list.Fetch(ctx, "P")
	require.NoError(t, err)
	assert.Empty(t, children.IDs, "Y has no generic record and cannot be typed")
	assert.Empty(t, children.Types)
}

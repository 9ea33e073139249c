package persistence

import (
	"context"
	"errors"
	"testing"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/store/memory"
	apperrors "coursegraph-backend/pkg/errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pathwayEdge(childID, parentID string) ParentEdge {
	return ParentEdge{
		ChildID:    childID,
		ChildType:  courseware.ElementTypePathway,
		ParentID:   parentID,
		ParentType: courseware.ElementTypeActivity,
	}
}

func childIDs(edges []ParentEdge) []string {
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ChildID)
	}
	return ids
}

func TestParentIndex_ReciprocalConsistency(t *testing.T) {
	// Arrange
	ctx := context.Background()
	session, _ := newTestSession(t)
	index, err := NewParentIndex(session)
	require.NoError(t, err)

	// Act
	require.NoError(t, index.Attach(ctx, pathwayEdge("p1", "a1")))
	require.NoError(t, index.Attach(ctx, pathwayEdge("p2", "a1")))

	// Assert
	parent, ok, err := index.FindParent(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a1", parent.ParentID)

	children, err := index.FindChildren(ctx, "a1", "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, childIDs(children))

	state, err := index.Verify(ctx, "p1", "a1")
	require.NoError(t, err)
	assert.True(t, state.Consistent())
}

func TestParentIndex_FindChildrenByType(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	index, err := NewParentIndex(session)
	require.NoError(t, err)

	require.NoError(t, index.Attach(ctx, pathwayEdge("p1", "a1")))
	require.NoError(t, index.Attach(ctx, ParentEdge{
		ChildID: "c1", ChildType: courseware.ElementTypeComponent,
		ParentID: "a1", ParentType: courseware.ElementTypeActivity,
	}))

	components, err := index.FindChildren(ctx, "a1", courseware.ElementTypeComponent)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, childIDs(components))

	none, err := index.FindChildren(ctx, "a2", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestParentIndex_DetachIsIdempotent(t *testing.T) {
	// Arrange
	ctx := context.Background()
	session, engine := newTestSession(t)
	index, err := NewParentIndex(session)
	require.NoError(t, err)
	require.NoError(t, index.Attach(ctx, pathwayEdge("p1", "a1")))

	// Act
	removed, ok, err := index.Detach(ctx, "p1")
	require.NoError(t, err)
	rowsAfterFirst := engine.Len()
	_, okAgain, errAgain := index.Detach(ctx, "p1")

	// Assert
	assert.True(t, ok)
	assert.Equal(t, "a1", removed.ParentID)
	require.NoError(t, errAgain)
	assert.False(t, okAgain, "second detach finds nothing to remove")
	assert.Equal(t, rowsAfterFirst, engine.Len())
	assert.Equal(t, 0, engine.Len())

	_, found, err := index.FindParent(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, found)
	children, err := index.FindChildren(ctx, "a1", "")
	require.NoError(t, err)
	assert.Empty(t, children)
}

// Re-attaching without a detach silently replaces the forward pointer and
// leaves the reverse row under the first parent. This locks in that
// behaviour so any change to it is deliberate.
func TestParentIndex_ReattachWithoutDetachOverwritesForwardPointer(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	index, err := NewParentIndex(session)
	require.NoError(t, err)

	require.NoError(t, index.Attach(ctx, pathwayEdge("p1", "a1")))
	require.NoError(t, index.Attach(ctx, pathwayEdge("p1", "a2")))

	parent, ok, err := index.FindParent(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a2", parent.ParentID)

	stale, err := index.FindChildren(ctx, "a1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, childIDs(stale), "the old reverse row is left behind")

	state, err := index.Verify(ctx, "p1", "a1")
	require.NoError(t, err)
	assert.True(t, state.HalfWritten())
	assert.False(t, state.Forward)
	assert.True(t, state.Reverse)
	assert.Equal(t, "a2", state.ForwardParentID)

	// Repair drops the stale reverse row.
	_, err = index.Repair(ctx, "p1", "a1")
	require.NoError(t, err)
	stale, err = index.FindChildren(ctx, "a1", "")
	require.NoError(t, err)
	assert.Empty(t, stale)
	state, err = index.Verify(ctx, "p1", "a2")
	require.NoError(t, err)
	assert.True(t, state.Consistent())
}

func TestParentIndex_DetectsAndRepairsHalfWrittenAttach(t *testing.T) {
	tests := []struct {
		name        string
		failing     string
		wantForward bool
		wantReverse bool
	}{
		{name: "reverse row lost", failing: "parent.reverse.put", wantForward: true},
		{name: "forward pointer lost", failing: "parent.forward.put", wantReverse: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			ctx := context.Background()
			session, engine := newTestSession(t)
			index, err := NewParentIndex(session)
			require.NoError(t, err)
			engine.InjectFault(memory.FailTemplateOnce(tt.failing, errors.New("write timeout")))

			// Act
			err = index.Attach(ctx, pathwayEdge("p1", "a1"))

			// Assert
			require.Error(t, err)
			fe, ok := apperrors.AsFanOut(err)
			require.True(t, ok)
			assert.Equal(t, 1, fe.Failed)
			assert.Equal(t, 2, fe.Total)

			state, err := index.Verify(ctx, "p1", "a1")
			require.NoError(t, err)
			assert.True(t, state.HalfWritten())
			assert.Equal(t, tt.wantForward, state.Forward)
			assert.Equal(t, tt.wantReverse, state.Reverse)
			assert.Equal(t, 1.0, testutil.ToFloat64(session.Metrics().Divergences.WithLabelValues("parent")))

			_, err = index.Repair(ctx, "p1", "a1")
			require.NoError(t, err)
			state, err = index.Verify(ctx, "p1", "a1")
			require.NoError(t, err)
			assert.True(t, state.Consistent())
		})
	}
}

func TestParentIndex_VerifyAbsentEdge(t *testing.T) {
	session, _ := newTestSession(t)
	index, err := NewParentIndex(session)
	require.NoError(t, err)

	state, err := index.Verify(context.Background(), "x", "y")

	require.NoError(t, err)
	assert.True(t, state.Absent())
	assert.False(t, state.HalfWritten())
}

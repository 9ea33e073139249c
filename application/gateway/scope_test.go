package gateway

import (
	"context"
	"testing"

	"coursegraph-backend/domain/courseware"
	apperrors "coursegraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeGateway_ScenarioD_RegisterThenUnregister(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(t)
	f.component(t, "E")
	ref := courseware.ScopeReference{
		ScopeURN:      "urn:scope:S",
		ElementID:     "E",
		ElementType:   courseware.ElementTypeComponent,
		PluginID:      "plugin",
		PluginVersion: "1.0.0",
	}

	// Act
	require.NoError(t, f.scopes.RegisterScope(ctx, ref))

	// Assert
	bindings, err := f.scopes.FindScopeBindings(ctx, "urn:scope:S")
	require.NoError(t, err)
	assert.Equal(t, []courseware.ScopeReference{ref}, bindings)
	got, ok, err := f.scopes.FindScopeBinding(ctx, "E", "urn:scope:S")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ref, got)

	require.NoError(t, f.scopes.UnregisterScope(ctx, "urn:scope:S", "E"))
	bindings, err = f.scopes.FindScopeBindings(ctx, "urn:scope:S")
	require.NoError(t, err)
	assert.Empty(t, bindings)
	scopes, err := f.scopes.FindElementScopes(ctx, "E")
	require.NoError(t, err)
	assert.Empty(t, scopes)
}

func TestScopeGateway_RegisterChecksTheElement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.component(t, "E")

	err := f.scopes.RegisterScope(ctx, courseware.ScopeReference{ScopeURN: "urn:scope:S", ElementID: "ghost", ElementType: courseware.ElementTypeComponent})
	assert.True(t, apperrors.IsNotFound(err))

	err = f.scopes.RegisterScope(ctx, courseware.ScopeReference{ScopeURN: "urn:scope:S", ElementID: "E", ElementType: courseware.ElementTypeActivity})
	assert.True(t, apperrors.IsValidation(err))

	err = f.scopes.RegisterScope(ctx, courseware.ScopeReference{ElementID: "E", ElementType: courseware.ElementTypeComponent})
	assert.True(t, apperrors.IsValidation(err), "scope urn is required")
}

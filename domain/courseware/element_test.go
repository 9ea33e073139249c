package courseware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDOfAndTypeOf(t *testing.T) {
	tests := []struct {
		name     string
		element  Element
		wantID   string
		wantType ElementType
	}{
		{name: "activity", element: &Activity{ID: "a1"}, wantID: "a1", wantType: ElementTypeActivity},
		{name: "pathway", element: &Pathway{ID: "p1"}, wantID: "p1", wantType: ElementTypePathway},
		{name: "interactive", element: &Interactive{ID: "i1"}, wantID: "i1", wantType: ElementTypeInteractive},
		{name: "component", element: &Component{ID: "c1"}, wantID: "c1", wantType: ElementTypeComponent},
		{name: "feedback", element: &Feedback{ID: "f1"}, wantID: "f1", wantType: ElementTypeFeedback},
		{name: "scenario", element: &Scenario{ID: "s1"}, wantID: "s1", wantType: ElementTypeScenario},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantID, IDOf(tt.element))
			assert.Equal(t, tt.wantType, TypeOf(tt.element))
			assert.Equal(t, ElementRef{ID: tt.wantID, Type: tt.wantType}, RefOf(tt.element))
		})
	}
}

func TestElementType_Walkable(t *testing.T) {
	assert.True(t, ElementTypeActivity.Walkable())
	assert.True(t, ElementTypeInteractive.Walkable())
	assert.False(t, ElementTypePathway.Walkable())
	assert.False(t, ElementTypeComponent.Walkable())
	assert.False(t, ElementTypeFeedback.Walkable())
	assert.False(t, ElementTypeScenario.Walkable())
}

func TestParseElementType(t *testing.T) {
	got, err := ParseElementType(" interactive ")
	require.NoError(t, err)
	assert.Equal(t, ElementTypeInteractive, got)

	_, err = ParseElementType("LESSON")
	assert.Error(t, err)
}

func TestCanContain(t *testing.T) {
	tests := []struct {
		parent ElementType
		child  ElementType
		want   bool
	}{
		{ElementTypeActivity, ElementTypePathway, true},
		{ElementTypeActivity, ElementTypeComponent, true},
		{ElementTypeActivity, ElementTypeScenario, true},
		{ElementTypeActivity, ElementTypeInteractive, false},
		{ElementTypePathway, ElementTypeActivity, true},
		{ElementTypePathway, ElementTypeInteractive, true},
		{ElementTypePathway, ElementTypeComponent, false},
		{ElementTypeInteractive, ElementTypeFeedback, true},
		{ElementTypeInteractive, ElementTypePathway, false},
		{ElementTypeComponent, ElementTypeFeedback, false},
		{ElementTypeFeedback, ElementTypeScenario, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.parent)+"->"+string(tt.child), func(t *testing.T) {
			assert.Equal(t, tt.want, CanContain(tt.parent, tt.child))
		})
	}
}

func TestChildTypes_ReturnsCopy(t *testing.T) {
	types := ChildTypes(ElementTypePathway)
	types[0] = ElementTypeFeedback

	assert.Equal(t, []ElementType{ElementTypeActivity, ElementTypeInteractive}, ChildTypes(ElementTypePathway))
	assert.Empty(t, ChildTypes(ElementTypeFeedback))
}

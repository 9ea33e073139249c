package validation

import (
	"testing"

	"coursegraph-backend/domain/competency"
	"coursegraph-backend/domain/courseware"
	apperrors "coursegraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStruct(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		wantErr string
	}{
		{
			name:  "valid pathway",
			value: &courseware.Pathway{ID: "p1", Type: courseware.PathwayTypeLinear},
		},
		{
			name:    "unknown pathway type",
			value:   &courseware.Pathway{ID: "p1", Type: "SPIRAL"},
			wantErr: `Pathway.Type has unknown value "SPIRAL"`,
		},
		{
			name:    "unknown scenario lifecycle",
			value:   &courseware.Scenario{ID: "s1", Name: "On start", Lifecycle: "ACTIVITY_PAUSED"},
			wantErr: `Scenario.Lifecycle has unknown value "ACTIVITY_PAUSED"`,
		},
		{
			name:    "unknown element type",
			value:   &courseware.ElementRef{ID: "a1", Type: "LESSON"},
			wantErr: `ElementRef.Type has unknown value "LESSON"`,
		},
		{
			name:    "missing id",
			value:   &courseware.ElementRef{Type: courseware.ElementTypeActivity},
			wantErr: "ElementRef.ID is required",
		},
		{
			name: "self association",
			value: &competency.ItemAssociation{
				ID: "e1", DocumentID: "d1", OriginItemID: "i1", DestinationItemID: "i1",
				Type: competency.AssociationPrecedes,
			},
			wantErr: "ItemAssociation.DestinationItemID must differ from OriginItemID",
		},
		{
			name: "valid tag",
			value: &competency.DocumentItemTag{
				DocumentID: "d1", DocumentItemID: "i1", ElementID: "a1",
				ElementType: courseware.ElementTypeActivity,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.value)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

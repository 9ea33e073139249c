package gateway

import (
	"context"
	"testing"

	"coursegraph-backend/domain/competency"
	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/persistence"
	apperrors "coursegraph-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func associationIDs(as []competency.ItemAssociation) []string {
	ids := make([]string, 0, len(as))
	for _, a := range as {
		ids = append(ids, a.ID)
	}
	return ids
}

func TestCompetencyGateway_ScenarioC_CreateThenDeleteAssociation(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(t)
	f.document(t, "D")
	f.item(t, "D", "I1")
	f.item(t, "D", "I2")

	// Act
	created, err := f.competency.CreateAssociation(ctx, competency.ItemAssociation{
		DocumentID:        "D",
		OriginItemID:      "I1",
		DestinationItemID: "I2",
		Type:              competency.AssociationPrecedes,
	})

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, fixedNow, created.CreatedAt)

	outgoing, err := f.competency.FindAssociations(ctx, "I1", competency.DirectionOrigin, competency.AssociationPrecedes)
	require.NoError(t, err)
	assert.Equal(t, []competency.ItemAssociation{created}, outgoing)
	incoming, err := f.competency.FindAssociations(ctx, "I2", competency.DirectionDestination, "")
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, associationIDs(incoming))
	owned, err := f.competency.FindDocumentAssociations(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID}, associationIDs(owned))

	require.NoError(t, f.competency.DeleteAssociationByID(ctx, created.ID))

	outgoing, err = f.competency.FindAssociations(ctx, "I1", competency.DirectionOrigin, competency.AssociationPrecedes)
	require.NoError(t, err)
	assert.Empty(t, outgoing)
	incoming, err = f.competency.FindAssociations(ctx, "I2", competency.DirectionDestination, competency.AssociationPrecedes)
	require.NoError(t, err)
	assert.Empty(t, incoming)
	_, ok, err := f.competency.FindAssociation(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.competency.DeleteAssociationByID(ctx, created.ID), "deleting again is a no-op")
}

func TestCompetencyGateway_DeleteWithWrongTypeLeavesDirectionalRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.document(t, "D")
	f.item(t, "D", "I1")
	f.item(t, "D", "I2")
	created, err := f.competency.CreateAssociation(ctx, competency.ItemAssociation{
		DocumentID: "D", OriginItemID: "I1", DestinationItemID: "I2", Type: competency.AssociationIsPeerOf,
	})
	require.NoError(t, err)

	ref := persistence.AssociationRefOf(created)
	ref.Type = competency.AssociationExemplar
	require.NoError(t, f.competency.DeleteAssociation(ctx, ref))

	// The canonical row is gone, so the orphaned index rows join to nothing.
	outgoing, err := f.competency.FindAssociations(ctx, "I1", competency.DirectionOrigin, "")
	require.NoError(t, err)
	assert.Empty(t, outgoing)
}

func TestCompetencyGateway_AssociationValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.document(t, "D")
	f.item(t, "D", "I1")

	tests := []struct {
		name  string
		edge  competency.ItemAssociation
		check func(error) bool
	}{
		{
			name:  "self loop",
			edge:  competency.ItemAssociation{DocumentID: "D", OriginItemID: "I1", DestinationItemID: "I1", Type: competency.AssociationIsPeerOf},
			check: apperrors.IsValidation,
		},
		{
			name:  "unknown type",
			edge:  competency.ItemAssociation{DocumentID: "D", OriginItemID: "I1", DestinationItemID: "I2", Type: "LIKES"},
			check: apperrors.IsValidation,
		},
		{
			name:  "missing destination",
			edge:  competency.ItemAssociation{DocumentID: "D", OriginItemID: "I1", DestinationItemID: "I9", Type: competency.AssociationPrecedes},
			check: apperrors.IsNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.competency.CreateAssociation(ctx, tt.edge)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error: %v", err)
		})
	}

	_, err := f.competency.FindAssociations(ctx, "I1", "SIDEWAYS", "")
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.competency.FindAssociations(ctx, "I1", competency.DirectionOrigin, "LIKES")
	assert.True(t, apperrors.IsValidation(err))
}

func TestCompetencyGateway_DocumentItems(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.competency.CreateDocumentItem(ctx, competency.DocumentItem{DocumentID: "missing"})
	assert.True(t, apperrors.IsNotFound(err))

	f.document(t, "D")
	second := f.item(t, "D", "I2")
	first := f.item(t, "D", "I1")

	items, err := f.competency.FindDocumentItems(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, []competency.DocumentItem{first, second}, items)

	doc, ok, err := f.competency.FindDocument(ctx, "D")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Framework D", doc.Title)
}

func TestCompetencyGateway_DeleteDocumentItemStripsEdgesAndTags(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(t)
	f.document(t, "D")
	for _, id := range []string{"I1", "I2", "I3"} {
		f.item(t, "D", id)
	}
	f.activity(t, "A")
	out, err := f.competency.CreateAssociation(ctx, competency.ItemAssociation{
		DocumentID: "D", OriginItemID: "I2", DestinationItemID: "I3", Type: competency.AssociationPrecedes,
	})
	require.NoError(t, err)
	in, err := f.competency.CreateAssociation(ctx, competency.ItemAssociation{
		DocumentID: "D", OriginItemID: "I1", DestinationItemID: "I2", Type: competency.AssociationIsChildOf,
	})
	require.NoError(t, err)
	_, err = f.competency.TagElement(ctx, competency.DocumentItemTag{DocumentItemID: "I2", ElementID: "A"})
	require.NoError(t, err)

	// Act
	err = f.competency.DeleteDocumentItem(ctx, "I2")

	// Assert
	require.NoError(t, err)
	_, ok, err := f.competency.FindDocumentItem(ctx, "I2")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, id := range []string{out.ID, in.ID} {
		_, ok, err := f.competency.FindAssociation(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	fromI1, err := f.competency.FindAssociations(ctx, "I1", competency.DirectionOrigin, "")
	require.NoError(t, err)
	assert.Empty(t, fromI1)
	toI3, err := f.competency.FindAssociations(ctx, "I3", competency.DirectionDestination, "")
	require.NoError(t, err)
	assert.Empty(t, toI3)
	owned, err := f.competency.FindDocumentAssociations(ctx, "D")
	require.NoError(t, err)
	assert.Empty(t, owned)

	tags, err := f.competency.FindTagsByElement(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, tags)

	items, err := f.competency.FindDocumentItems(ctx, "D")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestCompetencyGateway_Tags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.document(t, "D")
	f.document(t, "E")
	f.item(t, "D", "I1")
	f.activity(t, "A")

	tag, err := f.competency.TagElement(ctx, competency.DocumentItemTag{DocumentItemID: "I1", ElementID: "A"})
	require.NoError(t, err)
	assert.Equal(t, competency.DocumentItemTag{
		DocumentID: "D", DocumentItemID: "I1", ElementID: "A", ElementType: courseware.ElementTypeActivity,
	}, tag)

	byDoc, err := f.competency.FindTagsByDocument(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, []competency.DocumentItemTag{tag}, byDoc)

	_, err = f.competency.TagElement(ctx, competency.DocumentItemTag{DocumentItemID: "I1", ElementID: "A", ElementType: courseware.ElementTypePathway})
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.competency.TagElement(ctx, competency.DocumentItemTag{DocumentID: "E", DocumentItemID: "I1", ElementID: "A"})
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.competency.TagElement(ctx, competency.DocumentItemTag{DocumentItemID: "I1", ElementID: "ghost"})
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, f.competency.UntagElement(ctx, "I1", "A"))
	require.NoError(t, f.competency.UntagElement(ctx, "I1", "A"))
	byElement, err := f.competency.FindTagsByElement(ctx, "A")
	require.NoError(t, err)
	assert.Empty(t, byElement)
}

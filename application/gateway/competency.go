package gateway

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/competency"
	"coursegraph-backend/infrastructure/persistence"
	"coursegraph-backend/infrastructure/store"
	apperrors "coursegraph-backend/pkg/errors"
	"coursegraph-backend/pkg/observability"
	"coursegraph-backend/pkg/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CompetencyGateway maintains competency documents, their items, the
// association graph between items and the tags binding items to courseware.
type CompetencyGateway struct {
	base
	session      *store.Session
	documents    *persistence.EntityStore[competency.Document]
	items        *persistence.EntityStore[competency.DocumentItem]
	documentIdx  *persistence.DocumentItemIndex
	associations *persistence.AssociationGraph
	tags         *persistence.TagIndex
	directory    *persistence.ElementDirectory
	logger       *zap.Logger
}

// NewCompetencyGateway creates a new competency gateway
func NewCompetencyGateway(
	session *store.Session,
	documents *persistence.EntityStore[competency.Document],
	items *persistence.EntityStore[competency.DocumentItem],
	documentIdx *persistence.DocumentItemIndex,
	associations *persistence.AssociationGraph,
	tags *persistence.TagIndex,
	directory *persistence.ElementDirectory,
) *CompetencyGateway {
	return &CompetencyGateway{
		base:         newBase(),
		session:      session,
		documents:    documents,
		items:        items,
		documentIdx:  documentIdx,
		associations: associations,
		tags:         tags,
		directory:    directory,
		logger:       session.Logger(),
	}
}

// CreateDocument writes a new document. A missing id or creation time is generated.
func (g *CompetencyGateway) CreateDocument(ctx context.Context, d competency.Document) (_ competency.Document, err error) {
	d.ID, d.CreatedAt = g.stamp(d.ID, d.CreatedAt)
	ctx, span := g.start(ctx, "gateway.CreateDocument", attribute.String("document.id", d.ID))
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(d); err != nil {
		return competency.Document{}, err
	}
	if err := g.documents.Put(ctx, d); err != nil {
		return competency.Document{}, fmt.Errorf("failed to create document %s: %w", d.ID, err)
	}
	return d, nil
}

func (g *CompetencyGateway) FindDocument(ctx context.Context, id string) (competency.Document, bool, error) {
	return g.documents.Get(ctx, id)
}

// CreateDocumentItem writes an item and lists it under its document. The
// document must exist.
func (g *CompetencyGateway) CreateDocumentItem(ctx context.Context, item competency.DocumentItem) (_ competency.DocumentItem, err error) {
	item.ID, item.CreatedAt = g.stamp(item.ID, item.CreatedAt)
	ctx, span := g.start(ctx, "gateway.CreateDocumentItem",
		attribute.String("item.id", item.ID),
		attribute.String("document.id", item.DocumentID),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(item); err != nil {
		return competency.DocumentItem{}, err
	}
	if _, ok, err := g.documents.Get(ctx, item.DocumentID); err != nil {
		return competency.DocumentItem{}, err
	} else if !ok {
		return competency.DocumentItem{}, apperrors.NewNotFound(fmt.Sprintf("document %s not found", item.DocumentID))
	}

	stmts, err := g.items.PutStatements(item)
	if err != nil {
		return competency.DocumentItem{}, err
	}
	listing, err := g.documentIdx.AddStatements(persistence.DocumentItemRef{DocumentID: item.DocumentID, ItemID: item.ID})
	if err != nil {
		return competency.DocumentItem{}, err
	}
	if err := g.session.ExecBatch(ctx, "competency.item.create", append(stmts, listing...)); err != nil {
		return competency.DocumentItem{}, fmt.Errorf("failed to create item %s: %w", item.ID, err)
	}
	return item, nil
}

func (g *CompetencyGateway) FindDocumentItem(ctx context.Context, id string) (competency.DocumentItem, bool, error) {
	return g.items.Get(ctx, id)
}

// FindDocumentItems returns the items of a document, ordered by id.
func (g *CompetencyGateway) FindDocumentItems(ctx context.Context, documentID string) ([]competency.DocumentItem, error) {
	ids, err := g.documentIdx.FindByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	items, err := g.items.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read items of document %s: %w", documentID, err)
	}
	return items, nil
}

// DeleteDocumentItem removes an item together with every association that
// starts or ends at it, its tags and its document listing. Deleting an
// unknown item is a no-op.
func (g *CompetencyGateway) DeleteDocumentItem(ctx context.Context, id string) (err error) {
	ctx, span := g.start(ctx, "gateway.DeleteDocumentItem", attribute.String("item.id", id))
	defer func() { observability.EndSpan(span, err) }()

	item, ok, err := g.items.Get(ctx, id)
	if err != nil || !ok {
		return err
	}

	outgoing, err := g.associations.FindByOrigin(ctx, id, "")
	if err != nil {
		return err
	}
	incoming, err := g.associations.FindByDestination(ctx, id, "")
	if err != nil {
		return err
	}

	var stmts []store.Statement
	seen := make(map[string]bool, len(outgoing)+len(incoming))
	for _, ref := range append(outgoing, incoming...) {
		if seen[ref.ID] {
			continue
		}
		seen[ref.ID] = true
		del, err := g.associations.DeleteStatements(ref)
		if err != nil {
			return err
		}
		stmts = append(stmts, del...)
	}

	tags, err := g.tags.FindByItem(ctx, id)
	if err != nil {
		return err
	}
	for _, t := range tags {
		stmts = append(stmts, g.tags.UntagStatements(t)...)
	}

	stmts = append(stmts, g.documentIdx.RemoveStatements(persistence.DocumentItemRef{DocumentID: item.DocumentID, ItemID: id})...)
	own, err := g.items.DeleteStatements(id)
	if err != nil {
		return err
	}
	stmts = append(stmts, own...)

	if err := g.session.ExecBatch(ctx, "competency.item.delete", stmts); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	g.logger.Info("Document item deleted",
		zap.String("itemId", id),
		zap.Int("associations", len(seen)),
		zap.Int("tags", len(tags)),
	)
	return nil
}

// CreateAssociation writes a directed association between two items of the
// same store. A missing id is generated as a time-based UUID.
func (g *CompetencyGateway) CreateAssociation(ctx context.Context, a competency.ItemAssociation) (_ competency.ItemAssociation, err error) {
	if a.ID == "" {
		id, err := uuid.NewUUID()
		if err != nil {
			return competency.ItemAssociation{}, apperrors.NewInternal("failed to generate association id", err)
		}
		a.ID = id.String()
	}
	a.ID, a.CreatedAt = g.stamp(a.ID, a.CreatedAt)

	ctx, span := g.start(ctx, "gateway.CreateAssociation",
		attribute.String("association.id", a.ID),
		attribute.String("association.type", a.Type.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := validation.Struct(a); err != nil {
		return competency.ItemAssociation{}, err
	}
	for _, itemID := range []string{a.OriginItemID, a.DestinationItemID} {
		if _, ok, err := g.items.Get(ctx, itemID); err != nil {
			return competency.ItemAssociation{}, err
		} else if !ok {
			return competency.ItemAssociation{}, apperrors.NewNotFound(fmt.Sprintf("document item %s not found", itemID))
		}
	}

	if err := g.associations.CreateEdge(ctx, a); err != nil {
		return competency.ItemAssociation{}, fmt.Errorf("failed to create association %s: %w", a.ID, err)
	}
	return a, nil
}

// DeleteAssociation removes the association rows keyed by ref as given. The
// origin and destination rows are only found when ref carries the type the
// association was created with.
func (g *CompetencyGateway) DeleteAssociation(ctx context.Context, ref persistence.AssociationRef) (err error) {
	ctx, span := g.start(ctx, "gateway.DeleteAssociation",
		attribute.String("association.id", ref.ID),
		attribute.String("association.type", ref.Type.String()),
	)
	defer func() { observability.EndSpan(span, err) }()

	if ref.ID == "" {
		return apperrors.NewValidation("association id is required")
	}
	return g.associations.DeleteEdge(ctx, ref)
}

// DeleteAssociationByID reads the canonical row first so that every view
// row is addressed with the stored keys. An unknown id is a no-op.
func (g *CompetencyGateway) DeleteAssociationByID(ctx context.Context, id string) error {
	a, ok, err := g.associations.Get(ctx, id)
	if err != nil || !ok {
		return err
	}
	return g.DeleteAssociation(ctx, persistence.AssociationRefOf(a))
}

func (g *CompetencyGateway) FindAssociation(ctx context.Context, id string) (competency.ItemAssociation, bool, error) {
	return g.associations.Get(ctx, id)
}

// FindAssociations returns the associations anchored at itemID in the given
// direction, restricted to one type when t is set.
func (g *CompetencyGateway) FindAssociations(ctx context.Context, itemID string, direction competency.Direction, t competency.AssociationType) (_ []competency.ItemAssociation, err error) {
	ctx, span := g.start(ctx, "gateway.FindAssociations",
		attribute.String("item.id", itemID),
		attribute.String("direction", string(direction)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if t != "" && !t.IsValid() {
		return nil, apperrors.NewValidationf("unknown association type %q", t)
	}

	var refs []persistence.AssociationRef
	switch direction {
	case competency.DirectionOrigin:
		refs, err = g.associations.FindByOrigin(ctx, itemID, t)
	case competency.DirectionDestination:
		refs, err = g.associations.FindByDestination(ctx, itemID, t)
	default:
		return nil, apperrors.NewValidationf("unknown direction %q", direction)
	}
	if err != nil {
		return nil, err
	}
	return g.associations.Materialize(ctx, persistence.AssociationIDs(refs))
}

// FindDocumentAssociations returns every association owned by a document.
func (g *CompetencyGateway) FindDocumentAssociations(ctx context.Context, documentID string) ([]competency.ItemAssociation, error) {
	refs, err := g.associations.FindByContainer(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return g.associations.Materialize(ctx, persistence.AssociationIDs(refs))
}

// TagElement binds a document item to a courseware element. The document
// and element type are filled from the stored records when left empty.
func (g *CompetencyGateway) TagElement(ctx context.Context, tag competency.DocumentItemTag) (_ competency.DocumentItemTag, err error) {
	ctx, span := g.start(ctx, "gateway.TagElement",
		attribute.String("item.id", tag.DocumentItemID),
		attribute.String("element.id", tag.ElementID),
	)
	defer func() { observability.EndSpan(span, err) }()

	item, ok, err := g.items.Get(ctx, tag.DocumentItemID)
	if err != nil {
		return competency.DocumentItemTag{}, err
	}
	if !ok {
		return competency.DocumentItemTag{}, apperrors.NewNotFound(fmt.Sprintf("document item %s not found", tag.DocumentItemID))
	}
	if tag.DocumentID == "" {
		tag.DocumentID = item.DocumentID
	} else if tag.DocumentID != item.DocumentID {
		return competency.DocumentItemTag{}, apperrors.NewValidationf("item %s belongs to document %s", item.ID, item.DocumentID)
	}

	ref, ok, err := g.directory.Find(ctx, tag.ElementID)
	if err != nil {
		return competency.DocumentItemTag{}, err
	}
	if !ok {
		return competency.DocumentItemTag{}, apperrors.NewNotFound(fmt.Sprintf("element %s not found", tag.ElementID))
	}
	if tag.ElementType == "" {
		tag.ElementType = ref.Type
	} else if tag.ElementType != ref.Type {
		return competency.DocumentItemTag{}, apperrors.NewValidationf("element %s is a %s, not a %s", ref.ID, ref.Type, tag.ElementType)
	}

	if err := validation.Struct(tag); err != nil {
		return competency.DocumentItemTag{}, err
	}
	if err := g.tags.Tag(ctx, tag); err != nil {
		return competency.DocumentItemTag{}, err
	}
	return tag, nil
}

// UntagElement removes the tags between itemID and elementID. Removing an
// absent tag is a no-op.
func (g *CompetencyGateway) UntagElement(ctx context.Context, itemID, elementID string) error {
	tags, err := g.tags.FindByItem(ctx, itemID)
	if err != nil {
		return err
	}
	var stmts []store.Statement
	for _, t := range tags {
		if t.ElementID == elementID {
			stmts = append(stmts, g.tags.UntagStatements(t)...)
		}
	}
	return g.session.ExecBatch(ctx, "tag.delete", stmts)
}

func (g *CompetencyGateway) FindTagsByElement(ctx context.Context, elementID string) ([]competency.DocumentItemTag, error) {
	return g.tags.FindByElement(ctx, elementID)
}

func (g *CompetencyGateway) FindTagsByItem(ctx context.Context, itemID string) ([]competency.DocumentItemTag, error) {
	return g.tags.FindByItem(ctx, itemID)
}

func (g *CompetencyGateway) FindTagsByDocument(ctx context.Context, documentID string) ([]competency.DocumentItemTag, error) {
	return g.tags.FindByDocument(ctx, documentID)
}

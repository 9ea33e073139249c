package persistence

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/competency"
	"coursegraph-backend/infrastructure/store"
)

const (
	viewOrigin      = "origin"
	viewDestination = "destination"
	viewDocument    = "document"
)

// AssociationRef is the identifier-only record stored in the association
// index views. The payload lives in the canonical row alone.
type AssociationRef struct {
	ID                string                     `dynamodbav:"id"`
	DocumentID        string                     `dynamodbav:"documentId"`
	OriginItemID      string                     `dynamodbav:"originItemId"`
	DestinationItemID string                     `dynamodbav:"destinationItemId"`
	Type              competency.AssociationType `dynamodbav:"associationType"`
}

// AssociationRefOf returns the index record of a.
func AssociationRefOf(a competency.ItemAssociation) AssociationRef {
	return AssociationRef{
		ID:                a.ID,
		DocumentID:        a.DocumentID,
		OriginItemID:      a.OriginItemID,
		DestinationItemID: a.DestinationItemID,
		Type:              a.Type,
	}
}

// AssociationGraph stores directed, typed item associations as a canonical
// row plus three id-only views: by origin, by destination and by document.
// Origin and destination rows are keyed by (item, type, id), so deleting
// with the wrong type misses them and leaves them orphaned.
type AssociationGraph struct {
	session   *store.Session
	canonical *EntityStore[competency.ItemAssociation]
	relation  *Relation[AssociationRef]
}

// NewAssociationGraph creates an association graph store
func NewAssociationGraph(session *store.Session) (*AssociationGraph, error) {
	canonical, err := NewEntityStore(session, EntityConfig[competency.ItemAssociation]{
		Kind: "ASSOCIATION",
		ID:   func(a competency.ItemAssociation) string { return a.ID },
	})
	if err != nil {
		return nil, err
	}
	relation, err := NewRelation(session, "association",
		View[AssociationRef]{
			Name: viewOrigin,
			Key: func(r AssociationRef) store.Key {
				return store.Key{PK: partition(prefixAssocOrigin, r.OriginItemID), SK: compound(string(r.Type), r.ID)}
			},
		},
		View[AssociationRef]{
			Name: viewDestination,
			Key: func(r AssociationRef) store.Key {
				return store.Key{PK: partition(prefixAssocDest, r.DestinationItemID), SK: compound(string(r.Type), r.ID)}
			},
		},
		View[AssociationRef]{
			Name: viewDocument,
			Key: func(r AssociationRef) store.Key {
				return store.Key{PK: partition(prefixAssocDoc, r.DocumentID), SK: r.ID}
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return &AssociationGraph{session: session, canonical: canonical, relation: relation}, nil
}

// CreateStatements returns the four writes of one association.
func (g *AssociationGraph) CreateStatements(a competency.ItemAssociation) ([]store.Statement, error) {
	stmts, err := g.canonical.PutStatements(a)
	if err != nil {
		return nil, err
	}
	views, err := g.relation.PutStatements(AssociationRefOf(a))
	if err != nil {
		return nil, err
	}
	return append(stmts, views...), nil
}

// CreateEdge writes the canonical row and all three views.
func (g *AssociationGraph) CreateEdge(ctx context.Context, a competency.ItemAssociation) error {
	stmts, err := g.CreateStatements(a)
	if err != nil {
		return err
	}
	return g.session.ExecBatch(ctx, "association.create", stmts)
}

// DeleteStatements returns the four deletes of one association, keyed by
// the fields of ref as given.
func (g *AssociationGraph) DeleteStatements(ref AssociationRef) ([]store.Statement, error) {
	stmts, err := g.canonical.DeleteStatements(ref.ID)
	if err != nil {
		return nil, err
	}
	return append(stmts, g.relation.DeleteStatements(ref)...), nil
}

// DeleteEdge removes the canonical row and the three view rows.
func (g *AssociationGraph) DeleteEdge(ctx context.Context, ref AssociationRef) error {
	stmts, err := g.DeleteStatements(ref)
	if err != nil {
		return err
	}
	return g.session.ExecBatch(ctx, "association.delete", stmts)
}

// Get reads the canonical row of one association.
func (g *AssociationGraph) Get(ctx context.Context, id string) (competency.ItemAssociation, bool, error) {
	return g.canonical.Get(ctx, id)
}

// FindByOrigin returns the associations leaving itemID, optionally of one type.
func (g *AssociationGraph) FindByOrigin(ctx context.Context, itemID string, t competency.AssociationType) ([]AssociationRef, error) {
	refs, err := g.relation.Query(ctx, viewOrigin, partition(prefixAssocOrigin, itemID), sortPrefix(string(t)))
	if err != nil {
		return nil, fmt.Errorf("failed to find associations from %s: %w", itemID, err)
	}
	return refs, nil
}

// FindByDestination returns the associations arriving at itemID, optionally of one type.
func (g *AssociationGraph) FindByDestination(ctx context.Context, itemID string, t competency.AssociationType) ([]AssociationRef, error) {
	refs, err := g.relation.Query(ctx, viewDestination, partition(prefixAssocDest, itemID), sortPrefix(string(t)))
	if err != nil {
		return nil, fmt.Errorf("failed to find associations to %s: %w", itemID, err)
	}
	return refs, nil
}

// FindByContainer returns the associations owned by a document.
func (g *AssociationGraph) FindByContainer(ctx context.Context, documentID string) ([]AssociationRef, error) {
	refs, err := g.relation.Query(ctx, viewDocument, partition(prefixAssocDoc, documentID), "")
	if err != nil {
		return nil, fmt.Errorf("failed to find associations of document %s: %w", documentID, err)
	}
	return refs, nil
}

// AssociationIDs returns the association ids of refs.
func AssociationIDs(refs []AssociationRef) []string {
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ID)
	}
	return ids
}

// Materialize joins ids back to their canonical rows, preserving order.
// Ids whose canonical row is gone are skipped.
func (g *AssociationGraph) Materialize(ctx context.Context, ids []string) ([]competency.ItemAssociation, error) {
	out, err := g.canonical.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to materialize associations: %w", err)
	}
	return out, nil
}

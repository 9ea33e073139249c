package persistence

import (
	"context"
	"fmt"

	"coursegraph-backend/infrastructure/store"
)

// DocumentItemRef places an item in its document's item listing.
type DocumentItemRef struct {
	DocumentID string `dynamodbav:"documentId"`
	ItemID     string `dynamodbav:"itemId"`
}

const viewItemsByDocument = "by_document"

// DocumentItemIndex lists the items of each document.
type DocumentItemIndex struct {
	relation *Relation[DocumentItemRef]
}

// NewDocumentItemIndex creates a document item index
func NewDocumentItemIndex(session *store.Session) (*DocumentItemIndex, error) {
	relation, err := NewRelation(session, "document_items",
		View[DocumentItemRef]{
			Name: viewItemsByDocument,
			Key: func(r DocumentItemRef) store.Key {
				return store.Key{PK: partition(prefixDocumentItems, r.DocumentID), SK: r.ItemID}
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return &DocumentItemIndex{relation: relation}, nil
}

func (x *DocumentItemIndex) AddStatements(ref DocumentItemRef) ([]store.Statement, error) {
	return x.relation.PutStatements(ref)
}

func (x *DocumentItemIndex) RemoveStatements(ref DocumentItemRef) []store.Statement {
	return x.relation.DeleteStatements(ref)
}

// FindByDocument returns the item ids of a document, ordered by id.
func (x *DocumentItemIndex) FindByDocument(ctx context.Context, documentID string) ([]string, error) {
	refs, err := x.relation.Query(ctx, viewItemsByDocument, partition(prefixDocumentItems, documentID), "")
	if err != nil {
		return nil, fmt.Errorf("failed to find items of document %s: %w", documentID, err)
	}
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		ids = append(ids, r.ItemID)
	}
	return ids, nil
}

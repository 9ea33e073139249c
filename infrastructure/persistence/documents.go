package persistence

import (
	"coursegraph-backend/domain/competency"
	"coursegraph-backend/infrastructure/store"
)

// NewDocumentStore creates the store of competency documents.
func NewDocumentStore(session *store.Session) (*EntityStore[competency.Document], error) {
	return NewEntityStore(session, EntityConfig[competency.Document]{
		Kind: "DOCUMENT",
		ID:   func(d competency.Document) string { return d.ID },
	})
}

// NewDocumentItemStore creates the store of competency document items.
func NewDocumentItemStore(session *store.Session) (*EntityStore[competency.DocumentItem], error) {
	return NewEntityStore(session, EntityConfig[competency.DocumentItem]{
		Kind: "DOCUMENT_ITEM",
		ID:   func(i competency.DocumentItem) string { return i.ID },
	})
}

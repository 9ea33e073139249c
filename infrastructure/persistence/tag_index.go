package persistence

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/competency"
	"coursegraph-backend/infrastructure/store"
)

const (
	viewTagByElement  = "by_element"
	viewTagByItem     = "by_item"
	viewTagByDocument = "by_document"
)

// TagIndex stores document item tags by element, by item and by the item's
// document.
type TagIndex struct {
	relation *Relation[competency.DocumentItemTag]
}

// NewTagIndex creates a tag index
func NewTagIndex(session *store.Session) (*TagIndex, error) {
	relation, err := NewRelation(session, "tag",
		View[competency.DocumentItemTag]{
			Name: viewTagByElement,
			Key: func(t competency.DocumentItemTag) store.Key {
				return store.Key{PK: partition(prefixTagElement, t.ElementID), SK: t.DocumentItemID}
			},
		},
		View[competency.DocumentItemTag]{
			Name: viewTagByItem,
			Key: func(t competency.DocumentItemTag) store.Key {
				return store.Key{PK: partition(prefixTagItem, t.DocumentItemID), SK: t.ElementID}
			},
		},
		View[competency.DocumentItemTag]{
			Name: viewTagByDocument,
			Key: func(t competency.DocumentItemTag) store.Key {
				return store.Key{PK: partition(prefixTagDocument, t.DocumentID), SK: compound(t.DocumentItemID, t.ElementID)}
			},
		},
	)
	if err != nil {
		return nil, err
	}
	return &TagIndex{relation: relation}, nil
}

func (x *TagIndex) Tag(ctx context.Context, tag competency.DocumentItemTag) error {
	return x.relation.Put(ctx, tag)
}

// UntagStatements returns the deletes of tag from all three views.
func (x *TagIndex) UntagStatements(tag competency.DocumentItemTag) []store.Statement {
	return x.relation.DeleteStatements(tag)
}

// Untag removes tag; an absent tag is a no-op.
func (x *TagIndex) Untag(ctx context.Context, tag competency.DocumentItemTag) error {
	return x.relation.Delete(ctx, tag)
}

func (x *TagIndex) FindByElement(ctx context.Context, elementID string) ([]competency.DocumentItemTag, error) {
	tags, err := x.relation.Query(ctx, viewTagByElement, partition(prefixTagElement, elementID), "")
	if err != nil {
		return nil, fmt.Errorf("failed to find tags of element %s: %w", elementID, err)
	}
	return tags, nil
}

func (x *TagIndex) FindByItem(ctx context.Context, itemID string) ([]competency.DocumentItemTag, error) {
	tags, err := x.relation.Query(ctx, viewTagByItem, partition(prefixTagItem, itemID), "")
	if err != nil {
		return nil, fmt.Errorf("failed to find tags of item %s: %w", itemID, err)
	}
	return tags, nil
}

func (x *TagIndex) FindByDocument(ctx context.Context, documentID string) ([]competency.DocumentItemTag, error) {
	tags, err := x.relation.Query(ctx, viewTagByDocument, partition(prefixTagDocument, documentID), "")
	if err != nil {
		return nil, fmt.Errorf("failed to find tags of document %s: %w", documentID, err)
	}
	return tags, nil
}

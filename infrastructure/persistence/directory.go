package persistence

import (
	"context"
	"fmt"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/store"
)

var (
	elementPutTemplate    = store.Template{Name: "element.put", Op: store.OpPut}
	elementDeleteTemplate = store.Template{Name: "element.delete", Op: store.OpDelete}
	elementGetTemplate    = store.Template{Name: "element.get", Op: store.OpGet}
)

func elementKey(id string) store.Key {
	return store.Key{PK: partition(prefixElement, id), SK: sortElement}
}

// ElementDirectory answers what kind of element an id refers to. The
// records it reads are written by the element entity stores.
type ElementDirectory struct {
	session *store.Session
	get     *store.Prepared
}

// NewElementDirectory creates an element directory
func NewElementDirectory(session *store.Session) (*ElementDirectory, error) {
	get, err := session.Prepare(elementGetTemplate)
	if err != nil {
		return nil, fmt.Errorf("element directory: %w", err)
	}
	return &ElementDirectory{session: session, get: get}, nil
}

// Find returns the generic record of id.
func (d *ElementDirectory) Find(ctx context.Context, id string) (courseware.ElementRef, bool, error) {
	row, err := d.session.Get(ctx, d.get.Bind(elementKey(id)))
	if err != nil {
		return courseware.ElementRef{}, false, fmt.Errorf("failed to find element %s: %w", id, err)
	}
	if row == nil {
		return courseware.ElementRef{}, false, nil
	}
	var ref courseware.ElementRef
	if err := row.Decode(&ref); err != nil {
		return courseware.ElementRef{}, false, err
	}
	return ref, true, nil
}

// ResolveType returns the element type of id.
func (d *ElementDirectory) ResolveType(ctx context.Context, id string) (courseware.ElementType, bool, error) {
	ref, ok, err := d.Find(ctx, id)
	if err != nil || !ok {
		return "", ok, err
	}
	return ref.Type, true, nil
}

package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursegraph-backend/domain/courseware"
	"coursegraph-backend/infrastructure/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// getManyLimit bounds the concurrent reads of one GetMany.
const getManyLimit = 16

// DeletePolicy decides what deleting an entity of a kind does to its
// canonical row.
type DeletePolicy int

const (
	// HardDelete removes the canonical row.
	HardDelete DeletePolicy = iota
	// Tombstone keeps the canonical row and writes a tombstone beside it.
	// Tombstoned entities read as absent.
	Tombstone
)

func (p DeletePolicy) String() string {
	if p == Tombstone {
		return "tombstone"
	}
	return "hard"
}

// EntityConfig defines entity-specific behavior for an EntityStore
type EntityConfig[T any] struct {
	// Kind names the entity kind. It prefixes the canonical partition key and
	// is the canonical row's sort key.
	Kind string
	// ID returns the entity's identifier.
	ID func(T) string
	// ElementType is set for courseware elements, whose generic record is
	// written and removed in the same batch as the canonical row.
	ElementType courseware.ElementType
	Policy      DeletePolicy
}

// TombstoneRecord marks a deleted entity.
type TombstoneRecord struct {
	ID        string    `dynamodbav:"id"`
	Kind      string    `dynamodbav:"kind"`
	DeletedAt time.Time `dynamodbav:"deletedAt"`
}

// EntityStore reads and writes the canonical row of one entity kind.
// It does not check relationship integrity.
type EntityStore[T any] struct {
	session *store.Session
	config  EntityConfig[T]
	now     func() time.Time

	put, del, query *store.Prepared
	refPut, refDel  *store.Prepared
}

// NewEntityStore prepares the statements for one entity kind.
func NewEntityStore[T any](session *store.Session, config EntityConfig[T]) (*EntityStore[T], error) {
	if config.Kind == "" || config.ID == nil {
		return nil, fmt.Errorf("entity store: kind and id function are required")
	}
	if config.ElementType != "" && !config.ElementType.IsValid() {
		return nil, fmt.Errorf("entity store %s: unknown element type %q", config.Kind, config.ElementType)
	}

	name := strings.ToLower(config.Kind)
	prepared, err := session.PrepareAll(
		store.Template{Name: name + ".put", Op: store.OpPut},
		store.Template{Name: name + ".delete", Op: store.OpDelete},
		store.Template{Name: name + ".query", Op: store.OpQuery},
		elementPutTemplate,
		elementDeleteTemplate,
	)
	if err != nil {
		return nil, fmt.Errorf("entity store %s: %w", config.Kind, err)
	}

	return &EntityStore[T]{
		session: session,
		config:  config,
		now:     time.Now,
		put:     prepared[name+".put"],
		del:     prepared[name+".delete"],
		query:   prepared[name+".query"],
		refPut:  prepared[elementPutTemplate.Name],
		refDel:  prepared[elementDeleteTemplate.Name],
	}, nil
}

// Kind returns the entity kind.
func (s *EntityStore[T]) Kind() string {
	return s.config.Kind
}

// Policy returns the delete policy of the kind.
func (s *EntityStore[T]) Policy() DeletePolicy {
	return s.config.Policy
}

func (s *EntityStore[T]) partition(id string) string {
	return partition(s.config.Kind, id)
}

func (s *EntityStore[T]) canonicalKey(id string) store.Key {
	return store.Key{PK: s.partition(id), SK: s.config.Kind}
}

func (s *EntityStore[T]) tombstoneKey(id string) store.Key {
	return store.Key{PK: s.partition(id), SK: sortTombstone}
}

// PutStatements returns the statements that write entity: its canonical row
// and, for courseware elements, its generic record. For tombstoned kinds it
// also clears a tombstone left by an earlier delete of the same id.
func (s *EntityStore[T]) PutStatements(entity T) ([]store.Statement, error) {
	id := s.config.ID(entity)
	if id == "" {
		return nil, fmt.Errorf("%s: id is required", s.config.Kind)
	}
	row, err := store.MarshalRow(entity)
	if err != nil {
		return nil, err
	}

	stmts := []store.Statement{s.put.Bind(s.canonicalKey(id)).WithRow(row)}
	if s.config.Policy == Tombstone {
		stmts = append(stmts, s.del.Bind(s.tombstoneKey(id)))
	}
	if s.config.ElementType != "" {
		ref, err := store.MarshalRow(courseware.ElementRef{ID: id, Type: s.config.ElementType})
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s.refPut.Bind(elementKey(id)).WithRow(ref))
	}
	return stmts, nil
}

// Put writes entity. Replaying a put is safe.
func (s *EntityStore[T]) Put(ctx context.Context, entity T) error {
	stmts, err := s.PutStatements(entity)
	if err != nil {
		return err
	}
	return s.session.ExecBatch(ctx, strings.ToLower(s.config.Kind)+".put", stmts)
}

// Get reads an entity. A missing or tombstoned entity is reported with
// found == false and a nil error.
func (s *EntityStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	rows, err := s.session.Query(ctx, s.query.Bind(store.Key{PK: s.partition(id)}))
	if err != nil {
		return zero, false, fmt.Errorf("failed to get %s %s: %w", s.config.Kind, id, err)
	}

	var canonical store.Row
	for _, row := range rows {
		switch row.String(store.AttrSK) {
		case sortTombstone:
			return zero, false, nil
		case s.config.Kind:
			canonical = row
		}
	}
	if canonical == nil {
		return zero, false, nil
	}

	var entity T
	if err := canonical.Decode(&entity); err != nil {
		return zero, false, fmt.Errorf("failed to decode %s %s: %w", s.config.Kind, id, err)
	}
	return entity, true, nil
}

// GetMany reads the entities named by ids concurrently, preserving order.
// Missing and tombstoned ids are skipped.
func (s *EntityStore[T]) GetMany(ctx context.Context, ids []string) ([]T, error) {
	found := make([]*T, len(ids))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(getManyLimit)
	for i, id := range ids {
		eg.Go(func() error {
			v, ok, err := s.Get(ctx, id)
			if err != nil {
				return err
			}
			if ok {
				found[i] = &v
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(ids))
	for _, v := range found {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

// DeleteStatements returns the statements that delete the entity according
// to the kind's policy. The generic record is always removed.
func (s *EntityStore[T]) DeleteStatements(id string) ([]store.Statement, error) {
	var stmts []store.Statement
	switch s.config.Policy {
	case Tombstone:
		row, err := store.MarshalRow(TombstoneRecord{ID: id, Kind: s.config.Kind, DeletedAt: s.now().UTC()})
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s.put.Bind(s.tombstoneKey(id)).WithRow(row))
	default:
		stmts = append(stmts, s.del.Bind(s.canonicalKey(id)))
	}
	if s.config.ElementType != "" {
		stmts = append(stmts, s.refDel.Bind(elementKey(id)))
	}
	return stmts, nil
}

// Delete removes the entity. Deleting an absent entity is a no-op for hard
// deletes; for tombstoned kinds it refreshes the tombstone.
func (s *EntityStore[T]) Delete(ctx context.Context, id string) error {
	stmts, err := s.DeleteStatements(id)
	if err != nil {
		return err
	}
	if err := s.session.ExecBatch(ctx, strings.ToLower(s.config.Kind)+".delete", stmts); err != nil {
		return err
	}
	s.session.Logger().Debug("Entity deleted", s.logFields(id)...)
	return nil
}

// Tombstone reads the tombstone of a deleted entity.
func (s *EntityStore[T]) Tombstone(ctx context.Context, id string) (TombstoneRecord, bool, error) {
	rows, err := s.session.Query(ctx, s.query.Bind(store.Key{PK: s.partition(id)}).WithSortPrefix(sortTombstone))
	if err != nil {
		return TombstoneRecord{}, false, fmt.Errorf("failed to read tombstone of %s %s: %w", s.config.Kind, id, err)
	}
	if len(rows) == 0 {
		return TombstoneRecord{}, false, nil
	}
	var rec TombstoneRecord
	if err := rows[0].Decode(&rec); err != nil {
		return TombstoneRecord{}, false, err
	}
	return rec, true, nil
}

func (s *EntityStore[T]) logFields(id string) []zap.Field {
	return []zap.Field{
		zap.String("kind", s.config.Kind),
		zap.String("id", id),
		zap.String("policy", s.config.Policy.String()),
	}
}

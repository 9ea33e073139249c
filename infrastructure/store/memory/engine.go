// Package memory provides an in-process storage engine with the same
// statement semantics as the DynamoDB engine. It backs the test suites and
// local runs, and can inject faults into individual statements to reproduce
// half-applied fan-out writes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"coursegraph-backend/infrastructure/store"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Fault describes an injected statement failure. With AfterApply set the
// statement takes effect before the error is returned, which models a
// timeout whose write actually landed.
type Fault struct {
	Err        error
	AfterApply bool
}

// FaultFunc decides whether a statement fails. Returning nil lets it run.
type FaultFunc func(s store.Statement) *Fault

// FailTemplate fails every statement built from the named template.
func FailTemplate(name string, err error) FaultFunc {
	return func(s store.Statement) *Fault {
		if s.Template.Name == name {
			return &Fault{Err: err}
		}
		return nil
	}
}

// FailTemplateOnce fails the first statement built from the named template.
func FailTemplateOnce(name string, err error) FaultFunc {
	var once sync.Once
	return func(s store.Statement) *Fault {
		if s.Template.Name != name {
			return nil
		}
		var f *Fault
		once.Do(func() { f = &Fault{Err: err} })
		return f
	}
}

// Engine is an in-memory store.Engine
type Engine struct {
	mu         sync.RWMutex
	partitions map[string]map[string]store.Row
	faults     []FaultFunc
	executed   []store.Statement
}

var _ store.Engine = (*Engine)(nil)

// NewEngine creates an empty in-memory engine
func NewEngine() *Engine {
	return &Engine{
		partitions: make(map[string]map[string]store.Row),
	}
}

// InjectFault registers a fault hook consulted before every statement.
func (e *Engine) InjectFault(f FaultFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults = append(e.faults, f)
}

// ClearFaults removes every fault hook.
func (e *Engine) ClearFaults() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults = nil
}

// Executed returns every statement the engine has received, in arrival order.
func (e *Engine) Executed() []store.Statement {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]store.Statement, len(e.executed))
	copy(out, e.executed)
	return out
}

// Len returns the number of rows held.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := 0
	for _, p := range e.partitions {
		n += len(p)
	}
	return n
}

// Compile validates the template; the in-memory engine has nothing to precompute.
func (e *Engine) Compile(t store.Template) (any, error) {
	return t, nil
}

// Exec applies a mutation
func (e *Engine) Exec(ctx context.Context, s store.Statement) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.executed = append(e.executed, s)
	fault := e.fault(s)
	if fault != nil && !fault.AfterApply {
		return fault.Err
	}

	if err := e.apply(s); err != nil {
		return err
	}
	if fault != nil {
		return fault.Err
	}
	return nil
}

// Get returns a copy of the addressed row, or nil when absent
func (e *Engine) Get(ctx context.Context, s store.Statement) (store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.executed = append(e.executed, s)
	fault := e.fault(s)
	e.mu.Unlock()
	if fault != nil {
		return nil, fault.Err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	row, ok := e.partitions[s.Key.PK][s.Key.SK]
	if !ok {
		return nil, nil
	}
	return withKey(s.Key, row), nil
}

// Query returns the rows of a partition ordered by sort key
func (e *Engine) Query(ctx context.Context, s store.Statement) ([]store.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.executed = append(e.executed, s)
	fault := e.fault(s)
	e.mu.Unlock()
	if fault != nil {
		return nil, fault.Err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	partition := e.partitions[s.Key.PK]
	sortKeys := make([]string, 0, len(partition))
	for sk := range partition {
		if strings.HasPrefix(sk, s.SortPrefix) {
			sortKeys = append(sortKeys, sk)
		}
	}
	sort.Strings(sortKeys)

	rows := make([]store.Row, 0, len(sortKeys))
	for _, sk := range sortKeys {
		rows = append(rows, withKey(store.Key{PK: s.Key.PK, SK: sk}, partition[sk]))
	}
	return rows, nil
}

func (e *Engine) fault(s store.Statement) *Fault {
	for _, f := range e.faults {
		if fault := f(s); fault != nil {
			return fault
		}
	}
	return nil
}

// apply runs a mutation; the caller holds the write lock.
func (e *Engine) apply(s store.Statement) error {
	t := s.Template
	switch t.Op {
	case store.OpPut:
		row := make(store.Row, len(s.Row))
		for k, v := range s.Row {
			if k == store.AttrPK || k == store.AttrSK {
				continue
			}
			row[k] = v
		}
		e.put(s.Key, row)
		return nil

	case store.OpDelete:
		if p, ok := e.partitions[s.Key.PK]; ok {
			delete(p, s.Key.SK)
			if len(p) == 0 {
				delete(e.partitions, s.Key.PK)
			}
		}
		return nil

	case store.OpListAppend:
		row := e.upsert(s.Key)
		row[t.Column] = store.StringListValue(append(row.StringList(t.Column), s.Values...))
		return nil

	case store.OpListPrepend:
		row := e.upsert(s.Key)
		values := append(append([]string{}, s.Values...), row.StringList(t.Column)...)
		row[t.Column] = store.StringListValue(values)
		return nil

	case store.OpListReplace:
		row := e.upsert(s.Key)
		row[t.Column] = store.StringListValue(s.Values)
		return nil

	case store.OpListRemove:
		row, ok := e.partitions[s.Key.PK][s.Key.SK]
		if !ok {
			return nil
		}
		if _, ok := row[t.Column]; !ok {
			return nil
		}
		drop := make(map[string]bool, len(s.Values))
		for _, v := range s.Values {
			drop[v] = true
		}
		kept := make([]string, 0)
		for _, v := range row.StringList(t.Column) {
			if !drop[v] {
				kept = append(kept, v)
			}
		}
		row[t.Column] = store.StringListValue(kept)
		return nil

	case store.OpMapPut:
		row := e.upsert(s.Key)
		m := row.StringMap(t.Column)
		m[s.MapKey] = s.MapValue
		row[t.Column] = store.StringMapValue(m)
		return nil

	case store.OpMapRemove:
		row, ok := e.partitions[s.Key.PK][s.Key.SK]
		if !ok {
			return nil
		}
		if _, ok := row[t.Column]; !ok {
			return nil
		}
		m := row.StringMap(t.Column)
		delete(m, s.MapKey)
		row[t.Column] = store.StringMapValue(m)
		return nil
	}
	return fmt.Errorf("memory engine: unsupported op %s", t.Op)
}

func (e *Engine) put(key store.Key, row store.Row) {
	p, ok := e.partitions[key.PK]
	if !ok {
		p = make(map[string]store.Row)
		e.partitions[key.PK] = p
	}
	p[key.SK] = row
}

// upsert returns the stored row for key, creating an empty one like an
// update against a missing item does.
func (e *Engine) upsert(key store.Key) store.Row {
	if row, ok := e.partitions[key.PK][key.SK]; ok {
		return row
	}
	row := make(store.Row)
	e.put(key, row)
	return row
}

// withKey copies row and adds the key attributes. Attribute values are never
// mutated in place, so sharing them between copies is safe.
func withKey(key store.Key, row store.Row) store.Row {
	out := make(store.Row, len(row)+2)
	for k, v := range row {
		out[k] = v
	}
	out[store.AttrPK] = &types.AttributeValueMemberS{Value: key.PK}
	out[store.AttrSK] = &types.AttributeValueMemberS{Value: key.SK}
	return out
}

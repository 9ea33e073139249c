// Package store is the storage-engine boundary of the persistence tier. It
// models a wide-column table as rows addressed by a partition key and a sort
// key, with list and map valued columns that can be mutated in place.
// Statements are built from named templates compiled once through the Cache
// and carry their own consistency level and idempotency flag.
package store

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Key attribute names shared by every view.
const (
	AttrPK = "PK"
	AttrSK = "SK"
)

// Op is the kind of operation a template performs.
type Op int

const (
	OpPut Op = iota + 1
	OpDelete
	OpGet
	OpQuery
	OpListAppend
	OpListPrepend
	OpListReplace
	OpListRemove
	OpMapPut
	OpMapRemove
)

var opNames = map[Op]string{
	OpPut:         "PUT",
	OpDelete:      "DELETE",
	OpGet:         "GET",
	OpQuery:       "QUERY",
	OpListAppend:  "LIST_APPEND",
	OpListPrepend: "LIST_PREPEND",
	OpListReplace: "LIST_REPLACE",
	OpListRemove:  "LIST_REMOVE",
	OpMapPut:      "MAP_PUT",
	OpMapRemove:   "MAP_REMOVE",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Idempotent reports whether replaying the op leaves the row unchanged.
// List append and prepend add a new element on every execution.
func (o Op) Idempotent() bool {
	return o != OpListAppend && o != OpListPrepend
}

// Collection reports whether the op mutates a single collection column.
func (o Op) Collection() bool {
	switch o {
	case OpListAppend, OpListPrepend, OpListReplace, OpListRemove, OpMapPut, OpMapRemove:
		return true
	}
	return false
}

// Mutation reports whether the op writes.
func (o Op) Mutation() bool {
	return o != OpGet && o != OpQuery
}

// Consistency is the per-statement read/write consistency level.
type Consistency int

const (
	ConsistencyOne Consistency = iota + 1
	ConsistencyLocalQuorum
)

func (c Consistency) String() string {
	switch c {
	case ConsistencyOne:
		return "ONE"
	case ConsistencyLocalQuorum:
		return "LOCAL_QUORUM"
	}
	return fmt.Sprintf("Consistency(%d)", int(c))
}

// Strong reports whether reads at this level must observe every
// acknowledged write.
func (c Consistency) Strong() bool {
	return c >= ConsistencyLocalQuorum
}

// ParseConsistency parses a consistency level name.
func ParseConsistency(s string) (Consistency, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ONE":
		return ConsistencyOne, nil
	case "LOCAL_QUORUM", "":
		return ConsistencyLocalQuorum, nil
	}
	return 0, fmt.Errorf("unknown consistency level %q", s)
}

// Key addresses one row.
type Key struct {
	PK string
	SK string
}

func (k Key) String() string {
	return k.PK + "/" + k.SK
}

// Template is a named, parametrised statement shape. Key and values are
// bound per execution.
type Template struct {
	Name   string
	Op     Op
	Column string // collection column for list and map ops
}

func (t Template) validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if _, ok := opNames[t.Op]; !ok {
		return fmt.Errorf("template %s: unknown op %d", t.Name, int(t.Op))
	}
	if t.Op.Collection() && t.Column == "" {
		return fmt.Errorf("template %s: %s requires a column", t.Name, t.Op)
	}
	return nil
}

// Statement is a prepared template bound to a key and its arguments.
type Statement struct {
	Template    Template
	Key         Key
	SortPrefix  string   // OpQuery: restrict the partition to sort keys with this prefix
	Row         Row      // OpPut: non-key columns
	Values      []string // list ops
	MapKey      string   // map ops
	MapValue    string   // OpMapPut
	Consistency Consistency
	Idempotent  bool

	plan any
}

// Plan returns the engine-specific compiled form of the template.
func (s Statement) Plan() any {
	return s.plan
}

// Prepared reports whether the statement came from a Cache.
func (s Statement) Prepared() bool {
	return s.plan != nil
}

// WithRow sets the columns written by a put.
func (s Statement) WithRow(r Row) Statement {
	s.Row = r
	return s
}

// WithValues sets the list elements of a list op.
func (s Statement) WithValues(values ...string) Statement {
	s.Values = values
	return s
}

// WithEntry sets the key and value of a map put.
func (s Statement) WithEntry(key, value string) Statement {
	s.MapKey = key
	s.MapValue = value
	return s
}

// WithMapKey sets the key of a map remove.
func (s Statement) WithMapKey(key string) Statement {
	s.MapKey = key
	return s
}

// WithSortPrefix restricts a query to sort keys beginning with prefix.
func (s Statement) WithSortPrefix(prefix string) Statement {
	s.SortPrefix = prefix
	return s
}

// WithConsistency overrides the consistency level.
func (s Statement) WithConsistency(c Consistency) Statement {
	s.Consistency = c
	return s
}

// NonIdempotent marks the statement as unsafe to replay, so no client-side
// retry policy may re-issue it after an ambiguous failure.
func (s Statement) NonIdempotent() Statement {
	s.Idempotent = false
	return s
}

func (s Statement) String() string {
	return fmt.Sprintf("%s[%s %s]", s.Template.Name, s.Template.Op, s.Key)
}

// Row holds the non-key columns of one row.
type Row map[string]types.AttributeValue

// MarshalRow converts a struct with dynamodbav tags into a Row.
func MarshalRow(v any) (Row, error) {
	m, err := attributevalue.MarshalMap(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal row: %w", err)
	}
	return Row(m), nil
}

// Decode unmarshals the row into out.
func (r Row) Decode(out any) error {
	if err := attributevalue.UnmarshalMap(r, out); err != nil {
		return fmt.Errorf("failed to unmarshal row: %w", err)
	}
	return nil
}

// String returns a string column, or "" when absent.
func (r Row) String(column string) string {
	if v, ok := r[column].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// StringList returns a list column of strings; absent columns read as empty.
func (r Row) StringList(column string) []string {
	l, ok := r[column].(*types.AttributeValueMemberL)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(l.Value))
	for _, v := range l.Value {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out = append(out, s.Value)
		}
	}
	return out
}

// StringMap returns a map column of strings; absent columns read as empty.
func (r Row) StringMap(column string) map[string]string {
	m, ok := r[column].(*types.AttributeValueMemberM)
	out := make(map[string]string)
	if !ok {
		return out
	}
	for k, v := range m.Value {
		if s, ok := v.(*types.AttributeValueMemberS); ok {
			out[k] = s.Value
		}
	}
	return out
}

// StringListValue builds a list attribute from strings.
func StringListValue(values []string) *types.AttributeValueMemberL {
	l := make([]types.AttributeValue, 0, len(values))
	for _, v := range values {
		l = append(l, &types.AttributeValueMemberS{Value: v})
	}
	return &types.AttributeValueMemberL{Value: l}
}

// StringMapValue builds a map attribute from strings.
func StringMapValue(values map[string]string) *types.AttributeValueMemberM {
	m := make(map[string]types.AttributeValue, len(values))
	for k, v := range values {
		m[k] = &types.AttributeValueMemberS{Value: v}
	}
	return &types.AttributeValueMemberM{Value: m}
}

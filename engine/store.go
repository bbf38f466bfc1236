/*
store.go - Record store gateway contract

PURPOSE:
  The engine never talks to a database directly. It reads and writes plain
  records (JSON-like maps) through three calls: Find, Insert and Update.
  The production store is an external service reached over HTTP; SQLite
  and in-memory implementations exist for single-node runs and tests.

FILTERS:
  A Filter is a conjunction of predicates over named fields:
  eq, neq, gt, gte, lt, lte, in. Nothing else is needed by the engine.

CONDITIONAL UPDATES:
  Update returns the number of records it changed. A status transition is
  always issued with the previously read status in the filter; 0 means
  another caller got there first. This is the engine's only concurrency
  control.

TIME VALUES:
  Times are stored as fixed-width UTC strings (TimeLayout) so that string
  comparison and chronological comparison agree in every store.

IMPLEMENTATIONS:
  - engine/store/memory.go: In-memory, for tests and development
  - store/sqlite/sqlite.go: JSON documents in SQLite
  - store/rest/client.go: PostgREST-style HTTP gateway

SEE ALSO:
  - records.go: Typed struct <-> Record conversion
*/
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"time"
)

// =============================================================================
// COLLECTIONS
// =============================================================================

type Collection string

const (
	CollAssignments   Collection = "assignments"
	CollRequests      Collection = "requests"
	CollJobs          Collection = "jobs"
	CollSubscriptions Collection = "subscriptions"
	CollProviders     Collection = "providers"
	CollAuditLog      Collection = "audit_log"
)

// =============================================================================
// RECORD
// =============================================================================

// Record is one stored document. Values are JSON-compatible: string,
// float64/int/int64, bool, nil, []any, map[string]any.
type Record map[string]any

func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

func (r Record) Bool(field string) bool {
	b, _ := r[field].(bool)
	return b
}

func (r Record) Int(field string) int64 {
	f, ok := toFloat(r[field])
	if !ok {
		return 0
	}
	return int64(math.Round(f))
}

func (r Record) Float(field string) float64 {
	f, _ := toFloat(r[field])
	return f
}

func (r Record) Time(field string) time.Time {
	return ParseTime(r.String(field))
}

func (r Record) Strings(field string) []string {
	switch v := r[field].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// =============================================================================
// TIME ENCODING
// =============================================================================

// TimeLayout is the fixed-width format for every stored timestamp.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// =============================================================================
// FILTER
// =============================================================================

type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

type Predicate struct {
	Field string
	Op    Op
	Value any // []any for OpIn
}

// Filter is a conjunction of predicates. An empty filter matches everything.
type Filter []Predicate

func Eq(field string, value any) Predicate  { return Predicate{Field: field, Op: OpEq, Value: value} }
func Neq(field string, value any) Predicate { return Predicate{Field: field, Op: OpNeq, Value: value} }
func Gt(field string, value any) Predicate  { return Predicate{Field: field, Op: OpGt, Value: value} }
func Gte(field string, value any) Predicate { return Predicate{Field: field, Op: OpGte, Value: value} }
func Lt(field string, value any) Predicate  { return Predicate{Field: field, Op: OpLt, Value: value} }
func Lte(field string, value any) Predicate { return Predicate{Field: field, Op: OpLte, Value: value} }
func In(field string, values ...any) Predicate {
	return Predicate{Field: field, Op: OpIn, Value: values}
}

// Where builds a Filter.
func Where(preds ...Predicate) Filter { return Filter(preds) }

var fieldName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidFieldName reports whether name is safe to embed in a store query.
func ValidFieldName(name string) bool { return fieldName.MatchString(name) }

// Validate rejects unknown operators and field names that are not plain
// snake_case identifiers (store implementations embed them in queries).
func (f Filter) Validate() error {
	for _, p := range f {
		if !fieldName.MatchString(p.Field) {
			return fmt.Errorf("invalid field name %q", p.Field)
		}
		switch p.Op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		case OpIn:
			if _, ok := p.Value.([]any); !ok {
				return fmt.Errorf("field %q: in requires a list", p.Field)
			}
		default:
			return fmt.Errorf("field %q: unknown operator %q", p.Field, p.Op)
		}
	}
	return nil
}

// Match evaluates the filter against a record in memory.
func (f Filter) Match(r Record) bool {
	for _, p := range f {
		if !p.match(r[p.Field]) {
			return false
		}
	}
	return true
}

func (p Predicate) match(actual any) bool {
	switch p.Op {
	case OpEq:
		return equalValues(actual, p.Value)
	case OpNeq:
		return !equalValues(actual, p.Value)
	case OpIn:
		values, _ := p.Value.([]any)
		for _, v := range values {
			if equalValues(actual, v) {
				return true
			}
		}
		return false
	}

	c, ok := CompareValues(actual, p.Value)
	if !ok {
		return false
	}
	switch p.Op {
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	}
	return false
}

func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	c, ok := CompareValues(a, b)
	return ok && c == 0
}

// CompareValues orders two JSON-compatible scalars of the same family.
// Numbers compare numerically, strings lexically, bools false < true.
// Named types (e.g. AssignmentStatus) compare as their underlying kind.
func CompareValues(a, b any) (int, bool) {
	a, b = Normalize(a), Normalize(b)
	switch va := a.(type) {
	case float64:
		vb, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return compareOrdered(va, vb), true
	case string:
		vb, ok := b.(string)
		if !ok {
			return 0, false
		}
		return compareOrdered(va, vb), true
	case bool:
		vb, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case va == vb:
			return 0, true
		case !va:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func compareOrdered[T float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Normalize maps a value onto float64, string or bool where possible.
func Normalize(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := strconv.ParseFloat(string(n), 64); err == nil {
			return f
		}
		return string(n)
	}
	if t, ok := v.(time.Time); ok {
		return FormatTime(t)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}

func toFloat(v any) (float64, bool) {
	f, ok := Normalize(v).(float64)
	return f, ok
}

// =============================================================================
// QUERY
// =============================================================================

type Query struct {
	Filter  Filter
	OrderBy string // field name, empty = store order
	Desc    bool
	Limit   int // 0 = no limit
}

// =============================================================================
// RECORD STORE
// =============================================================================

// RecordStore is the gateway to the external record store.
type RecordStore interface {
	// Find returns the records of a collection matching the query.
	Find(ctx context.Context, coll Collection, q Query) ([]Record, error)

	// Insert stores a new record and returns it as stored.
	// The body must carry a non-empty "id".
	Insert(ctx context.Context, coll Collection, body Record) (Record, error)

	// Update merges patch into every record matching filter and returns how
	// many records changed.
	Update(ctx context.Context, coll Collection, filter Filter, patch Record) (int, error)
}

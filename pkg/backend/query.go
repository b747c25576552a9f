package backend

import (
	"sort"

	"github.com/abought/jamdb/pkg/types"
)

// Op is a clause comparison operator
type Op string

const (
	Eq Op = "eq"
	In Op = "in"
	Gt Op = "gt"
	Ge Op = "ge"
	Lt Op = "lt"
	Le Op = "le"
)

// Clause is one (field, op, value) predicate. The field "ref" addresses
// the record's ref; any other field addresses the stored mapping.
type Clause struct {
	Field string
	Op    Op
	Value any
}

// Where builds a clause
func Where(field string, op Op, value any) Clause {
	return Clause{Field: field, Op: op, Value: value}
}

// Direction orders query results
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Ordering sorts results by one field
type Ordering struct {
	Field     string
	Direction Direction
}

// Asc orders ascending by field
func Asc(field string) Ordering {
	return Ordering{Field: field, Direction: Ascending}
}

// Desc orders descending by field
func Desc(field string) Ordering {
	return Ordering{Field: field, Direction: Descending}
}

// Matches reports whether rec satisfies every clause
func Matches(rec *types.Record, clauses []Clause) bool {
	for _, c := range clauses {
		val, ok := fieldValue(rec, c.Field)
		if !ok {
			return false
		}
		switch c.Op {
		case Eq:
			if compareValues(val, c.Value) != 0 {
				return false
			}
		case In:
			if !containsValue(c.Value, val) {
				return false
			}
		case Gt:
			if compareValues(val, c.Value) <= 0 {
				return false
			}
		case Ge:
			if compareValues(val, c.Value) < 0 {
				return false
			}
		case Lt:
			if compareValues(val, c.Value) >= 0 {
				return false
			}
		case Le:
			if compareValues(val, c.Value) > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Sort orders recs in place by the given orderings, earlier orderings
// taking precedence
func Sort(recs []*types.Record, order []Ordering) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, o := range order {
			vi, _ := fieldValue(recs[i], o.Field)
			vj, _ := fieldValue(recs[j], o.Field)
			cmp := compareValues(vi, vj)
			if cmp == 0 {
				continue
			}
			if o.Direction == Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func fieldValue(rec *types.Record, field string) (any, bool) {
	if field == "ref" {
		return rec.Ref, true
	}
	m, ok := rec.Data.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[field]
	return v, ok
}

// compareValues orders nil < bool < number < string; numbers coerce to
// float64 so decoded JSON and native ints compare equal
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0: // both nil
		return 0
	case 1:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		default:
			return 1
		}
	case 2:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case 3:
		sa, sb := a.(string), b.(string)
		switch {
		case sa < sb:
			return -1
		case sa > sb:
			return 1
		default:
			return 0
		}
	default:
		// Mappings and sequences have no defined order
		return 0
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case string:
		return 3
	default:
		if _, ok := toFloat(v); ok {
			return 2
		}
		return 4
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func containsValue(set any, v any) bool {
	switch s := set.(type) {
	case []any:
		for _, item := range s {
			if compareValues(item, v) == 0 {
				return true
			}
		}
	case []string:
		for _, item := range s {
			if compareValues(item, v) == 0 {
				return true
			}
		}
	}
	return false
}

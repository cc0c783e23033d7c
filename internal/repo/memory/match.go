package memory

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Records are evaluated in their stored (bson) shape so predicates, sort keys
// and field names behave the same as against the document store.

type row[T any] struct {
	val T
	doc bson.M
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return m, nil
}

// apply filters, sorts and paginates items according to spec.
func apply[T any](items []T, spec query.Spec) ([]T, error) {
	rows := make([]row[T], 0, len(items))
	for _, it := range items {
		doc, err := toDoc(it)
		if err != nil {
			return nil, err
		}
		if matchAll(doc, spec.Predicates) {
			rows = append(rows, row[T]{val: it, doc: doc})
		}
	}

	slices.SortStableFunc(rows, func(a, b row[T]) int {
		for _, token := range spec.Sort {
			field, desc := strings.CutPrefix(token, "-")
			c := compareValues(lookup(a.doc, repo.StoreField(field)), lookup(b.doc, repo.StoreField(field)))
			if c != 0 {
				if desc {
					return -c
				}
				return c
			}
		}
		return 0
	})

	if spec.Skip < 0 || spec.Skip >= len(rows) {
		return []T{}, nil
	}
	rows = rows[spec.Skip:]
	if spec.Limit > 0 && len(rows) > spec.Limit {
		rows = rows[:spec.Limit]
	}

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.val)
	}
	return out, nil
}

func matchAll(doc bson.M, preds []query.Predicate) bool {
	for _, p := range preds {
		if !match(lookup(doc, repo.StoreField(p.Field)), p) {
			return false
		}
	}
	return true
}

// match follows document store semantics: a predicate on an array field
// holds when any element satisfies it.
func match(v any, p query.Predicate) bool {
	if arr, ok := v.(bson.A); ok {
		if p.Op == query.OpEq && equalValues(arr, p.Value) {
			return true
		}
		for _, el := range arr {
			if match(el, p) {
				return true
			}
		}
		return false
	}

	switch p.Op {
	case query.OpEq:
		return equalValues(v, p.Value)
	case query.OpIn:
		candidates, _ := p.Value.([]any)
		for _, c := range candidates {
			if equalValues(v, c) {
				return true
			}
		}
		return false
	case query.OpGt, query.OpGte, query.OpLt, query.OpLte:
		c, ok := orderedCompare(v, p.Value)
		if !ok {
			return false
		}
		switch p.Op {
		case query.OpGt:
			return c > 0
		case query.OpGte:
			return c >= 0
		case query.OpLt:
			return c < 0
		default:
			return c <= 0
		}
	}
	return false
}

func lookup(doc bson.M, path string) any {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case bson.M:
			cur = m[part]
		case bson.D:
			cur = nil
			for _, e := range m {
				if e.Key == part {
					cur = e.Value
					break
				}
			}
		default:
			return nil
		}
	}
	return cur
}

func equalValues(a, b any) bool {
	if m, ok := b.(map[string]any); ok {
		return equalDoc(a, m)
	}
	if arr, ok := a.(bson.A); ok {
		other, ok := b.([]any)
		if !ok || len(arr) != len(other) {
			return false
		}
		for i := range arr {
			if !equalValues(arr[i], other[i]) {
				return false
			}
		}
		return true
	}
	c, ok := orderedCompare(a, b)
	return ok && c == 0
}

func equalDoc(a any, want map[string]any) bool {
	var got map[string]any
	switch d := a.(type) {
	case bson.M:
		got = d
	case bson.D:
		got = make(map[string]any, len(d))
		for _, e := range d {
			got[e.Key] = e.Value
		}
	default:
		return false
	}
	if len(got) != len(want) {
		return false
	}
	for k, v := range want {
		if !equalValues(got[k], v) {
			return false
		}
	}
	return true
}

type class int

const (
	classNull class = iota
	classNumber
	classString
	classID
	classBool
	classTime
	classOther
)

// normalize reduces a stored or query value to a comparable class and value.
func normalize(v any) (class, any) {
	switch x := v.(type) {
	case nil:
		return classNull, nil
	case int:
		return classNumber, float64(x)
	case int32:
		return classNumber, float64(x)
	case int64:
		return classNumber, float64(x)
	case float64:
		return classNumber, x
	case string:
		return classString, x
	case bson.ObjectID:
		return classID, x.Hex()
	case bool:
		return classBool, x
	case bson.DateTime:
		return classTime, x.Time().UTC()
	case time.Time:
		return classTime, x.UTC()
	default:
		return classOther, fmt.Sprint(x)
	}
}

// orderedCompare compares values of the same class; ok is false otherwise.
func orderedCompare(a, b any) (int, bool) {
	ca, va := normalize(a)
	cb, vb := normalize(b)
	if ca != cb {
		return 0, false
	}
	return compareNormalized(ca, va, vb), true
}

// compareValues orders any two values, ranking by class first like the
// document store does (missing values sort first).
func compareValues(a, b any) int {
	ca, va := normalize(a)
	cb, vb := normalize(b)
	if ca != cb {
		return cmp.Compare(ca, cb)
	}
	return compareNormalized(ca, va, vb)
}

func compareNormalized(c class, a, b any) int {
	switch c {
	case classNull:
		return 0
	case classNumber:
		return cmp.Compare(a.(float64), b.(float64))
	case classTime:
		return a.(time.Time).Compare(b.(time.Time))
	case classBool:
		ab, bb := a.(bool), b.(bool)
		switch {
		case ab == bb:
			return 0
		case !ab:
			return -1
		default:
			return 1
		}
	default:
		return cmp.Compare(a.(string), b.(string))
	}
}

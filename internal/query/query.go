// Package query turns URL query parameters into a store-agnostic Spec:
// filter predicates, sort tokens, a field projection and pagination.
//
// Grammar:
//
//	field=value            equality
//	field=a&field=b        membership (in) for schema fields, last value otherwise
//	field[gte]=5           range: gt, gte, lt, lte
//	sort=-price,name       descending price, then ascending name
//	fields=name,price      inclusion projection ("-field" excludes)
//	page=2&limit=10        pagination, skip = (page-1)*limit
//
// Translate is pure and never fails: malformed input degrades to defaults.
package query

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

const (
	DefaultPage  = 1
	DefaultLimit = 100
	DefaultSort  = "-createdAt"

	// VersionField is the store's revision marker, hidden unless asked for.
	VersionField = "__v"
)

var reserved = map[string]struct{}{
	"page":   {},
	"sort":   {},
	"limit":  {},
	"fields": {},
}

var rangeOps = map[string]Op{
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
}

// Kind tells Translate how to coerce a raw query value for a field.
type Kind int

const (
	String Kind = iota
	Number
	Bool
	Time
	ID
)

// Schema maps filterable field names to their value kind. Fields missing
// from the schema are still accepted and compared as strings, and a
// repeated unknown parameter keeps only its last value.
type Schema map[string]Kind

type Predicate struct {
	Field string
	Op    Op
	Value any
}

type Spec struct {
	Predicates []Predicate
	Sort       []string
	Fields     []string
	Page       int
	Limit      int
	Skip       int
}

// Translate builds a Spec from params. Base predicates (for example the
// parent id of a nested route) are always applied first.
func Translate(params url.Values, schema Schema, base ...Predicate) Spec {
	spec := Spec{
		Predicates: append([]Predicate(nil), base...),
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values := params[key]
		if len(values) == 0 {
			continue
		}
		if _, ok := reserved[key]; ok {
			continue
		}
		// operator injection: "$" is never a legal part of a field or operator
		if strings.Contains(key, "$") {
			continue
		}

		field, op, ok := splitKey(key)
		if !ok {
			continue
		}
		kind, known := schema[field]

		if op == "" {
			if len(values) > 1 && known {
				in := make([]any, 0, len(values))
				for _, v := range values {
					in = append(in, coerce(kind, v))
				}
				spec.Predicates = append(spec.Predicates, Predicate{Field: field, Op: OpIn, Value: in})
				continue
			}
			spec.Predicates = append(spec.Predicates, Predicate{Field: field, Op: OpEq, Value: coerce(kind, last(values))})
			continue
		}

		raw := values[len(values)-1]
		if rop, ok := rangeOps[op]; ok {
			spec.Predicates = append(spec.Predicates, Predicate{Field: field, Op: rop, Value: coerce(kind, raw)})
			continue
		}

		// unknown operator: compare against the literal sub-document, which
		// matches nothing in practice
		spec.Predicates = append(spec.Predicates, Predicate{
			Field: field,
			Op:    OpEq,
			Value: map[string]any{op: raw},
		})
	}

	spec.Sort = splitList(last(params["sort"]))
	if len(spec.Sort) == 0 {
		spec.Sort = []string{DefaultSort}
	}

	spec.Fields = splitList(last(params["fields"]))
	if len(spec.Fields) == 0 {
		spec.Fields = []string{"-" + VersionField}
	}

	spec.Page = positiveInt(last(params["page"]), DefaultPage)
	spec.Limit = positiveInt(last(params["limit"]), DefaultLimit)
	spec.Skip = skipFor(spec.Page, spec.Limit)

	return spec
}

// skipFor saturates at math.MaxInt; a page that far out is simply empty.
func skipFor(page, limit int) int {
	if page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (page - 1) * limit
}

// Override returns a copy of params with every key of preset replaced.
// Route aliases such as "top 5 cheap" use it.
func Override(params url.Values, preset url.Values) url.Values {
	out := make(url.Values, len(params)+len(preset))
	for k, v := range params {
		out[k] = append([]string(nil), v...)
	}
	for k, v := range preset {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Inclusive reports whether Fields selects (true) or omits (false) fields.
func (s Spec) Inclusive() bool {
	for _, f := range s.Fields {
		if !strings.HasPrefix(f, "-") {
			return true
		}
	}
	return false
}

// CacheKey is a canonical rendering of the spec, stable across parameter order.
func (s Spec) CacheKey(prefix string) string {
	preds := make([]string, 0, len(s.Predicates))
	for _, p := range s.Predicates {
		preds = append(preds, p.Field+":"+string(p.Op)+":"+formatValue(p.Value))
	}
	sort.Strings(preds)

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(":v1:q=")
	b.WriteString(strings.Join(preds, "&"))
	b.WriteString(":sort=")
	b.WriteString(strings.Join(s.Sort, ","))
	b.WriteString(":fields=")
	b.WriteString(strings.Join(s.Fields, ","))
	b.WriteString(":page=")
	b.WriteString(strconv.Itoa(s.Page))
	b.WriteString(":limit=")
	b.WriteString(strconv.Itoa(s.Limit))
	return b.String()
}

// splitKey parses "field" or "field[op]".
func splitKey(key string) (field, op string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open == -1 {
		return key, "", key != ""
	}
	if open == 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}

	field = key[:open]
	op = key[open+1 : len(key)-1]
	if op == "" || strings.ContainsAny(op, "[]") {
		return "", "", false
	}
	return field, op, true
}

func coerce(kind Kind, raw string) any {
	switch kind {
	case Number:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case Bool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case Time:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	case ID:
		if id, err := bson.ObjectIDFromHex(raw); err == nil {
			return id
		}
	}
	return raw
}

func formatValue(v any) string {
	switch x := v.(type) {
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case bson.ObjectID:
		return x.Hex()
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return strconv.Quote(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, formatValue(e))
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+formatValue(x[k]))
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return "?"
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" && part != "-" && !strings.Contains(part, "$") {
			out = append(out, part)
		}
	}
	return out
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func last(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

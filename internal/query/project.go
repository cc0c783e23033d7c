package query

import (
	"encoding/json"
	"strings"
)

// Project renders v (a record or a slice of records) as JSON objects limited
// to the given field list. In inclusion mode "id" is always kept.
func Project(v any, fields []string) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, err
	}

	include, exclude := splitProjection(fields)

	switch x := generic.(type) {
	case []any:
		for i, item := range x {
			if m, ok := item.(map[string]any); ok {
				x[i] = projectObject(m, include, exclude)
			}
		}
		return x, nil
	case map[string]any:
		return projectObject(x, include, exclude), nil
	default:
		return generic, nil
	}
}

func splitProjection(fields []string) (include, exclude map[string]struct{}) {
	include = map[string]struct{}{}
	exclude = map[string]struct{}{}
	for _, f := range fields {
		if name, ok := strings.CutPrefix(f, "-"); ok {
			exclude[name] = struct{}{}
			continue
		}
		include[f] = struct{}{}
	}
	return include, exclude
}

func projectObject(m map[string]any, include, exclude map[string]struct{}) map[string]any {
	if len(include) > 0 {
		out := make(map[string]any, len(include)+1)
		if id, ok := m["id"]; ok {
			out["id"] = id
		}
		for k := range include {
			if v, ok := m[k]; ok {
				out[k] = v
			}
		}
		return out
	}

	for k := range exclude {
		delete(m, k)
	}
	return m
}

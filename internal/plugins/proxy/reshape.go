package proxy

import (
	"strings"
	"unicode"
)

// Paginated turns the backend's {count, next, previous, results} page into
// {<key>, total, next, previous}. A bare list becomes {<key>, total}.
func Paginated(key string) func(any) any {
	return func(v any) any {
		switch body := v.(type) {
		case []any:
			return map[string]any{key: body, "total": len(body)}
		case map[string]any:
			results, ok := body["results"]
			if !ok {
				return body
			}
			out := make(map[string]any, len(body))
			for k, val := range body {
				switch k {
				case "results":
				case "count":
					out["total"] = val
				default:
					out[k] = val
				}
			}
			out[key] = results
			if _, ok := out["total"]; !ok {
				if list, isList := results.([]any); isList {
					out["total"] = len(list)
				}
			}
			return out
		default:
			return v
		}
	}
}

// CamelKeys rewrites snake_case object keys to camelCase at every depth.
func CamelKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[camel(k)] = CamelKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = CamelKeys(val)
		}
		return out
	default:
		return v
	}
}

func camel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	for i, p := range parts {
		if p == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(p)
			continue
		}
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

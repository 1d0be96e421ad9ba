package helper

import (
	"sort"
	"strings"
)

// ReplaceQueryParams rewrites @name and :name references that appear in params
// into ? placeholders and returns the bound arguments in reference order.
// Quoted literals, :: casts and unknown names are left untouched.
func ReplaceQueryParams(query string, params map[string]any) (string, []any) {
	if len(params) == 0 {
		return query, nil
	}

	lookup := make(map[string]any, len(params))
	for k, v := range params {
		lookup[strings.ToLower(strings.TrimLeft(k, "@:"))] = v
	}

	var (
		out     strings.Builder
		args    []any
		inQuote bool
	)

	for i := 0; i < len(query); i++ {
		c := query[i]

		if c == '\'' {
			inQuote = !inQuote
			out.WriteByte(c)
			continue
		}

		if inQuote || (c != '@' && c != ':') {
			out.WriteByte(c)
			continue
		}

		// :: cast or @@ system variable
		if i+1 < len(query) && query[i+1] == c {
			out.WriteString(query[i : i+2])
			i++
			continue
		}

		j := i + 1
		for j < len(query) && isIdentByte(query[j]) {
			j++
		}

		name := strings.ToLower(query[i+1 : j])
		value, ok := lookup[name]
		if name == "" || !ok {
			out.WriteByte(c)
			continue
		}

		out.WriteByte('?')
		args = append(args, value)
		i = j - 1
	}

	return out.String(), args
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// HasStatementBreak reports whether a raw fragment could end the statement or
// open a comment.
func HasStatementBreak(fragment string) bool {
	return strings.Contains(fragment, ";") ||
		strings.Contains(fragment, "--") ||
		strings.Contains(fragment, "/*")
}

// LookupFold finds key in m ignoring case.
func LookupFold(m map[string]any, key string) (string, any, bool) {
	if v, ok := m[key]; ok {
		return key, v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return k, v, true
		}
	}
	return "", nil, false
}

func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package logger

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// keys returns the field names in output order: order first, then the rest
// sorted.
func (e entry) keys(order []string) []string {
	out := make([]string, 0, len(e))
	placed := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := e[k]; ok && !placed[k] {
			out = append(out, k)
			placed[k] = true
		}
	}
	tail := len(out)
	for k := range e {
		if !placed[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out[tail:])
	return out
}

func (e entry) json(order []string) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range e.keys(order) {
		v, err := json.Marshal(e[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(v)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func (e entry) kv(order []string) []byte {
	var b strings.Builder
	for i, k := range e.keys(order) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(e[k]))
	}
	return []byte(b.String())
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		s = strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		s = fmt.Sprint(x)
	}
	if strings.IndexFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

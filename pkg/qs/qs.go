// Package qs encodes and decodes URL query strings as flat string maps.
package qs

import (
	"net/url"
	"sort"
	"strings"
)

// Decode parses a query string into a key/value map. Parsing is
// best-effort and never fails: a segment that cannot be unescaped keeps
// its raw form, a segment with no "=" maps to an empty value, and the
// last of any duplicate keys wins.
func Decode(query string) map[string]string {
	params := make(map[string]string)
	if query == "" {
		return params
	}
	for _, seg := range strings.Split(query, "&") {
		if seg == "" {
			continue
		}
		var k, v string
		if i := strings.Index(seg, "="); i >= 0 {
			k, v = seg[:i], seg[i+1:]
		} else {
			k = seg
		}
		if uk, err := url.QueryUnescape(k); err == nil {
			k = uk
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		params[k] = v
	}
	return params
}

// Encode is the inverse of Decode. Keys are emitted in sorted order so
// that the result is deterministic.
func Encode(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}

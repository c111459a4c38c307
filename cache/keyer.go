package cache

import (
	"net/url"
	"sort"
	"strings"
)

// Key namespaces in the shared store.
const (
	KeyPrefix   = "api:"
	TagPrefix   = "tag:"
	StalePrefix = "stale:"
)

// MakeKey derives a deterministic cache key from a request path and its
// query parameters.
// Format: api:<pathname>[?<sorted-query>]
//
// Parameter pairs are ordered by name, then value, before serialization, so
// the same logical request always yields the same key regardless of the
// order the parameters arrived in. The pathname is used verbatim.
func MakeKey(pathname string, query url.Values) string {
	pairs := make([]pair, 0, len(query))
	for name, values := range query {
		for _, v := range values {
			pairs = append(pairs, pair{name: name, value: v})
		}
	}
	return makeKey(pathname, pairs)
}

// KeyForURL builds the key for a request URL. The path stays in its escaped
// form, so /a%2Fb and /a/b are distinct keys. Query pairs are read from the
// raw query without dropping malformed escapes: a bad %-sequence is kept
// literally instead of discarding the pair.
func KeyForURL(u *url.URL) string {
	return makeKey(u.EscapedPath(), parseQuery(u.RawQuery))
}

// TagSetKey returns the store key holding the member set for tag.
func TagSetKey(tag string) string {
	return TagPrefix + tag
}

// StaleKey returns the store key of the last-known-good copy of key.
func StaleKey(key string) string {
	return StalePrefix + key
}

type pair struct {
	name  string
	value string
}

func makeKey(pathname string, pairs []pair) string {
	canonical := canonicalQuery(pairs)
	if canonical == "" {
		return KeyPrefix + pathname
	}
	return KeyPrefix + pathname + "?" + canonical
}

// canonicalQuery serializes query pairs in sorted order using form encoding.
func canonicalQuery(pairs []pair) string {
	if len(pairs) == 0 {
		return ""
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].name != pairs[j].name {
			return pairs[i].name < pairs[j].name
		}
		return pairs[i].value < pairs[j].value
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String()
}

// parseQuery splits a raw query into form-decoded pairs. Empty segments are
// skipped and a segment without '=' has an empty value.
func parseQuery(raw string) []pair {
	var pairs []pair
	for _, seg := range strings.Split(raw, "&") {
		if seg == "" {
			continue
		}
		name, value, _ := strings.Cut(seg, "=")
		pairs = append(pairs, pair{name: formDecode(name), value: formDecode(value)})
	}
	return pairs
}

// formDecode turns '+' into a space and decodes valid %XX escapes. Invalid
// escapes are left as is.
func formDecode(s string) string {
	if !strings.ContainsAny(s, "+%") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c <= '9':
		return c - '0'
	case c <= 'F':
		return c - 'A' + 10
	default:
		return c - 'a' + 10
	}
}

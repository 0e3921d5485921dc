package identity

import (
	"strings"
	"unicode"
)

var (
	honorifics = map[string]bool{"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true}
	suffixes   = map[string]bool{"jr": true, "sr": true, "ii": true, "iii": true, "iv": true}
)

// NormalizeName lowercases a name, collapses whitespace, strips punctuation from
// each token and drops honorifics and generational suffixes.
//
//	NormalizeName("  Mr. John   Smith, Jr. ") == "john smith"
func NormalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		tok := strings.Map(func(r rune) rune {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				return -1
			}
			return r
		}, f)
		if tok == "" || honorifics[tok] || suffixes[tok] {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

// sharedTokens counts distinct tokens present in both normalized names.
func sharedTokens(a, b string) int {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(a) {
		set[tok] = true
	}
	n := 0
	for _, tok := range strings.Fields(b) {
		if set[tok] {
			n++
			delete(set, tok)
		}
	}
	return n
}

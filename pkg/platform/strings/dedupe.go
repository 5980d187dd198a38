// Package strings holds the small token helpers shared by the reconcilers.
package strings

import (
	"strings"
)

// Tokens splits every value on whitespace and returns each token once, in
// first-seen order.
//
//	Tokens("PO-1  PO-2", "PO-1", "") // []string{"PO-1", "PO-2"}
func Tokens(values ...string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, v := range values {
		for _, tok := range strings.Fields(v) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

// Without returns the tokens of values that are absent from exclude.
func Without(values []string, exclude []string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}
	var out []string
	for _, v := range values {
		if _, ok := skip[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}

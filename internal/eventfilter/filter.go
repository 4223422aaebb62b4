// Package eventfilter implements the client-side include/exclude predicate
// applied to serialized event bodies before they enter the log buffer.
package eventfilter

import "strings"

// Accepts reports whether body passes the include/exclude token lists.
// Tokens are whitespace-separated substrings: every include token must occur
// in body (a blank include list constrains nothing), and no exclude token
// may occur (a blank exclude list excludes nothing). Exclusion wins when
// both could apply.
func Accepts(body, include, exclude string) bool {
	for _, tok := range strings.Fields(include) {
		if !strings.Contains(body, tok) {
			return false
		}
	}
	for _, tok := range strings.Fields(exclude) {
		if strings.Contains(body, tok) {
			return false
		}
	}
	return true
}

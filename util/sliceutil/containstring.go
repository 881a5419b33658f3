package sliceutil

import (
	"strings"
)

// ContainsStringIgnoreCase reports whether v is in s, ignoring case. Currency codes and bidder
// names are both compared this way.
func ContainsStringIgnoreCase(s []string, v string) bool {
	for _, i := range s {
		if strings.EqualFold(i, v) {
			return true
		}
	}
	return false
}

// ContainsAnyIgnoreCase reports whether s and values share at least one element, ignoring case.
func ContainsAnyIgnoreCase(s []string, values []string) bool {
	for _, v := range values {
		if ContainsStringIgnoreCase(s, v) {
			return true
		}
	}
	return false
}

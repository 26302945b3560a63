// Package utils provides small, generic helpers with no domain knowledge.
package utils

import "strconv"

// AtoiDefault parses s as an int and returns def when s is empty or not a
// number. Used for query parameters like page and page_size, where a bad
// value should fall back to the default rather than fail the request.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

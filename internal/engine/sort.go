package engine

import "strings"

// SortByAndDirection splits a Forest sort parameter: "-value" sorts on
// value descending, anything else ascending.
func SortByAndDirection(sort string) (string, string) {
	if strings.HasPrefix(sort, "-") {
		return sort[1:], "DESC"
	}
	return sort, "ASC"
}

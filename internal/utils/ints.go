// Package utils holds small numeric helpers shared by the HTTP and service
// layers.
package utils

import (
	"cmp"
	"strconv"
	"strings"
)

// Clamp bounds v to [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// BoundedInt parses s as a base-10 int. Blank or malformed input yields def;
// the result is then clamped to [lo, hi].
func BoundedInt(s string, def, lo, hi int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		n = def
	}
	return Clamp(n, lo, hi)
}

// Pages returns how many pages of size cover total items, or 0 when either
// is not positive.
func Pages(total int64, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	n := total / int64(size)
	if total%int64(size) != 0 {
		n++
	}
	return int(n)
}

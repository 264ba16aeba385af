package utils

import (
	"strconv"
	"strings"
)

// QueryInt parses a non-negative integer query value, falling back to def and capping at max
// (max <= 0 means no cap).
func QueryInt(s string, def, max int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

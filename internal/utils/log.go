package utils

import "strings"

// TruncateForLog flattens s onto one line and keeps at most limit runes of it.
// CV and job texts are multi-line, which breaks console log output otherwise.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}

	flat := strings.Join(strings.Fields(s), " ")
	n := 0
	for i := range flat {
		if n == limit {
			return flat[:i] + "..."
		}
		n++
	}
	return flat
}

package fileutil

import (
	"strings"
)

// SanitizeFilename makes a run name safe to use as a directory component.
//
// Slashes and null characters are replaced with underscores, other control
// characters are removed, and leading/trailing spaces and trailing dots are
// trimmed.
func SanitizeFilename(filename string) string {
	var sanitized strings.Builder
	for _, r := range filename {
		switch {
		case r == '/' || r == 0:
			sanitized.WriteRune('_')
		case r < 32 || r == 127:
			// drop control characters
		default:
			sanitized.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sanitized.String())
	result = strings.TrimRight(result, ".")
	return result
}

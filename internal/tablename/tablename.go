// Package tablename resolves destination table templates against the name of
// the file being loaded. A template holds "{start:end}" placeholders that
// are replaced with the matching character slice of the file name.
package tablename

import (
	"regexp"
	"strconv"
)

var placeholder = regexp.MustCompile(`\{([0-9]+):([0-9]+)\}`)

// Resolve replaces every placeholder in template with
// sourceFileName[start:end]. Offsets count characters and are clamped to the
// name; a reversed range yields an empty slice. Substituted text is never
// scanned again.
func Resolve(template, sourceFileName string) string {
	name := []rune(sourceFileName)
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		groups := placeholder.FindStringSubmatch(match)
		start := clamp(groups[1], len(name))
		end := clamp(groups[2], len(name))
		if start >= end {
			return ""
		}
		return string(name[start:end])
	})
}

// HasPlaceholders reports whether template still needs a file name.
func HasPlaceholders(template string) bool {
	return placeholder.MatchString(template)
}

func clamp(digits string, max int) int {
	n, err := strconv.Atoi(digits)
	if err != nil || n > max {
		// Atoi only fails here on overflow
		return max
	}
	return n
}

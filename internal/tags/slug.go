package tags

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Slugify builds a URL-safe slug from a tag name, suffixed with a short
// random fragment so renames and duplicate names never collide.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	base := strings.Trim(b.String(), "-")
	if len(base) > 48 {
		base = base[:48]
	}
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	if base == "" {
		return suffix
	}
	return base + "-" + suffix
}

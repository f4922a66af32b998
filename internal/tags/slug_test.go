package tags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	s := Slugify("  Dana's Garden Studio!  ")
	assert.True(t, strings.HasPrefix(s, "dana-s-garden-studio-"), s)
	for _, r := range s {
		assert.True(t, (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-', s)
	}
}

func TestSlugifyEmptyNameStillProducesSlug(t *testing.T) {
	s := Slugify("!!!")
	assert.Len(t, s, 8)
}

func TestSlugifyUniquePerCall(t *testing.T) {
	assert.NotEqual(t, Slugify("Studio"), Slugify("Studio"))
}

func TestSlugifyTruncatesLongNames(t *testing.T) {
	s := Slugify(strings.Repeat("verylongname", 20))
	// base capped at 48 plus dash and 8-char suffix
	assert.LessOrEqual(t, len(s), 57)
}

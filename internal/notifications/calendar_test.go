package notifications

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/omninet-app/backend/internal/models"
)

func TestBuildICS(t *testing.T) {
	msg := "bring the dog; she's friendly, promise"
	booking := &models.Booking{
		ID:          uuid.MustParse("6f1e1c9a-6a54-4b8e-9c80-08f1ad2b3c4d"),
		PreferredAt: time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
		Message:     &msg,
	}
	tag := &models.Tag{Name: "Garden Studio"}
	now := time.Date(2025, 6, 20, 9, 30, 0, 0, time.UTC)

	ics := BuildICS(booking, tag, "https://omninet.app/t/garden-studio", now)

	assert.True(t, strings.HasPrefix(ics, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(ics, "END:VCALENDAR\r\n"))
	assert.Contains(t, ics, "UID:booking-6f1e1c9a-6a54-4b8e-9c80-08f1ad2b3c4d@omninet\r\n")
	assert.Contains(t, ics, "DTSTAMP:20250620T093000Z\r\n")
	assert.Contains(t, ics, "DTSTART:20250701T100000Z\r\n")
	assert.Contains(t, ics, "DTEND:20250701T110000Z\r\n")
	assert.Contains(t, ics, "SUMMARY:Garden Studio\r\n")
	assert.Contains(t, ics, "URL:https://omninet.app/t/garden-studio\r\n")
	// Reserved characters in the visitor message are escaped.
	assert.Contains(t, ics, "bring the dog\\;")
}

func TestBuildICSEscapesTagNameInDescription(t *testing.T) {
	booking := &models.Booking{ID: uuid.New(), PreferredAt: time.Now()}
	tag := &models.Tag{Name: "Field, Barn; Annex"}

	ics := BuildICS(booking, tag, "", time.Now())
	assert.Contains(t, ics, "SUMMARY:Field\\, Barn\\; Annex")
	assert.Contains(t, ics, "Booking with Field\\, Barn\\; Annex")
	assert.NotContains(t, ics, "Booking with Field, Barn")
}

func TestBuildICSSameBookingSameUID(t *testing.T) {
	booking := &models.Booking{ID: uuid.New(), PreferredAt: time.Now()}
	tag := &models.Tag{Name: "Studio"}

	a := BuildICS(booking, tag, "", time.Now())
	b := BuildICS(booking, tag, "", time.Now().Add(time.Hour))
	uid := "UID:booking-" + booking.ID.String() + "@omninet"
	assert.Contains(t, a, uid)
	assert.Contains(t, b, uid)
}

func TestFoldICSLine(t *testing.T) {
	short := foldICSLine("SUMMARY:short")
	assert.Equal(t, "SUMMARY:short\r\n", short)

	long := foldICSLine("DESCRIPTION:" + strings.Repeat("x", 200))
	for _, line := range strings.Split(strings.TrimSuffix(long, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
	assert.Contains(t, long, "\r\n ")
}

func TestFoldICSLineKeepsRunesIntact(t *testing.T) {
	folded := foldICSLine("DESCRIPTION:" + strings.Repeat("ü", 120))
	for _, line := range strings.Split(strings.TrimSuffix(folded, "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
		assert.True(t, utf8.ValidString(line), "fold must not split a multi-byte rune: %q", line)
	}
	unfolded := strings.ReplaceAll(folded, "\r\n ", "")
	assert.Equal(t, "DESCRIPTION:"+strings.Repeat("ü", 120)+"\r\n", unfolded)
}

package notifications

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/omninet-app/backend/internal/models"
)

// Default event length when a booking has no explicit duration.
const defaultEventDuration = time.Hour

const icsTimeLayout = "20060102T150405Z"

// BuildICS renders a single-event iCalendar document for an accepted
// booking. The UID is derived from the booking id so re-sends of the same
// acceptance update the same calendar entry instead of duplicating it.
func BuildICS(booking *models.Booking, tag *models.Tag, pageURL string, now time.Time) string {
	start := booking.PreferredAt.UTC()
	end := start.Add(defaultEventDuration)

	var description strings.Builder
	description.WriteString(fmt.Sprintf("Booking with %s", escapeICSText(tag.Name)))
	if booking.Message != nil && *booking.Message != "" {
		description.WriteString("\\n\\n")
		description.WriteString(escapeICSText(*booking.Message))
	}

	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//OmniNet//Bookings//EN\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")
	b.WriteString("METHOD:PUBLISH\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	b.WriteString(fmt.Sprintf("UID:booking-%s@omninet\r\n", booking.ID))
	b.WriteString(fmt.Sprintf("DTSTAMP:%s\r\n", now.UTC().Format(icsTimeLayout)))
	b.WriteString(fmt.Sprintf("DTSTART:%s\r\n", start.Format(icsTimeLayout)))
	b.WriteString(fmt.Sprintf("DTEND:%s\r\n", end.Format(icsTimeLayout)))
	b.WriteString(foldICSLine(fmt.Sprintf("SUMMARY:%s", escapeICSText(tag.Name))))
	b.WriteString(foldICSLine(fmt.Sprintf("DESCRIPTION:%s", description.String())))
	if pageURL != "" {
		b.WriteString(foldICSLine(fmt.Sprintf("URL:%s", pageURL)))
	}
	b.WriteString("STATUS:CONFIRMED\r\n")
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

// escapeICSText escapes the characters RFC 5545 reserves in TEXT values.
func escapeICSText(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
	)
	return r.Replace(s)
}

// foldICSLine folds a content line per RFC 5545 3.1, cutting at the last
// rune boundary at or below 75 octets so a multi-byte character is never
// split across the fold.
func foldICSLine(line string) string {
	const limit = 75
	if len(line) <= limit {
		return line + "\r\n"
	}
	var b strings.Builder
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
	}
	b.WriteString(line)
	b.WriteString("\r\n")
	return b.String()
}

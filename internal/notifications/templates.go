package notifications

import (
	"fmt"
	"html"
	"time"

	"github.com/omninet-app/backend/internal/models"
)

const preferredAtDisplay = "Monday, 2 January 2006 at 15:04 MST"

func displayTime(t time.Time) string {
	return t.UTC().Format(preferredAtDisplay)
}

func requestConfirmationSubject(tag *models.Tag) string {
	return fmt.Sprintf("Your booking request for %s", tag.Name)
}

func requestConfirmationHTML(booking *models.Booking, tag *models.Tag, pageURL string) string {
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:560px;margin:0 auto">
<h2>Request received</h2>
<p>Hi %s,</p>
<p>Your booking request for <strong>%s</strong> on <strong>%s</strong> has been sent. You'll hear back once the owner responds.</p>
<p><a href="%s">View the listing</a></p>
</div>`,
		html.EscapeString(booking.RequesterName),
		html.EscapeString(tag.Name),
		displayTime(booking.PreferredAt),
		html.EscapeString(pageURL))
}

func ownerNotificationSubject(booking *models.Booking, tag *models.Tag) string {
	return fmt.Sprintf("New booking request from %s for %s", booking.RequesterName, tag.Name)
}

func ownerNotificationHTML(booking *models.Booking, tag *models.Tag, acceptURL, declineURL string) string {
	message := ""
	if booking.Message != nil && *booking.Message != "" {
		message = fmt.Sprintf(`<p style="border-left:3px solid #ccc;padding-left:12px;color:#444">%s</p>`,
			html.EscapeString(*booking.Message))
	}
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:560px;margin:0 auto">
<h2>New booking request</h2>
<p><strong>%s</strong> (%s) requested a booking on <strong>%s</strong> via <strong>%s</strong>.</p>
%s
<p>
<a href="%s" style="display:inline-block;padding:10px 20px;background:#16a34a;color:#fff;text-decoration:none;border-radius:6px">Accept</a>
&nbsp;
<a href="%s" style="display:inline-block;padding:10px 20px;background:#dc2626;color:#fff;text-decoration:none;border-radius:6px">Decline</a>
</p>
<p style="color:#666;font-size:13px">Replying to this email goes straight to the requester.</p>
</div>`,
		html.EscapeString(booking.RequesterName),
		html.EscapeString(booking.RequesterEmail),
		displayTime(booking.PreferredAt),
		html.EscapeString(tag.Name),
		message,
		html.EscapeString(acceptURL),
		html.EscapeString(declineURL))
}

func acceptanceSubject(tag *models.Tag) string {
	return fmt.Sprintf("Booking confirmed: %s", tag.Name)
}

func acceptanceHTML(booking *models.Booking, tag *models.Tag, pageURL string) string {
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:560px;margin:0 auto">
<h2>You're booked</h2>
<p>Hi %s,</p>
<p>Your booking for <strong>%s</strong> on <strong>%s</strong> has been accepted. A calendar invite is attached.</p>
<p><a href="%s">View the listing</a></p>
</div>`,
		html.EscapeString(booking.RequesterName),
		html.EscapeString(tag.Name),
		displayTime(booking.PreferredAt),
		html.EscapeString(pageURL))
}

func declineSubject(tag *models.Tag) string {
	return fmt.Sprintf("Booking update: %s", tag.Name)
}

func declineHTML(booking *models.Booking, tag *models.Tag, pageURL string) string {
	return fmt.Sprintf(`<div style="font-family:sans-serif;max-width:560px;margin:0 auto">
<h2>Booking not available</h2>
<p>Hi %s,</p>
<p>Unfortunately your booking request for <strong>%s</strong> on <strong>%s</strong> was declined. You can request another time from the listing.</p>
<p><a href="%s">View the listing</a></p>
</div>`,
		html.EscapeString(booking.RequesterName),
		html.EscapeString(tag.Name),
		displayTime(booking.PreferredAt),
		html.EscapeString(pageURL))
}

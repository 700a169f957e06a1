package caldav

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"schedcore/internal/domain/booking"
)

const uidPrefix = "tdbkg-"

// EventUID derives the calendar object UID for a booking. The prefix keeps
// our objects distinguishable from anything else living in the collection.
func EventUID(bookingID string) string {
	return uidPrefix + bookingID
}

// FreshEventUID mints a new UID for the same booking with a random suffix.
// Reschedules must never reuse the previous UID: some servers resurrect a
// deleted object when a PUT arrives under the old name.
func FreshEventUID(bookingID string) string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return uidPrefix + bookingID + "-" + hex.EncodeToString(buf)
}

// Event holds the fields rendered into a VEVENT.
type Event struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
	Created time.Time
}

// EventFromBooking builds the calendar representation of a booking.
func EventFromBooking(b *booking.Booking, summary string) Event {
	uid := b.CalendarUID()
	if uid == "" {
		uid = EventUID(b.ID().String())
	}
	return Event{
		UID:     uid,
		Summary: summary,
		Start:   b.Slot().Start,
		End:     b.Slot().End,
		Created: b.CreatedAt(),
	}
}

const icsTimeLayout = "20060102T150405Z"

// Render produces the iCalendar document for the event. Lines are CRLF
// terminated as RFC 5545 requires.
func (e Event) Render() string {
	var sb strings.Builder
	write := func(line string) {
		sb.WriteString(line)
		sb.WriteString("\r\n")
	}
	write("BEGIN:VCALENDAR")
	write("VERSION:2.0")
	write("PRODID:-//schedcore//booking-sync//EN")
	write("BEGIN:VEVENT")
	write("UID:" + e.UID)
	write("DTSTAMP:" + e.Created.UTC().Format(icsTimeLayout))
	write("DTSTART:" + e.Start.UTC().Format(icsTimeLayout))
	write("DTEND:" + e.End.UTC().Format(icsTimeLayout))
	write("SUMMARY:" + escapeText(e.Summary))
	write("END:VEVENT")
	write("END:VCALENDAR")
	return sb.String()
}

// escapeText applies RFC 5545 TEXT escaping to a property value.
func escapeText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		";", `\;`,
		",", `\,`,
		"\n", `\n`,
		"\r", "",
	)
	return r.Replace(s)
}

// ObjectPath returns the collection-relative resource name for a UID.
func ObjectPath(uid string) string {
	return fmt.Sprintf("%s.ics", uid)
}

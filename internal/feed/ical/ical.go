// Package ical converts raw UCPA reservation payloads into serialized
// iCalendar documents.
package ical

import (
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/sportstation/ucpa-feed/internal/feed/ucpa"
)

const (
	eventLocation   = "UCPA Nantes, 9 Bd de Berlin, 44000 Nantes"
	uidDomain       = "ucpa.com"
	defaultActivity = "Activity"
)

// FormatError reports a payload that does not match the upstream contract.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid reservations payload: " + e.Reason
}

// FromReservations builds the ICS document for a reservations payload.
//
// The output is deterministic: the same payload always serializes to the same
// bytes, and event UIDs are composed from upstream identifiers so calendar
// consumers can deduplicate across refreshes. Records are not deduplicated
// here; upstream is trusted to keep qrcode/activityCode/startTimestamp triples
// unique.
//
// A missing start or end timestamp fails the whole conversion rather than
// skipping the record, so a changed upstream contract surfaces immediately.
// Empty customer or session lists are valid and produce an empty calendar.
func FromReservations(payload *ucpa.Payload) (string, error) {
	if payload == nil || !payload.Success {
		return "", &FormatError{Reason: "success flag missing or false"}
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)

	for _, customer := range payload.Data {
		for _, session := range customer.Sessions {
			if session.StartTimestamp == nil || session.EndTimestamp == nil {
				return "", &FormatError{Reason: "session record missing start or end timestamp"}
			}

			start := time.UnixMilli(*session.StartTimestamp).UTC().Truncate(time.Second)
			end := time.UnixMilli(*session.EndTimestamp).UTC().Truncate(time.Second)

			activity := session.Type
			if activity == "" {
				activity = defaultActivity
			}

			uid := fmt.Sprintf("%s-%s-%d@%s", session.QRCode, session.ActivityCode, *session.StartTimestamp, uidDomain)

			event := cal.AddEvent(uid)
			event.SetSummary(activity + " - UCPA")
			// DTSTAMP pinned to the event start instead of time.Now so
			// serialization stays byte-stable between refreshes.
			event.SetDtStampTime(start)
			event.SetStartAt(start)
			event.SetEndAt(end)
			event.SetLocation(eventLocation)
		}
	}

	return cal.Serialize(), nil
}

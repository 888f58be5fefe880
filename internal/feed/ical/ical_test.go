package ical

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sportstation/ucpa-feed/internal/feed/ucpa"
)

func ms(v int64) *int64 { return &v }

func squashPayload() *ucpa.Payload {
	return &ucpa.Payload{
		Success: true,
		Data: []ucpa.Customer{{
			Sessions: []ucpa.Session{{
				Type:           "Squash",
				StartTimestamp: ms(1700000000000),
				EndTimestamp:   ms(1700003600000),
				QRCode:         "Q1",
				ActivityCode:   "SQ",
			}},
		}},
	}
}

func TestFromReservations(t *testing.T) {
	t.Run("converts a session into a calendar event", func(t *testing.T) {
		doc, err := FromReservations(squashPayload())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := strings.Count(doc, "BEGIN:VEVENT"); got != 1 {
			t.Fatalf("expected 1 event, got %d", got)
		}
		for _, want := range []string{
			"SUMMARY:Squash - UCPA",
			"UID:Q1-SQ-1700000000000@ucpa.com",
			"DTSTART:20231114T221320Z",
			"DTEND:20231114T231320Z",
			"UCPA Nantes",
		} {
			if !strings.Contains(doc, want) {
				t.Errorf("document missing %q:\n%s", want, doc)
			}
		}
	})

	t.Run("timestamps are truncated to second precision", func(t *testing.T) {
		payload := squashPayload()
		payload.Data[0].Sessions[0].StartTimestamp = ms(1700000000789)

		doc, err := FromReservations(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(doc, "DTSTART:20231114T221320Z") {
			t.Errorf("sub-second part should be dropped:\n%s", doc)
		}
	})

	t.Run("missing activity type falls back to Activity", func(t *testing.T) {
		payload := squashPayload()
		payload.Data[0].Sessions[0].Type = ""

		doc, err := FromReservations(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(doc, "SUMMARY:Activity - UCPA") {
			t.Errorf("expected default activity title:\n%s", doc)
		}
	})

	t.Run("one event per session across customers", func(t *testing.T) {
		payload := &ucpa.Payload{
			Success: true,
			Data: []ucpa.Customer{
				{Sessions: []ucpa.Session{
					{Type: "Squash", StartTimestamp: ms(1700000000000), EndTimestamp: ms(1700003600000), QRCode: "Q1", ActivityCode: "SQ"},
					{Type: "Climbing", StartTimestamp: ms(1700010000000), EndTimestamp: ms(1700013600000), QRCode: "Q2", ActivityCode: "CL"},
				}},
				{Sessions: nil},
				{Sessions: []ucpa.Session{
					{Type: "Padel", StartTimestamp: ms(1700020000000), EndTimestamp: ms(1700023600000), QRCode: "Q3", ActivityCode: "PA"},
				}},
			},
		}

		doc, err := FromReservations(payload)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.Count(doc, "BEGIN:VEVENT"); got != 3 {
			t.Fatalf("expected 3 events, got %d", got)
		}
	})

	t.Run("serialization is deterministic", func(t *testing.T) {
		first, err := FromReservations(squashPayload())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := FromReservations(squashPayload())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("repeated conversion differs (-first +second):\n%s", diff)
		}
	})

	t.Run("empty data yields an empty calendar", func(t *testing.T) {
		doc, err := FromReservations(&ucpa.Payload{Success: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(doc, "BEGIN:VEVENT") {
			t.Errorf("expected no events:\n%s", doc)
		}
		if !strings.Contains(doc, "BEGIN:VCALENDAR") {
			t.Errorf("expected a calendar container:\n%s", doc)
		}
	})

	t.Run("missing success flag fails", func(t *testing.T) {
		for name, payload := range map[string]*ucpa.Payload{
			"nil payload":   nil,
			"success false": {Success: false, Data: []ucpa.Customer{{}}},
		} {
			_, err := FromReservations(payload)
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Errorf("%s: expected FormatError, got %v", name, err)
			}
		}
	})

	t.Run("missing timestamp fails the whole conversion", func(t *testing.T) {
		payload := squashPayload()
		payload.Data[0].Sessions[0].EndTimestamp = nil

		_, err := FromReservations(payload)
		var formatErr *FormatError
		if !errors.As(err, &formatErr) {
			t.Fatalf("expected FormatError, got %v", err)
		}
	})
}

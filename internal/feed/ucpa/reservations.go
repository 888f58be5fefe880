package ucpa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// fixed request body expected by the reservations endpoint
const reservationsRequestBody = `{"workspace": "alpha_nan", "source": "legacy"}`

// Payload is the reservations API response. Records are taken verbatim from
// upstream; interpretation is left to the calendar transformer.
type Payload struct {
	Success bool       `json:"success"`
	Data    []Customer `json:"data"`
}

type Customer struct {
	Sessions []Session `json:"sessions"`
}

// Session is one scheduled activity. Timestamps are epoch milliseconds, UTC;
// they are pointers so a record missing them can be told apart from midnight
// 1970.
type Session struct {
	Type           string `json:"type"`
	StartTimestamp *int64 `json:"startTimestamp"`
	EndTimestamp   *int64 `json:"endTimestamp"`
	QRCode         string `json:"qrcode"`
	ActivityCode   string `json:"activityCode"`
}

// FetchScheduled retrieves the account's scheduled reservations using the
// session credential from Authenticate. A non-200 response is a *FetchError
// carrying the upstream diagnostics.
func (c *Client) FetchScheduled(ctx context.Context, credential Credential) (*Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ReservationsURL, strings.NewReader(reservationsRequestBody))
	if err != nil {
		return nil, fmt.Errorf("build reservations request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: string(credential)})

	slog.InfoContext(ctx, "Fetching scheduled reservations")

	client := &http.Client{Timeout: c.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch reservations: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read reservations response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Status: resp.StatusCode, Header: resp.Header, Body: truncate(body)}
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse reservations response: %w", err)
	}

	return &payload, nil
}

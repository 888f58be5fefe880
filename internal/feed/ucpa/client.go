// Package ucpa talks to the UCPA sport-station platform: it simulates the
// interactive browser login against the login.ucpa.com OAuth2 provider and
// fetches scheduled reservations with the resulting session cookie.
package ucpa

import "time"

// Fixed upstream wire contract. login.ucpa.com is the OAuth2 provider and
// www.ucpa.com/sport-station/espacepersonnel is the client we impersonate.
const (
	defaultLoginURL        = "https://login.ucpa.com/authorize"
	defaultReservationsURL = "https://www.ucpa.com/sport-station/espacepersonnel/api/reservations/scheduled"

	oauthClientID    = "15qf9khc3hb392j10im7t1179f"
	oauthRedirectURI = "https://www.ucpa.com/sport-station/espacepersonnel/af/authorize"
	oauthScope       = "openid profile email phone"
	stateReturnURL   = "https://www.ucpa.com/sport-station/espacepersonnel/nantes/accueil"
	statePartner     = "alpha"

	sessionCookieName = "oauth2_cookie"
)

// Credential is the short-lived bearer cookie obtained from the login flow.
// It is owned by a single pipeline invocation and never cached.
type Credential string

// Client performs the authenticated fetch against UCPA. The URL fields exist
// so tests can point it at a fake upstream; production code uses New.
type Client struct {
	LoginURL        string
	ReservationsURL string
	Timeout         time.Duration
	Extractor       TokenExtractor
}

func New() *Client {
	return &Client{
		LoginURL:        defaultLoginURL,
		ReservationsURL: defaultReservationsURL,
		Timeout:         20 * time.Second,
		Extractor:       NewRegexpExtractor(),
	}
}

package ucpa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/sportstation/ucpa-feed/internal/config"
)

// Authenticate obtains a session credential for the account by walking the
// upstream login flow once: fetch the login page, extract the CSRF token,
// submit the credentials, and read the oauth2 cookie from the session jar.
// There are no retries; any deviation is an *AuthError.
func (c *Client) Authenticate(ctx context.Context, account config.Account) (Credential, error) {
	authURL, err := c.authorizationURL()
	if err != nil {
		return "", &AuthError{Step: "build authorization url", Err: err}
	}

	// A fresh cookie-persisting session per invocation. The two requests
	// below must share it so the login POST carries the cookies set by the
	// login page; it is discarded afterwards and never pooled.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return "", &AuthError{Step: "create session", Err: err}
	}
	session := &http.Client{Jar: jar, Timeout: c.Timeout}

	slog.InfoContext(ctx, "Fetching upstream login page", "account_id", account.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, authURL, nil)
	if err != nil {
		return "", &AuthError{Step: "fetch login page", Err: err}
	}
	resp, err := session.Do(req)
	if err != nil {
		return "", &AuthError{Step: "fetch login page", Err: err}
	}
	page, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return "", &AuthError{Step: "read login page", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Step: "fetch login page", Status: resp.StatusCode, Header: resp.Header, Body: truncate(page)}
	}

	token, err := c.Extractor.Extract(string(page))
	if err != nil {
		return "", &AuthError{Step: "extract csrf token", Status: resp.StatusCode, Header: resp.Header, Body: truncate(page), Err: err}
	}

	slog.InfoContext(ctx, "Submitting login form", "account_id", account.ID, "csrf_token_length", len(token))

	form := url.Values{
		"_csrf_token":    {token},
		"username":       {account.Username},
		"password":       {account.Password},
		"signin_context": {""},
		"submit":         {"Se connecter"},
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &AuthError{Step: "submit login", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err = session.Do(req)
	if err != nil {
		return "", &AuthError{Step: "submit login", Err: err}
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	// Success is the presence of the oauth2 cookie in the jar, not the POST
	// status. Its absence usually means bad credentials or a changed flow.
	target, err := url.Parse(authURL)
	if err != nil {
		return "", &AuthError{Step: "inspect session cookies", Err: err}
	}
	for _, cookie := range jar.Cookies(target) {
		if cookie.Name == sessionCookieName {
			slog.InfoContext(ctx, "Login succeeded", "account_id", account.ID, "cookie_length", len(cookie.Value))
			return Credential(cookie.Value), nil
		}
	}

	return "", &AuthError{Step: "extract session cookie", Status: resp.StatusCode, Header: resp.Header, Body: truncate(body)}
}

// authorizationURL builds the OAuth2 authorization request the login page
// expects. The state parameter is base64 JSON rendered by upstream; it is not
// verified cryptographically but must match what the page wants.
func (c *Client) authorizationURL() (string, error) {
	state, err := json.Marshal(struct {
		ReturnURL string `json:"returnUrl"`
		Partner   string `json:"partner"`
	}{stateReturnURL, statePartner})
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}

	params := url.Values{}
	params.Set("client_id", oauthClientID)
	params.Set("redirect_uri", oauthRedirectURI)
	params.Set("response_type", "code")
	params.Set("scope", oauthScope)
	params.Set("state", base64.StdEncoding.EncodeToString(state))

	return c.LoginURL + "?" + params.Encode(), nil
}

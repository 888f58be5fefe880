package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/sportstation/ucpa-feed/internal/config"
	"github.com/sportstation/ucpa-feed/internal/feed/ucpa"
)

// MockUpstream for testing without the real UCPA platform
type MockUpstream struct {
	AuthenticateCalls   int
	FetchScheduledCalls int

	AuthenticateFunc   func(ctx context.Context, account config.Account) (ucpa.Credential, error)
	FetchScheduledFunc func(ctx context.Context, credential ucpa.Credential) (*ucpa.Payload, error)
}

func (m *MockUpstream) Authenticate(ctx context.Context, account config.Account) (ucpa.Credential, error) {
	m.AuthenticateCalls++
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, account)
	}
	return "test-credential", nil
}

func (m *MockUpstream) FetchScheduled(ctx context.Context, credential ucpa.Credential) (*ucpa.Payload, error) {
	m.FetchScheduledCalls++
	if m.FetchScheduledFunc != nil {
		return m.FetchScheduledFunc(ctx, credential)
	}
	start, end := int64(1700000000000), int64(1700003600000)
	return &ucpa.Payload{
		Success: true,
		Data: []ucpa.Customer{{
			Sessions: []ucpa.Session{{
				Type:           "Squash",
				StartTimestamp: &start,
				EndTimestamp:   &end,
				QRCode:         "Q1",
				ActivityCode:   "SQ",
			}},
		}},
	}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Port: config.DefaultPort,
		Accounts: []config.Account{
			{ID: 1, Username: "alice", Password: "s3cret", AccessKey: "abc"},
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, upstream Upstream) *mux.Router {
	t.Helper()
	server, err := NewServer(cfg, upstream)
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	router := mux.NewRouter()
	server.Register(router)
	return router
}

func get(router *mux.Router, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Feed(t *testing.T) {
	t.Run("serves the calendar for a known key", func(t *testing.T) {
		upstream := &MockUpstream{}
		router := newTestRouter(t, testConfig(), upstream)

		rec := get(router, "/abc/feed.ics")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Disposition"); got != "inline; filename=feed.ics" {
			t.Errorf("unexpected Content-Disposition %q", got)
		}
		body := rec.Body.String()
		for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Squash - UCPA", "UID:Q1-SQ-1700000000000@ucpa.com"} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %q:\n%s", want, body)
			}
		}
	})

	t.Run("unknown key gets 401 with no upstream calls", func(t *testing.T) {
		upstream := &MockUpstream{}
		router := newTestRouter(t, testConfig(), upstream)

		rec := get(router, "/wrong/feed.ics")

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		if got := strings.TrimSpace(rec.Body.String()); got != "Unauthorized" {
			t.Errorf("expected Unauthorized body, got %q", got)
		}
		if upstream.AuthenticateCalls != 0 || upstream.FetchScheduledCalls != 0 {
			t.Errorf("expected zero upstream I/O, got %d/%d calls", upstream.AuthenticateCalls, upstream.FetchScheduledCalls)
		}
	})

	t.Run("login failure is a generic upstream error", func(t *testing.T) {
		upstream := &MockUpstream{
			AuthenticateFunc: func(ctx context.Context, account config.Account) (ucpa.Credential, error) {
				return "", &ucpa.AuthError{Step: "fetch login page", Status: http.StatusServiceUnavailable, Body: "internal upstream secrets"}
			},
		}
		router := newTestRouter(t, testConfig(), upstream)

		rec := get(router, "/abc/feed.ics")

		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		if strings.Contains(rec.Body.String(), "internal upstream secrets") {
			t.Error("upstream diagnostics leaked to the caller")
		}
		if upstream.FetchScheduledCalls != 0 {
			t.Error("fetch should not run after a failed login")
		}
	})

	t.Run("fetch receives the credential from the login", func(t *testing.T) {
		var seen ucpa.Credential
		upstream := &MockUpstream{
			AuthenticateFunc: func(ctx context.Context, account config.Account) (ucpa.Credential, error) {
				return "cred-for-alice", nil
			},
			FetchScheduledFunc: func(ctx context.Context, credential ucpa.Credential) (*ucpa.Payload, error) {
				seen = credential
				return &ucpa.Payload{Success: true}, nil
			},
		}
		router := newTestRouter(t, testConfig(), upstream)

		if rec := get(router, "/abc/feed.ics"); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if seen != "cred-for-alice" {
			t.Errorf("fetch saw credential %q", seen)
		}
	})

	t.Run("responses are cached per account", func(t *testing.T) {
		upstream := &MockUpstream{}
		router := newTestRouter(t, testConfig(), upstream)

		for i := 0; i < 3; i++ {
			if rec := get(router, "/abc/feed.ics"); rec.Code != http.StatusOK {
				t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
			}
		}
		if upstream.AuthenticateCalls != 1 {
			t.Errorf("expected one upstream login, got %d", upstream.AuthenticateCalls)
		}
	})

	t.Run("malformed payload is a generic upstream error", func(t *testing.T) {
		upstream := &MockUpstream{
			FetchScheduledFunc: func(ctx context.Context, credential ucpa.Credential) (*ucpa.Payload, error) {
				return &ucpa.Payload{Success: false}, nil
			},
		}
		router := newTestRouter(t, testConfig(), upstream)

		if rec := get(router, "/abc/feed.ics"); rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
	})
}

func TestServer_SingleKeyMode(t *testing.T) {
	cfg := testConfig()
	cfg.SingleKey = true

	upstream := &MockUpstream{}
	router := newTestRouter(t, cfg, upstream)

	t.Run("serves the unparameterized route", func(t *testing.T) {
		rec := get(router, "/feed.ics")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "BEGIN:VCALENDAR") {
			t.Errorf("expected an ICS body, got:\n%s", rec.Body.String())
		}
	})

	t.Run("keyed route still works", func(t *testing.T) {
		if rec := get(router, "/abc/feed.ics"); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})
}

func TestServer_Healthcheck(t *testing.T) {
	router := newTestRouter(t, testConfig(), &MockUpstream{})

	rec := get(router, "/healthcheck")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Errorf("expected OK, got %q", rec.Body.String())
	}
}

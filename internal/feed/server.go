// Package feed serves per-account UCPA reservation calendars over HTTP. A
// request resolves its access key to an account, then runs the pipeline:
// authenticate upstream, fetch scheduled reservations, transform them into an
// ICS document, cache the result.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sportstation/ucpa-feed/internal/config"
	"github.com/sportstation/ucpa-feed/internal/feed/ical"
	"github.com/sportstation/ucpa-feed/internal/feed/ucpa"
)

// Upstream is the UCPA client surface the pipeline needs.
type Upstream interface {
	Authenticate(ctx context.Context, account config.Account) (ucpa.Credential, error)
	FetchScheduled(ctx context.Context, credential ucpa.Credential) (*ucpa.Payload, error)
}

// Server holds the request-facing side of the feed service.
type Server struct {
	resolver *Resolver
	cache    *Cache
	upstream Upstream

	// single is set in single-key mode and serves the unparameterized
	// /feed.ics route for the lone configured account.
	single *config.Account

	cacheRequests    metric.Int64Counter
	pipelineFailures metric.Int64Counter
}

func NewServer(cfg *config.Config, upstream Upstream) (*Server, error) {
	meter := otel.Meter("ucpa-feed")

	cacheRequests, err := meter.Int64Counter(
		"feed.cache.requests",
		metric.WithDescription("Feed cache lookups, partitioned by hit"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache counter: %w", err)
	}

	pipelineFailures, err := meter.Int64Counter(
		"feed.pipeline.failures",
		metric.WithDescription("Feed pipeline failures, partitioned by stage"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create failure counter: %w", err)
	}

	s := &Server{
		resolver:         NewResolver(cfg.Accounts),
		cache:            NewCache(DefaultTTL),
		upstream:         upstream,
		cacheRequests:    cacheRequests,
		pipelineFailures: pipelineFailures,
	}
	if cfg.SingleKey {
		acc := cfg.Accounts[0]
		s.single = &acc
	}
	return s, nil
}

// Register mounts the feed routes on the router.
func (s *Server) Register(r *mux.Router) {
	r.HandleFunc("/healthcheck", s.Healthcheck).Methods(http.MethodGet)
	if s.single != nil {
		r.HandleFunc("/feed.ics", s.SingleAccountFeed).Methods(http.MethodGet)
	}
	r.HandleFunc("/{key}/feed.ics", s.Feed).Methods(http.MethodGet)
}

// Healthcheck answers kubernetes probes.
func (s *Server) Healthcheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "OK")
}

// Feed serves /{key}/feed.ics. An unknown key is rejected before any
// upstream I/O happens.
func (s *Server) Feed(w http.ResponseWriter, r *http.Request) {
	account, err := s.resolver.Resolve(mux.Vars(r)["key"])
	if err != nil {
		slog.WarnContext(r.Context(), "Rejected feed request with unknown access key")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	s.serve(w, r, account)
}

// SingleAccountFeed serves the unparameterized /feed.ics route in single-key
// mode.
func (s *Server) SingleAccountFeed(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, *s.single)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, account config.Account) {
	ctx := r.Context()

	body, hit, err := s.cache.GetOrCompute(account.ID, func() ([]byte, error) {
		return s.buildFeed(ctx, account)
	})
	s.cacheRequests.Add(ctx, 1, metric.WithAttributes(attribute.Bool("hit", hit)))

	if err != nil {
		s.logFailure(ctx, account, err)
		s.pipelineFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", failureStage(err))))
		// Callers get a generic failure; diagnostics stay in the logs.
		http.Error(w, "Upstream error", http.StatusBadGateway)
		return
	}

	// text/plain instead of text/calendar on purpose: consumers accept it
	// and it is far easier to inspect in a browser.
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("Content-Disposition", "inline; filename=feed.ics")
	_, _ = w.Write(body)
}

// buildFeed runs one full pipeline invocation. The session credential lives
// only inside this call and is valid for exactly one fetch.
func (s *Server) buildFeed(ctx context.Context, account config.Account) ([]byte, error) {
	credential, err := s.upstream.Authenticate(ctx, account)
	if err != nil {
		return nil, err
	}

	payload, err := s.upstream.FetchScheduled(ctx, credential)
	if err != nil {
		return nil, err
	}

	doc, err := ical.FromReservations(payload)
	if err != nil {
		return nil, err
	}
	return []byte(doc), nil
}

func (s *Server) logFailure(ctx context.Context, account config.Account, err error) {
	attrs := []any{"account_id", account.ID, "error", err}

	var authErr *ucpa.AuthError
	var fetchErr *ucpa.FetchError
	switch {
	case errors.As(err, &authErr) && authErr.Status != 0:
		attrs = append(attrs, "upstream_status", authErr.Status, "upstream_body", authErr.Body)
	case errors.As(err, &fetchErr):
		attrs = append(attrs, "upstream_status", fetchErr.Status, "upstream_body", fetchErr.Body)
	}

	slog.ErrorContext(ctx, "Feed pipeline failed", attrs...)
}

func failureStage(err error) string {
	var authErr *ucpa.AuthError
	var fetchErr *ucpa.FetchError
	var formatErr *ical.FormatError
	switch {
	case errors.As(err, &authErr):
		return "authenticate"
	case errors.As(err, &fetchErr):
		return "fetch"
	case errors.As(err, &formatErr):
		return "transform"
	default:
		return "other"
	}
}

package ucpa

import (
	"fmt"
	"net/http"
)

// maximum upstream body captured in diagnostics
const diagBodyLimit = 2048

// AuthError reports a failure of the simulated login flow. It carries the
// upstream response for operator logs; account secrets are never included.
type AuthError struct {
	Step   string
	Status int
	Header http.Header
	Body   string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authenticate: %s: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("authenticate: %s: upstream status %d", e.Step, e.Status)
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a non-200 response from the reservations API.
type FetchError struct {
	Status int
	Header http.Header
	Body   string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch reservations: upstream status %d", e.Status)
}

func truncate(body []byte) string {
	if len(body) > diagBodyLimit {
		return string(body[:diagBodyLimit]) + "...(truncated)"
	}
	return string(body)
}

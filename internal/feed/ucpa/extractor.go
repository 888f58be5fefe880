package ucpa

import (
	"errors"
	"regexp"
)

// ErrTokenNotFound signals that the login page no longer carries the hidden
// CSRF field, typically because the upstream markup changed or the login was
// blocked.
var ErrTokenNotFound = errors.New("_csrf_token not found in login page")

// TokenExtractor locates the CSRF token in the upstream login page HTML.
// The extraction strategy is pluggable so the authentication flow does not
// depend on how the token is dug out of the markup.
type TokenExtractor interface {
	Extract(html string) (string, error)
}

// RegexpExtractor matches the hidden form field directly in the raw HTML.
type RegexpExtractor struct {
	pattern *regexp.Regexp
}

func NewRegexpExtractor() *RegexpExtractor {
	return &RegexpExtractor{
		pattern: regexp.MustCompile(`name="_csrf_token" value="(.*?)"`),
	}
}

func (e *RegexpExtractor) Extract(html string) (string, error) {
	m := e.pattern.FindStringSubmatch(html)
	if m == nil {
		return "", ErrTokenNotFound
	}
	return m[1], nil
}

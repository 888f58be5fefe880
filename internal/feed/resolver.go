package feed

import (
	"crypto/subtle"
	"errors"

	"github.com/sportstation/ucpa-feed/internal/config"
)

// ErrUnauthorized is returned for access keys that match no configured
// account. It is the only pipeline error surfaced to callers.
var ErrUnauthorized = errors.New("unknown access key")

// Resolver maps caller-supplied access keys to configured accounts. Keys are
// attacker-controlled input and are only ever compared, never used to index
// anything.
type Resolver struct {
	accounts []config.Account
}

func NewResolver(accounts []config.Account) *Resolver {
	return &Resolver{accounts: accounts}
}

// Resolve finds the account whose access key exactly equals the input.
// Every account is scanned with a constant-time compare regardless of where a
// match occurs. If configuration erroneously holds duplicate keys the lowest
// account id wins (the list is sorted by id).
func (r *Resolver) Resolve(accessKey string) (config.Account, error) {
	var (
		match config.Account
		found bool
	)
	for _, acc := range r.accounts {
		if subtle.ConstantTimeCompare([]byte(acc.AccessKey), []byte(accessKey)) == 1 && !found {
			match, found = acc, true
		}
	}
	if !found {
		return config.Account{}, ErrUnauthorized
	}
	return match, nil
}

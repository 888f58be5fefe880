// Package config builds the validated account configuration from the process
// environment. Accounts are loaded once at startup and immutable afterwards;
// nothing else in the service reads raw environment variables.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
)

const DefaultPort = 8080

// Account is one operator-configured UCPA identity.
type Account struct {
	ID        int
	Username  string
	Password  string // secret, never logged
	AccessKey string // secret, caller-facing
}

// Config is the full process configuration.
type Config struct {
	Port     int
	Accounts []Account // sorted by ID

	// SingleKey is set when the operator configured one shared URL_KEY
	// instead of per-account URL_KEY_<id> values. In that mode the feed is
	// additionally served unparameterized at /feed.ics for the sole account.
	SingleKey bool
}

var usernameKey = regexp.MustCompile(`^username_(\d+)$`)

// Load reads USERNAME_<id>, PASSWORD_<id>, URL_KEY_<id> (or a single URL_KEY)
// and PORT from the environment. Any account missing a required secret or key
// is a configuration error; so is an empty account set. Missing key
// configuration is never treated as "always authorized".
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(key), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{Port: DefaultPort}
	if v := k.String("port"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			return nil, fmt.Errorf("invalid PORT value %q", v)
		}
		cfg.Port = port
	}

	perAccountKeys := false
	for _, key := range k.Keys() {
		m := usernameKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}

		id, err := strconv.Atoi(m[1])
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid account id in %s", strings.ToUpper(key))
		}

		acc := Account{
			ID:        id,
			Username:  k.String(key),
			Password:  k.String(fmt.Sprintf("password_%d", id)),
			AccessKey: k.String(fmt.Sprintf("url_key_%d", id)),
		}
		if acc.Username == "" {
			// Set-but-empty is indistinguishable from unset for our purposes.
			continue
		}
		if acc.Password == "" {
			return nil, fmt.Errorf("missing PASSWORD_%d for account %d", id, id)
		}
		if acc.AccessKey != "" {
			perAccountKeys = true
		}

		cfg.Accounts = append(cfg.Accounts, acc)
	}

	if len(cfg.Accounts) == 0 {
		return nil, errors.New("no accounts configured, set USERNAME_<id> and PASSWORD_<id>")
	}

	sort.Slice(cfg.Accounts, func(i, j int) bool { return cfg.Accounts[i].ID < cfg.Accounts[j].ID })

	if perAccountKeys {
		for _, acc := range cfg.Accounts {
			if acc.AccessKey == "" {
				return nil, fmt.Errorf("missing URL_KEY_%d for account %d", acc.ID, acc.ID)
			}
		}
		return cfg, nil
	}

	// Single-key mode: one shared URL_KEY covering exactly one account.
	shared := k.String("url_key")
	if shared == "" {
		return nil, errors.New("no access keys configured, set URL_KEY_<id> per account or a single URL_KEY")
	}
	if len(cfg.Accounts) != 1 {
		return nil, fmt.Errorf("single URL_KEY requires exactly one account, found %d", len(cfg.Accounts))
	}
	cfg.Accounts[0].AccessKey = shared
	cfg.SingleKey = true

	return cfg, nil
}

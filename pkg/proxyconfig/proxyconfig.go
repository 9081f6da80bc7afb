// Package proxyconfig holds the optional default upstream URL used when
// a request matches no route. It is a single-cell store: dispatch reads
// it on every unmatched request, the admin API mutates it rarely.
package proxyconfig

import (
	"net/url"
	"sync/atomic"

	"github.com/getmockd/mockproxy/pkg/apierr"
)

// Config is the single-cell default proxy URL store. The zero value is
// usable and means "no default proxy configured". Stale reads are
// acceptable: a dispatch racing a Clear may still use the old URL for
// one request.
type Config struct {
	target atomic.Pointer[url.URL]
}

// New creates an empty Config.
func New() *Config {
	return &Config{}
}

// Set validates and installs the default proxy URL. The URL must be
// absolute (scheme and host present).
func (c *Config) Set(raw string) *apierr.Error {
	u, err := parseAbsolute(raw)
	if err != nil {
		return err
	}
	c.target.Store(u)
	return nil
}

// Clear removes the default proxy URL.
func (c *Config) Clear() {
	c.target.Store(nil)
}

// Snapshot returns the current URL and whether one is set. The returned
// string is stable even if a concurrent Set/Clear lands afterwards.
func (c *Config) Snapshot() (string, bool) {
	u := c.target.Load()
	if u == nil {
		return "", false
	}
	return u.String(), true
}

// Enabled reports whether a default proxy URL is currently set.
func (c *Config) Enabled() bool {
	return c.target.Load() != nil
}

// parseAbsolute parses raw as an absolute URL, rejecting anything
// without a scheme and host.
func parseAbsolute(raw string) (*url.URL, *apierr.Error) {
	if raw == "" {
		return nil, apierr.Invalid("proxy URL must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apierr.Invalid("invalid proxy URL: %v", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, apierr.Invalid("proxy URL must be absolute: %q", raw)
	}
	return u, nil
}

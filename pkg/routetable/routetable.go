// Package routetable provides the concurrent, read-mostly in-memory
// mapping from (method, path) to Route that backs the mock server's
// request dispatch.
package routetable

import (
	"net/url"
	"strings"
	"sync"

	"github.com/getmockd/mockproxy/pkg/apierr"
)

// AdminPrefix is the reserved path prefix that can never be registered
// as a Route and is never proxied.
const AdminPrefix = "/__mock"

// validMethods enumerates the HTTP methods a Route may be registered under.
var validMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// Key identifies a Route by its (method, path) pair. Lookup is
// case-sensitive on both fields.
type Key struct {
	Method string
	Path   string
}

// Route is a canned-response or proxy-forward entry registered under a
// (method, path) identity.
type Route struct {
	Method   string            `json:"method"`
	Path     string            `json:"path"`
	Response any               `json:"response"`
	Status   int               `json:"status"`
	Headers  map[string]string `json:"headers,omitempty"`
	ProxyURL string            `json:"proxy_url,omitempty"`
}

// Key returns the Route's identity.
func (r *Route) Key() Key {
	return Key{Method: r.Method, Path: r.Path}
}

// Validate checks the Route's structural invariants: method membership,
// path shape, and proxy_url well-formedness. It does not check for
// collisions against the table; that is Table.Insert/Update's job.
func (r *Route) Validate() *apierr.Error {
	if !validMethods[r.Method] {
		return apierr.Invalid("invalid method: %q", r.Method)
	}
	if !strings.HasPrefix(r.Path, "/") {
		return apierr.Invalid("path must start with /")
	}
	if strings.HasPrefix(r.Path, AdminPrefix) {
		return apierr.Invalid("path may not use the reserved %s prefix", AdminPrefix)
	}
	if r.ProxyURL != "" {
		u, err := url.ParseRequestURI(r.ProxyURL)
		if err != nil {
			return apierr.Invalid("proxy_url is not a valid absolute URL: %v", err)
		}
		if !u.IsAbs() || u.Host == "" {
			return apierr.Invalid("proxy_url is not a valid absolute URL: %q", r.ProxyURL)
		}
	}
	if r.Status == 0 {
		r.Status = 200
	}
	return nil
}

// clone returns a deep-enough copy of r that a caller who mutates the
// result cannot affect table state. Headers is the only nested mutable
// field.
func (r *Route) clone() *Route {
	if r == nil {
		return nil
	}
	c := *r
	if r.Headers != nil {
		c.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			c.Headers[k] = v
		}
	}
	return &c
}

// Table is the concurrent route store. Reads (Lookup, List) take a
// shared lock for the duration of a single lookup+clone; writes
// (Insert, Update, Remove, BulkReplace) take an exclusive lock.
type Table struct {
	mu     sync.RWMutex
	routes map[Key]*Route
}

// New creates an empty Table.
func New() *Table {
	return &Table{routes: make(map[Key]*Route)}
}

// Lookup returns a clone of the Route registered under (method, path),
// or nil if none is registered.
func (t *Table) Lookup(method, path string) *Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.routes[Key{Method: method, Path: path}].clone()
}

// Insert registers a new Route. Fails with Conflict if the identity is
// already occupied, or Invalid if the Route fails validation.
func (t *Table) Insert(r *Route) *apierr.Error {
	if err := r.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	key := r.Key()
	if _, exists := t.routes[key]; exists {
		return apierr.Conflict("Endpoint already exists")
	}
	t.routes[key] = r.clone()
	return nil
}

// Update replaces the Route registered under (method, path) with
// newRoute. If newRoute's identity differs from (method, path), the old
// identity is removed and the new one installed atomically, failing with
// Conflict if the new identity is already occupied by a different Route.
// Fails with NotFound if (method, path) is not registered.
func (t *Table) Update(method, path string, newRoute *Route) *apierr.Error {
	if err := newRoute.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	oldKey := Key{Method: method, Path: path}
	if _, exists := t.routes[oldKey]; !exists {
		return apierr.NotFound("Endpoint not found")
	}

	newKey := newRoute.Key()
	if newKey != oldKey {
		if _, occupied := t.routes[newKey]; occupied {
			return apierr.Conflict("Endpoint already exists")
		}
		delete(t.routes, oldKey)
	}
	t.routes[newKey] = newRoute.clone()
	return nil
}

// Remove deletes the Route registered under (method, path), reporting
// whether one was present.
func (t *Table) Remove(method, path string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := Key{Method: method, Path: path}
	if _, exists := t.routes[key]; !exists {
		return false
	}
	delete(t.routes, key)
	return true
}

// List returns a snapshot of all registered Routes in unspecified
// order. Callers needing a deterministic listing sort the snapshot.
func (t *Table) List() []*Route {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Route, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r.clone())
	}
	return out
}

// BulkReplace atomically drops the current route set and installs routes
// in its place. Used by OpenAPI import. Routes failing validation are
// skipped rather than aborting the whole replace; the OpenAPI importer
// does not validate paths, so such routes are dropped here silently.
func (t *Table) BulkReplace(routes []*Route) {
	next := make(map[Key]*Route, len(routes))
	for _, r := range routes {
		if err := r.Validate(); err != nil {
			continue
		}
		next[r.Key()] = r.clone()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes = next
}

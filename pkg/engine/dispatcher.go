// Request dispatch for every non-admin path.

package engine

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/getmockd/mockproxy/pkg/apierr"
	"github.com/getmockd/mockproxy/pkg/forwarder"
	"github.com/getmockd/mockproxy/pkg/httputil"
	"github.com/getmockd/mockproxy/pkg/logging"
	"github.com/getmockd/mockproxy/pkg/proxyconfig"
	"github.com/getmockd/mockproxy/pkg/requestlog"
	"github.com/getmockd/mockproxy/pkg/routetable"
)

// MaxRequestBodySize is the maximum allowed request body size (10MB).
// This prevents denial-of-service via oversized request bodies.
const MaxRequestBodySize = 10 << 20

// Dispatcher classifies every incoming non-admin request as mock,
// proxy-via-route, proxy-via-default, or not-found, executes that
// classification, and records the outcome in the request log.
type Dispatcher struct {
	table    *routetable.Table
	proxyCfg *proxyconfig.Config
	logStore *requestlog.Store
	fwd      *forwarder.Forwarder
	log      *slog.Logger
}

// NewDispatcher creates a Dispatcher over the given shared state.
func NewDispatcher(table *routetable.Table, proxyCfg *proxyconfig.Config, logStore *requestlog.Store, fwd *forwarder.Forwarder) *Dispatcher {
	return &Dispatcher{
		table:    table,
		proxyCfg: proxyCfg,
		logStore: logStore,
		fwd:      fwd,
		log:      logging.Nop(),
	}
}

// SetLogger sets the operational logger.
func (d *Dispatcher) SetLogger(log *slog.Logger) {
	if log != nil {
		d.log = log
	} else {
		d.log = logging.Nop()
	}
}

// outcome is a fully computed response, staged so the log entry can be
// appended before any bytes are flushed to the client.
type outcome struct {
	status  int
	headers http.Header
	body    []byte
}

// ServeHTTP implements http.Handler.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Admin paths are routed to the admin API by the server mux and never
	// dispatched. Guard anyway so a standalone Dispatcher cannot be talked
	// into proxying or mocking the reserved prefix.
	if strings.HasPrefix(r.URL.Path, routetable.AdminPrefix) {
		httputil.WriteAPIError(w, apierr.NotFound("Endpoint not found"))
		return
	}

	body, tooLarge := d.readBody(w, r)
	if tooLarge {
		return
	}

	entry := &requestlog.Entry{
		Timestamp:      time.Now().UTC(),
		Method:         r.Method,
		Path:           r.URL.Path,
		Query:          r.URL.RawQuery,
		RequestHeaders: r.Header.Clone(),
	}
	if parsed, ok := parseJSONBody(body, r.Header.Get("Content-Type")); ok {
		entry.RequestBody = parsed
	}

	var out outcome
	route := d.table.Lookup(r.Method, r.URL.Path)
	switch {
	case route != nil && route.ProxyURL != "":
		entry.MatchedEndpoint = route.Method + " " + route.Path
		out = d.proxyOutcome(r, body, route.ProxyURL, entry)
	case route != nil:
		entry.MatchedEndpoint = route.Method + " " + route.Path
		out = d.mockOutcome(route, entry)
	default:
		if base, ok := d.proxyCfg.Snapshot(); ok {
			out = d.proxyOutcome(r, body, base, entry)
		} else {
			out = d.notFoundOutcome(r.URL.Path, entry)
		}
	}

	entry.Status = out.status
	entry.ResponseHeaders = out.headers.Clone()
	d.logStore.Append(entry)

	for key, values := range out.headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(out.status)
	if len(out.body) > 0 {
		_, _ = w.Write(out.body)
	}
}

// readBody buffers the request body under the size cap. On overflow it
// writes the 413 response, logs the attempt, and reports tooLarge.
func (d *Dispatcher) readBody(w http.ResponseWriter, r *http.Request) (body []byte, tooLarge bool) {
	if r.Body == nil {
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			d.log.Warn("request body too large", "path", r.URL.Path, "limit", MaxRequestBodySize)
			entry := &requestlog.Entry{
				Timestamp:      time.Now().UTC(),
				Method:         r.Method,
				Path:           r.URL.Path,
				Query:          r.URL.RawQuery,
				RequestHeaders: r.Header.Clone(),
				Status:         http.StatusRequestEntityTooLarge,
				ResponseBody:   map[string]any{"error": "Request body exceeds maximum allowed size"},
			}
			d.logStore.Append(entry)
			httputil.WriteJSON(w, http.StatusRequestEntityTooLarge,
				map[string]string{"error": "Request body exceeds maximum allowed size"})
			return nil, true
		}
		d.log.Warn("failed to read request body", "path", r.URL.Path, "error", err)
	}
	return body, false
}

// mockOutcome synthesizes the canned response for a matched route.
// Content-Type defaults to application/json unless the route's headers
// already set one, compared case-insensitively.
func (d *Dispatcher) mockOutcome(route *routetable.Route, entry *requestlog.Entry) outcome {
	headers := http.Header{}
	for name, value := range route.Headers {
		headers.Set(name, value)
	}
	if headers.Get("Content-Type") == "" {
		headers.Set("Content-Type", "application/json")
	}

	body, err := json.Marshal(route.Response)
	if err != nil {
		// Response is an already-parsed JSON value, so this cannot happen
		// in normal operation.
		d.log.Error("failed to serialize canned response", "endpoint", entry.MatchedEndpoint, "error", err)
		internal := apierr.Internal("Internal server error")
		entry.ResponseBody = httputil.ErrorBody(internal)
		return outcome{
			status:  internal.Status(),
			headers: http.Header{"Content-Type": {"application/json"}},
			body:    mustMarshal(entry.ResponseBody),
		}
	}

	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	entry.ResponseBody = route.Response
	return outcome{status: status, headers: headers, body: body}
}

// proxyOutcome forwards the request to base and relays the upstream
// response verbatim. Failures become the BadGateway wire shape.
func (d *Dispatcher) proxyOutcome(r *http.Request, body []byte, base string, entry *requestlog.Entry) outcome {
	entry.ProxiedTo = forwarder.BuildTargetURL(base, r.URL.Path, r.URL.RawQuery)

	res, ferr := d.fwd.Forward(r, body, base)
	if ferr != nil {
		entry.ResponseBody = httputil.ErrorBody(ferr)
		return outcome{
			status:  ferr.Status(),
			headers: http.Header{"Content-Type": {"application/json"}},
			body:    mustMarshal(entry.ResponseBody),
		}
	}

	entry.ResponseBody = decodeUpstreamBody(res.Body, res.Headers.Get("Content-Type"))
	return outcome{status: res.StatusCode, headers: res.Headers.Clone(), body: res.Body}
}

// notFoundOutcome is the terminal state when nothing matched and no
// default proxy is configured.
func (d *Dispatcher) notFoundOutcome(path string, entry *requestlog.Entry) outcome {
	nf := apierr.NotFoundAtPath(path)
	entry.ResponseBody = httputil.ErrorBody(nf)
	return outcome{
		status:  nf.Status(),
		headers: http.Header{"Content-Type": {"application/json"}},
		body:    mustMarshal(entry.ResponseBody),
	}
}

// parseJSONBody parses body as JSON when the content type claims JSON
// and the body is non-empty.
func parseJSONBody(body []byte, contentType string) (any, bool) {
	if len(body) == 0 || !isJSONContentType(contentType) {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, false
	}
	return v, true
}

// decodeUpstreamBody records a proxied response body: parsed as JSON
// when the upstream claims JSON, the raw string otherwise.
func decodeUpstreamBody(body []byte, contentType string) any {
	if len(body) == 0 {
		return nil
	}
	if isJSONContentType(contentType) {
		var v any
		if err := json.Unmarshal(body, &v); err == nil {
			return v
		}
	}
	return string(body)
}

// isJSONContentType reports whether ct names a JSON payload.
func isJSONContentType(ct string) bool {
	return strings.Contains(strings.ToLower(ct), "json")
}

// mustMarshal serializes values the dispatcher built itself.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"error":"Internal server error"}`)
	}
	return data
}

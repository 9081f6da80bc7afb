// Package forwarder relays incoming requests to an upstream base URL
// and returns the upstream response unchanged. It owns the single shared
// outbound HTTP client used by every proxied dispatch.
package forwarder

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/getmockd/mockproxy/pkg/apierr"
	"github.com/getmockd/mockproxy/pkg/logging"
)

// DefaultTimeout bounds each upstream request end-to-end.
const DefaultTimeout = 30 * time.Second

// hopByHopHeaders are never forwarded upstream. Compared case-insensitively.
// Host lives on http.Request.Host rather than in the header map, but is
// listed anyway in case a caller smuggles it in.
var hopByHopHeaders = []string{
	"Host",
	"Connection",
	"Transfer-Encoding",
}

// Result is a fully buffered upstream response plus the URL it came from.
type Result struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Target     string
}

// Forwarder executes upstream requests on behalf of the dispatcher.
type Forwarder struct {
	client *http.Client
	log    *slog.Logger
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(f *Forwarder) {
		if log != nil {
			f.log = log
		}
	}
}

// WithClient replaces the outbound HTTP client. Used by tests to inject
// short timeouts.
func WithClient(client *http.Client) Option {
	return func(f *Forwarder) {
		if client != nil {
			f.client = client
		}
	}
}

// New creates a Forwarder with a pooled transport and the default
// per-request timeout. The client is shared across all requests.
func New(opts ...Option) *Forwarder {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	f := &Forwarder{
		client: &http.Client{
			Transport: transport,
			Timeout:   DefaultTimeout,
		},
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Forward relays r to baseURL and returns the buffered upstream response.
// The request body must already be buffered by the caller; the incoming
// request's context is propagated so a client disconnect cancels the
// upstream call. Any failure maps to BadGateway.
func (f *Forwarder) Forward(r *http.Request, body []byte, baseURL string) (*Result, *apierr.Error) {
	target := BuildTargetURL(baseURL, r.URL.Path, r.URL.RawQuery)

	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, target, bytes.NewReader(body))
	if err != nil {
		f.log.Warn("failed to build upstream request", "target", target, "error", err)
		return nil, apierr.BadGateway(err.Error())
	}
	copyForwardHeaders(outReq.Header, r.Header)

	resp, err := f.client.Do(outReq)
	if err != nil {
		f.log.Warn("upstream request failed", "target", target, "error", err)
		return nil, apierr.BadGateway(err.Error())
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		f.log.Warn("failed to read upstream response", "target", target, "error", err)
		return nil, apierr.BadGateway(err.Error())
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
		Target:     target,
	}, nil
}

// BuildTargetURL concatenates the base URL (trailing slash trimmed), the
// request path, and the raw query string verbatim.
func BuildTargetURL(baseURL, path, rawQuery string) string {
	target := strings.TrimRight(baseURL, "/") + path
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	return target
}

// copyForwardHeaders copies every request header except the hop-by-hop
// set. Header values that would be invalid on the wire are dropped
// rather than relayed.
func copyForwardHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopByHop(key) {
			continue
		}
		for _, value := range values {
			if !httpguts.ValidHeaderFieldValue(value) {
				continue
			}
			dst.Add(key, value)
		}
	}
}

// isHopByHop reports whether name is in the hop-by-hop set, ignoring case.
func isHopByHop(name string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(name, h) {
			return true
		}
	}
	return false
}

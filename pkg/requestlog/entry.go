// Package requestlog provides the bounded in-memory history of
// request/response pairs captured by the dispatcher. It is user-facing
// state queried over the admin API, not an operational log sink.
package requestlog

import "time"

// MaxEntries is the default capacity of the rolling log. Once full, the
// oldest entry is evicted for each new append.
const MaxEntries = 1000

// Entry captures one dispatched request and the response it produced.
// Request and response headers are kept separate.
type Entry struct {
	// ID uniquely identifies the entry.
	ID string `json:"id"`

	// Timestamp is when the request was received, in UTC.
	Timestamp time.Time `json:"timestamp"`

	// Method is the HTTP method of the incoming request.
	Method string `json:"method"`

	// Path is the request URL path.
	Path string `json:"path"`

	// Query is the raw query string, without the leading "?".
	Query string `json:"query,omitempty"`

	// RequestHeaders are the incoming request headers (multi-value).
	RequestHeaders map[string][]string `json:"request_headers,omitempty"`

	// RequestBody is the request body parsed as JSON. Omitted when the
	// body is empty or the request did not claim a JSON content type.
	RequestBody any `json:"request_body,omitempty"`

	// Status is the HTTP status returned to the client.
	Status int `json:"status"`

	// ResponseHeaders are the headers returned to the client (multi-value).
	ResponseHeaders map[string][]string `json:"response_headers,omitempty"`

	// ResponseBody is the body returned to the client. For mock responses
	// this is the canned JSON value; for proxied responses it is the
	// upstream body parsed as JSON when the upstream claimed JSON, or a
	// raw string otherwise.
	ResponseBody any `json:"response_body,omitempty"`

	// MatchedEndpoint is "METHOD /path" when a route matched, empty otherwise.
	MatchedEndpoint string `json:"matched_endpoint,omitempty"`

	// ProxiedTo is the absolute upstream URL actually contacted, set only
	// when the request was forwarded.
	ProxiedTo string `json:"proxied_to,omitempty"`
}

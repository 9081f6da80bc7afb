package engine

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/mockproxy/pkg/forwarder"
	"github.com/getmockd/mockproxy/pkg/proxyconfig"
	"github.com/getmockd/mockproxy/pkg/requestlog"
	"github.com/getmockd/mockproxy/pkg/routetable"
)

// newTestDispatcher builds a Dispatcher over fresh state and returns the
// pieces the tests poke at.
func newTestDispatcher(t *testing.T) (*Dispatcher, *routetable.Table, *proxyconfig.Config, *requestlog.Store) {
	t.Helper()
	table := routetable.New()
	proxyCfg := proxyconfig.New()
	logStore := requestlog.NewStore(requestlog.MaxEntries)
	d := NewDispatcher(table, proxyCfg, logStore, forwarder.New())
	return d, table, proxyCfg, logStore
}

func doDispatch(d *Dispatcher, method, target string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)
	return rec
}

func TestDispatchMock(t *testing.T) {
	d, table, _, logs := newTestDispatcher(t)
	require.Nil(t, table.Insert(&routetable.Route{
		Method: "GET", Path: "/api/u",
		Response: map[string]any{"ok": true},
		Status:   200,
	}))

	rec := doDispatch(d, "GET", "http://mock/api/u", nil)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	entries := logs.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "GET /api/u", entries[0].MatchedEndpoint)
	assert.Equal(t, 200, entries[0].Status)
	assert.Empty(t, entries[0].ProxiedTo)
}

func TestDispatchMockCustomHeadersAndStatus(t *testing.T) {
	d, table, _, _ := newTestDispatcher(t)
	require.Nil(t, table.Insert(&routetable.Route{
		Method: "POST", Path: "/api/create",
		Response: map[string]any{"id": 1},
		Status:   201,
		Headers:  map[string]string{"X-Custom": "yes"},
	}))

	rec := doDispatch(d, "POST", "http://mock/api/create", strings.NewReader(`{"name":"a"}`))

	assert.Equal(t, 201, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-Custom"))
	// Content-Type synthesized since the route did not set one.
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestDispatchMockRespectsExplicitContentType(t *testing.T) {
	d, table, _, _ := newTestDispatcher(t)
	require.Nil(t, table.Insert(&routetable.Route{
		Method: "GET", Path: "/api/text",
		Response: "hello",
		Status:   200,
		Headers:  map[string]string{"content-type": "text/plain"},
	}))

	rec := doDispatch(d, "GET", "http://mock/api/text", nil)

	// Lowercase key in the route still counts as setting Content-Type.
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
}

func TestDispatchMockNullResponse(t *testing.T) {
	d, table, _, _ := newTestDispatcher(t)
	require.Nil(t, table.Insert(&routetable.Route{Method: "GET", Path: "/api/null", Response: nil, Status: 200}))

	rec := doDispatch(d, "GET", "http://mock/api/null", nil)
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))
}

func TestDispatchNotFound(t *testing.T) {
	d, _, _, logs := newTestDispatcher(t)

	rec := doDispatch(d, "GET", "http://mock/api/missing", nil)

	assert.Equal(t, 404, rec.Code)
	assert.JSONEq(t, `{"error":"Not found","path":"/api/missing"}`, rec.Body.String())

	entries := logs.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, 404, entries[0].Status)
	assert.Empty(t, entries[0].MatchedEndpoint)
}

func TestDispatchMethodMismatchIsNotFound(t *testing.T) {
	d, table, _, _ := newTestDispatcher(t)
	require.Nil(t, table.Insert(&routetable.Route{Method: "GET", Path: "/api/u", Response: map[string]any{}, Status: 200}))

	rec := doDispatch(d, "POST", "http://mock/api/u", nil)
	assert.Equal(t, 404, rec.Code)
}

func TestDispatchDefaultProxyFallback(t *testing.T) {
	var gotURI string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"from":"upstream"}`))
	}))
	defer upstream.Close()

	d, _, proxyCfg, logs := newTestDispatcher(t)
	require.Nil(t, proxyCfg.Set(upstream.URL))

	rec := doDispatch(d, "GET", "http://mock/unmocked?x=1", nil)

	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"from":"upstream"}`, rec.Body.String())
	assert.Equal(t, "/unmocked?x=1", gotURI)

	entries := logs.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, upstream.URL+"/unmocked?x=1", entries[0].ProxiedTo)
	assert.Empty(t, entries[0].MatchedEndpoint)
	assert.Equal(t, map[string]any{"from": "upstream"}, entries[0].ResponseBody)
}

func TestDispatchRouteProxyTakesPrecedenceOverMockAndDefault(t *testing.T) {
	upstreamA := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from-a"))
	}))
	defer upstreamA.Close()
	upstreamB := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from-b"))
	}))
	defer upstreamB.Close()

	d, table, proxyCfg, logs := newTestDispatcher(t)
	require.Nil(t, proxyCfg.Set(upstreamB.URL))
	require.Nil(t, table.Insert(&routetable.Route{
		Method: "GET", Path: "/api/u",
		Response: map[string]any{},
		Status:   200,
		ProxyURL: upstreamA.URL,
	}))

	rec := doDispatch(d, "GET", "http://mock/api/u", nil)

	// A route with both response and proxy_url proxies, and via its own URL.
	assert.Equal(t, "from-a", rec.Body.String())

	entries := logs.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "GET /api/u", entries[0].MatchedEndpoint)
	assert.Equal(t, upstreamA.URL+"/api/u", entries[0].ProxiedTo)
}

func TestDispatchProxyFailureIsBadGateway(t *testing.T) {
	d, _, proxyCfg, logs := newTestDispatcher(t)
	require.Nil(t, proxyCfg.Set("http://127.0.0.1:1"))

	rec := doDispatch(d, "GET", "http://mock/anything", nil)

	assert.Equal(t, 502, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Proxy request failed", body["error"])
	assert.NotEmpty(t, body["details"])

	entries := logs.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, 502, entries[0].Status)
	assert.Equal(t, "http://127.0.0.1:1/anything", entries[0].ProxiedTo)
}

func TestDispatchProxiedNonJSONBodyLoggedAsString(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>hi</html>"))
	}))
	defer upstream.Close()

	d, _, proxyCfg, logs := newTestDispatcher(t)
	require.Nil(t, proxyCfg.Set(upstream.URL))

	doDispatch(d, "GET", "http://mock/page", nil)

	entries := logs.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, "<html>hi</html>", entries[0].ResponseBody)
}

func TestDispatchLogsJSONRequestBody(t *testing.T) {
	d, table, _, logs := newTestDispatcher(t)
	require.Nil(t, table.Insert(&routetable.Route{Method: "POST", Path: "/api/u", Response: map[string]any{}, Status: 200}))

	req := httptest.NewRequest("POST", "http://mock/api/u", strings.NewReader(`{"name":"a"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	entries := logs.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]any{"name": "a"}, entries[0].RequestBody)
}

func TestDispatchOmitsNonJSONRequestBody(t *testing.T) {
	d, table, _, logs := newTestDispatcher(t)
	require.Nil(t, table.Insert(&routetable.Route{Method: "POST", Path: "/api/u", Response: map[string]any{}, Status: 200}))

	req := httptest.NewRequest("POST", "http://mock/api/u", strings.NewReader("name=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	d.ServeHTTP(rec, req)

	entries := logs.Snapshot()
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].RequestBody)
}

func TestDispatchGuardsAdminPrefix(t *testing.T) {
	d, _, proxyCfg, logs := newTestDispatcher(t)
	require.Nil(t, proxyCfg.Set("http://127.0.0.1:1"))

	// Even with a default proxy, the reserved prefix is never forwarded.
	rec := doDispatch(d, "GET", "http://mock/__mock/config", nil)
	assert.Equal(t, 404, rec.Code)
	assert.JSONEq(t, `{"error":"Endpoint not found"}`, rec.Body.String())
	assert.Empty(t, logs.Snapshot())
}

func TestDispatchLogBoundHolds(t *testing.T) {
	logs := requestlog.NewStore(5)
	d := NewDispatcher(routetable.New(), proxyconfig.New(), logs, forwarder.New())

	for i := 0; i < 9; i++ {
		doDispatch(d, "GET", "http://mock/missing", nil)
	}
	assert.Equal(t, 5, logs.Count())
}

func TestDispatchRecordsErrorResponses(t *testing.T) {
	d, _, _, logs := newTestDispatcher(t)
	doDispatch(d, "GET", "http://mock/nope", nil)

	entries := logs.Snapshot()
	require.Len(t, entries, 1)
	body, ok := entries[0].ResponseBody.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Not found", body["error"])
	assert.Equal(t, "/nope", body["path"])
}

package forwarder

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRequest(t *testing.T, method, target string, body []byte) *http.Request {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	return req
}

func TestBuildTargetURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		path     string
		rawQuery string
		want     string
	}{
		{"plain", "http://upstream", "/api/u", "", "http://upstream/api/u"},
		{"trailing slash trimmed", "http://upstream/", "/api/u", "", "http://upstream/api/u"},
		{"query appended verbatim", "http://upstream", "/unmocked", "x=1", "http://upstream/unmocked?x=1"},
		{"base with path", "http://upstream/v2/", "/api/u", "a=b&c=d", "http://upstream/v2/api/u?a=b&c=d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildTargetURL(tt.base, tt.path, tt.rawQuery))
		})
	}
}

func TestForwardRelaysMethodBodyAndQuery(t *testing.T) {
	var gotMethod, gotURI string
	var gotBody []byte
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotURI = r.URL.RequestURI()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte(`{"from":"upstream"}`))
	}))
	defer upstream.Close()

	f := New()
	req := newRequest(t, "POST", "http://mock/api/u?x=1", []byte(`{"payload":true}`))

	res, ferr := f.Forward(req, []byte(`{"payload":true}`), upstream.URL)
	require.Nil(t, ferr)

	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "/api/u?x=1", gotURI)
	assert.Equal(t, `{"payload":true}`, string(gotBody))

	assert.Equal(t, http.StatusTeapot, res.StatusCode)
	assert.Equal(t, "yes", res.Headers.Get("X-Upstream"))
	assert.Equal(t, `{"from":"upstream"}`, string(res.Body))
	assert.Equal(t, upstream.URL+"/api/u?x=1", res.Target)
}

func TestForwardStripsHopByHopHeaders(t *testing.T) {
	var gotHeaders http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	f := New()
	req := newRequest(t, "GET", "http://mock/api/u", nil)
	req.Header.Set("X-Custom", "kept")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Transfer-Encoding", "chunked")
	req.Header.Set("Host", "mock")

	_, ferr := f.Forward(req, nil, upstream.URL)
	require.Nil(t, ferr)

	assert.Equal(t, "kept", gotHeaders.Get("X-Custom"))
	assert.Empty(t, gotHeaders.Get("Connection"))
	assert.Empty(t, gotHeaders.Get("Transfer-Encoding"))
	// Host on the upstream request is the upstream's own host, never the mock's.
	assert.NotEqual(t, "mock", gotHeaders.Get("Host"))
}

func TestForwardUnreachableUpstreamIsBadGateway(t *testing.T) {
	f := New()
	req := newRequest(t, "GET", "http://mock/api/u", nil)

	// Port 1 is essentially guaranteed closed.
	res, ferr := f.Forward(req, nil, "http://127.0.0.1:1")
	assert.Nil(t, res)
	require.NotNil(t, ferr)
	assert.Equal(t, "bad_gateway", string(ferr.Kind))
	assert.Equal(t, "Proxy request failed", ferr.Message)
	assert.NotEmpty(t, ferr.Details)
}

func TestForwardTimeoutIsBadGateway(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer upstream.Close()

	f := New(WithClient(&http.Client{Timeout: 20 * time.Millisecond}))
	req := newRequest(t, "GET", "http://mock/slow", nil)

	_, ferr := f.Forward(req, nil, upstream.URL)
	require.NotNil(t, ferr)
	assert.Equal(t, "bad_gateway", string(ferr.Kind))
}

func TestForwardCancelledContextIsBadGateway(t *testing.T) {
	block := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer upstream.Close()
	defer close(block)

	f := New()
	ctx, cancel := context.WithCancel(context.Background())
	req := newRequest(t, "GET", "http://mock/api/u", nil).WithContext(ctx)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, ferr := f.Forward(req, nil, upstream.URL)
	require.NotNil(t, ferr)
	assert.Equal(t, "bad_gateway", string(ferr.Kind))
}

func TestForwardReturnsUpstreamErrorStatusVerbatim(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	f := New()
	req := newRequest(t, "GET", "http://mock/api/u", nil)

	res, ferr := f.Forward(req, nil, upstream.URL)
	require.Nil(t, ferr)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
}

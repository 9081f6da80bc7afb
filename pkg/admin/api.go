// Package admin implements the management HTTP API served under the
// reserved /__mock prefix: route table CRUD, request log access, OpenAPI
// import/export, and default proxy URL management.
package admin

import (
	"log/slog"
	"net/http"

	"github.com/getmockd/mockproxy/pkg/apierr"
	"github.com/getmockd/mockproxy/pkg/httputil"
	"github.com/getmockd/mockproxy/pkg/logging"
	"github.com/getmockd/mockproxy/pkg/proxyconfig"
	"github.com/getmockd/mockproxy/pkg/requestlog"
	"github.com/getmockd/mockproxy/pkg/routetable"
)

// API translates admin HTTP requests into operations on the route
// table, proxy config, and request log.
type API struct {
	table    *routetable.Table
	proxyCfg *proxyconfig.Config
	logs     *requestlog.Store
	log      *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *API) {
		if log != nil {
			a.log = log
		}
	}
}

// New creates an API over the given shared state.
func New(table *routetable.Table, proxyCfg *proxyconfig.Config, logs *requestlog.Store, opts ...Option) *API {
	a := &API{
		table:    table,
		proxyCfg: proxyCfg,
		logs:     logs,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes sets up all admin routes on mux. The trailing catch-all
// answers any other request under the reserved prefix with a 404 so it
// never falls through to the dispatcher.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /__mock/health", a.handleHealth)

	mux.HandleFunc("GET /__mock/config", a.handleListEndpoints)
	mux.HandleFunc("POST /__mock/endpoints", a.handleAddEndpoint)
	mux.HandleFunc("PUT /__mock/endpoints", a.handleUpdateEndpoint)
	mux.HandleFunc("DELETE /__mock/endpoints", a.handleRemoveEndpoint)

	mux.HandleFunc("GET /__mock/logs", a.handleListLogs)
	mux.HandleFunc("DELETE /__mock/logs", a.handleClearLogs)

	mux.HandleFunc("POST /__mock/import", a.handleImport)
	mux.HandleFunc("GET /__mock/export", a.handleExport)

	mux.HandleFunc("GET /__mock/proxy", a.handleGetProxy)
	mux.HandleFunc("POST /__mock/proxy", a.handleSetProxy)
	mux.HandleFunc("DELETE /__mock/proxy", a.handleDeleteProxy)

	mux.HandleFunc("/__mock/", a.handleUnknown)
}

// handleHealth is a liveness probe.
func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]string{"status": "ok"})
}

// handleUnknown answers unrecognized admin paths and methods.
func (a *API) handleUnknown(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteAPIError(w, apierr.NotFound("Endpoint not found"))
}

// Handlers for the admin API endpoints.

package admin

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/getmockd/mockproxy/pkg/apierr"
	"github.com/getmockd/mockproxy/pkg/httputil"
	"github.com/getmockd/mockproxy/pkg/openapi"
	"github.com/getmockd/mockproxy/pkg/routetable"
)

// maxAdminBodySize caps admin request bodies (10MB), matching the
// dispatch surface.
const maxAdminBodySize = 10 << 20

// decodeJSON reads and decodes an admin request body into dst.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *apierr.Error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxAdminBodySize))
	if err != nil {
		a.log.Debug("failed to read admin request body", "error", err)
		return apierr.Invalid("failed to read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		a.log.Debug("JSON parsing failed", "error", err)
		return apierr.Invalid("Invalid JSON in request body")
	}
	return nil
}

// handleListEndpoints returns all registered routes, ordered by path
// then method for a stable listing.
func (a *API) handleListEndpoints(w http.ResponseWriter, _ *http.Request) {
	routes := a.table.List()
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	httputil.WriteOK(w, routes)
}

// handleAddEndpoint registers a new route.
func (a *API) handleAddEndpoint(w http.ResponseWriter, r *http.Request) {
	var route routetable.Route
	if err := a.decodeJSON(w, r, &route); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	if err := a.table.Insert(&route); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	a.log.Info("endpoint added", "method", route.Method, "path", route.Path)
	httputil.WriteOK(w, map[string]bool{"added": true})
}

// updateRequest is the partial-update body for PUT. Identity fields are
// required; pointer fields replace the existing value only when present.
// new_method/new_path move the route to a new identity.
type updateRequest struct {
	Method    string             `json:"method"`
	Path      string             `json:"path"`
	NewMethod *string            `json:"new_method"`
	NewPath   *string            `json:"new_path"`
	Response  *json.RawMessage   `json:"response"`
	Status    *int               `json:"status"`
	Headers   *map[string]string `json:"headers"`
	ProxyURL  *string            `json:"proxy_url"`
}

// handleUpdateEndpoint replaces fields of an existing route, optionally
// moving it to a new (method, path) identity.
func (a *API) handleUpdateEndpoint(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := a.decodeJSON(w, r, &req); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}

	existing := a.table.Lookup(req.Method, req.Path)
	if existing == nil {
		httputil.WriteAPIError(w, apierr.NotFound("Endpoint not found"))
		return
	}

	next := *existing
	if req.NewMethod != nil {
		next.Method = *req.NewMethod
	}
	if req.NewPath != nil {
		next.Path = *req.NewPath
	}
	if req.Response != nil {
		var v any
		if err := json.Unmarshal(*req.Response, &v); err != nil {
			httputil.WriteAPIError(w, apierr.Invalid("Invalid JSON in request body"))
			return
		}
		next.Response = v
	}
	if req.Status != nil {
		next.Status = *req.Status
	}
	if req.Headers != nil {
		next.Headers = *req.Headers
	}
	if req.ProxyURL != nil {
		next.ProxyURL = *req.ProxyURL
	}

	if err := a.table.Update(req.Method, req.Path, &next); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	a.log.Info("endpoint updated", "method", next.Method, "path", next.Path)
	httputil.WriteOK(w, map[string]bool{"updated": true})
}

// handleRemoveEndpoint deletes the route under (method, path).
func (a *API) handleRemoveEndpoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method string `json:"method"`
		Path   string `json:"path"`
	}
	if err := a.decodeJSON(w, r, &req); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	if !a.table.Remove(req.Method, req.Path) {
		httputil.WriteAPIError(w, apierr.NotFound("Endpoint not found"))
		return
	}
	a.log.Info("endpoint removed", "method", req.Method, "path", req.Path)
	httputil.WriteOK(w, map[string]bool{"removed": true})
}

// handleListLogs returns the request log, oldest first.
func (a *API) handleListLogs(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, a.logs.Snapshot())
}

// handleClearLogs empties the request log.
func (a *API) handleClearLogs(w http.ResponseWriter, _ *http.Request) {
	a.logs.Clear()
	httputil.WriteOK(w, map[string]bool{"cleared": true})
}

// importedEndpoint summarizes one route installed by an import.
type importedEndpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Status int    `json:"status"`
}

// handleImport parses the submitted OpenAPI document and atomically
// replaces the route table with its routes. The document may be embedded
// as a JSON value or as a string holding JSON or YAML text.
func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpenAPISpec json.RawMessage `json:"openapi_spec"`
	}
	if err := a.decodeJSON(w, r, &req); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	if len(req.OpenAPISpec) == 0 {
		httputil.WriteAPIError(w, apierr.Invalid("openapi_spec is required"))
		return
	}

	specData := []byte(req.OpenAPISpec)
	var asString string
	if err := json.Unmarshal(req.OpenAPISpec, &asString); err == nil {
		specData = []byte(asString)
	}

	routes, ierr := openapi.Import(specData)
	if ierr != nil {
		httputil.WriteAPIError(w, ierr)
		return
	}
	a.table.BulkReplace(routes)

	endpoints := make([]importedEndpoint, 0, len(routes))
	for _, rt := range routes {
		endpoints = append(endpoints, importedEndpoint{Method: rt.Method, Path: rt.Path, Status: rt.Status})
	}
	a.log.Info("spec imported", "count", len(routes))
	httputil.WriteOK(w, map[string]any{
		"imported":  true,
		"count":     len(routes),
		"endpoints": endpoints,
	})
}

// handleExport renders the current route set as an OpenAPI 3.0 document.
func (a *API) handleExport(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, openapi.Export(a.table.List()))
}

// handleGetProxy reports the default proxy URL and whether it is set.
func (a *API) handleGetProxy(w http.ResponseWriter, _ *http.Request) {
	body := map[string]any{"proxy_url": nil, "enabled": false}
	if u, ok := a.proxyCfg.Snapshot(); ok {
		body["proxy_url"] = u
		body["enabled"] = true
	}
	httputil.WriteOK(w, body)
}

// handleSetProxy installs a new default proxy URL.
func (a *API) handleSetProxy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := a.decodeJSON(w, r, &req); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	if err := a.proxyCfg.Set(req.URL); err != nil {
		httputil.WriteAPIError(w, err)
		return
	}
	u, _ := a.proxyCfg.Snapshot()
	a.log.Info("default proxy set", "url", u)
	httputil.WriteOK(w, map[string]any{"proxy_url": u, "enabled": true})
}

// handleDeleteProxy clears the default proxy URL.
func (a *API) handleDeleteProxy(w http.ResponseWriter, _ *http.Request) {
	a.proxyCfg.Clear()
	a.log.Info("default proxy cleared")
	httputil.WriteOK(w, map[string]bool{"deleted": true})
}

// Package openapi converts OpenAPI documents into route records and the
// current route set back into an OpenAPI 3.0 document. Import accepts
// JSON or YAML (and Swagger 2.0 as a convenience); export always
// produces OpenAPI 3.0 JSON-serializable structures.
package openapi

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/mockproxy/pkg/apierr"
	"github.com/getmockd/mockproxy/pkg/routetable"
)

// Document represents an OpenAPI 3.x specification.
type Document struct {
	OpenAPI string               `json:"openapi" yaml:"openapi"`
	Info    Info                 `json:"info" yaml:"info"`
	Paths   map[string]*PathItem `json:"paths" yaml:"paths"`
}

// Info contains API metadata.
type Info struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version" yaml:"version"`
}

// PathItem holds the operations registered on a path. Field order fixes
// the method order in exported documents.
type PathItem struct {
	Get    *Operation `json:"get,omitempty" yaml:"get,omitempty"`
	Post   *Operation `json:"post,omitempty" yaml:"post,omitempty"`
	Put    *Operation `json:"put,omitempty" yaml:"put,omitempty"`
	Patch  *Operation `json:"patch,omitempty" yaml:"patch,omitempty"`
	Delete *Operation `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// Operation represents a single API operation.
type Operation struct {
	Summary     string              `json:"summary,omitempty" yaml:"summary,omitempty"`
	OperationID string              `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	RequestBody *RequestBody        `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses" yaml:"responses"`
}

// RequestBody describes an operation's request payload.
type RequestBody struct {
	Content map[string]MediaType `json:"content" yaml:"content"`
}

// Response represents one response alternative of an operation.
type Response struct {
	Description string               `json:"description" yaml:"description"`
	Content     map[string]MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// MediaType carries the example payload for a content type.
type MediaType struct {
	Example any     `json:"example,omitempty" yaml:"example,omitempty"`
	Schema  *Schema `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// Schema is the minimal JSON Schema subset the bridge emits.
type Schema struct {
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// methodOrder is the fixed operation ordering used on import and export.
var methodOrder = []string{"get", "post", "put", "patch", "delete"}

// operationsOf returns the PathItem's operations in methodOrder.
func operationsOf(item *PathItem) []*Operation {
	return []*Operation{item.Get, item.Post, item.Put, item.Patch, item.Delete}
}

// Import parses an OpenAPI 3.x or Swagger 2.0 document, given as JSON or
// YAML bytes, and returns one route per (path, operation) pair. Routes
// come back ordered by path, then by the fixed method order.
func Import(data []byte) ([]*routetable.Route, *apierr.Error) {
	var versionCheck struct {
		OpenAPI string `json:"openapi" yaml:"openapi"`
		Swagger string `json:"swagger" yaml:"swagger"`
	}
	if err := yaml.Unmarshal(data, &versionCheck); err != nil {
		return nil, apierr.Invalid("failed to parse specification: %v", err)
	}

	switch {
	case versionCheck.OpenAPI != "":
		return importOpenAPI3(data)
	case versionCheck.Swagger != "":
		return importSwagger2(data)
	default:
		return nil, apierr.Invalid("not a valid OpenAPI 3.x or Swagger 2.0 specification")
	}
}

// importOpenAPI3 walks the paths of an OpenAPI 3.x document.
func importOpenAPI3(data []byte) ([]*routetable.Route, *apierr.Error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apierr.Invalid("failed to parse OpenAPI 3.x specification: %v", err)
	}

	paths := make([]string, 0, len(doc.Paths))
	for path := range doc.Paths {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var routes []*routetable.Route
	for _, path := range paths {
		item := doc.Paths[path]
		if item == nil {
			continue
		}
		for i, op := range operationsOf(item) {
			if op == nil {
				continue
			}
			routes = append(routes, operationToRoute(path, methodOrder[i], op))
		}
	}
	return routes, nil
}

// operationToRoute builds the route for one (path, operation) pair. The
// path is preserved verbatim, templating tokens included; no parameter
// capture happens at dispatch time.
func operationToRoute(path, method string, op *Operation) *routetable.Route {
	status, resp := pickResponse(op.Responses)

	var example any = map[string]any{}
	if resp != nil {
		if media, ok := resp.Content["application/json"]; ok && media.Example != nil {
			example = media.Example
		}
	}

	return &routetable.Route{
		Method:   strings.ToUpper(method),
		Path:     path,
		Response: example,
		Status:   status,
	}
}

// pickResponse selects the lowest 2xx status key (numeric sort), falling
// back to 200 when no 2xx response is present.
func pickResponse(responses map[string]Response) (int, *Response) {
	best := 0
	var bestResp *Response
	for key, resp := range responses {
		code, err := strconv.Atoi(key)
		if err != nil || code < 200 || code > 299 {
			continue
		}
		if best == 0 || code < best {
			best = code
			r := resp
			bestResp = &r
		}
	}
	if best == 0 {
		return 200, nil
	}
	return best, bestResp
}

// Export builds an OpenAPI 3.0 document from the given routes. Paths
// marshal in lexicographic order (JSON maps sort keys) and operations in
// the fixed method order (PathItem field order). Headers and proxy
// targets are not encoded; only the (method, path, status, response)
// quadruple survives a round trip.
func Export(routes []*routetable.Route) *Document {
	doc := &Document{
		OpenAPI: "3.0.0",
		Info: Info{
			Title:       "Mock API",
			Description: "Exported from mock server",
			Version:     "1.0.0",
		},
		Paths: make(map[string]*PathItem),
	}

	for _, r := range routes {
		item := doc.Paths[r.Path]
		if item == nil {
			item = &PathItem{}
			doc.Paths[r.Path] = item
		}
		op := routeToOperation(r)
		switch r.Method {
		case "GET":
			item.Get = op
		case "POST":
			item.Post = op
		case "PUT":
			item.Put = op
		case "PATCH":
			item.Patch = op
		case "DELETE":
			item.Delete = op
		}
	}
	return doc
}

// routeToOperation builds the exported operation for one route.
func routeToOperation(r *routetable.Route) *Operation {
	status := r.Status
	if status == 0 {
		status = 200
	}
	statusKey := strconv.Itoa(status)

	op := &Operation{
		Summary:     fmt.Sprintf("%s %s", r.Method, r.Path),
		OperationID: operationID(r.Method, r.Path),
		Responses: map[string]Response{
			statusKey: {
				Description: fmt.Sprintf("Successful response with status %d", status),
				Content: map[string]MediaType{
					"application/json": {
						Example: r.Response,
						Schema:  &Schema{Type: "object"},
					},
				},
			},
		},
	}

	// Methods that carry a payload advertise a generic JSON request body.
	switch r.Method {
	case "POST", "PUT", "PATCH":
		op.RequestBody = &RequestBody{
			Content: map[string]MediaType{
				"application/json": {Schema: &Schema{Type: "object"}},
			},
		}
	}
	return op
}

// operationID derives the exported operationId: lowercased method,
// slashes folded to underscores, leading and trailing underscores
// trimmed ("POST", "/api/users" yields "post_api_users").
func operationID(method, path string) string {
	return strings.ToLower(method) + "_" + strings.Trim(strings.ReplaceAll(path, "/", "_"), "_")
}

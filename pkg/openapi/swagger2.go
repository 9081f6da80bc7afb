package openapi

import (
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/getmockd/mockproxy/pkg/apierr"
	"github.com/getmockd/mockproxy/pkg/routetable"
)

// Swagger 2.0 is accepted on import as a convenience. Documents are
// converted through the same (method, path) pipeline; export always
// produces OpenAPI 3.0.

// swaggerDoc represents the subset of a Swagger 2.0 specification the
// importer reads.
type swaggerDoc struct {
	Swagger  string                      `json:"swagger" yaml:"swagger"`
	BasePath string                      `json:"basePath,omitempty" yaml:"basePath,omitempty"`
	Paths    map[string]*swaggerPathItem `json:"paths" yaml:"paths"`
}

type swaggerPathItem struct {
	Get    *swaggerOperation `json:"get,omitempty" yaml:"get,omitempty"`
	Post   *swaggerOperation `json:"post,omitempty" yaml:"post,omitempty"`
	Put    *swaggerOperation `json:"put,omitempty" yaml:"put,omitempty"`
	Patch  *swaggerOperation `json:"patch,omitempty" yaml:"patch,omitempty"`
	Delete *swaggerOperation `json:"delete,omitempty" yaml:"delete,omitempty"`
}

type swaggerOperation struct {
	Responses map[string]swaggerResponse `json:"responses" yaml:"responses"`
}

type swaggerResponse struct {
	Description string         `json:"description" yaml:"description"`
	Examples    map[string]any `json:"examples,omitempty" yaml:"examples,omitempty"`
}

// importSwagger2 walks the paths of a Swagger 2.0 document, prepending
// basePath when present.
func importSwagger2(data []byte) ([]*routetable.Route, *apierr.Error) {
	var doc swaggerDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apierr.Invalid("failed to parse Swagger 2.0 specification: %v", err)
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

		fullPath := path
		if doc.BasePath != "" && doc.BasePath != "/" {
			fullPath = strings.TrimSuffix(doc.BasePath, "/") + path
		}

		ops := []*swaggerOperation{item.Get, item.Post, item.Put, item.Patch, item.Delete}
		for i, op := range ops {
			if op == nil {
				continue
			}
			routes = append(routes, swaggerOperationToRoute(fullPath, methodOrder[i], op))
		}
	}
	return routes, nil
}

// swaggerOperationToRoute builds the route for one Swagger 2.0 operation.
// The example comes from the response's "application/json" example block.
func swaggerOperationToRoute(path, method string, op *swaggerOperation) *routetable.Route {
	status, resp := pickSwaggerResponse(op.Responses)

	var example any = map[string]any{}
	if resp != nil {
		if ex, ok := resp.Examples["application/json"]; ok && ex != nil {
			example = ex
		}
	}

	return &routetable.Route{
		Method:   strings.ToUpper(method),
		Path:     path,
		Response: example,
		Status:   status,
	}
}

// pickSwaggerResponse applies the same lowest-2xx selection as OpenAPI 3.x.
func pickSwaggerResponse(responses map[string]swaggerResponse) (int, *swaggerResponse) {
	converted := make(map[string]Response, len(responses))
	for key := range responses {
		converted[key] = Response{}
	}
	status, _ := pickResponse(converted)

	if resp, ok := responses[strconv.Itoa(status)]; ok {
		return status, &resp
	}
	return status, nil
}

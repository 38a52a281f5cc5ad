package apiv1

import (
	"context"
	"fmt"
	"regexp"

	"github.com/getkin/kin-openapi/openapi3"
)

var fiberParam = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// LoadSpec loads and validates the OpenAPI document at path.
func LoadSpec(ctx context.Context, path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document %s: %w", path, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document %s: %w", path, err)
	}
	return doc, nil
}

// OpenAPIPath converts a fiber route path like /vehicles/:id into the
// templated form /vehicles/{id}.
func OpenAPIPath(fiberPath string) string {
	return fiberParam.ReplaceAllString(fiberPath, "{$1}")
}

// FindOperation returns the documented operation for a route, or nil.
func FindOperation(doc *openapi3.T, r Route) *openapi3.Operation {
	if doc == nil || doc.Paths == nil {
		return nil
	}
	item := doc.Paths.Find(OpenAPIPath(r.Path))
	if item == nil {
		return nil
	}
	return item.GetOperation(r.Method)
}

// Undocumented lists the routes missing from doc or documented under a
// different operation id.
func Undocumented(doc *openapi3.T) []Route {
	var missing []Route
	for _, r := range Routes() {
		op := FindOperation(doc, r)
		if op == nil || op.OperationID != r.OperationID {
			missing = append(missing, r)
		}
	}
	return missing
}

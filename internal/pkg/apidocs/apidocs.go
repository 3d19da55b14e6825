// Package apidocs loads and validates the OpenAPI document served under
// /docs/api so a broken document fails at startup instead of in the browser.
package apidocs

import (
	"context"
	"fmt"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
)

// DefaultPath is the document location relative to the project root.
const DefaultPath = "public/docs/v1/openapi.yml"

// Load parses and validates the document at path.
func Load(ctx context.Context, path string) (*openapi3.T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("openapi document: %w", err)
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi document %s: %w", path, err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document %s: %w", path, err)
	}
	return doc, nil
}

// HasOperation reports whether the document describes method on path.
func HasOperation(doc *openapi3.T, method, path string) bool {
	if doc == nil || doc.Paths == nil {
		return false
	}
	item := doc.Paths.Find(path)
	if item == nil {
		return false
	}
	return item.GetOperation(method) != nil
}

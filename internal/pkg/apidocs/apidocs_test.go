package apidocs

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ShippedDocument(t *testing.T) {
	doc, err := Load(context.Background(), filepath.Join("..", "..", "..", DefaultPath))
	require.NoError(t, err)

	assert.True(t, HasOperation(doc, http.MethodPost, "/webhooks/stripe"))
	assert.True(t, HasOperation(doc, http.MethodGet, "/api/v1/accounts/{id}/status"))
	assert.False(t, HasOperation(doc, http.MethodDelete, "/webhooks/stripe"))
	assert.False(t, HasOperation(doc, http.MethodGet, "/login"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	broken := filepath.Join(t.TempDir(), "broken.yml")
	require.NoError(t, os.WriteFile(broken, []byte("openapi: 3.0.3\ninfo:\n  version: 1.0.0\npaths: {}\n"), 0o600))
	_, err = Load(context.Background(), broken)
	assert.Error(t, err)
}

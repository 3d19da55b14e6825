package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseURL(t *testing.T) {
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_PASSWORD", "p")
	t.Setenv("DB_HOST", "mysql")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_NAME", "billing")

	assert.Equal(t, "mysql://u:p@tcp(mysql:3307)/billing?multiStatements=true", databaseURL())
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion([]string{"3"})
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)

	_, err = parseVersion(nil)
	assert.Error(t, err)

	_, err = parseVersion([]string{"x"})
	assert.Error(t, err)
}

func TestRun_UnknownCommand(t *testing.T) {
	assert.Error(t, run("sideways", nil))
}

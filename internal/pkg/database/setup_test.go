package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDSN(t *testing.T) {
	t.Setenv("DB_USER", "payfox")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_NAME", "payfox_db")

	dsn := DSN()
	assert.Equal(t, "payfox:secret@tcp(db:3307)/payfox_db?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true", dsn)
}

func TestModels(t *testing.T) {
	assert.Len(t, Models(), 4)
}

package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	prev := Env
	Env = values
	t.Cleanup(func() { Env = prev })
}

func TestGetEnv_PrefersLoadedMap(t *testing.T) {
	withEnv(t, map[string]string{"PAYFOX_TEST_KEY": "from-map"})
	t.Setenv("PAYFOX_TEST_KEY", "from-os")

	assert.Equal(t, "from-map", GetEnv("PAYFOX_TEST_KEY", "def"))
	assert.Equal(t, "def", GetEnv("PAYFOX_TEST_MISSING", "def"))
}

func TestGetEnv_FallsBackToOS(t *testing.T) {
	withEnv(t, map[string]string{})
	t.Setenv("PAYFOX_TEST_OS_ONLY", "os")

	assert.Equal(t, "os", GetEnv("PAYFOX_TEST_OS_ONLY", "def"))
}

func TestGetEnvInt(t *testing.T) {
	withEnv(t, map[string]string{"WORKERS": "7", "BROKEN": "seven"})

	assert.Equal(t, 7, GetEnvInt("WORKERS", 3))
	assert.Equal(t, 3, GetEnvInt("BROKEN", 3))
	assert.Equal(t, 3, GetEnvInt("UNSET_WORKERS", 3))
}

func TestGetEnvBool(t *testing.T) {
	withEnv(t, map[string]string{"ON": "true", "OFF": "0", "BAD": "maybe"})

	assert.True(t, GetEnvBool("ON", false))
	assert.False(t, GetEnvBool("OFF", true))
	assert.True(t, GetEnvBool("BAD", true))
}

func TestGetEnvDuration(t *testing.T) {
	withEnv(t, map[string]string{"A": "90s", "B": "45", "C": "soon"})

	assert.Equal(t, 90*time.Second, GetEnvDuration("A", time.Minute))
	assert.Equal(t, 45*time.Second, GetEnvDuration("B", time.Minute))
	assert.Equal(t, time.Minute, GetEnvDuration("C", time.Minute))
	assert.Equal(t, time.Minute, GetEnvDuration("D", time.Minute))
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("CONVERSE_PORT", "9090")
	t.Setenv("CONVERSE_ENV", "test")
	t.Setenv("CONVERSE_JWT_SECRET", "test-secret")
	t.Setenv("CONVERSE_POSTGRES_HOST", "localhost")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, c.Port)
	assert.Equal(t, "test", c.Env)
	assert.Equal(t, "test-secret", c.JWTSecret)
	assert.Equal(t, "localhost", c.PostgresHost)
}

func TestLoadDefaultsAreZero(t *testing.T) {
	t.Setenv("GIN_MODE", "release")
	t.Setenv("CONVERSE_PORT", "")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0, c.Port)
}

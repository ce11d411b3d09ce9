package main

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv_MissingFileIsNotAnError(t *testing.T) {
	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ORDERS_HTTP_ADDR=:7000\nORDERS_DOTENV_ONLY=from-file\n"), 0o600))

	t.Setenv("ORDERS_HTTP_ADDR", ":9000")
	t.Setenv("ORDERS_DOTENV_ONLY", "")
	require.NoError(t, os.Unsetenv("ORDERS_DOTENV_ONLY"))

	require.NoError(t, loadDotEnv(path))
	require.Equal(t, ":9000", os.Getenv("ORDERS_HTTP_ADDR"))
	require.Equal(t, "from-file", os.Getenv("ORDERS_DOTENV_ONLY"))
}

func TestLoadDotEnv_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.env")
	require.NoError(t, os.WriteFile(path, []byte("ORDERS_HTTP_ADDR=\"unterminated\n"), 0o600))

	require.Error(t, loadDotEnv(path))
}

func TestSetupLogger(t *testing.T) {
	previous := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(previous) })

	setupLogger(log.DebugLevel)
	require.Equal(t, log.DebugLevel, log.GetLevel())
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_ReadsFileAndDefaults(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
listen_addr: ":8080"
data_dir: `+dataDir+`
backends:
  - name: main
    url: ws://localhost:9999/api
    token: secret
    assets:
      - textures.example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, 5, cfg.CallTimeoutSeconds)
	require.Equal(t, "info", cfg.LogLevel)
	require.Len(t, cfg.Backends, 1)
	require.Equal(t, "main", cfg.Backends[0].Name)
	require.Equal(t, []string{"textures.example.com"}, cfg.Backends[0].Assets)
}

func TestLoad_RequiresAtLeastOneBackend(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":8080"
data_dir: `+t.TempDir()+`
backends: []
`)

	_, err := Load(path)
	require.ErrorContains(t, err, "at least one backend")
}

func TestLoad_RejectsDuplicateBackendNames(t *testing.T) {
	path := writeConfig(t, `
data_dir: `+t.TempDir()+`
backends:
  - name: main
    url: ws://a/api
    token: t1
  - name: main
    url: ws://b/api
    token: t2
`)

	_, err := Load(path)
	require.ErrorContains(t, err, "duplicate backend name")
}

func TestLoad_RejectsIncompleteBackend(t *testing.T) {
	path := writeConfig(t, `
data_dir: `+t.TempDir()+`
backends:
  - name: main
    url: ws://a/api
`)

	_, err := Load(path)
	require.Error(t, err)
}

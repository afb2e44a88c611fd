package keypair

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadOrCreate_GeneratesThenReloads(t *testing.T) {
	if testing.Short() {
		t.Skip("4096-bit key generation is slow")
	}

	dataDir := t.TempDir()

	created, err := LoadOrCreate(dataDir)
	require.NoError(t, err)
	require.GreaterOrEqual(t, created.Private.N.BitLen(), 2048)
	require.True(t, strings.HasPrefix(created.PublicPEM, "-----BEGIN PUBLIC KEY-----"))

	path := filepath.Join(dataDir, "keys", "private.pem")
	info, err := os.Stat(path)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	loaded, err := LoadOrCreate(dataDir)
	require.NoError(t, err)
	require.Equal(t, created.Private.N, loaded.Private.N)
	require.Equal(t, created.PublicPEM, loaded.PublicPEM)
}

func TestLoadOrCreate_RejectsCorruptKeyFile(t *testing.T) {
	dataDir := t.TempDir()
	dir := filepath.Join(dataDir, "keys")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "private.pem"), []byte("not a key"), 0o600))

	_, err := LoadOrCreate(dataDir)
	require.Error(t, err)
}

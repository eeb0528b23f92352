package internal

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, 64, cfg.BufferPool.Capacity)
	assert.Equal(t, "lru", cfg.BufferPool.Policy)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moonsql.yaml")
	yaml := "data_dir: /tmp/dbdata\nbuffer_pool:\n  capacity: 8\n  policy: fifo\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dbdata", cfg.DataDir)
	assert.Equal(t, 8, cfg.BufferPool.Capacity)
	assert.Equal(t, "fifo", cfg.BufferPool.Policy)
	// Unset keys keep defaults.
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/luamixer/internal/config"
)

func init() {
	config.Testing = true
}

func TestInitWritesLoadableDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, initCmd.RunE(initCmd, []string{path}))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Obfuscation, cfg.Obfuscation)
}

func TestInitRefusesToOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("silent: true\n"), 0644))

	err := initCmd.RunE(initCmd, []string{path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDerivesPaths(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8900", cfg.Server.Port)
	assert.Equal(t, filepath.Join("./data", "rules"), cfg.Paths.RulesDir)
	assert.Equal(t, filepath.Join("./data", "userscripts"), cfg.Paths.ScriptsDir)
	assert.Equal(t, filepath.Join("./data", "settings.json"), cfg.Paths.Settings)
}

func TestLoadRespectsEnv(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("DATA_DIR", "/var/lib/voyx")
	t.Setenv("SCRIPTS_DIR", "/opt/scripts")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	// Explicit override wins, everything else derives from DATA_DIR.
	assert.Equal(t, "/opt/scripts", cfg.Paths.ScriptsDir)
	assert.Equal(t, filepath.Join("/var/lib/voyx", "rules"), cfg.Paths.RulesDir)
}

func TestRebase(t *testing.T) {
	t.Setenv("SCRIPTS_DIR", "/opt/scripts")

	cfg, err := Load()
	require.NoError(t, err)

	cfg.Rebase("/tmp/engine")
	assert.Equal(t, filepath.Join("/tmp/engine", "rules"), cfg.Paths.RulesDir)
	assert.Equal(t, filepath.Join("/tmp/engine", "userscripts"), cfg.Paths.ScriptsDir)
	assert.Equal(t, filepath.Join("/tmp/engine", "settings.json"), cfg.Paths.Settings)
}

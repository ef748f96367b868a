package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFiles(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, "")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{
		// JSONC comments are accepted
		"region_path": "custom.region",
		"log_level": "debug",
	}`), 0o644))

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	require.Equal(t, "custom.region", cfg.RegionPath)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadExplicitConfigMustExist(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir, filepath.Join(dir, "missing.json"))
	require.Error(t, err)
}

func TestLoadExplicitConfigOverridesProject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`{"region_path": "project.region"}`), 0o644))

	explicit := filepath.Join(dir, "explicit.json")
	require.NoError(t, os.WriteFile(explicit, []byte(`{"region_path": "explicit.region"}`), 0o644))

	cfg, err := Load(dir, explicit)
	require.NoError(t, err)
	require.Equal(t, "explicit.region", cfg.RegionPath)
}

func TestFormatIncludesRegionPath(t *testing.T) {
	out, err := Format(Default())
	require.NoError(t, err)
	require.Contains(t, out, "region_path")
}

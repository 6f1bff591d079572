package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(LoadOptions{})
	require.Nil(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RISOR_SCRIPT_MAIN_UNIT", "Tool")
	t.Setenv("RISOR_SCRIPT_MODULEPATH", "/opt/mods")
	t.Setenv("RISOR_SCRIPT_ALLOW_NON_PUBLIC", "false")

	cfg, err := Load(LoadOptions{})
	require.Nil(t, err)
	require.Equal(t, "Tool", cfg.MainUnit)
	require.Equal(t, "/opt/mods", cfg.ModulePath)
	require.False(t, cfg.AllowNonPublic)
	require.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte("filename: tool.risor\nsourcepath: /src\nlog_level: debug\n"), 0o644))

	cfg, err := Load(LoadOptions{File: path})
	require.Nil(t, err)
	require.Equal(t, "tool.risor", cfg.Filename)
	require.Equal(t, "/src", cfg.SourcePath)
	require.Equal(t, "debug", cfg.LogLevel)
	require.True(t, cfg.AllowNonPublic)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.Nil(t, os.WriteFile(path, []byte("main_unit: FromFile\n"), 0o644))
	t.Setenv("RISOR_SCRIPT_MAIN_UNIT", "FromEnv")

	cfg, err := Load(LoadOptions{File: path})
	require.Nil(t, err)
	require.Equal(t, "FromEnv", cfg.MainUnit)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(LoadOptions{File: filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
}

func TestLoadUsesGivenViper(t *testing.T) {
	v := viper.New()
	v.Set(KeyMainUnit, "Explicit")
	cfg, err := Load(LoadOptions{Viper: v})
	require.Nil(t, err)
	require.Equal(t, "Explicit", cfg.MainUnit)
}

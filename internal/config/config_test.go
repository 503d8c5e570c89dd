package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focuswatch/internal/game"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second, cfg.Poll.Phase.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.ChampSelect.Duration)
	assert.Equal(t, 5*time.Second, cfg.Poll.Heartbeat.Duration)
	assert.Equal(t, 3*time.Second, cfg.Poll.HTTPTimeout.Duration)
	assert.Equal(t, game.RoleMid, cfg.Role())
	assert.Equal(t, game.BracketPlatinum, cfg.Bracket())
	assert.False(t, cfg.Preferences.AutoImport)
	assert.Empty(t, cfg.Overlay.Addr)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
debug = true

[poll]
phase = "2s"
champ_select = "250ms"

[benchmark]
url = "https://bench.example"

[preferences]
role = "support"
bracket = "Diamond"
auto_import = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 2*time.Second, cfg.Poll.Phase.Duration)
	assert.Equal(t, 250*time.Millisecond, cfg.Poll.ChampSelect.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.LiveData.Duration, "unset keys keep defaults")
	assert.Equal(t, "https://bench.example", cfg.Benchmark.URL)
	assert.Equal(t, game.RoleSupport, cfg.Role())
	assert.Equal(t, game.BracketDiamond, cfg.Bracket())
	assert.True(t, cfg.Preferences.AutoImport)
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[poll\nphase = 1"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[preferences]\nrole = \"top\"\n"), 0o644))

	t.Setenv("FOCUSWATCH_ROLE", "jungle")
	t.Setenv("FOCUSWATCH_AUTO_IMPORT", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost/stats")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, game.RoleJungle, cfg.Role())
	assert.True(t, cfg.Preferences.AutoImport)
	assert.Equal(t, "postgres://localhost/stats", cfg.Build.DatabaseURL)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FOCUSWATCH_BENCHMARK_URL": "https://bench",
		"FOCUSWATCH_BENCHMARK_KEY": "secret",
		"FOCUSWATCH_LOCKFILE":      "/tmp/lockfile",
		"FOCUSWATCH_DEBUG":         "not-a-bool",
		"FOCUSWATCH_BRACKET":       "",
		"FOCUSWATCH_UGG_URL":       "https://stats2.u.gg/lol",
	}
	cfg := Default()
	cfg.applyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})

	assert.Equal(t, "https://bench", cfg.Benchmark.URL)
	assert.Equal(t, "secret", cfg.Benchmark.APIKey)
	assert.Equal(t, "/tmp/lockfile", cfg.Client.Lockfile)
	assert.Equal(t, "https://stats2.u.gg/lol", cfg.Build.UGGURL)
	assert.NotEmpty(t, cfg.Build.UGGPatchesURL)
	assert.False(t, cfg.Debug)
	assert.Equal(t, "platinum", cfg.Preferences.Bracket)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero phase", func(c *Config) { c.Poll.Phase.Duration = 0 }},
		{"negative live", func(c *Config) { c.Poll.LiveData.Duration = -time.Second }},
		{"zero timeout", func(c *Config) { c.Poll.HTTPTimeout.Duration = 0 }},
		{"slow champ select", func(c *Config) { c.Poll.ChampSelect.Duration = 2 * time.Second }},
		{"equal champ select", func(c *Config) { c.Poll.ChampSelect = c.Poll.Phase }},
		{"unknown role", func(c *Config) { c.Preferences.Role = "roamer" }},
		{"unknown bracket", func(c *Config) { c.Preferences.Bracket = "wood" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Preferences.Role = "adc"
	cfg.Poll.Heartbeat = Duration{10 * time.Second}

	require.NoError(t, Save(cfg, path))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, game.RoleADC, loaded.Role())
	assert.Equal(t, 10*time.Second, loaded.Poll.Heartbeat.Duration)
}

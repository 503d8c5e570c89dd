package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"focuswatch/internal/game"
)

// Duration reads "500ms" style strings from TOML
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the application configuration
type Config struct {
	Poll        PollConfig        `toml:"poll"`
	Client      ClientConfig      `toml:"client"`
	Benchmark   BenchmarkConfig   `toml:"benchmark"`
	Build       BuildConfig       `toml:"build"`
	Preferences PreferencesConfig `toml:"preferences"`
	Overlay     OverlayConfig     `toml:"overlay"`
	Debug       bool              `toml:"debug"`
}

type PollConfig struct {
	Phase       Duration `toml:"phase"`
	ChampSelect Duration `toml:"champ_select"`
	LiveData    Duration `toml:"live_data"`
	Heartbeat   Duration `toml:"heartbeat"`
	HTTPTimeout Duration `toml:"http_timeout"`
}

type ClientConfig struct {
	// Lockfile is checked before the platform install paths
	Lockfile      string `toml:"lockfile"`
	LiveDataURL   string `toml:"live_data_url"`
	DataDragonURL string `toml:"data_dragon_url"`
}

type BenchmarkConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

type BuildConfig struct {
	APIURL        string   `toml:"api_url"`
	DatabaseURL   string   `toml:"database_url"`
	// UGGURL enables the u.gg items source, e.g. https://stats2.u.gg/lol
	UGGURL        string   `toml:"ugg_url"`
	UGGPatchesURL string   `toml:"ugg_patches_url"`
	CacheDir      string   `toml:"cache_dir"`
	CacheTTL      Duration `toml:"cache_ttl"`
	ItemSetPrefix string   `toml:"item_set_prefix"`
}

type PreferencesConfig struct {
	Role       string `toml:"role"`
	Bracket    string `toml:"bracket"`
	AutoImport bool   `toml:"auto_import"`
}

type OverlayConfig struct {
	// Addr is empty when the overlay server is off
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Poll: PollConfig{
			Phase:       Duration{time.Second},
			ChampSelect: Duration{500 * time.Millisecond},
			LiveData:    Duration{500 * time.Millisecond},
			Heartbeat:   Duration{5 * time.Second},
			HTTPTimeout: Duration{3 * time.Second},
		},
		Client: ClientConfig{
			LiveDataURL:   "https://127.0.0.1:2999",
			DataDragonURL: "https://ddragon.leagueoflegends.com",
		},
		Build: BuildConfig{
			UGGPatchesURL: "https://static.bigbrain.gg/assets/lol/riot_patch_update/prod/ugg/patches.json",
			CacheDir:      defaultCacheDir(),
			CacheTTL:      Duration{24 * time.Hour},
			ItemSetPrefix: "FocusWatch",
		},
		Preferences: PreferencesConfig{
			Role:    string(game.FallbackRole),
			Bracket: string(game.DefaultBracket),
		},
	}
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".", ".focuswatch")
	}
	return filepath.Join(dir, "focuswatch")
}

// DefaultPath is config.toml under the user config directory
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "focuswatch", "config.toml")
}

// Load builds the configuration from defaults, the TOML file at path, a
// .env file and the environment, in that order. An empty path means
// DefaultPath, which may be missing.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	loadDotEnv(filepath.Dir(path))
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads the first .env found. Existing variables win.
func loadDotEnv(configDir string) {
	for _, path := range []string{".env", filepath.Join(configDir, ".env")} {
		if err := godotenv.Load(path); err == nil {
			return
		}
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str("FOCUSWATCH_BENCHMARK_URL", &c.Benchmark.URL)
	str("FOCUSWATCH_BENCHMARK_KEY", &c.Benchmark.APIKey)
	str("FOCUSWATCH_BUILD_API_URL", &c.Build.APIURL)
	str("DATABASE_URL", &c.Build.DatabaseURL)
	str("FOCUSWATCH_UGG_URL", &c.Build.UGGURL)
	str("FOCUSWATCH_LOCKFILE", &c.Client.Lockfile)
	str("FOCUSWATCH_ROLE", &c.Preferences.Role)
	str("FOCUSWATCH_BRACKET", &c.Preferences.Bracket)
	str("FOCUSWATCH_OVERLAY_ADDR", &c.Overlay.Addr)
	flag("FOCUSWATCH_AUTO_IMPORT", &c.Preferences.AutoImport)
	flag("FOCUSWATCH_DEBUG", &c.Debug)
}

// Validate checks intervals and preferences
func (c *Config) Validate() error {
	intervals := map[string]time.Duration{
		"poll.phase":        c.Poll.Phase.Duration,
		"poll.champ_select": c.Poll.ChampSelect.Duration,
		"poll.live_data":    c.Poll.LiveData.Duration,
		"poll.heartbeat":    c.Poll.Heartbeat.Duration,
		"poll.http_timeout": c.Poll.HTTPTimeout.Duration,
	}
	for name, d := range intervals {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Poll.ChampSelect.Duration >= c.Poll.Phase.Duration {
		return fmt.Errorf("poll.champ_select (%s) must be faster than poll.phase (%s)", c.Poll.ChampSelect, c.Poll.Phase)
	}
	if _, ok := game.ParseRole(c.Preferences.Role); !ok {
		return fmt.Errorf("unknown role %q", c.Preferences.Role)
	}
	if _, ok := game.ParseBracket(c.Preferences.Bracket); !ok {
		return fmt.Errorf("unknown bracket %q", c.Preferences.Bracket)
	}
	return nil
}

// Role returns the configured benchmark role
func (c *Config) Role() game.Role {
	r, _ := game.ParseRole(c.Preferences.Role)
	return r
}

// Bracket returns the configured benchmark bracket
func (c *Config) Bracket() game.Bracket {
	b, _ := game.ParseBracket(c.Preferences.Bracket)
	return b
}

// Save writes c to path as TOML
func Save(c *Config, path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

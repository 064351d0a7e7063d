package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RecurrenceConfig tunes the recurrence engine.
type RecurrenceConfig struct {
	CacheEnabled    bool          `yaml:"cache_enabled" json:"cache_enabled"`
	CacheTTL        time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	CacheMaxEntries int           `yaml:"cache_max_entries" json:"cache_max_entries"`
	// MaxIterations caps the repetitions stepped through per event and range.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`
	// MonthPolicy is "clamp" (default) or "rollover".
	MonthPolicy string `yaml:"month_policy" json:"month_policy"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format" json:"format"`
}

// GeneratorConfig drives the synthetic activity generator of the serve
// command.
type GeneratorConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Schedule is a cron expression; descriptors such as "@every 30s" are
	// accepted.
	Schedule string `yaml:"schedule" json:"schedule"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of the serve command.
	Listen string `yaml:"listen" json:"listen"`

	// WeekStart is the first day of the week in week and month views:
	// "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// DefaultView is the initial view mode: day, week (default) or month.
	DefaultView string `yaml:"default_view" json:"default_view"`

	MinEventMinutes int `yaml:"min_event_minutes" json:"min_event_minutes"`
	// SnapMinutes rounds drag and resize deltas; 0 disables snapping.
	SnapMinutes int `yaml:"snap_minutes" json:"snap_minutes"`

	StoreTimeout time.Duration `yaml:"store_timeout" json:"store_timeout"`
	// StoreCapacity bounds the in-memory store; 0 means unbounded.
	StoreCapacity int `yaml:"store_capacity" json:"store_capacity"`

	Recurrence RecurrenceConfig `yaml:"recurrence" json:"recurrence"`
	Log        LogConfig        `yaml:"log" json:"log"`

	// SeedFile is an optional iCalendar file imported at startup.
	SeedFile string `yaml:"seed_file,omitempty" json:"seed_file,omitempty"`

	Generator GeneratorConfig `yaml:"generator" json:"generator"`
}

// Environment variables that override the file.
const (
	EnvListen   = "LUMENCAL_LISTEN"
	EnvLogLevel = "LUMENCAL_LOG_LEVEL"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:          "127.0.0.1:8080",
		WeekStart:       "monday",
		DefaultView:     "week",
		MinEventMinutes: 30,
		SnapMinutes:     15,
		StoreTimeout:    10 * time.Second,
		StoreCapacity:   0,
		Recurrence: RecurrenceConfig{
			CacheEnabled:    true,
			CacheTTL:        5 * time.Minute,
			CacheMaxEntries: 1000,
			MaxIterations:   100_000,
			MonthPolicy:     "clamp",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Generator: GeneratorConfig{
			Enabled:  true,
			Schedule: "@every 30s",
		},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	c.WeekStart = oneOf(c.WeekStart, def.WeekStart, "monday", "sunday")
	c.DefaultView = oneOf(c.DefaultView, def.DefaultView, "day", "week", "month")
	if c.MinEventMinutes <= 0 {
		c.MinEventMinutes = def.MinEventMinutes
	}
	if c.SnapMinutes < 0 {
		c.SnapMinutes = 0
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = def.StoreTimeout
	}
	if c.StoreCapacity < 0 {
		c.StoreCapacity = 0
	}

	if c.Recurrence.CacheTTL <= 0 {
		c.Recurrence.CacheTTL = def.Recurrence.CacheTTL
	}
	if c.Recurrence.CacheMaxEntries <= 0 {
		c.Recurrence.CacheMaxEntries = def.Recurrence.CacheMaxEntries
	}
	if c.Recurrence.MaxIterations <= 0 {
		c.Recurrence.MaxIterations = def.Recurrence.MaxIterations
	}
	c.Recurrence.MonthPolicy = oneOf(c.Recurrence.MonthPolicy, def.Recurrence.MonthPolicy, "clamp", "rollover")

	c.Log.Level = oneOf(c.Log.Level, def.Log.Level, "debug", "info", "warn", "error")
	c.Log.Format = oneOf(c.Log.Format, def.Log.Format, "text", "json")

	if c.Generator.Schedule == "" {
		c.Generator.Schedule = def.Generator.Schedule
	}
}

// oneOf lower-cases value and returns it when allowed, fallback otherwise.
func oneOf(value, fallback string, allowed ...string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return fallback
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file exists, it is unmarshalled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// ApplyEnv overrides the listen address and log level from the process
// environment, then from the dotenv file at envPath. A missing dotenv file
// is not an error. Process variables win over the file.
func (c *Config) ApplyEnv(envPath string) error {
	file := map[string]string{}
	if envPath != "" {
		read, err := godotenv.Read(envPath)
		switch {
		case err == nil:
			file = read
		case !errors.Is(err, fs.ErrNotExist):
			return err
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}

	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	c.Normalize()
	return nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".lumencal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

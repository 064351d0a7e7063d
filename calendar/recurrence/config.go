package recurrence

import (
	"log/slog"
	"time"
)

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool
	CacheConfig  CacheConfig

	// MaxIterations caps the number of repetitions stepped through for a
	// single event and range (0 = DefaultMaxIterations).
	MaxIterations int

	// MonthPolicy resolves day-of-month overflow for monthly rules.
	MonthPolicy MonthPolicy
}

// DefaultMaxIterations is large enough for a daily rule started a century ago.
const DefaultMaxIterations = 100_000

// DefaultEngineConfig provides sensible defaults for an interactive view
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxIterations: DefaultMaxIterations,
	MonthPolicy:   MonthClamp,
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,
	CacheConfig:  CacheConfig{}, // Not used

	MaxIterations: DefaultMaxIterations,
	MonthPolicy:   MonthClamp,
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for soft failures (unsupported frequency,
// iteration cap). A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig, opts ...Option) *Engine {
	var cache *Cache
	if config.CacheEnabled {
		cache = NewCache(config.CacheConfig)
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}

	e := &Engine{
		cache:  cache,
		config: config,
		logger: discardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (c CacheConfig) withDefaults() CacheConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultCacheConfig.TTL
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	return c
}

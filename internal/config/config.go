package config

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/budget"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/engine"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/event"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/provider"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/ratelimit"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/server"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/snapshot"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// EnvPrefix is the prefix of environment variables that override config
// keys, e.g. ARENA_SNAPSHOT_SECRET for snapshot.secret.
const EnvPrefix = "ARENA"

// Config represents the complete arena configuration
type Config struct {
	Engine     EngineConfig    `mapstructure:"engine" yaml:"engine"`
	Budget     BudgetConfig    `mapstructure:"budget" yaml:"budget"`
	RateLimits RateLimitConfig `mapstructure:"rate_limits" yaml:"rate_limits"`
	Pricing    budget.Pricing  `mapstructure:"pricing" yaml:"pricing"`
	Snapshot   SnapshotConfig  `mapstructure:"snapshot" yaml:"snapshot"`
	Events     EventsConfig    `mapstructure:"events" yaml:"events"`
	Providers  ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Screening  ScreeningConfig `mapstructure:"screening" yaml:"screening"`
	Server     server.Config   `mapstructure:"server" yaml:"server"`
	Logging    LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// EngineConfig controls session defaults and turn execution
type EngineConfig struct {
	// DefaultFormat is used when a session does not name a format
	DefaultFormat string `mapstructure:"default_format" yaml:"default_format"`
	// DefaultTurnCount is used when a session does not set a turn count (2-10)
	DefaultTurnCount int `mapstructure:"default_turn_count" yaml:"default_turn_count"`
	// RateWaitTimeout bounds how long a turn waits for provider capacity
	RateWaitTimeout time.Duration `mapstructure:"rate_wait_timeout" yaml:"rate_wait_timeout"`
	// HeartbeatInterval is the period of heartbeat events during rate waits (0 = disabled)
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval"`
	// TurnTimeout replaces every per-kind turn timeout when positive
	TurnTimeout time.Duration `mapstructure:"turn_timeout" yaml:"turn_timeout"`
	// PersistTimeout bounds each snapshot write
	PersistTimeout time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`
	// PromptOverheadTokens is added to every input token estimate
	PromptOverheadTokens int `mapstructure:"prompt_overhead_tokens" yaml:"prompt_overhead_tokens"`
}

// BudgetConfig controls per-session token budgets
type BudgetConfig struct {
	// DefaultTokens is the token ceiling of sessions that do not set one
	DefaultTokens int `mapstructure:"default_tokens" yaml:"default_tokens"`
	// WarningPercent is the utilization that triggers a single budget warning (1-100)
	WarningPercent int `mapstructure:"warning_percent" yaml:"warning_percent"`
	// StatsTTL is how long aggregate statistics are cached
	StatsTTL time.Duration `mapstructure:"stats_ttl" yaml:"stats_ttl"`
}

// RateLimitConfig holds per-provider capacities
type RateLimitConfig struct {
	// Providers maps provider ids to their per-minute limits
	Providers map[string]ratelimit.Limits `mapstructure:"providers" yaml:"providers"`
	// Fallback applies to provider ids without an entry
	Fallback ratelimit.Limits `mapstructure:"fallback" yaml:"fallback"`
}

// Snapshot backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// SnapshotConfig controls where session snapshots are stored
type SnapshotConfig struct {
	// Backend is one of: memory, redis, sqlite
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Secret derives the snapshot encryption key. Required for durable
	// backends; usually supplied through ARENA_SNAPSHOT_SECRET.
	Secret string `mapstructure:"secret" yaml:"secret"`
	// TTL is how long a snapshot lives after its last write
	TTL         time.Duration `mapstructure:"ttl" yaml:"ttl"`
	RedisURL    string        `mapstructure:"redis_url" yaml:"redis_url"`
	RedisPrefix string        `mapstructure:"redis_prefix" yaml:"redis_prefix"`
	SQLitePath  string        `mapstructure:"sqlite_path" yaml:"sqlite_path"`
}

// EventsConfig controls the event bus
type EventsConfig struct {
	// ReplaySize is the number of recent events kept per session for replay
	ReplaySize int `mapstructure:"replay_size" yaml:"replay_size"`
}

// ProvidersConfig assigns providers to speakers and configures them
type ProvidersConfig struct {
	For       string                `mapstructure:"for" yaml:"for"`
	Against   string                `mapstructure:"against" yaml:"against"`
	Moderator string                `mapstructure:"moderator" yaml:"moderator"`
	Simulated SimulatedConfig       `mapstructure:"simulated" yaml:"simulated"`
	OpenAI    provider.OpenAIConfig `mapstructure:"openai" yaml:"openai"`
}

// SimulatedConfig tunes the offline provider
type SimulatedConfig struct {
	Latency    time.Duration `mapstructure:"latency" yaml:"latency"`
	ChunkWords int           `mapstructure:"chunk_words" yaml:"chunk_words"`
}

// ScreeningConfig controls content screening of completed debater turns
type ScreeningConfig struct {
	// Patterns are case-insensitive globs; a match publishes a violation and
	// a moderator intervention (default: none)
	Patterns []string `mapstructure:"patterns" yaml:"patterns"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// File sends logs to a rotating file instead of stderr when set
	File string `mapstructure:"file" yaml:"file"`
	// MaxSizeMB is the maximum log file size before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated backup files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	ec := engine.DefaultConfig()
	bc := budget.DefaultConfig()
	rot := logging.DefaultRotationConfig()
	return &Config{
		Engine: EngineConfig{
			DefaultFormat:        string(ec.DefaultFormat),
			DefaultTurnCount:     ec.DefaultTurnCount,
			RateWaitTimeout:      ec.RateWaitTimeout,
			HeartbeatInterval:    ec.HeartbeatInterval,
			TurnTimeout:          ec.TurnTimeout,
			PersistTimeout:       ec.PersistTimeout,
			PromptOverheadTokens: ec.PromptOverheadTokens,
		},
		Budget: BudgetConfig{
			DefaultTokens:  bc.DefaultBudgetTokens,
			WarningPercent: bc.WarningPercent,
			StatsTTL:       bc.StatsTTL,
		},
		RateLimits: RateLimitConfig{
			Providers: ratelimit.DefaultLimits(),
			Fallback:  ratelimit.DefaultFallback(),
		},
		Pricing: budget.DefaultPricing(),
		Snapshot: SnapshotConfig{
			Backend:     BackendMemory,
			TTL:         snapshot.DefaultRedisTTL,
			RedisPrefix: snapshot.DefaultRedisPrefix,
			SQLitePath:  filepath.Join(DataDir(), "snapshots.db"),
		},
		Events: EventsConfig{
			ReplaySize: event.DefaultReplaySize,
		},
		Providers: ProvidersConfig{
			For:       ec.DefaultProviders[turnplan.SpeakerFor],
			Against:   ec.DefaultProviders[turnplan.SpeakerAgainst],
			Moderator: ec.DefaultProviders[turnplan.SpeakerModerator],
			Simulated: SimulatedConfig{ChunkWords: 4},
			OpenAI: provider.OpenAIConfig{
				Model:          provider.DefaultOpenAIModel,
				MaxRetries:     2,
				RequestTimeout: 90 * time.Second,
			},
		},
		Server: server.DefaultConfig(),
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  rot.MaxSizeMB,
			MaxBackups: rot.MaxBackups,
		},
	}
}

// EngineOptions converts the engine and provider sections into engine.Config.
func (c *Config) EngineOptions() engine.Config {
	format, err := turnplan.ParseFormat(c.Engine.DefaultFormat)
	if err != nil {
		format = turnplan.FormatStandard
	}
	return engine.Config{
		DefaultFormat:       format,
		DefaultTurnCount:    c.Engine.DefaultTurnCount,
		DefaultBudgetTokens: c.Budget.DefaultTokens,
		DefaultProviders: map[turnplan.Speaker]string{
			turnplan.SpeakerFor:       c.Providers.For,
			turnplan.SpeakerAgainst:   c.Providers.Against,
			turnplan.SpeakerModerator: c.Providers.Moderator,
		},
		RateWaitTimeout:      c.Engine.RateWaitTimeout,
		HeartbeatInterval:    c.Engine.HeartbeatInterval,
		TurnTimeout:          c.Engine.TurnTimeout,
		PersistTimeout:       c.Engine.PersistTimeout,
		PromptOverheadTokens: c.Engine.PromptOverheadTokens,
	}
}

// BudgetOptions converts the budget and pricing sections into budget.Config.
func (c *Config) BudgetOptions() budget.Config {
	return budget.Config{
		DefaultBudgetTokens: c.Budget.DefaultTokens,
		WarningPercent:      c.Budget.WarningPercent,
		StatsTTL:            c.Budget.StatsTTL,
		Pricing:             c.Pricing,
	}
}

// LoggerOptions converts the logging section into logging.Options.
func (c *Config) LoggerOptions() logging.Options {
	return logging.Options{
		Level: c.Logging.Level,
		File:  c.Logging.File,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  c.Logging.MaxSizeMB,
			MaxBackups: c.Logging.MaxBackups,
		},
	}
}

// SpeakerProviders returns the distinct provider ids assigned to speakers.
func (c *Config) SpeakerProviders() []string {
	seen := make(map[string]bool, 3)
	var ids []string
	for _, id := range []string{c.Providers.For, c.Providers.Against, c.Providers.Moderator} {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// NewViper returns a viper instance with every default registered and
// ARENA_ environment overrides bound.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

// SetDefaults registers default values with v
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	// Engine defaults
	v.SetDefault("engine.default_format", defaults.Engine.DefaultFormat)
	v.SetDefault("engine.default_turn_count", defaults.Engine.DefaultTurnCount)
	v.SetDefault("engine.rate_wait_timeout", defaults.Engine.RateWaitTimeout)
	v.SetDefault("engine.heartbeat_interval", defaults.Engine.HeartbeatInterval)
	v.SetDefault("engine.turn_timeout", defaults.Engine.TurnTimeout)
	v.SetDefault("engine.persist_timeout", defaults.Engine.PersistTimeout)
	v.SetDefault("engine.prompt_overhead_tokens", defaults.Engine.PromptOverheadTokens)

	// Budget defaults
	v.SetDefault("budget.default_tokens", defaults.Budget.DefaultTokens)
	v.SetDefault("budget.warning_percent", defaults.Budget.WarningPercent)
	v.SetDefault("budget.stats_ttl", defaults.Budget.StatsTTL)

	// Rate limit defaults
	for id, l := range defaults.RateLimits.Providers {
		v.SetDefault("rate_limits.providers."+id+".requests_per_minute", l.RequestsPerMinute)
		v.SetDefault("rate_limits.providers."+id+".tokens_per_minute", l.TokensPerMinute)
	}
	v.SetDefault("rate_limits.fallback.requests_per_minute", defaults.RateLimits.Fallback.RequestsPerMinute)
	v.SetDefault("rate_limits.fallback.tokens_per_minute", defaults.RateLimits.Fallback.TokensPerMinute)

	// Pricing defaults
	for id, r := range defaults.Pricing {
		v.SetDefault("pricing."+id+".input_per_million", r.InputPerMillion)
		v.SetDefault("pricing."+id+".output_per_million", r.OutputPerMillion)
	}

	// Snapshot defaults
	v.SetDefault("snapshot.backend", defaults.Snapshot.Backend)
	v.SetDefault("snapshot.secret", defaults.Snapshot.Secret)
	v.SetDefault("snapshot.ttl", defaults.Snapshot.TTL)
	v.SetDefault("snapshot.redis_url", defaults.Snapshot.RedisURL)
	v.SetDefault("snapshot.redis_prefix", defaults.Snapshot.RedisPrefix)
	v.SetDefault("snapshot.sqlite_path", defaults.Snapshot.SQLitePath)

	// Events defaults
	v.SetDefault("events.replay_size", defaults.Events.ReplaySize)

	// Screening defaults
	v.SetDefault("screening.patterns", defaults.Screening.Patterns)

	// Provider defaults
	v.SetDefault("providers.for", defaults.Providers.For)
	v.SetDefault("providers.against", defaults.Providers.Against)
	v.SetDefault("providers.moderator", defaults.Providers.Moderator)
	v.SetDefault("providers.simulated.latency", defaults.Providers.Simulated.Latency)
	v.SetDefault("providers.simulated.chunk_words", defaults.Providers.Simulated.ChunkWords)
	v.SetDefault("providers.openai.api_key", defaults.Providers.OpenAI.APIKey)
	v.SetDefault("providers.openai.base_url", defaults.Providers.OpenAI.BaseURL)
	v.SetDefault("providers.openai.model", defaults.Providers.OpenAI.Model)
	v.SetDefault("providers.openai.max_retries", defaults.Providers.OpenAI.MaxRetries)
	v.SetDefault("providers.openai.request_timeout", defaults.Providers.OpenAI.RequestTimeout)

	// Server defaults
	v.SetDefault("server.addr", defaults.Server.Addr)
	v.SetDefault("server.keep_alive", defaults.Server.KeepAlive)
	v.SetDefault("server.stream_buffer", defaults.Server.StreamBuffer)
	v.SetDefault("server.read_header_timeout", defaults.Server.ReadHeaderTimeout)
	v.SetDefault("server.shutdown_timeout", defaults.Server.ShutdownTimeout)

	// Logging defaults
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// BindEnv makes every key of v overridable through ARENA_ prefixed variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v into a Config struct and validates it
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "arena")
	}
	// Fall back to ~/.config/arena
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arena"
	}
	return filepath.Join(home, ".config", "arena")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the directory for durable local state such as the SQLite
// snapshot database.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "arena")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arena"
	}
	return filepath.Join(home, ".local", "share", "arena")
}

// RestartRequired lists the top-level sections whose changes only take
// effect after a restart. Logging is applied live.
func RestartRequired(old, updated *Config) []string {
	var changed []string
	if old.Engine != updated.Engine {
		changed = append(changed, "engine")
	}
	if old.Budget != updated.Budget {
		changed = append(changed, "budget")
	}
	if !sameLimits(old.RateLimits, updated.RateLimits) {
		changed = append(changed, "rate_limits")
	}
	if !samePricing(old.Pricing, updated.Pricing) {
		changed = append(changed, "pricing")
	}
	if old.Snapshot != updated.Snapshot {
		changed = append(changed, "snapshot")
	}
	if old.Events != updated.Events {
		changed = append(changed, "events")
	}
	if old.Providers != updated.Providers {
		changed = append(changed, "providers")
	}
	if !slices.Equal(old.Screening.Patterns, updated.Screening.Patterns) {
		changed = append(changed, "screening")
	}
	if old.Server != updated.Server {
		changed = append(changed, "server")
	}
	if old.Logging.File != updated.Logging.File ||
		old.Logging.MaxSizeMB != updated.Logging.MaxSizeMB ||
		old.Logging.MaxBackups != updated.Logging.MaxBackups {
		changed = append(changed, "logging")
	}
	return changed
}

func sameLimits(a, b RateLimitConfig) bool {
	if a.Fallback != b.Fallback || len(a.Providers) != len(b.Providers) {
		return false
	}
	for id, l := range a.Providers {
		if other, ok := b.Providers[id]; !ok || other != l {
			return false
		}
	}
	return true
}

func samePricing(a, b budget.Pricing) bool {
	if len(a) != len(b) {
		return false
	}
	for id, r := range a {
		if other, ok := b[id]; !ok || other != r {
			return false
		}
	}
	return true
}

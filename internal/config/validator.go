package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/provider"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/turnplan"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "engine.default_turn_count")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidBackends returns the list of valid snapshot backends
func ValidBackends() []string {
	return []string{BackendMemory, BackendRedis, BackendSQLite}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateEngine()...)
	errors = append(errors, c.validateBudget()...)
	errors = append(errors, c.validateRateLimits()...)
	errors = append(errors, c.validatePricing()...)
	errors = append(errors, c.validateSnapshot()...)
	errors = append(errors, c.validateEvents()...)
	errors = append(errors, c.validateProviders()...)
	errors = append(errors, c.validateScreening()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func positiveDuration(field string, d time.Duration) []ValidationError {
	if d <= 0 {
		return []ValidationError{{Field: field, Value: d, Message: "must be positive"}}
	}
	return nil
}

func nonNegativeDuration(field string, d time.Duration) []ValidationError {
	if d < 0 {
		return []ValidationError{{Field: field, Value: d, Message: "must be non-negative"}}
	}
	return nil
}

// validateEngine validates the EngineConfig
func (c *Config) validateEngine() []ValidationError {
	var errors []ValidationError

	if _, err := turnplan.ParseFormat(c.Engine.DefaultFormat); err != nil {
		names := make([]string, 0, 3)
		for _, f := range turnplan.Formats() {
			names = append(names, string(f))
		}
		errors = append(errors, ValidationError{
			Field:   "engine.default_format",
			Value:   c.Engine.DefaultFormat,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(names, ", ")),
		})
	}

	if n := c.Engine.DefaultTurnCount; n < turnplan.MinTurnCount || n > turnplan.MaxTurnCount {
		errors = append(errors, ValidationError{
			Field:   "engine.default_turn_count",
			Value:   n,
			Message: fmt.Sprintf("must be between %d and %d", turnplan.MinTurnCount, turnplan.MaxTurnCount),
		})
	}

	errors = append(errors, positiveDuration("engine.rate_wait_timeout", c.Engine.RateWaitTimeout)...)
	errors = append(errors, nonNegativeDuration("engine.heartbeat_interval", c.Engine.HeartbeatInterval)...)
	errors = append(errors, nonNegativeDuration("engine.turn_timeout", c.Engine.TurnTimeout)...)
	errors = append(errors, positiveDuration("engine.persist_timeout", c.Engine.PersistTimeout)...)

	if c.Engine.PromptOverheadTokens < 0 {
		errors = append(errors, ValidationError{
			Field:   "engine.prompt_overhead_tokens",
			Value:   c.Engine.PromptOverheadTokens,
			Message: "must be non-negative",
		})
	}

	return errors
}

// validateBudget validates the BudgetConfig
func (c *Config) validateBudget() []ValidationError {
	var errors []ValidationError

	if c.Budget.DefaultTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "budget.default_tokens",
			Value:   c.Budget.DefaultTokens,
			Message: "must be positive",
		})
	}

	if p := c.Budget.WarningPercent; p < 1 || p > 100 {
		errors = append(errors, ValidationError{
			Field:   "budget.warning_percent",
			Value:   p,
			Message: "must be between 1 and 100",
		})
	}

	errors = append(errors, nonNegativeDuration("budget.stats_ttl", c.Budget.StatsTTL)...)

	return errors
}

// validateRateLimits validates the RateLimitConfig
func (c *Config) validateRateLimits() []ValidationError {
	var errors []ValidationError

	check := func(prefix string, requests, tokens int) {
		if requests <= 0 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".requests_per_minute",
				Value:   requests,
				Message: "must be positive",
			})
		}
		if tokens <= 0 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".tokens_per_minute",
				Value:   tokens,
				Message: "must be positive",
			})
		}
	}

	ids := make([]string, 0, len(c.RateLimits.Providers))
	for id := range c.RateLimits.Providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		l := c.RateLimits.Providers[id]
		check("rate_limits.providers."+id, l.RequestsPerMinute, l.TokensPerMinute)
	}
	check("rate_limits.fallback", c.RateLimits.Fallback.RequestsPerMinute, c.RateLimits.Fallback.TokensPerMinute)

	return errors
}

// validatePricing validates the pricing table
func (c *Config) validatePricing() []ValidationError {
	var errors []ValidationError

	ids := make([]string, 0, len(c.Pricing))
	for id := range c.Pricing {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		r := c.Pricing[id]
		if r.InputPerMillion < 0 {
			errors = append(errors, ValidationError{
				Field:   "pricing." + id + ".input_per_million",
				Value:   r.InputPerMillion,
				Message: "must be non-negative",
			})
		}
		if r.OutputPerMillion < 0 {
			errors = append(errors, ValidationError{
				Field:   "pricing." + id + ".output_per_million",
				Value:   r.OutputPerMillion,
				Message: "must be non-negative",
			})
		}
	}

	return errors
}

// validateSnapshot validates the SnapshotConfig
func (c *Config) validateSnapshot() []ValidationError {
	var errors []ValidationError

	s := c.Snapshot
	if !slices.Contains(ValidBackends(), s.Backend) {
		errors = append(errors, ValidationError{
			Field:   "snapshot.backend",
			Value:   s.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
		return errors
	}

	// A memory store dies with the process, so an ephemeral key is acceptable
	if s.Backend != BackendMemory && s.Secret == "" {
		errors = append(errors, ValidationError{
			Field:   "snapshot.secret",
			Value:   "",
			Message: fmt.Sprintf("is required for the %s backend (set %s_SNAPSHOT_SECRET)", s.Backend, EnvPrefix),
		})
	}

	errors = append(errors, positiveDuration("snapshot.ttl", s.TTL)...)

	switch s.Backend {
	case BackendRedis:
		if s.RedisURL == "" {
			errors = append(errors, ValidationError{
				Field:   "snapshot.redis_url",
				Value:   s.RedisURL,
				Message: "is required for the redis backend",
			})
		} else if u, err := url.Parse(s.RedisURL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errors = append(errors, ValidationError{
				Field:   "snapshot.redis_url",
				Value:   s.RedisURL,
				Message: "must be a redis:// or rediss:// URL",
			})
		}
	case BackendSQLite:
		if s.SQLitePath == "" {
			errors = append(errors, ValidationError{
				Field:   "snapshot.sqlite_path",
				Value:   s.SQLitePath,
				Message: "is required for the sqlite backend",
			})
		}
	}

	return errors
}

// validateScreening checks that every pattern compiles
func (c *Config) validateScreening() []ValidationError {
	var errors []ValidationError
	for i, p := range c.Screening.Patterns {
		if _, err := provider.NewPatternScreener([]string{p}); err != nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("screening.patterns[%d]", i),
				Value:   p,
				Message: "must be a valid glob pattern",
			})
		}
	}
	return errors
}

// validateEvents validates the EventsConfig
func (c *Config) validateEvents() []ValidationError {
	const maxReplaySize = 10000
	if n := c.Events.ReplaySize; n <= 0 || n > maxReplaySize {
		return []ValidationError{{
			Field:   "events.replay_size",
			Value:   n,
			Message: fmt.Sprintf("must be between 1 and %d", maxReplaySize),
		}}
	}
	return nil
}

// validateProviders validates the ProvidersConfig
func (c *Config) validateProviders() []ValidationError {
	var errors []ValidationError

	for field, id := range map[string]string{
		"providers.for":       c.Providers.For,
		"providers.against":   c.Providers.Against,
		"providers.moderator": c.Providers.Moderator,
	} {
		if strings.TrimSpace(id) == "" {
			errors = append(errors, ValidationError{Field: field, Value: id, Message: "must not be empty"})
		}
	}
	// map iteration order is random
	slices.SortFunc(errors, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })

	errors = append(errors, nonNegativeDuration("providers.simulated.latency", c.Providers.Simulated.Latency)...)
	if c.Providers.Simulated.ChunkWords < 0 {
		errors = append(errors, ValidationError{
			Field:   "providers.simulated.chunk_words",
			Value:   c.Providers.Simulated.ChunkWords,
			Message: "must be non-negative",
		})
	}

	if c.Providers.OpenAI.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "providers.openai.max_retries",
			Value:   c.Providers.OpenAI.MaxRetries,
			Message: "must be non-negative",
		})
	}
	errors = append(errors, nonNegativeDuration("providers.openai.request_timeout", c.Providers.OpenAI.RequestTimeout)...)

	return errors
}

// validateServer validates the server section
func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.Addr == "" {
		errors = append(errors, ValidationError{
			Field:   "server.addr",
			Value:   c.Server.Addr,
			Message: "must not be empty",
		})
	}
	errors = append(errors, positiveDuration("server.keep_alive", c.Server.KeepAlive)...)
	if c.Server.StreamBuffer <= 0 {
		errors = append(errors, ValidationError{
			Field:   "server.stream_buffer",
			Value:   c.Server.StreamBuffer,
			Message: "must be positive",
		})
	}
	errors = append(errors, nonNegativeDuration("server.read_header_timeout", c.Server.ReadHeaderTimeout)...)
	errors = append(errors, nonNegativeDuration("server.shutdown_timeout", c.Server.ShutdownTimeout)...)

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	// Reasonable upper bound for log file size
	const maxLogSizeMB = 1000 // 1GB
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

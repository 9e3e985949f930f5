package budget

import (
	"fmt"
	"sync"
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
)

// Config holds budget tracking configuration.
type Config struct {
	// DefaultBudgetTokens seeds sessions opened without an explicit ceiling.
	DefaultBudgetTokens int
	// WarningPercent is the utilization at which callers should warn.
	WarningPercent int
	// StatsTTL bounds the staleness of aggregate statistics.
	StatsTTL time.Duration
	// Pricing is the cost table; nil means DefaultPricing.
	Pricing Pricing
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultBudgetTokens: 20000,
		WarningPercent:      80,
		StatsTTL:            30 * time.Second,
		Pricing:             DefaultPricing(),
	}
}

// Tracker is the per-session usage ledger. It is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	config   Config
	sessions map[string]*SessionUsage
	cache    *StatsCache
	now      func() time.Time
	logger   *logging.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock overrides the time source for records and the stats cache.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a tracker.
func NewTracker(cfg Config, opts ...Option) *Tracker {
	if cfg.Pricing == nil {
		cfg.Pricing = DefaultPricing()
	}
	t := &Tracker{
		config:   cfg,
		sessions: make(map[string]*SessionUsage),
		now:      time.Now,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.cache = NewStatsCache(cfg.StatsTTL, t.now)
	return t
}

// Open registers a session with a ceiling. Zero or negative budgetTokens uses
// the configured default. Opening an already tracked session is a no-op.
func (t *Tracker) Open(sessionID string, budgetTokens int) {
	if budgetTokens <= 0 {
		budgetTokens = t.config.DefaultBudgetTokens
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[sessionID]; ok {
		return
	}
	t.sessions[sessionID] = newSessionUsage(sessionID, budgetTokens)
	t.cache.Invalidate()
}

// usageFor must be called with t.mu held for writing.
func (t *Tracker) usageFor(sessionID string) *SessionUsage {
	u, ok := t.sessions[sessionID]
	if !ok {
		u = newSessionUsage(sessionID, t.config.DefaultBudgetTokens)
		t.sessions[sessionID] = u
	}
	return u
}

// Record appends the usage of one turn and returns the updated totals.
func (t *Tracker) Record(sessionID, turnID, provider string, inputTokens, outputTokens int) (SessionUsage, error) {
	if inputTokens < 0 || outputTokens < 0 {
		return SessionUsage{}, errors.NewValidationError("token counts must not be negative").
			WithField("tokens").
			WithValue(fmt.Sprintf("%d/%d", inputTokens, outputTokens))
	}

	rec := UsageRecord{
		TurnID:       turnID,
		Provider:     provider,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      t.config.Pricing.Cost(provider, inputTokens, outputTokens),
		RecordedAt:   t.now(),
	}

	t.mu.Lock()
	u := t.usageFor(sessionID)
	u.add(rec)
	snapshot := *u.clone()
	t.cache.Invalidate()
	t.mu.Unlock()

	t.logger.Debug("usage recorded",
		"session_id", sessionID,
		"turn_id", turnID,
		"provider", provider,
		"tokens", rec.TotalTokens(),
		"cost_usd", rec.CostUSD,
		"utilization_percent", snapshot.BudgetUtilizationPercent,
	)
	return snapshot, nil
}

// Usage returns a copy of the session's usage.
func (t *Tracker) Usage(sessionID string) (SessionUsage, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.sessions[sessionID]
	if !ok {
		return SessionUsage{}, false
	}
	return *u.clone(), true
}

// CanAfford reports whether the session can spend projected more tokens.
// Untracked sessions are checked against the default budget.
func (t *Tracker) CanAfford(sessionID string, projected int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.sessions[sessionID]
	if !ok {
		return projected <= t.config.DefaultBudgetTokens
	}
	return !u.WouldExceed(projected)
}

// Exhausted reports whether a tracked session has used its whole budget.
func (t *Tracker) Exhausted(sessionID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.sessions[sessionID]
	return ok && u.Exhausted()
}

// ShouldWarn reports whether utilization has reached the warning threshold.
func (t *Tracker) ShouldWarn(u SessionUsage) bool {
	return t.config.WarningPercent > 0 && u.BudgetUtilizationPercent >= t.config.WarningPercent
}

// Restore replaces a session's ledger, used when rehydrating a session from
// storage.
func (t *Tracker) Restore(u SessionUsage) {
	c := u.clone()
	c.recompute()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[u.SessionID] = c
	t.cache.Invalidate()
}

// Forget drops a session's ledger.
func (t *Tracker) Forget(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.sessions[sessionID]; ok {
		delete(t.sessions, sessionID)
		t.cache.Invalidate()
	}
}

// Stats returns aggregate statistics, recomputing at most once per TTL unless
// a write invalidates the cache.
func (t *Tracker) Stats() Stats {
	if s, ok := t.cache.Get(); ok {
		return s
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		Sessions:   len(t.sessions),
		ByProvider: make(map[string]ProviderStats),
		ComputedAt: t.now(),
	}
	for _, u := range t.sessions {
		s.TotalTokens += u.TotalTokens
		s.TotalCostUSD += u.TotalCostUSD
		if u.Exhausted() {
			s.ExhaustedCount++
		}
		for _, r := range u.Records {
			p := s.ByProvider[r.Provider]
			p.Calls++
			p.InputTokens += r.InputTokens
			p.OutputTokens += r.OutputTokens
			p.CostUSD = roundCost(p.CostUSD + r.CostUSD)
			s.ByProvider[r.Provider] = p
		}
	}
	s.TotalCostUSD = roundCost(s.TotalCostUSD)
	if s.Sessions > 0 {
		s.AverageTokens = float64(s.TotalTokens) / float64(s.Sessions)
	}

	// Writers invalidate under the write lock, so storing while holding the
	// read lock cannot cache a value that is already stale.
	t.cache.Set(s)
	return s
}

package budget

import (
	"sync"
	"time"
)

// Stats aggregates usage across every tracked session.
type Stats struct {
	Sessions       int                      `json:"sessions"`
	TotalTokens    int                      `json:"totalTokens"`
	TotalCostUSD   float64                  `json:"totalCostUsd"`
	AverageTokens  float64                  `json:"averageTokensPerSession"`
	ByProvider     map[string]ProviderStats `json:"byProvider"`
	ComputedAt     time.Time                `json:"computedAt"`
	ExhaustedCount int                      `json:"exhaustedSessions"`
}

// ProviderStats is the usage attributed to one provider.
type ProviderStats struct {
	Calls        int     `json:"calls"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
}

// StatsCache holds one computed Stats value for a bounded time.
type StatsCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	value    *Stats
	storedAt time.Time
}

// NewStatsCache creates a cache whose entries expire after ttl.
func NewStatsCache(ttl time.Duration, now func() time.Time) *StatsCache {
	if now == nil {
		now = time.Now
	}
	return &StatsCache{ttl: ttl, now: now}
}

// Get returns the cached value, or false when empty or expired.
func (c *StatsCache) Get() (Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil || c.now().Sub(c.storedAt) >= c.ttl {
		return Stats{}, false
	}
	return *c.value, true
}

// Set stores s.
func (c *StatsCache) Set(s Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = &s
	c.storedAt = c.now()
}

// Invalidate drops the cached value.
func (c *StatsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}

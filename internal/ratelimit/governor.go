package ratelimit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
)

// Limits are the nominal per-minute capacities of one provider.
type Limits struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	TokensPerMinute   int `mapstructure:"tokens_per_minute" yaml:"tokens_per_minute"`
}

// Status is a point-in-time view of a provider's remaining capacity.
type Status struct {
	Provider          string
	RequestsRemaining float64
	TokensRemaining   float64
	Limits            Limits
}

// Governor checks, consumes, and waits for provider capacity.
type Governor interface {
	// CanProceed reports whether one request and estimatedTokens tokens are available.
	CanProceed(provider string, estimatedTokens int) bool
	// Consume takes one request and tokens from the provider's buckets.
	// It fails without consuming anything when capacity is insufficient.
	Consume(provider string, tokens int) error
	// WaitForCapacity blocks until CanProceed would return true or ctx is done.
	WaitForCapacity(ctx context.Context, provider string, estimatedTokens int) error
	// Status reports the provider's remaining capacity.
	Status(provider string) Status
}

// Maximum sleep between capacity checks in WaitForCapacity.
const maxPollInterval = 5 * time.Second

// Maximum random jitter added to each poll so waiting sessions spread out.
const maxJitter = 250 * time.Millisecond

// bucket pairs the request and token limiters of one provider.
type bucket struct {
	limits   Limits
	requests *rate.Limiter
	tokens   *rate.Limiter
}

func newBucket(l Limits) *bucket {
	return &bucket{
		limits:   l,
		requests: rate.NewLimiter(perMinute(l.RequestsPerMinute), l.RequestsPerMinute),
		tokens:   rate.NewLimiter(perMinute(l.TokensPerMinute), l.TokensPerMinute),
	}
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// Local is an in-memory Governor. It is safe for concurrent use.
type Local struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	limits   map[string]Limits
	fallback Limits
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	onWait   func(provider string, wait time.Duration)
	logger   *logging.Logger
}

// Option configures a Local governor.
type Option func(*Local)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Local) { l.now = now }
}

// WithSleeper overrides how WaitForCapacity pauses between polls, for tests.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Local) { l.sleep = sleep }
}

// WithWaitHook registers a callback invoked before every poll sleep.
func WithWaitHook(fn func(provider string, wait time.Duration)) Option {
	return func(l *Local) { l.onWait = fn }
}

// WithLogger sets the logger used for wait diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(l *Local) { l.logger = logger }
}

// NewLocal creates a governor with per-provider limits. Providers missing from
// limits use fallback.
func NewLocal(limits map[string]Limits, fallback Limits, opts ...Option) *Local {
	copied := make(map[string]Limits, len(limits))
	for k, v := range limits {
		copied[k] = v
	}
	l := &Local{
		buckets:  make(map[string]*bucket),
		limits:   copied,
		fallback: fallback,
		now:      time.Now,
		sleep:    sleepContext,
		logger:   logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// bucketFor must be called with l.mu held. Buckets are created lazily and
// start full.
func (l *Local) bucketFor(provider string) *bucket {
	b, ok := l.buckets[provider]
	if !ok {
		lim, found := l.limits[provider]
		if !found {
			lim = l.fallback
		}
		b = newBucket(lim)
		l.buckets[provider] = b
	}
	return b
}

// CanProceed implements Governor.
func (l *Local) CanProceed(provider string, estimatedTokens int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketFor(provider)
	now := l.now()
	return b.requests.TokensAt(now) >= 1 && b.tokens.TokensAt(now) >= float64(estimatedTokens)
}

// Consume implements Governor. Both buckets are debited together or not at all.
func (l *Local) Consume(provider string, tokens int) error {
	if tokens < 0 {
		return errors.NewValidationError("token count must not be negative").WithField("tokens").WithValue(tokens)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketFor(provider)
	if tokens > b.limits.TokensPerMinute {
		return fmt.Errorf("%w: %d tokens > %d per minute for %s", errors.ErrExceedsCapacity, tokens, b.limits.TokensPerMinute, provider)
	}

	now := l.now()
	if b.requests.TokensAt(now) < 1 || b.tokens.TokensAt(now) < float64(tokens) {
		return fmt.Errorf("%w: provider %s has no capacity", errors.ErrRateLimitTimeout, provider)
	}
	b.requests.AllowN(now, 1)
	if tokens > 0 {
		b.tokens.AllowN(now, tokens)
	}
	return nil
}

// WaitForCapacity implements Governor. It polls, sleeping for the time until
// enough capacity refills plus jitter (never more than five seconds), until
// capacity is available or ctx ends. Requests larger than the provider's
// per-minute token capacity fail immediately since they can never fit.
func (l *Local) WaitForCapacity(ctx context.Context, provider string, estimatedTokens int) error {
	for {
		l.mu.Lock()
		b := l.bucketFor(provider)
		if estimatedTokens > b.limits.TokensPerMinute {
			l.mu.Unlock()
			return fmt.Errorf("%w: %d tokens > %d per minute for %s", errors.ErrExceedsCapacity, estimatedTokens, b.limits.TokensPerMinute, provider)
		}
		wait := timeUntilAvailable(b, l.now(), estimatedTokens)
		l.mu.Unlock()

		if wait <= 0 {
			return nil
		}

		wait += rand.N(maxJitter)
		if wait > maxPollInterval {
			wait = maxPollInterval
		}

		l.logger.Debug("waiting for rate capacity",
			"provider", provider,
			"estimated_tokens", estimatedTokens,
			"wait_ms", wait.Milliseconds(),
		)
		if l.onWait != nil {
			l.onWait(provider, wait)
		}
		if err := l.sleep(ctx, wait); err != nil {
			return fmt.Errorf("%w: provider %s: %v", errors.ErrRateLimitTimeout, provider, err)
		}
	}
}

// timeUntilAvailable returns how long until one request and tokens tokens
// have refilled; zero when they are available now.
func timeUntilAvailable(b *bucket, now time.Time, tokens int) time.Duration {
	var wait time.Duration
	if deficit := 1 - b.requests.TokensAt(now); deficit > 0 {
		wait = max(wait, refillTime(deficit, b.limits.RequestsPerMinute))
	}
	if deficit := float64(tokens) - b.tokens.TokensAt(now); deficit > 0 {
		wait = max(wait, refillTime(deficit, b.limits.TokensPerMinute))
	}
	return wait
}

func refillTime(deficit float64, perMinuteCapacity int) time.Duration {
	if perMinuteCapacity <= 0 {
		return maxPollInterval
	}
	seconds := deficit * 60.0 / float64(perMinuteCapacity)
	return max(time.Duration(seconds*float64(time.Second)), time.Millisecond)
}

// Status implements Governor.
func (l *Local) Status(provider string) Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketFor(provider)
	now := l.now()
	return Status{
		Provider:          provider,
		RequestsRemaining: b.requests.TokensAt(now),
		TokensRemaining:   b.tokens.TokensAt(now),
		Limits:            b.limits,
	}
}

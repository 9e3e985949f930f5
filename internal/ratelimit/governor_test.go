package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestGovernor(clock *fakeClock, opts ...Option) *Local {
	limits := map[string]Limits{
		"openai": {RequestsPerMinute: 2, TokensPerMinute: 600},
	}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewLocal(limits, Limits{RequestsPerMinute: 10, TokensPerMinute: 1000}, opts...)
}

func TestLocal_StartsFull(t *testing.T) {
	g := newTestGovernor(newFakeClock())

	st := g.Status("openai")
	assert.InDelta(t, 2, st.RequestsRemaining, 1e-9)
	assert.InDelta(t, 600, st.TokensRemaining, 1e-9)
	assert.True(t, g.CanProceed("openai", 600))
	assert.False(t, g.CanProceed("openai", 601))
}

func TestLocal_ConsumeDebitsBothBuckets(t *testing.T) {
	g := newTestGovernor(newFakeClock())

	require.NoError(t, g.Consume("openai", 400))
	st := g.Status("openai")
	assert.InDelta(t, 1, st.RequestsRemaining, 1e-9)
	assert.InDelta(t, 200, st.TokensRemaining, 1e-9)

	assert.False(t, g.CanProceed("openai", 300))
	assert.True(t, g.CanProceed("openai", 200))
}

func TestLocal_ConsumeRejectsWithoutGoingNegative(t *testing.T) {
	g := newTestGovernor(newFakeClock())

	require.NoError(t, g.Consume("openai", 500))
	err := g.Consume("openai", 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimitTimeout))

	st := g.Status("openai")
	assert.InDelta(t, 1, st.RequestsRemaining, 1e-9, "rejected consume must not take a request")
	assert.InDelta(t, 100, st.TokensRemaining, 1e-9)
}

func TestLocal_RequestBucketExhausts(t *testing.T) {
	g := newTestGovernor(newFakeClock())

	require.NoError(t, g.Consume("openai", 1))
	require.NoError(t, g.Consume("openai", 1))
	assert.False(t, g.CanProceed("openai", 0))
	assert.Error(t, g.Consume("openai", 0))
}

func TestLocal_LinearRefillCappedAtCapacity(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)

	require.NoError(t, g.Consume("openai", 600))
	assert.InDelta(t, 0, g.Status("openai").TokensRemaining, 1e-9)

	clock.Advance(30 * time.Second)
	assert.InDelta(t, 300, g.Status("openai").TokensRemaining, 1e-6)

	clock.Advance(30 * time.Second)
	assert.InDelta(t, 600, g.Status("openai").TokensRemaining, 1e-6)

	clock.Advance(10 * time.Minute)
	st := g.Status("openai")
	assert.InDelta(t, 600, st.TokensRemaining, 1e-6, "capacity never exceeds the per-minute ceiling")
	assert.InDelta(t, 2, st.RequestsRemaining, 1e-6)
}

func TestLocal_ExceedsCapacity(t *testing.T) {
	g := newTestGovernor(newFakeClock())

	err := g.Consume("openai", 601)
	assert.True(t, errors.Is(err, errors.ErrExceedsCapacity))

	err = g.WaitForCapacity(context.Background(), "openai", 601)
	assert.True(t, errors.Is(err, errors.ErrExceedsCapacity))
}

func TestLocal_NegativeTokensRejected(t *testing.T) {
	g := newTestGovernor(newFakeClock())
	err := g.Consume("openai", -1)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestLocal_UnknownProviderUsesFallback(t *testing.T) {
	g := newTestGovernor(newFakeClock())
	st := g.Status("mystery")
	assert.Equal(t, Limits{RequestsPerMinute: 10, TokensPerMinute: 1000}, st.Limits)
}

func TestLocal_BucketsSharedAcrossCallers(t *testing.T) {
	g := newTestGovernor(newFakeClock())

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Consume("openai", 10) == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, succeeded, "only the request capacity worth of callers can proceed")
}

func TestLocal_WaitForCapacity_ReturnsImmediatelyWhenAvailable(t *testing.T) {
	slept := false
	g := newTestGovernor(newFakeClock(), WithSleeper(func(context.Context, time.Duration) error {
		slept = true
		return nil
	}))

	require.NoError(t, g.WaitForCapacity(context.Background(), "openai", 100))
	assert.False(t, slept)
}

func TestLocal_WaitForCapacity_SleepsUntilRefill(t *testing.T) {
	clock := newFakeClock()
	var waits []time.Duration
	var hooked []string

	g := newTestGovernor(clock,
		WithSleeper(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			clock.Advance(d)
			return nil
		}),
		WithWaitHook(func(provider string, _ time.Duration) {
			hooked = append(hooked, provider)
		}),
	)

	require.NoError(t, g.Consume("openai", 600))

	// 300 tokens need 30s to refill; each poll sleeps at most 5s.
	require.NoError(t, g.WaitForCapacity(context.Background(), "openai", 300))
	require.NotEmpty(t, waits)
	for _, w := range waits {
		assert.LessOrEqual(t, w, maxPollInterval)
		assert.Positive(t, w)
	}
	assert.Len(t, hooked, len(waits))
	assert.True(t, g.CanProceed("openai", 300))
}

func TestLocal_WaitForCapacity_HonorsContext(t *testing.T) {
	clock := newFakeClock()
	g := newTestGovernor(clock)
	require.NoError(t, g.Consume("openai", 600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.WaitForCapacity(ctx, "openai", 600)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRateLimitTimeout))
	assert.Equal(t, errors.CodeRateLimitTimeout, errors.Code(err))
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()
	for _, p := range []string{"openai", "anthropic", "xai", "google", "simulated"} {
		l, ok := limits[p]
		require.True(t, ok, "missing provider %s", p)
		assert.Positive(t, l.RequestsPerMinute)
		assert.Positive(t, l.TokensPerMinute)
	}
}

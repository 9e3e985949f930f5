package snapshot

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
)

func TestStore_RoundTripAcrossBackends(t *testing.T) {
	for _, f := range backendFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(f.open(t), sharedCipher(t))

			rec := sampleRecord("s1")
			require.NoError(t, store.Save(ctx, rec))

			got, ok, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, rec, got)

			exists, err := store.Exists(ctx, "s1")
			require.NoError(t, err)
			assert.True(t, exists)

			deleted, err := store.Delete(ctx, "s1")
			require.NoError(t, err)
			assert.True(t, deleted)

			got, ok, err = store.Load(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Nil(t, got)
		})
	}
}

func TestStore_TimestampsRoundTrip(t *testing.T) {
	rec := sampleRecord("s1")
	started := ParseTime(rec.StartedAt)
	assert.Equal(t, 123456789, started.Nanosecond())
	assert.Equal(t, rec.StartedAt, FormatTime(started))
	assert.True(t, ParseTime("").IsZero())
	assert.True(t, ParseTime("garbage").IsZero())
	assert.Equal(t, "", FormatTime(ParseTime("")))
}

func TestStore_CorruptEntryIsNotFoundAndRemoved(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	store := NewStore(backend, sharedCipher(t))

	require.NoError(t, store.Save(ctx, sampleRecord("s1")))

	env, _, _ := backend.Get(ctx, "s1")
	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x80
	require.NoError(t, backend.Put(ctx, "s1", base64.StdEncoding.EncodeToString(raw)))

	got, ok, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	exists, err := backend.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, exists, "unreadable entry must be deleted")
}

func TestStore_ExistsAgreesWithLoadOnCorruptEntry(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	store := NewStore(backend, sharedCipher(t))

	require.NoError(t, store.Save(ctx, sampleRecord("s1")))
	exists, err := store.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, backend.Put(ctx, "s1", "%%%"))

	exists, err = store.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, exists)
	_, found, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, found)

	raw, err := backend.Exists(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, raw, "unreadable entry must be deleted")
}

func TestStore_GarbageEntry(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend(0)
	require.NoError(t, backend.Put(ctx, "s1", "%%%"))

	_, ok, err := NewStore(backend, sharedCipher(t)).Load(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_UpdateIncrementsVersion(t *testing.T) {
	for _, f := range backendFactories() {
		t.Run(f.name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(f.open(t), sharedCipher(t))
			require.NoError(t, store.Save(ctx, sampleRecord("s1")))

			updated, err := store.Update(ctx, "s1", func(r *Record) error {
				r.Status = "paused"
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), updated.Version)

			got, ok, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "paused", got.Status)
			assert.Equal(t, int64(1), got.Version)
		})
	}
}

func TestStore_UpdateMissing(t *testing.T) {
	store := NewStore(NewMemoryBackend(0), sharedCipher(t))
	_, err := store.Update(context.Background(), "nope", func(*Record) error { return nil })
	assert.True(t, errors.Is(err, errors.ErrSessionNotFound))
}

func TestStore_UpdatePropagatesCallbackError(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(0), sharedCipher(t))
	require.NoError(t, store.Save(ctx, sampleRecord("s1")))

	boom := errors.New("boom")
	_, err := store.Update(ctx, "s1", func(*Record) error { return boom })
	assert.ErrorIs(t, err, boom)
}

// racingBackend lets another writer sneak in before every swap.
type racingBackend struct {
	*MemoryBackend
	store *Store
	races int
}

func (r *racingBackend) Swap(ctx context.Context, key, old, value string) (bool, error) {
	if r.races > 0 {
		r.races--
		rec, _, _ := r.store.Load(ctx, key)
		rec.Topic += "!"
		if err := r.store.Save(ctx, rec); err != nil {
			return false, err
		}
	}
	return r.MemoryBackend.Swap(ctx, key, old, value)
}

func TestStore_UpdateRetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	backend := &racingBackend{MemoryBackend: NewMemoryBackend(0), races: 2}
	store := NewStore(backend, sharedCipher(t))
	backend.store = NewStore(backend.MemoryBackend, sharedCipher(t))
	require.NoError(t, store.Save(ctx, sampleRecord("s1")))

	attempts := 0
	rec, err := store.Update(ctx, "s1", func(r *Record) error {
		attempts++
		r.Status = "paused"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "Cities should ban cars!!", rec.Topic, "retry must start from the latest state")
}

func TestStore_UpdateGivesUpWithConflict(t *testing.T) {
	ctx := context.Background()
	backend := &racingBackend{MemoryBackend: NewMemoryBackend(0), races: 10}
	store := NewStore(backend, sharedCipher(t), WithUpdateRetries(2))
	backend.store = NewStore(backend.MemoryBackend, sharedCipher(t))
	require.NoError(t, store.Save(ctx, sampleRecord("s1")))

	_, err := store.Update(ctx, "s1", func(*Record) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.Equal(t, errors.CodeConflict, errors.Code(err))
}

// plainBackend hides the optional capabilities of the memory backend.
type plainBackend struct{ inner *MemoryBackend }

func (p plainBackend) Put(ctx context.Context, k, v string) error { return p.inner.Put(ctx, k, v) }
func (p plainBackend) Get(ctx context.Context, k string) (string, bool, error) {
	return p.inner.Get(ctx, k)
}
func (p plainBackend) Delete(ctx context.Context, k string) (bool, error) {
	return p.inner.Delete(ctx, k)
}
func (p plainBackend) Exists(ctx context.Context, k string) (bool, error) {
	return p.inner.Exists(ctx, k)
}

func TestStore_IntrospectionCapabilities(t *testing.T) {
	ctx := context.Background()

	mem := NewStore(NewMemoryBackend(0), sharedCipher(t))
	require.NoError(t, mem.Save(ctx, sampleRecord("b")))
	require.NoError(t, mem.Save(ctx, sampleRecord("a")))

	n, ok, err := mem.Count(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	ids, ok, err := mem.ListIDs(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids)

	plain := NewStore(plainBackend{NewMemoryBackend(0)}, sharedCipher(t))
	_, ok, err = plain.Count(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = plain.ListIDs(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_UpdateWithoutSwapper(t *testing.T) {
	ctx := context.Background()
	store := NewStore(plainBackend{NewMemoryBackend(0)}, sharedCipher(t))
	require.NoError(t, store.Save(ctx, sampleRecord("s1")))

	rec, err := store.Update(ctx, "s1", func(r *Record) error {
		r.Status = "cancelled"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", rec.Status)
}

func TestStore_ConcurrentUpdatesAreSerialized(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(0), sharedCipher(t), WithUpdateRetries(100))
	require.NoError(t, store.Save(ctx, sampleRecord("s1")))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "s1", func(r *Record) error {
				r.BudgetTokens++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, _, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 20008, rec.BudgetTokens)
	assert.Equal(t, int64(8), rec.Version)
}

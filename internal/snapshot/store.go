package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/errors"
	"github.com/dinesh-git17/llm-debate-arena-sub001/internal/logging"
)

// DefaultUpdateRetries bounds compare-and-swap attempts in Update.
const DefaultUpdateRetries = 3

// Store encrypts records and persists them through a Backend.
type Store struct {
	backend Backend
	cipher  *Cipher
	logger  *logging.Logger
	retries int
	now     func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the store's logger.
func WithStoreLogger(logger *logging.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithUpdateRetries overrides DefaultUpdateRetries.
func WithUpdateRetries(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.retries = n
		}
	}
}

// WithStoreClock overrides the time source used for UpdatedAt.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store.
func NewStore(backend Backend, c *Cipher, opts ...StoreOption) *Store {
	s := &Store{
		backend: backend,
		cipher:  c,
		logger:  logging.NopLogger(),
		retries: DefaultUpdateRetries,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) encode(rec *Record) (string, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot %s: %w", rec.ID, err)
	}
	return s.cipher.Seal(data)
}

func (s *Store) decode(envelope string) (*Record, error) {
	data, err := s.cipher.Open(envelope)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", errors.ErrSnapshotCorrupted, err)
	}
	return &rec, nil
}

// discard removes an unreadable entry. Failures are logged, not returned:
// the caller already treats the entry as absent.
func (s *Store) discard(ctx context.Context, id string, cause error) {
	s.logger.Warn("discarding unreadable snapshot", "session_id", id, "error", cause.Error())
	if _, err := s.backend.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete unreadable snapshot", "session_id", id, "error", err.Error())
	}
}

// Save writes rec unconditionally, stamping UpdatedAt.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = FormatTime(s.now())
	env, err := s.encode(rec)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, rec.ID, env); err != nil {
		return fmt.Errorf("save snapshot %s: %w", rec.ID, err)
	}
	return nil
}

// load returns the record and its raw envelope.
func (s *Store) load(ctx context.Context, id string) (*Record, string, bool, error) {
	env, ok, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, "", false, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	if !ok {
		return nil, "", false, nil
	}
	rec, err := s.decode(env)
	if err != nil {
		s.discard(ctx, id, err)
		return nil, "", false, nil
	}
	return rec, env, true, nil
}

// Load returns the record for id. A missing or unreadable entry reports
// false with a nil error.
func (s *Store) Load(ctx context.Context, id string) (*Record, bool, error) {
	rec, _, ok, err := s.load(ctx, id)
	return rec, ok, err
}

// Delete removes id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := s.backend.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	return ok, nil
}

// Exists reports whether a readable entry is stored for id. An entry that
// fails to decode is discarded and reported as absent, matching Load.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_, _, ok, err := s.load(ctx, id)
	return ok, err
}

// Update loads id, applies fn, and writes the result with Version
// incremented. On backends implementing Swapper the write is a
// compare-and-swap against the loaded envelope and is retried on conflict;
// when retries run out the error wraps errors.ErrConflict. Other backends
// fall back to an unconditional write.
func (s *Store) Update(ctx context.Context, id string, fn func(*Record) error) (*Record, error) {
	swapper, canSwap := s.backend.(Swapper)

	for attempt := 1; ; attempt++ {
		rec, old, ok, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.NewNotFoundError("session", id)
		}

		if err := fn(rec); err != nil {
			return nil, err
		}
		rec.ID = id
		rec.Version++
		rec.UpdatedAt = FormatTime(s.now())

		env, err := s.encode(rec)
		if err != nil {
			return nil, err
		}

		if !canSwap {
			if err := s.backend.Put(ctx, id, env); err != nil {
				return nil, fmt.Errorf("save snapshot %s: %w", id, err)
			}
			return rec, nil
		}

		swapped, err := swapper.Swap(ctx, id, old, env)
		if err != nil {
			return nil, fmt.Errorf("swap snapshot %s: %w", id, err)
		}
		if swapped {
			return rec, nil
		}

		s.logger.Debug("snapshot update conflict", "session_id", id, "attempt", attempt)
		if attempt >= s.retries {
			return nil, fmt.Errorf("%w: snapshot %s changed during %d update attempts", errors.ErrConflict, id, attempt)
		}
	}
}

// Count returns the number of live snapshots. ok is false when the backend
// cannot count cheaply.
func (s *Store) Count(ctx context.Context) (n int, ok bool, err error) {
	c, supported := s.backend.(Counter)
	if !supported {
		return 0, false, nil
	}
	n, err = c.Count(ctx)
	if err != nil {
		return 0, true, fmt.Errorf("count snapshots: %w", err)
	}
	return n, true, nil
}

// ListIDs returns the ids of live snapshots. ok is false when the backend
// cannot enumerate cheaply.
func (s *Store) ListIDs(ctx context.Context) (ids []string, ok bool, err error) {
	l, supported := s.backend.(Lister)
	if !supported {
		return nil, false, nil
	}
	ids, err = l.List(ctx)
	if err != nil {
		return nil, true, fmt.Errorf("list snapshots: %w", err)
	}
	return ids, true, nil
}

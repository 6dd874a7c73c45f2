package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	internalErrors "payment-gateway/internal/errors"

	"github.com/go-redis/redis/v8"
)

var ErrStateNotFound = errors.New("circuit state not found")

const keyPrefix = "circuit_breaker:"

func Key(name string) string {
	return keyPrefix + name
}

// StateStore is the slice of the shared store the breaker needs. Each call
// is a single atomic store operation.
type StateStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}

type RedisStateStore struct {
	rc *redis.Client
}

func NewRedisStateStore(rc *redis.Client) *RedisStateStore {
	return &RedisStateStore{rc: rc}
}

func (r *RedisStateStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := r.rc.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStateNotFound
		}
		return nil, &internalErrors.TransportError{Op: "GET", Target: key, Err: err}
	}
	return raw, nil
}

func (r *RedisStateStore) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rc.Set(ctx, key, value, 0).Err(); err != nil {
		return &internalErrors.TransportError{Op: "SET", Target: key, Err: err}
	}
	return nil
}

func (r *RedisStateStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rc.Exists(ctx, key).Result()
	if err != nil {
		return false, &internalErrors.TransportError{Op: "EXISTS", Target: key, Err: err}
	}
	return n > 0, nil
}

type Store struct {
	ss  StateStore
	log *slog.Logger
	now func() time.Time
}

type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(ss StateStore, log *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		ss:  ss,
		log: log.With("component", "breaker"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Now() time.Time {
	return s.now()
}

// Load never fails: a missing, corrupted or unreachable record reads as
// Closed so that the gateway itself does not become the outage.
func (s *Store) Load(ctx context.Context, name string) CircuitBreakerState {
	raw, err := s.ss.Get(ctx, Key(name))
	if err != nil {
		if !errors.Is(err, ErrStateNotFound) {
			s.log.Warn("failed to load circuit state, assuming closed", "processor", name, "error", err)
		}
		return New(name)
	}

	state, err := Unmarshal(raw)
	if err != nil {
		s.log.Warn("corrupted circuit state, assuming closed", "processor", name, "error", err)
		return New(name)
	}
	state.Name = name

	return state
}

// Save overwrites the record. Errors are logged and returned for callers
// that care; the loops ignore them since the next cycle rewrites the record.
func (s *Store) Save(ctx context.Context, state CircuitBreakerState) error {
	raw, err := Marshal(state)
	if err != nil {
		s.log.Error("failed to encode circuit state", "processor", state.Name, "error", err)
		return err
	}

	if err := s.ss.Set(ctx, Key(state.Name), raw); err != nil {
		s.log.Error("failed to save circuit state", "processor", state.Name, "error", err)
		return err
	}

	return nil
}

// Init writes a Closed record for name unless one already exists.
func (s *Store) Init(ctx context.Context, name string) error {
	exists, err := s.ss.Exists(ctx, Key(name))
	if err != nil {
		s.log.Warn("failed to check circuit state", "processor", name, "error", err)
		return err
	}
	if exists {
		return nil
	}
	return s.Save(ctx, New(name))
}

// Report feeds a request outcome into the named breaker and persists the
// result. Concurrent reporters race with last-writer-wins.
func (s *Store) Report(ctx context.Context, name string, success bool) CircuitBreakerState {
	current := s.Load(ctx, name)
	next := OnRequestResult(current, success, s.now())

	if next.State != current.State {
		s.log.Info("circuit state changed", "processor", name, "from", current.State, "to", next.State)
	}
	if next.State != current.State || !sameTime(next.OpenedAt, current.OpenedAt) {
		_ = s.Save(ctx, next)
	}

	return next
}

func (s *Store) Trip(ctx context.Context, name string) (CircuitBreakerState, error) {
	state := Trip(s.Load(ctx, name), s.now())
	return state, s.Save(ctx, state)
}

func (s *Store) Reset(ctx context.Context, name string) (CircuitBreakerState, error) {
	state := Reset(s.Load(ctx, name))
	return state, s.Save(ctx, state)
}

func (s *Store) List(ctx context.Context, names []string) []CircuitBreakerState {
	states := make([]CircuitBreakerState, 0, len(names))
	for _, name := range names {
		states = append(states, s.Load(ctx, name))
	}
	return states
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

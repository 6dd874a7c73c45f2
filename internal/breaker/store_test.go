package breaker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, now func() time.Time) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rc.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(NewRedisStateStore(rc), log, WithClock(now)), mr
}

func TestStore_LoadAbsentIsClosed(t *testing.T) {
	s, _ := newTestStore(t, func() time.Time { return t0 })

	require.Equal(t, New("default"), s.Load(context.Background(), "default"))
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, func() time.Time { return t0 })

	require.NoError(t, s.Save(ctx, openAt("default", t0)))
	require.True(t, mr.Exists(Key("default")))

	got := s.Load(ctx, "default")
	require.Equal(t, Open, got.State)
	require.True(t, t0.Equal(*got.OpenedAt))
}

func TestStore_LoadCorruptedIsClosed(t *testing.T) {
	s, mr := newTestStore(t, func() time.Time { return t0 })
	require.NoError(t, mr.Set(Key("fallback"), "HALF_OPEN"))

	require.Equal(t, New("fallback"), s.Load(context.Background(), "fallback"))
}

func TestStore_StoreUnreachableFailsOpen(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, func() time.Time { return t0 })
	require.NoError(t, s.Save(ctx, openAt("default", t0)))

	mr.Close()

	require.Equal(t, New("default"), s.Load(ctx, "default"))
	require.Error(t, s.Save(ctx, New("default")))
}

func TestStore_InitKeepsExistingRecord(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, func() time.Time { return t0 })

	require.NoError(t, s.Init(ctx, "default"))
	raw, err := mr.Get(Key("default"))
	require.NoError(t, err)
	require.Equal(t, New("default"), Decode("default", []byte(raw)))

	require.NoError(t, s.Save(ctx, openAt("default", t0)))
	require.NoError(t, s.Init(ctx, "default"))
	require.Equal(t, Open, s.Load(ctx, "default").State)
}

func TestStore_Report(t *testing.T) {
	ctx := context.Background()
	now := t0
	s, _ := newTestStore(t, func() time.Time { return now })

	state := s.Report(ctx, "default", false)
	require.Equal(t, Open, state.State)
	require.Equal(t, Open, s.Load(ctx, "default").State)

	now = now.Add(time.Second)
	state = s.Report(ctx, "default", false)
	require.True(t, t0.Equal(*state.OpenedAt))

	require.NoError(t, s.Save(ctx, halfOpenAt("default", t0)))
	state = s.Report(ctx, "default", true)
	require.Equal(t, Closed, state.State)
	require.Equal(t, New("default"), s.Load(ctx, "default"))
}

func TestStore_TripResetList(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, func() time.Time { return t0 })

	_, err := s.Trip(ctx, "fallback")
	require.NoError(t, err)

	states := s.List(ctx, []string{"default", "fallback"})
	require.Len(t, states, 2)
	require.Equal(t, Closed, states[0].State)
	require.Equal(t, Open, states[1].State)

	for i := 0; i < 2; i++ {
		state, err := s.Reset(ctx, "fallback")
		require.NoError(t, err)
		require.Equal(t, New("fallback"), state)
	}
}

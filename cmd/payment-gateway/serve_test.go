package main

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	listenErr error
	closed    chan struct{}
	shutdowns atomic.Int32
}

func newFakeServer(listenErr error) *fakeServer {
	return &fakeServer{listenErr: listenErr, closed: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.closed
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(ctx context.Context) error {
	if f.shutdowns.Add(1) == 1 && f.listenErr == nil {
		close(f.closed)
	}
	return nil
}

// loop records whether it was still running when run returned.
type loop struct {
	running atomic.Bool
}

func (l *loop) run(ctx context.Context) {
	l.running.Store(true)
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	l.running.Store(false)
}

func TestRun_ServerFailureStopsLoops(t *testing.T) {
	listenErr := errors.New("listen tcp :9999: bind: address already in use")
	srv := newFakeServer(listenErr)
	loops := []*loop{{}, {}}

	err := run(context.Background(), srv, loops[0].run, loops[1].run)

	require.ErrorIs(t, err, listenErr)
	require.EqualValues(t, 1, srv.shutdowns.Load())
	for _, l := range loops {
		require.False(t, l.running.Load())
	}
}

func TestRun_CancelShutsDownAndWaits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := newFakeServer(nil)
	l := &loop{}

	done := make(chan error, 1)
	go func() { done <- run(ctx, srv, l.run) }()

	require.Eventually(t, l.running.Load, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("run did not return")
	}
	require.False(t, l.running.Load())
	require.EqualValues(t, 1, srv.shutdowns.Load())
}

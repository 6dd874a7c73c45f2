package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"payment-gateway/internal/dtos"
	internalErrors "payment-gateway/internal/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*PaymentQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rc.Close() })

	return NewPaymentQueue(rc), mr
}

func payment(id string) *dtos.Payment {
	return &dtos.Payment{CorrelationId: id, Amount: decimal.RequireFromString("19.90")}
}

func TestPaymentQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, payment(id)))
	}

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)

	for _, id := range []string{"a", "b", "c"} {
		p, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.Equal(t, id, p.CorrelationId)
	}

	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, internalErrors.ErrNoPaymentsInQueue)
}

func TestPaymentQueue_PushedOncePoppedOnce(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, payment("only")))

	p, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "only", p.CorrelationId)

	_, err = q.Dequeue(ctx)
	require.ErrorIs(t, err, internalErrors.ErrNoPaymentsInQueue)
}

func TestPaymentQueue_ConcurrentPopsAreExclusive(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	const total = 200
	for i := 0; i < total; i++ {
		require.NoError(t, q.Enqueue(ctx, payment(fmt.Sprintf("p-%d", i))))
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int, total)
		wg   sync.WaitGroup
	)

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				p, err := q.Dequeue(ctx)
				if errors.Is(err, internalErrors.ErrNoPaymentsInQueue) {
					return
				}
				if err != nil {
					continue
				}
				mu.Lock()
				seen[p.CorrelationId]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, total)
	for id, count := range seen {
		require.Equal(t, 1, count, "payment %s popped more than once", id)
	}
}

func TestPaymentQueue_MalformedPayloadIsRemoved(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	_, err := mr.Push(queueKey, "garbage")
	require.NoError(t, err)

	p, err := q.Dequeue(ctx)
	require.Nil(t, p)

	var serErr *internalErrors.SerializationError
	require.True(t, errors.As(err, &serErr))
	require.Equal(t, "garbage", string(serErr.Payload))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPaymentQueue_RequeueGoesToTail(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	require.NoError(t, q.Enqueue(ctx, payment("a")))
	require.NoError(t, q.Enqueue(ctx, payment("b")))

	a, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Requeue(ctx, a))

	b, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "b", b.CorrelationId)

	a, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "a", a.CorrelationId)
}

func TestPaymentQueue_DeadLetterAndClear(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	require.NoError(t, q.DeadLetter(ctx, []byte("garbage"), "malformed payment"))
	require.NoError(t, q.Enqueue(ctx, payment("a")))

	dead, err := q.DeadLetterLen(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, dead)

	entries, err := mr.List(deadLetterKey)
	require.NoError(t, err)
	require.Contains(t, entries[0], `"reason":"malformed payment"`)

	require.NoError(t, q.Clear(ctx))
	n, err := q.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestPaymentQueue_StoreUnreachable(t *testing.T) {
	q, mr := newTestQueue(t)
	mr.Close()

	_, err := q.Dequeue(context.Background())

	var transportErr *internalErrors.TransportError
	require.True(t, errors.As(err, &transportErr))
	require.Equal(t, "LPOP", transportErr.Op)
}

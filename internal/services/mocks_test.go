package services

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payment-gateway/internal/accounting"
	"payment-gateway/internal/breaker"
	"payment-gateway/internal/dtos"
	"payment-gateway/internal/gateway"
	"payment-gateway/internal/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/mock"
)

type ProcessorMock struct {
	mock.Mock
	gateway.PaymentProcessorInterface
	name string
}

func (m *ProcessorMock) Name() string {
	return m.name
}

func (m *ProcessorMock) HealthCheck(ctx context.Context) (*dtos.HealthCheckResponse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dtos.HealthCheckResponse), args.Error(1)
}

func (m *ProcessorMock) SendPayment(ctx context.Context, p dtos.Payment) (*dtos.PaymentProcessorResponse, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dtos.PaymentProcessorResponse), args.Error(1)
}

// fakeProcessor is an HTTP payment processor whose health and payment
// endpoints can be flipped between healthy and failing.
type fakeProcessor struct {
	srv *httptest.Server

	failing      atomic.Bool
	healthStatus atomic.Int32
	sendStatus   atomic.Int32
	healthCalls  atomic.Int32

	mu       sync.Mutex
	payments map[string]dtos.PaymentProcessorRequest
}

func newFakeProcessor(t *testing.T) *fakeProcessor {
	t.Helper()

	fp := &fakeProcessor{payments: map[string]dtos.PaymentProcessorRequest{}}
	fp.srv = httptest.NewServer(http.HandlerFunc(fp.serve))
	t.Cleanup(fp.srv.Close)

	return fp
}

func (fp *fakeProcessor) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/payments/service-health":
		fp.healthCalls.Add(1)
		if status := fp.healthStatus.Load(); status != 0 {
			w.WriteHeader(int(status))
			return
		}
		json.NewEncoder(w).Encode(dtos.HealthCheckResponse{Failing: fp.failing.Load(), MinResponseTime: 5})

	case r.Method == http.MethodPost && r.URL.Path == "/payments":
		if status := fp.sendStatus.Load(); status != 0 {
			w.WriteHeader(int(status))
			return
		}
		var req dtos.PaymentProcessorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fp.mu.Lock()
		fp.payments[req.CorrelationId] = req
		fp.mu.Unlock()
		w.Write([]byte(`{"message":"payment processed successfully"}`))

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/payments/"):
		fp.mu.Lock()
		req, ok := fp.payments[strings.TrimPrefix(r.URL.Path, "/payments/")]
		fp.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(req)

	case r.Method == http.MethodPost && r.URL.Path == "/admin/purge-payments":
		fp.mu.Lock()
		fp.payments = map[string]dtos.PaymentProcessorRequest{}
		fp.mu.Unlock()

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (fp *fakeProcessor) received() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return len(fp.payments)
}

type harness struct {
	mr         *miniredis.Miniredis
	clock      *time.Time
	breakers   *breaker.Store
	queue      *queue.PaymentQueue
	ledger     *accounting.RedisLedger
	pm         *ProcessorManager
	dispatcher *Dispatcher
	service    *PaymentService
	probers    map[string]*HealthProber
}

const testCooldown = 5 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, defaultP, fallbackP gateway.PaymentProcessorInterface, cfg DispatcherConfig) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rc.Close() })

	clock := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	log := discardLogger()

	breakers := breaker.NewStore(breaker.NewRedisStateStore(rc), log, breaker.WithClock(now))
	registry := gateway.NewRegistry(defaultP, fallbackP)
	pm := NewProcessorManager(breakers, registry, "123")
	q := queue.NewPaymentQueue(rc)
	ledger := accounting.NewRedisLedger(rc)

	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}

	dispatcher := NewDispatcher(q, pm, ledger, cfg, log)
	dispatcher.now = now

	service := NewPaymentService(pm, q, ledger)
	service.now = now

	probers := map[string]*HealthProber{}
	for _, p := range []gateway.PaymentProcessorInterface{defaultP, fallbackP} {
		probers[p.Name()] = NewHealthProber(p, breakers, time.Millisecond, time.Second, testCooldown, log)
	}

	return &harness{
		mr:         mr,
		clock:      &clock,
		breakers:   breakers,
		queue:      q,
		ledger:     ledger,
		pm:         pm,
		dispatcher: dispatcher,
		service:    service,
		probers:    probers,
	}
}

func (h *harness) advance(d time.Duration) {
	*h.clock = h.clock.Add(d)
}

type QueueMock struct {
	mock.Mock
}

func (m *QueueMock) Enqueue(ctx context.Context, p *dtos.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *QueueMock) Dequeue(ctx context.Context) (*dtos.Payment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dtos.Payment), args.Error(1)
}

func (m *QueueMock) Requeue(ctx context.Context, p *dtos.Payment) error {
	return m.Called(ctx, p).Error(0)
}

func (m *QueueMock) DeadLetter(ctx context.Context, raw []byte, reason string) error {
	return m.Called(ctx, raw, reason).Error(0)
}

func (m *QueueMock) Len(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *QueueMock) Clear(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

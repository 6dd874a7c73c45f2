package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"payment-gateway/internal/config"
	"payment-gateway/internal/dtos"
	internalErrors "payment-gateway/internal/errors"

	"github.com/goccy/go-json"
)

// No client-level timeout: the prober and the dispatcher bound each call
// through its context.
var httpClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 25,
		IdleConnTimeout:     10 * time.Second,
		DisableCompression:  true,
		DisableKeepAlives:   false,
		ForceAttemptHTTP2:   true,
	},
}

type Processor struct {
	name   string
	url    string
	client *http.Client
}

func NewPaymentProcessor(name, url string) *Processor {
	return &Processor{
		name:   name,
		url:    url,
		client: httpClient,
	}
}

func (pp *Processor) Name() string {
	return pp.name
}

func (pp *Processor) transportError(op string, status int, err error) error {
	return &internalErrors.TransportError{Op: op, Target: pp.name, StatusCode: status, Err: err}
}

func (pp *Processor) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := pp.client.Do(req)
	if err != nil {
		return nil, pp.transportError(op, 0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		err := fmt.Errorf("payment processor returned: %s", string(body))
		if resp.StatusCode == http.StatusTooManyRequests {
			err = fmt.Errorf("%w: %s", internalErrors.ErrRateLimited, string(body))
		}
		return nil, pp.transportError(op, resp.StatusCode, err)
	}

	return resp, nil
}

func (pp *Processor) SendPayment(ctx context.Context, payment dtos.Payment) (*dtos.PaymentProcessorResponse, error) {
	request := dtos.PaymentProcessorRequest{
		CorrelationId: payment.CorrelationId,
		Amount:        payment.Amount,
		RequestedAt:   payment.RequestedAt.UTC().Format(config.DateTimeFormat),
	}

	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pp.url+"/payments", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := pp.do(req, "send payment")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// A 2xx is the acknowledgement; the message is informational.
	var response dtos.PaymentProcessorResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		slog.Warn("failed to parse processor response", "processor", pp.name, "error", err)
	}

	return &response, nil
}

// HealthCheck reports what the processor says about itself. A transport or
// decoding failure is an error, never failing=true.
func (pp *Processor) HealthCheck(ctx context.Context) (*dtos.HealthCheckResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pp.url+"/payments/service-health", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := pp.do(req, "health check")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health dtos.HealthCheckResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, pp.transportError("health check", resp.StatusCode, fmt.Errorf("failed to decode body: %w", err))
	}

	return &health, nil
}

func (pp *Processor) PaymentDetails(ctx context.Context, correlationId string) (*dtos.PaymentDetails, error) {
	endpoint := fmt.Sprintf("%s/payments/%s", pp.url, url.PathEscape(correlationId))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := pp.do(req, "payment details")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var details dtos.PaymentDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, pp.transportError("payment details", resp.StatusCode, fmt.Errorf("failed to decode body: %w", err))
	}

	return &details, nil
}

func (pp *Processor) Purge(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, pp.url+"/admin/purge-payments", bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Rinha-Token", token)

	resp, err := pp.do(req, "purge payments")
	if err != nil {
		return err
	}
	resp.Body.Close()

	return nil
}

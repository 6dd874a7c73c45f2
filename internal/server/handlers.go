package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"payment-gateway/internal/dtos"
	internalErrors "payment-gateway/internal/errors"

	"github.com/goccy/go-json"
)

func parseTimeParam(r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, true
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		slog.Error("failed to parse date", "param", name, "date", raw, "error", err)
		return time.Time{}, false
	}
	return parsed, true
}

func (s *HttpServer) paymentsSummary(w http.ResponseWriter, r *http.Request) {
	from, okFrom := parseTimeParam(r, "from")
	to, okTo := parseTimeParam(r, "to")
	if !okFrom || !okTo {
		writeError(w, http.StatusBadRequest, "Invalid from/to date")
		return
	}

	summary, err := s.ps.GetSummary(r.Context(), dtos.GetPaymentsSummaryFilters{From: from, To: to})
	if err != nil {
		slog.Error("error while fetching payments summary", "error", err)
		writeError(w, http.StatusInternalServerError, "Error while fetching payments summary")
		return
	}

	summaryResponse := dtos.GetPaymentSummaryResponse{
		Default:  dtos.PaymentSummary(summary.Default),
		Fallback: dtos.PaymentSummary(summary.Fallback),
	}

	writeJSON(w, http.StatusOK, summaryResponse)
}

func (s *HttpServer) createPayment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("cannot read request body", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "Cannot read request body")
		return
	}

	defer r.Body.Close()

	var payment dtos.CreatePaymentRequest
	err = json.Unmarshal(body, &payment)
	if err != nil {
		slog.Error("cannot unmarshal request body", "error", err)
		writeError(w, http.StatusUnprocessableEntity, "Cannot unmarshal request body")
		return
	}

	err = s.ps.RequestProcessing(r.Context(), payment.CorrelationId, payment.Amount)
	if err != nil {
		if errors.Is(err, internalErrors.ErrInvalidPayment) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		slog.Error("error requesting payment processing", "error", err)
		writeError(w, http.StatusServiceUnavailable, "Cannot accept payment")
		return
	}

	writeJSON(w, http.StatusAccepted, struct{}{})
}

func (s *HttpServer) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
	}{
		Status: "all good",
	})
}

func (s *HttpServer) internalCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		ServerID string `json:"serverId"`
	}{
		ServerID: s.serverID,
	})
}

func (s *HttpServer) circuitBreakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ps.Breakers(r.Context()))
}

func (s *HttpServer) paymentDetails(w http.ResponseWriter, r *http.Request) {
	details, err := s.ps.PaymentDetails(r.Context(), r.PathValue("processor"), r.PathValue("id"))
	if err != nil {
		var transportErr *internalErrors.TransportError
		switch {
		case errors.Is(err, internalErrors.ErrUnknownProcessor):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.As(err, &transportErr) && transportErr.StatusCode == http.StatusNotFound:
			writeError(w, http.StatusNotFound, "Payment not found")
		default:
			slog.Error("error fetching payment details", "error", err)
			writeError(w, http.StatusBadGateway, "Error fetching payment details")
		}
		return
	}

	writeJSON(w, http.StatusOK, details)
}

func (s *HttpServer) purgePayments(w http.ResponseWriter, r *http.Request) {
	err := s.ps.Clear(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error when trying to purge payments: "+err.Error())
	}
}

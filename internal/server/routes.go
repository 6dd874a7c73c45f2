package server

import (
	"net/http"
)

func (s *HttpServer) loadRoutes(mux *http.ServeMux) http.HandlerFunc {
	mux.HandleFunc("GET /payments-summary", s.paymentsSummary)
	mux.HandleFunc("POST /purge-payments", s.purgePayments)
	mux.HandleFunc("POST /payments", s.createPayment)
	mux.HandleFunc("GET /healthcheck", s.healthCheck)
	mux.HandleFunc("GET /internal/check", s.internalCheck)
	mux.HandleFunc("GET /internal/circuit-breakers", s.circuitBreakers)
	mux.HandleFunc("GET /internal/payments/{processor}/{id}", s.paymentDetails)

	return mux.ServeHTTP
}

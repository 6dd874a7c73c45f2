package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"payment-gateway/internal/services"
)

type HttpServer struct {
	ps       services.PaymentsInterface
	port     string
	serverID string
	server   *http.Server
}

func NewServer(port, serverID string, ps services.PaymentsInterface) *HttpServer {
	s := &HttpServer{
		ps:       ps,
		port:     port,
		serverID: serverID,
	}
	s.server = s.createHTTPServer()
	return s
}

func (s *HttpServer) ListenAndServe() error {
	if _, err := strconv.Atoi(s.port); err != nil {
		return fmt.Errorf("invalid port %q: %w", s.port, err)
	}
	return s.server.ListenAndServe()
}

func (s *HttpServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HttpServer) Handler() http.Handler {
	router := s.loadRoutes(http.NewServeMux())
	middlewareChain := NewChain(
		s.noCache,
		s.logRequests,
		s.recoverPanic,
	)

	return middlewareChain(router)
}

func (s *HttpServer) createHTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.Handler(),
		IdleTimeout:  10 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Package http exposes the ledger view over a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"myex/internal/log"
	"myex/internal/refresh"
	"myex/internal/services"
	"myex/internal/sources"
)

// Reloader refreshes the ledger's data on demand.
type Reloader interface {
	Reload(ctx context.Context) error
}

// TripSource looks up and lists trips.
type TripSource interface {
	sources.TripReader
	sources.TripLister
}

// Deps are the collaborators the handlers use. Everything but Dispatcher may
// be nil; the matching endpoints then report 501.
type Deps struct {
	Dispatcher   *refresh.Dispatcher
	Reloader     Reloader
	Trips        TripSource
	Transactions *services.TransactionService
	Rates        refresh.RateSource
}

type Server struct {
	http.Server
	deps         Deps
	logger       *log.Logger
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(addr string, deps Deps, logger *log.Logger) *Server {
	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:        deps,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(60, time.Minute),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("POST /api/ledger/month", s.handleChangeMonth)
	mux.HandleFunc("POST /api/ledger/year", s.handleChangeYear)
	mux.HandleFunc("POST /api/ledger/current", s.handleCurrentMonth)
	mux.HandleFunc("POST /api/ledger/currency", s.handleToggleCurrency)
	mux.HandleFunc("POST /api/ledger/reload", s.handleReload)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/trips", s.handleListTrips)
	mux.HandleFunc("POST /api/trips", s.handleCreateTrip)
	mux.HandleFunc("DELETE /api/trips/{id}", s.handleDeleteTrip)
	mux.HandleFunc("GET /api/trips/{id}/summary", s.handleTripSummary)
	mux.HandleFunc("GET /api/exchange-rate", s.handleExchangeRate)

	s.Handler = log.Middleware(s.logger, requestID)(s.withSecurityHeaders(mux))
	return s
}

// Shutdown stops the rate limiter janitor and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withSecurityHeaders sets response headers, logs probe-like paths and rate
// limits writes.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		if isSuspiciousPath(r.URL.Path) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, extractClientIP(r),
				log.FieldPath, r.URL.Path)
		}

		if r.Method == http.MethodPost || r.Method == http.MethodDelete {
			clientIP := extractClientIP(r)
			if !s.rateLimiter.allow(clientIP) {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
					log.FieldClientIP, clientIP,
					log.FieldPath, r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestID reuses a caller-supplied X-Request-ID or generates one.
func requestID(r *http.Request) string {
	if id := r.Header.Get("X-Request-ID"); id != "" && len(id) <= 64 {
		return id
	}
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

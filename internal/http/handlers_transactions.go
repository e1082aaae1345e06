package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"myex/internal/core"
	"myex/internal/ledger"
	"myex/internal/log"
	"myex/internal/services"
	"myex/internal/sources"
)

func (s *Server) writable(w http.ResponseWriter) bool {
	if s.deps.Transactions == nil || s.deps.Transactions.ReadOnly() {
		writeError(w, http.StatusNotImplemented, "this backend is read-only")
		return false
	}
	return true
}

// writeServiceError maps TransactionService failures to status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, verr.Error())
	case errors.Is(err, services.ErrReadOnly):
		writeError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, sources.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Backend write failed",
			log.FieldOperation, op,
			log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "could not "+op)
	}
}

// handleListTransactions returns every loaded transaction, optionally only
// those of one trip.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var txs []core.Transaction
	if err := s.deps.Dispatcher.Do(r.Context(), func(c *ledger.Controller) error {
		txs = c.Transactions()
		return nil
	}); err != nil {
		writeDispatchError(w, r, err)
		return
	}

	tripID := strings.TrimSpace(r.URL.Query().Get("trip"))
	out := make([]sources.TransactionRecord, 0, len(txs))
	for _, t := range txs {
		if tripID != "" && t.TripID != tripID {
			continue
		}
		out = append(out, sources.NewTransactionRecord(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	if err := s.deps.Transactions.DeleteTransaction(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTrips(w http.ResponseWriter, r *http.Request) {
	if s.deps.Trips == nil {
		writeError(w, http.StatusNotImplemented, "trips not available")
		return
	}
	trips, err := s.deps.Trips.ListTrips(r.Context())
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Trip listing failed",
			log.FieldOperation, log.OpList,
			log.FieldError, err.Error())
		writeError(w, http.StatusBadGateway, "trip listing failed")
		return
	}
	out := make([]sources.TripRecord, 0, len(trips))
	for _, tr := range trips {
		out = append(out, sources.NewTripRecord(tr))
	}
	writeJSON(w, http.StatusOK, out)
}

type tripDeletedView struct {
	ID       string `json:"id"`
	Detached int    `json:"detached"`
}

func (s *Server) handleDeleteTrip(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	id := r.PathValue("id")
	detached, err := s.deps.Transactions.DeleteTrip(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, log.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, tripDeletedView{ID: id, Detached: detached})
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}

	var rec sources.TransactionRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(rec.Date) == "" {
		rec.Date = time.Now().Format(sources.DateLayout)
	}
	rec.ID = ""

	saved, err := s.deps.Transactions.CreateTransaction(r.Context(), rec.Transaction())
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, sources.NewTransactionRecord(saved))
}

func (s *Server) handleCreateTrip(w http.ResponseWriter, r *http.Request) {
	if !s.writable(w) {
		return
	}
	var rec sources.TripRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec.ID = ""
	trip, err := rec.Trip()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	saved, err := s.deps.Transactions.CreateTrip(r.Context(), trip)
	if err != nil {
		writeServiceError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, sources.NewTripRecord(saved))
}

func (s *Server) handleTripSummary(w http.ResponseWriter, r *http.Request) {
	if s.deps.Trips == nil {
		writeError(w, http.StatusNotImplemented, "trips not available")
		return
	}
	id := r.PathValue("id")
	trip, err := s.deps.Trips.GetTrip(r.Context(), id)
	if errors.Is(err, sources.ErrNotFound) {
		writeError(w, http.StatusNotFound, "trip not found")
		return
	}
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Trip lookup failed", log.FieldTripID, id, log.FieldError, err.Error())
		writeError(w, http.StatusBadGateway, "trip lookup failed")
		return
	}

	var sum core.TripSummary
	if err := s.deps.Dispatcher.Do(r.Context(), func(c *ledger.Controller) error {
		sum = c.TripSummary(trip)
		return nil
	}); err != nil {
		writeDispatchError(w, r, err)
		return
	}

	if sum.Alert != core.AlertNone {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Trip budget alert",
			log.FieldOperation, log.OpTripReport,
			log.FieldTripID, trip.ID,
			"alert", sum.Alert,
			"budget_percent", sum.BudgetPercent)
	}
	writeJSON(w, http.StatusOK, newTripSummaryView(sum))
}

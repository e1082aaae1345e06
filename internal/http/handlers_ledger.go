package http

import (
	"errors"
	"net/http"

	"myex/internal/ledger"
	"myex/internal/log"
	"myex/internal/refresh"
)

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	s.runLedgerCommand(w, r, log.OpList, func(*ledger.Controller) error { return nil })
}

func (s *Server) handleChangeMonth(w http.ResponseWriter, r *http.Request) {
	dir, err := parseDir(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.runLedgerCommand(w, r, log.OpNavigate, func(c *ledger.Controller) error { return c.ChangeMonth(dir) })
}

func (s *Server) handleChangeYear(w http.ResponseWriter, r *http.Request) {
	dir, err := parseDir(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.runLedgerCommand(w, r, log.OpNavigate, func(c *ledger.Controller) error { return c.ChangeYear(dir) })
}

func (s *Server) handleCurrentMonth(w http.ResponseWriter, r *http.Request) {
	s.runLedgerCommand(w, r, log.OpNavigate, func(c *ledger.Controller) error {
		c.GoToCurrentMonth()
		return nil
	})
}

func (s *Server) handleToggleCurrency(w http.ResponseWriter, r *http.Request) {
	s.runLedgerCommand(w, r, log.OpToggle, func(c *ledger.Controller) error {
		c.ToggleCurrency()
		return nil
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reloader == nil {
		writeError(w, http.StatusNotImplemented, "reload not available")
		return
	}
	if err := s.deps.Reloader.Reload(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "reload failed: "+err.Error())
		return
	}
	s.handleLedger(w, r)
}

// runLedgerCommand applies cmd and responds with the resulting view. A
// navigation limit is reported as 409 while the view still reflects the
// (unchanged) cursor.
func (s *Server) runLedgerCommand(w http.ResponseWriter, r *http.Request, op string, cmd refresh.Command) {
	var view ledgerView
	var cmdErr error
	err := s.deps.Dispatcher.Do(r.Context(), func(c *ledger.Controller) error {
		cmdErr = cmd(c)
		view = buildLedgerView(c)
		return nil
	})
	if err != nil {
		writeDispatchError(w, r, err)
		return
	}

	logger := log.FromContext(r.Context())
	switch {
	case errors.Is(cmdErr, ledger.ErrNavigationLimit):
		logger.InfoContext(r.Context(), "Navigation limit reached",
			log.FieldOperation, op,
			log.FieldYear, view.Year,
			log.FieldMonth, view.Month)
		writeError(w, http.StatusConflict, cmdErr.Error())
		return
	case errors.Is(cmdErr, ledger.ErrInvalidDirection):
		writeError(w, http.StatusBadRequest, cmdErr.Error())
		return
	case cmdErr != nil:
		writeDispatchError(w, r, cmdErr)
		return
	}

	if op != log.OpList {
		fields := log.NewFields().
			WithOperation(op).
			WithPeriod(view.Year, view.Month).
			WithCurrency(view.Currency, view.Rate)
		logger.DebugContext(r.Context(), "Ledger view changed", fields.ToSlice()...)
	}
	writeJSON(w, http.StatusOK, view)
}

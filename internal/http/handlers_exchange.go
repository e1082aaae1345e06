package http

import (
	"net/http"
	"time"

	"myex/internal/core"
)

type exchangeRateResponse struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Rate      string    `json:"rate"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	Amount    string    `json:"amount,omitempty"`
	Converted string    `json:"converted,omitempty"`
}

// handleExchangeRate reports the from->to rate (EUR->BRL by default) and,
// given ?amount=, the converted value.
func (s *Server) handleExchangeRate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Rates == nil {
		writeError(w, http.StatusNotImplemented, "exchange rates not available")
		return
	}
	q := r.URL.Query()
	from, err := core.ParseCurrency(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to := core.SecondaryCurrency
	if v := q.Get("to"); v != "" {
		if to, err = core.ParseCurrency(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	rate := s.deps.Rates.Rate(r.Context(), from, to)
	resp := exchangeRateResponse{
		From:      string(rate.From),
		To:        string(rate.To),
		Rate:      rate.Value.String(),
		Source:    rate.Source,
		FetchedAt: rate.FetchedAt,
	}
	if v := q.Get("amount"); v != "" {
		amount, err := core.ParseAmount(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp.Amount = core.FormatAmount(amount, from)
		resp.Converted = core.FormatAmount(amount.Mul(rate.Value), to)
	}
	writeJSON(w, http.StatusOK, resp)
}

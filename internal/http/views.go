package http

import (
	"fmt"

	"myex/internal/core"
	"myex/internal/ledger"
	"myex/internal/sources"
)

type navigationView struct {
	MaxYear           int  `json:"max_year"`
	IsCurrent         bool `json:"is_current"`
	NextYearDisabled  bool `json:"next_year_disabled"`
	NextMonthDisabled bool `json:"next_month_disabled"`
}

type transactionView struct {
	sources.TransactionRecord
	// Display is the amount converted to and formatted in the active currency.
	Display string `json:"display"`
}

type categoryView struct {
	Category string  `json:"category"`
	Amount   string  `json:"amount"`
	Percent  float64 `json:"percent"`
}

type sourceView struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
	Spent  string `json:"spent"`
}

type statsView struct {
	TotalSpent       string           `json:"total_spent"`
	TransactionCount int              `json:"transaction_count"`
	DaysInMonth      int              `json:"days_in_month"`
	DailyAverage     string           `json:"daily_average"`
	TotalIncome      string           `json:"total_income"`
	Balance          string           `json:"balance"`
	Categories       []categoryView   `json:"categories"`
	BySource         []sourceView     `json:"by_source"`
	Largest          *transactionView `json:"largest,omitempty"`
	Skipped          int              `json:"skipped"`
}

type ledgerView struct {
	Year         int               `json:"year"`
	Month        int               `json:"month"` // 1-12
	Period       string            `json:"period"`
	Currency     string            `json:"currency"`
	Rate         string            `json:"rate"`
	Navigation   navigationView    `json:"navigation"`
	Transactions []transactionView `json:"transactions"`
	Stats        statsView         `json:"stats"`
}

type tripSummaryView struct {
	Trip          sources.TripRecord `json:"trip"`
	Currency      string             `json:"currency"`
	TotalSpent    string             `json:"total_spent"`
	Budget        string             `json:"budget"`
	Remaining     string             `json:"remaining"`
	BudgetPercent float64            `json:"budget_percent"`
	DurationDays  int                `json:"duration_days"`
	DailyAverage  string             `json:"daily_average"`
	Count         int                `json:"count"`
	Categories    []categoryView     `json:"categories"`
	Status        string             `json:"status"`
	Alert         string             `json:"alert"`
}

// buildLedgerView must run on the dispatcher goroutine.
func buildLedgerView(c *ledger.Controller) ledgerView {
	nav := c.Navigation()
	stats := c.Stats()

	listing := c.MonthListing()
	txs := make([]transactionView, 0, len(listing))
	for _, t := range listing {
		txs = append(txs, newTransactionView(c, t))
	}

	sv := statsView{
		TotalSpent:       c.Format(stats.TotalSpent),
		TransactionCount: stats.TransactionCount,
		DaysInMonth:      stats.DaysInMonth,
		DailyAverage:     c.Format(stats.DailyAverage),
		TotalIncome:      c.Format(stats.TotalIncome),
		Balance:          c.Format(stats.Balance),
		Categories:       categoryViews(stats.Categories, stats.Currency),
		BySource:         make([]sourceView, 0, len(stats.BySource)),
		Skipped:          stats.Skipped,
	}
	for _, s := range stats.BySource {
		sv.BySource = append(sv.BySource, sourceView{Source: string(s.Source), Count: s.Count, Spent: c.Format(s.Spent)})
	}
	if stats.Largest != nil {
		v := newTransactionView(c, *stats.Largest)
		sv.Largest = &v
	}

	return ledgerView{
		Year:     nav.Cursor.Year,
		Month:    nav.Cursor.Month + 1,
		Period:   fmt.Sprintf("%04d-%02d", nav.Cursor.Year, nav.Cursor.Month+1),
		Currency: string(c.Currency()),
		Rate:     c.Rate().String(),
		Navigation: navigationView{
			MaxYear:           nav.MaxYear,
			IsCurrent:         nav.IsCurrent,
			NextYearDisabled:  nav.NextYearDisabled,
			NextMonthDisabled: nav.NextMonthDisabled,
		},
		Transactions: txs,
		Stats:        sv,
	}
}

func newTransactionView(c *ledger.Controller, t core.Transaction) transactionView {
	return transactionView{
		TransactionRecord: sources.NewTransactionRecord(t),
		Display:           c.Format(c.Amount(t)),
	}
}

func categoryViews(shares []core.CategoryShare, cur core.Currency) []categoryView {
	out := make([]categoryView, 0, len(shares))
	for _, s := range shares {
		out = append(out, categoryView{
			Category: string(s.Category),
			Amount:   core.FormatAmount(s.Amount, cur),
			Percent:  s.Percent,
		})
	}
	return out
}

func newTripSummaryView(s core.TripSummary) tripSummaryView {
	return tripSummaryView{
		Trip:          sources.NewTripRecord(s.Trip),
		Currency:      string(s.Currency),
		TotalSpent:    core.FormatAmount(s.TotalSpent, s.Currency),
		Budget:        core.FormatAmount(s.Budget, s.Currency),
		Remaining:     core.FormatAmount(s.Remaining, s.Currency),
		BudgetPercent: s.BudgetPercent,
		DurationDays:  s.DurationDays,
		DailyAverage:  core.FormatAmount(s.DailyAverage, s.Currency),
		Count:         s.Count,
		Categories:    categoryViews(s.Categories, s.Currency),
		Status:        s.Status,
		Alert:         s.Alert,
	}
}

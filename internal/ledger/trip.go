package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"myex/internal/core"
)

const (
	warnPercent     = 80
	exceededPercent = 100
)

// SummarizeTrip computes the budget view of trip from the expenses tagged
// with its ID. The trip budget is held in EUR and converted to cur.
func SummarizeTrip(trip core.Trip, txs []core.Transaction, cur core.Currency, rate decimal.Decimal) core.TripSummary {
	sum := core.TripSummary{
		Trip:         trip,
		Currency:     cur,
		TotalSpent:   decimal.Zero,
		Budget:       core.Convert(trip.Budget, core.EUR, cur, rate),
		Remaining:    decimal.Zero,
		DailyAverage: decimal.Zero,
		DurationDays: tripDays(trip.Start, trip.End),
		Status:       core.TripOnTrack,
		Alert:        core.AlertNone,
	}

	byCat := make(map[core.Category]decimal.Decimal)
	for _, t := range txs {
		if t.TripID != trip.ID || t.Type != core.Expense {
			continue
		}
		if err := t.CheckWellFormed(); err != nil {
			continue
		}
		amt := core.Convert(t.Amount, t.NativeCurrency(), cur, rate)
		sum.TotalSpent = sum.TotalSpent.Add(amt)
		sum.Count++
		if prev, ok := byCat[t.Category]; ok {
			byCat[t.Category] = prev.Add(amt)
		} else {
			byCat[t.Category] = amt
		}
	}

	sum.DailyAverage = sum.TotalSpent.Div(decimal.NewFromInt(int64(sum.DurationDays)))
	sum.Categories = categoryShares(byCat, sum.TotalSpent)

	if sum.Budget.IsPositive() {
		sum.Remaining = sum.Budget.Sub(sum.TotalSpent)
		sum.BudgetPercent = Percent(sum.TotalSpent, sum.Budget)
		if sum.Remaining.IsNegative() {
			sum.Status = core.TripOverBudget
		}
		switch {
		case sum.BudgetPercent >= exceededPercent:
			sum.Alert = core.AlertExceeded
		case sum.BudgetPercent >= warnPercent:
			sum.Alert = core.AlertWarning
		}
	}
	return sum
}

// tripDays counts calendar days from start to end inclusive, at least 1.
func tripDays(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	days := int(e.Sub(s).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"myex/internal/core"
)

var hundred = decimal.NewFromInt(100)

// FilterForCursor returns the transactions dated in cursor's month, in input
// order. Income, expenses and trip-scoped entries are all included.
func FilterForCursor(txs []core.Transaction, cursor Cursor) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, t := range txs {
		if cursor.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}

// FilterForStats narrows FilterForCursor to general-ledger expenses.
// Trip-scoped expenses are accounted for by SummarizeTrip instead.
func FilterForStats(txs []core.Transaction, cursor Cursor) []core.Transaction {
	out := make([]core.Transaction, 0)
	for _, t := range FilterForCursor(txs, cursor) {
		if t.Type == core.Expense && !t.IsTrip() {
			out = append(out, t)
		}
	}
	return out
}

// DaysInMonth returns the number of days in the 0-based month of year.
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month+2), 0, 0, 0, 0, 0, time.UTC).Day()
}

// ComputeStats derives the month aggregate for cursor in currency cur.
// Malformed records are left out and counted in Skipped.
func ComputeStats(txs []core.Transaction, cursor Cursor, cur core.Currency, rate decimal.Decimal) core.MonthStats {
	st := core.MonthStats{
		Year:         cursor.Year,
		Month:        cursor.Month,
		Currency:     cur,
		DaysInMonth:  DaysInMonth(cursor.Year, cursor.Month),
		TotalSpent:   decimal.Zero,
		DailyAverage: decimal.Zero,
		TotalIncome:  decimal.Zero,
		Balance:      decimal.Zero,
	}

	byCat := make(map[core.Category]decimal.Decimal)
	bySrc := make(map[core.Source]*core.SourceShare)
	var largestAmt decimal.Decimal

	for _, t := range FilterForCursor(txs, cursor) {
		if t.IsTrip() {
			continue
		}
		if err := t.CheckWellFormed(); err != nil {
			st.Skipped++
			continue
		}
		if !t.Type.Valid() {
			continue
		}
		amt := core.Convert(t.Amount, t.NativeCurrency(), cur, rate)

		src := core.ParseSource(string(t.Source))
		share, ok := bySrc[src]
		if !ok {
			share = &core.SourceShare{Source: src, Spent: decimal.Zero}
			bySrc[src] = share
		}
		share.Count++

		if t.Type == core.Income {
			st.TotalIncome = st.TotalIncome.Add(amt)
			continue
		}

		share.Spent = share.Spent.Add(amt)
		st.TotalSpent = st.TotalSpent.Add(amt)
		st.TransactionCount++
		if prev, ok := byCat[t.Category]; ok {
			byCat[t.Category] = prev.Add(amt)
		} else {
			byCat[t.Category] = amt
		}
		if st.Largest == nil || amt.GreaterThan(largestAmt) {
			largest := t
			st.Largest = &largest
			largestAmt = amt
		}
	}

	st.DailyAverage = st.TotalSpent.Div(decimal.NewFromInt(int64(st.DaysInMonth)))
	st.Balance = st.TotalIncome.Sub(st.TotalSpent)
	st.Categories = categoryShares(byCat, st.TotalSpent)

	st.BySource = make([]core.SourceShare, 0, len(bySrc))
	for _, s := range bySrc {
		st.BySource = append(st.BySource, *s)
	}
	sort.Slice(st.BySource, func(i, j int) bool {
		return st.BySource[i].Source < st.BySource[j].Source
	})
	return st
}

// Percent returns part/total*100, or 0 when total is zero.
func Percent(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Div(total).Mul(hundred).InexactFloat64()
}

// categoryShares orders categories by amount, largest first, ties by name.
func categoryShares(byCat map[core.Category]decimal.Decimal, total decimal.Decimal) []core.CategoryShare {
	out := make([]core.CategoryShare, 0, len(byCat))
	for c, amt := range byCat {
		out = append(out, core.CategoryShare{
			Category: c,
			Amount:   amt,
			Percent:  Percent(amt, total),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

package core

import "github.com/shopspring/decimal"

// CategoryShare is a category total and its share of the grand total.
type CategoryShare struct {
	Category Category
	Amount   decimal.Decimal
	Percent  float64 // 0-100
}

// SourceShare aggregates a month's entries by provenance tag.
type SourceShare struct {
	Source Source
	Count  int
	Spent  decimal.Decimal
}

// MonthStats is the derived view of one (year, month) of the general ledger.
// All amounts are in Currency.
type MonthStats struct {
	Year             int
	Month            int // 0-11
	Currency         Currency
	TotalSpent       decimal.Decimal
	TransactionCount int
	DaysInMonth      int
	DailyAverage     decimal.Decimal
	Categories       []CategoryShare
	TotalIncome      decimal.Decimal
	Balance          decimal.Decimal
	Largest          *Transaction
	BySource         []SourceShare
	Skipped          int // malformed records left out
}

// TripStatus values.
const (
	TripOnTrack    = "on_track"
	TripOverBudget = "over_budget"
)

// BudgetAlert values.
const (
	AlertNone     = "none"
	AlertWarning  = "warning"
	AlertExceeded = "exceeded"
)

// TripSummary is the budget view of a single trip.
type TripSummary struct {
	Trip          Trip
	Currency      Currency
	TotalSpent    decimal.Decimal
	Budget        decimal.Decimal
	Remaining     decimal.Decimal
	BudgetPercent float64
	DurationDays  int
	DailyAverage  decimal.Decimal
	Categories    []CategoryShare
	Count         int
	Status        string
	Alert         string
}

// Package ledger keeps the navigable month view over a transaction set.
//
// A Controller owns the (year, month) cursor, the display currency and the
// exchange rate. Everything it returns is derived on demand from those and
// the loaded transactions; nothing is cached between calls.
//
// A Controller is not safe for concurrent use. Callers that refresh data in
// the background serialize access through refresh.Dispatcher.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"myex/internal/core"
)

// YearsAhead bounds forward navigation relative to the wall-clock year.
const YearsAhead = 10

var (
	ErrNavigationLimit  = errors.New("navigation limit reached")
	ErrInvalidDirection = errors.New("direction must be +1 or -1")
	ErrInvalidRate      = errors.New("exchange rate must be positive")
)

// Cursor identifies the displayed month. Month is 0-based (0 = January).
type Cursor struct {
	Year  int
	Month int
}

// CursorOf returns the cursor containing t.
func CursorOf(t time.Time) Cursor {
	return Cursor{Year: t.Year(), Month: int(t.Month()) - 1}
}

func (c Cursor) String() string {
	return fmt.Sprintf("%04d-%02d", c.Year, c.Month+1)
}

// Contains reports whether t falls in the cursor's calendar month.
func (c Cursor) Contains(t time.Time) bool {
	return t.Year() == c.Year && int(t.Month())-1 == c.Month
}

// Navigation carries the button state for the month/year pickers.
type Navigation struct {
	Cursor            Cursor
	MaxYear           int
	IsCurrent         bool
	NextYearDisabled  bool
	NextMonthDisabled bool
}

// Config holds the initial controller state.
type Config struct {
	// Now is the wall clock; defaults to time.Now.
	Now      func() time.Time
	Currency core.Currency
	Rate     decimal.Decimal
}

type Controller struct {
	now      func() time.Time
	cursor   Cursor
	currency core.Currency
	rate     decimal.Decimal
	txs      []core.Transaction
}

// New returns a controller positioned on the current month.
func New(cfg Config) *Controller {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	currency := cfg.Currency
	if !currency.Valid() {
		currency = core.PrimaryCurrency
	}
	rate := cfg.Rate
	if !rate.IsPositive() {
		rate = core.DefaultRate
	}
	return &Controller{
		now:      now,
		cursor:   CursorOf(now()),
		currency: currency,
		rate:     rate,
	}
}

func (c *Controller) Cursor() Cursor { return c.cursor }

func (c *Controller) Currency() core.Currency { return c.currency }

func (c *Controller) Rate() decimal.Decimal { return c.rate }

// Len returns the number of loaded transactions.
func (c *Controller) Len() int { return len(c.txs) }

// Format renders d in the active currency.
func (c *Controller) Format(d decimal.Decimal) string {
	return core.FormatAmount(d, c.currency)
}

func (c *Controller) current() Cursor {
	return CursorOf(c.now())
}

// MaxYear is evaluated against the clock on every call, so the bound moves
// forward in long-lived sessions.
func (c *Controller) MaxYear() int {
	return c.now().Year() + YearsAhead
}

// ChangeMonth moves the cursor one month forward (+1) or back (-1),
// rolling over year boundaries. Rolling past MaxYear leaves the cursor on
// December and returns ErrNavigationLimit.
func (c *Controller) ChangeMonth(dir int) error {
	if dir != 1 && dir != -1 {
		return ErrInvalidDirection
	}
	month := c.cursor.Month + dir
	switch {
	case month > 11:
		if c.cursor.Year+1 > c.MaxYear() {
			c.cursor.Month = 11
			return fmt.Errorf("%w: %d", ErrNavigationLimit, c.MaxYear())
		}
		c.cursor = Cursor{Year: c.cursor.Year + 1, Month: 0}
	case month < 0:
		c.cursor = Cursor{Year: c.cursor.Year - 1, Month: 11}
	default:
		c.cursor.Month = month
	}
	return nil
}

// ChangeYear moves the cursor one year forward (+1) or back (-1). Landing on
// any year other than the current one resets the month to January; landing
// on the current year keeps whatever month was selected.
func (c *Controller) ChangeYear(dir int) error {
	if dir != 1 && dir != -1 {
		return ErrInvalidDirection
	}
	year := c.cursor.Year + dir
	if year > c.MaxYear() {
		return fmt.Errorf("%w: %d", ErrNavigationLimit, c.MaxYear())
	}
	c.cursor.Year = year
	if year != c.now().Year() {
		c.cursor.Month = 0
	}
	return nil
}

func (c *Controller) GoToCurrentMonth() {
	c.cursor = c.current()
}

func (c *Controller) IsCurrentPeriod() bool {
	return c.cursor == c.current()
}

// ToggleCurrency flips the display currency and returns the new one.
func (c *Controller) ToggleCurrency() core.Currency {
	c.currency = c.currency.Toggle()
	return c.currency
}

// SetRate replaces the EUR->BRL rate used for display conversion.
func (c *Controller) SetRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return ErrInvalidRate
	}
	c.rate = rate
	return nil
}

// Load replaces the transaction set. The slice is copied.
func (c *Controller) Load(txs []core.Transaction) {
	c.txs = append([]core.Transaction(nil), txs...)
}

// Transactions returns a copy of the loaded set.
func (c *Controller) Transactions() []core.Transaction {
	return append([]core.Transaction(nil), c.txs...)
}

// MonthListing returns every transaction dated in the cursor month, newest first.
func (c *Controller) MonthListing() []core.Transaction {
	out := FilterForCursor(c.txs, c.cursor)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// Stats computes the cursor month's aggregate in the active currency.
func (c *Controller) Stats() core.MonthStats {
	return ComputeStats(c.txs, c.cursor, c.currency, c.rate)
}

// Amount returns t's amount in the active currency.
func (c *Controller) Amount(t core.Transaction) decimal.Decimal {
	return core.Convert(t.Amount, t.NativeCurrency(), c.currency, c.rate)
}

// TripSummary computes the budget view for trip over the loaded set.
func (c *Controller) TripSummary(trip core.Trip) core.TripSummary {
	return SummarizeTrip(trip, c.txs, c.currency, c.rate)
}

func (c *Controller) Navigation() Navigation {
	maxYear := c.MaxYear()
	return Navigation{
		Cursor:            c.cursor,
		MaxYear:           maxYear,
		IsCurrent:         c.IsCurrentPeriod(),
		NextYearDisabled:  c.cursor.Year >= maxYear,
		NextMonthDisabled: c.cursor.Year >= maxYear && c.cursor.Month == 11,
	}
}

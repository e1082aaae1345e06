package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	EUR Currency = "EUR"
	BRL Currency = "BRL"

	// PrimaryCurrency is assumed for transactions that carry no currency tag.
	PrimaryCurrency   = EUR
	SecondaryCurrency = BRL
)

const (
	Food      Category = "food"
	Transport Category = "transport"
	Leisure   Category = "leisure"
	Housing   Category = "housing"
	Other     Category = "other"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

const (
	SourceManual Source = "manual"
	SourceVoice  Source = "voice"
	SourceAPI    Source = "api"
)

type (
	Currency        string
	Category        string
	TransactionType string
	Source          string

	Transaction struct {
		ID          string
		Date        time.Time
		Amount      decimal.Decimal // in Currency
		Currency    Currency
		Category    Category
		Type        TransactionType
		Description string
		Source      Source
		TripID      string // empty for monthly ledger entries
	}

	Trip struct {
		ID     string
		Name   string
		Start  time.Time
		End    time.Time
		Budget decimal.Decimal // EUR
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrUnknownCategory    = errors.New("unknown category")
	ErrUnknownType        = errors.New("unknown transaction type")
	ErrUnknownCurrency    = errors.New("unknown currency")
	ErrEmptyTripName      = errors.New("empty trip name")
	ErrInvalidTripRange   = errors.New("trip end before start")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

// MaxDescriptionLength bounds descriptions on new entries, in characters.
const MaxDescriptionLength = 200

// Categories lists the supported categories in display order.
var Categories = []Category{Food, Transport, Leisure, Housing, Other}

var categoryAliases = map[string]Category{
	"alimentação": Food,
	"alimentacao": Food,
	"transporte":  Transport,
	"lazer":       Leisure,
	"moradia":     Housing,
	"outros":      Other,
}

// ParseCategory accepts canonical names and the legacy Portuguese ones.
func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c := Category(s); c.Valid() {
		return c, nil
	}
	if c, ok := categoryAliases[s]; ok {
		return c, nil
	}
	return "", ErrUnknownCategory
}

func (c Category) Valid() bool {
	switch c {
	case Food, Transport, Leisure, Housing, Other:
		return true
	}
	return false
}

// ParseType accepts "expense"/"income" plus the legacy despesa/ganho/receita.
func ParseType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "despesa":
		return Expense, nil
	case "income", "ganho", "receita":
		return Income, nil
	}
	return "", ErrUnknownType
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

// ParseCurrency maps an empty string to the primary currency.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return PrimaryCurrency, nil
	case EUR:
		return EUR, nil
	case BRL:
		return BRL, nil
	}
	return "", ErrUnknownCurrency
}

func (c Currency) Valid() bool {
	return c == EUR || c == BRL
}

// Toggle returns the opposite supported currency.
func (c Currency) Toggle() Currency {
	if c == BRL {
		return EUR
	}
	return BRL
}

// Symbol returns the display prefix for the currency.
func (c Currency) Symbol() string {
	if c == BRL {
		return "R$"
	}
	return "€"
}

// ParseSource defaults unknown or empty tags to manual.
func ParseSource(s string) Source {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceVoice:
		return SourceVoice
	case SourceAPI:
		return SourceAPI
	}
	return SourceManual
}

// NativeCurrency returns the transaction's currency, defaulting untagged
// records to the primary currency.
func (t Transaction) NativeCurrency() Currency {
	if t.Currency.Valid() {
		return t.Currency
	}
	return PrimaryCurrency
}

// IsTrip reports whether the transaction belongs to a trip budget.
func (t Transaction) IsTrip() bool {
	return strings.TrimSpace(t.TripID) != ""
}

// CheckWellFormed reports whether t can be aggregated. A record is malformed
// when its date is zero, its amount is not positive or its category is
// missing or unknown.
func (t Transaction) CheckWellFormed() error {
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !t.Category.Valid() {
		return ErrUnknownCategory
	}
	return nil
}

// Validate is CheckWellFormed plus a known type and currency.
func (t Transaction) Validate() error {
	if err := t.CheckWellFormed(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrUnknownType
	}
	if t.Currency != "" && !t.Currency.Valid() {
		return ErrUnknownCurrency
	}
	return nil
}

// CheckDescription limits new entries to MaxDescriptionLength characters.
func CheckDescription(s string) error {
	if utf8.RuneCountInString(s) > MaxDescriptionLength {
		return ErrDescriptionTooLong
	}
	return nil
}

func (tr Trip) Validate() error {
	if strings.TrimSpace(tr.Name) == "" {
		return ErrEmptyTripName
	}
	if tr.Start.IsZero() || tr.End.IsZero() {
		return ErrInvalidDate
	}
	if tr.End.Before(tr.Start) {
		return ErrInvalidTripRange
	}
	if tr.Budget.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

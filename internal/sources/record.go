package sources

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"myex/internal/core"
)

const DateLayout = "2006-01-02"

// TransactionRecord is the loose wire form of a transaction, shared by seed
// files, spreadsheet rows and the HTTP API.
type TransactionRecord struct {
	ID          string `json:"id,omitempty"`
	Date        string `json:"date"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Category    string `json:"category"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source,omitempty"`
	TripID      string `json:"trip_id,omitempty"`
}

type TripRecord struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Budget string `json:"budget"`
}

// Transaction converts the record without rejecting it. Fields that do not
// parse are left zero or raw so that the ledger can count the record as
// malformed; call Validate on the result for strict checking.
func (r TransactionRecord) Transaction() core.Transaction {
	t := core.Transaction{
		ID:          strings.TrimSpace(r.ID),
		Date:        ParseDate(r.Date),
		Description: strings.TrimSpace(r.Description),
		Source:      core.ParseSource(r.Source),
		TripID:      strings.TrimSpace(r.TripID),
	}
	if amt, err := core.ParseAmount(r.Amount); err == nil {
		t.Amount = amt
	}
	if c, err := core.ParseCurrency(r.Currency); err == nil {
		t.Currency = c
	} else {
		t.Currency = core.Currency(strings.ToUpper(strings.TrimSpace(r.Currency)))
	}
	if cat, err := core.ParseCategory(r.Category); err == nil {
		t.Category = cat
	} else {
		t.Category = core.Category(strings.TrimSpace(r.Category))
	}
	if typ, err := core.ParseType(r.Type); err == nil {
		t.Type = typ
	} else {
		t.Type = core.TransactionType(strings.TrimSpace(r.Type))
	}
	return t
}

func NewTransactionRecord(t core.Transaction) TransactionRecord {
	r := TransactionRecord{
		ID:          t.ID,
		Amount:      t.Amount.StringFixed(2),
		Currency:    string(t.Currency),
		Category:    string(t.Category),
		Type:        string(t.Type),
		Description: t.Description,
		Source:      string(t.Source),
		TripID:      t.TripID,
	}
	if !t.Date.IsZero() {
		r.Date = t.Date.Format(DateLayout)
	}
	return r
}

func (r TripRecord) Trip() (core.Trip, error) {
	tr := core.Trip{
		ID:    strings.TrimSpace(r.ID),
		Name:  strings.TrimSpace(r.Name),
		Start: ParseDate(r.Start),
		End:   ParseDate(r.End),
	}
	if b := strings.TrimSpace(r.Budget); b != "" {
		budget, err := decimal.NewFromString(strings.ReplaceAll(b, ",", "."))
		if err != nil || budget.IsNegative() {
			return core.Trip{}, core.ErrInvalidAmount
		}
		tr.Budget = budget
	}
	if err := tr.Validate(); err != nil {
		return core.Trip{}, err
	}
	return tr, nil
}

func NewTripRecord(tr core.Trip) TripRecord {
	return TripRecord{
		ID:     tr.ID,
		Name:   tr.Name,
		Start:  tr.Start.Format(DateLayout),
		End:    tr.End.Format(DateLayout),
		Budget: tr.Budget.StringFixed(2),
	}
}

// ParseDate accepts YYYY-MM-DD, DD/MM/YYYY or RFC 3339 and returns the zero
// time for anything else.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, "02/01/2006", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

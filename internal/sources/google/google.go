// Package google reads transactions and trips from a Google Sheets
// spreadsheet. The source is read-only.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"myex/internal/core"
	"myex/internal/log"
	"myex/internal/sources"
)

// Ensure interface conformance
var _ sources.Reader = (*Client)(nil)

var ErrNotInitialized = errors.New("sheets service not initialized")

type Config struct {
	SpreadsheetID     string
	TransactionsSheet string
	TripsSheet        string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc               *gsheet.Service
	spreadsheetID     string
	transactionsSheet string
	tripsSheet        string
	logger            *log.Logger
}

// New creates a Sheets client authenticated with service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	logger = logger.WithComponent(log.ComponentSheets)

	credentials, err := readCredentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	logger.InfoContext(ctx, "Google Sheets service created",
		"spreadsheet_id", cfg.SpreadsheetID,
		"transactions_sheet", cfg.TransactionsSheet,
		"trips_sheet", cfg.TripsSheet)

	return newClient(svc, cfg, logger), nil
}

func newClient(svc *gsheet.Service, cfg Config, logger *log.Logger) *Client {
	transactions := strings.TrimSpace(cfg.TransactionsSheet)
	if transactions == "" {
		transactions = "Transactions"
	}
	trips := strings.TrimSpace(cfg.TripsSheet)
	if trips == "" {
		trips = "Trips"
	}
	return &Client{
		svc:               svc,
		spreadsheetID:     cfg.SpreadsheetID,
		transactionsSheet: transactions,
		tripsSheet:        trips,
		logger:            logger,
	}
}

func readCredentials(cfg Config) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return data, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
}

func (c *Client) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	values, err := c.read(ctx, c.transactionsSheet, "A:J")
	if err != nil {
		return nil, err
	}
	txs := parseTransactions(values)
	c.logger.DebugContext(ctx, "Transactions read from sheet", log.FieldOperation, log.OpList, log.FieldCount, len(txs))
	return txs, nil
}

func (c *Client) ListTrips(ctx context.Context) ([]core.Trip, error) {
	values, err := c.read(ctx, c.tripsSheet, "A:E")
	if err != nil {
		return nil, err
	}
	trips, bad := parseTrips(values)
	if bad > 0 {
		c.logger.WarnContext(ctx, "Invalid trip rows ignored", log.FieldSkipped, bad)
	}
	return trips, nil
}

func (c *Client) GetTrip(ctx context.Context, id string) (core.Trip, error) {
	trips, err := c.ListTrips(ctx)
	if err != nil {
		return core.Trip{}, err
	}
	for _, tr := range trips {
		if tr.ID == id {
			return tr, nil
		}
	}
	return core.Trip{}, fmt.Errorf("trip %q: %w", id, sources.ErrNotFound)
}

func (c *Client) read(ctx context.Context, sheet, cols string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, ErrNotInitialized
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return resp.Values, nil
}

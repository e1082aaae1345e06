package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"myex/internal/amqp"
	"myex/internal/cache"
	"myex/internal/core"
	"myex/internal/exchange"
	"myex/internal/ledger"
	"myex/internal/log"
	"myex/internal/sources"
)

// RateSource yields the current exchange rate and never fails.
type RateSource interface {
	Rate(ctx context.Context, from, to core.Currency) exchange.Rate
}

// Events delivers transaction recorded and deleted notifications.
type Events interface {
	ConsumeTransactionEvents(ctx context.Context, handler amqp.Handler) error
}

type Options struct {
	Interval time.Duration
	// Events and Janitor are optional.
	Events  Events
	Janitor *cache.Janitor
}

// Service reloads the controller's transactions and rate on a timer and on
// every transaction event.
type Service struct {
	dispatcher *Dispatcher
	txs        sources.TransactionLister
	rates      RateSource
	opts       Options
	logger     *log.Logger

	// reloadMu serializes whole reloads so an older fetch cannot be
	// applied after a newer one.
	reloadMu sync.Mutex
}

func NewService(d *Dispatcher, txs sources.TransactionLister, rates RateSource, opts Options, logger *log.Logger) *Service {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Service{
		dispatcher: d,
		txs:        txs,
		rates:      rates,
		opts:       opts,
		logger:     logger.WithComponent(log.ComponentRefresh),
	}
}

// Reload fetches transactions and the rate, then swaps them into the
// controller. On a fetch failure the controller keeps its previous data.
// Failures are logged here as well as returned.
func (s *Service) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	txs, err := s.txs.ListTransactions(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Transaction reload failed, keeping previous data",
			log.FieldOperation, log.OpReload,
			log.FieldError, err.Error())
		return fmt.Errorf("list transactions: %w", err)
	}

	var rate exchange.Rate
	if s.rates != nil {
		rate = s.rates.Rate(ctx, core.PrimaryCurrency, core.SecondaryCurrency)
	}

	var skipped int
	var cursor ledger.Cursor
	err = s.dispatcher.Do(ctx, func(c *ledger.Controller) error {
		c.Load(txs)
		if rate.Value.IsPositive() {
			if err := c.SetRate(rate.Value); err != nil {
				return err
			}
		}
		skipped = c.Stats().Skipped
		cursor = c.Cursor()
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "Ledger reload not applied",
				log.FieldOperation, log.OpReload,
				log.FieldError, err.Error())
		}
		return fmt.Errorf("apply reload: %w", err)
	}

	fields := log.NewFields().
		WithOperation(log.OpReload).
		WithPeriod(cursor.Year, cursor.Month+1)
	fields[log.FieldCount] = len(txs)
	if s.rates != nil {
		fields[log.FieldRate] = rate.Value.String()
		fields[log.FieldRateSource] = rate.Source
	}
	s.logger.DebugContext(ctx, "Ledger reloaded", fields.ToSlice()...)

	if skipped > 0 {
		s.logger.WarnContext(ctx, "Malformed transactions skipped in current month",
			log.FieldSkipped, skipped,
			log.FieldYear, cursor.Year,
			log.FieldMonth, cursor.Month+1)
	}
	return nil
}

// Run drives the dispatcher, the poll loop and the optional event consumer
// and cache janitor until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.dispatcher.Run(gctx) })
	g.Go(func() error { return s.poll(gctx) })

	if s.opts.Events != nil {
		g.Go(func() error {
			err := s.opts.Events.ConsumeTransactionEvents(gctx, s.handleEvent)
			if err != nil {
				// Polling still keeps the ledger current.
				s.logger.ErrorContext(gctx, "Transaction event consumer stopped", log.FieldError, err.Error())
			}
			return nil
		})
	}

	if s.opts.Janitor != nil {
		g.Go(func() error { return s.opts.Janitor.Run(gctx, s.opts.Interval) })
	}

	return g.Wait()
}

// handleEvent always acks. A failed reload is already logged and the next
// poll retries it; requeueing would redeliver at once and spin.
func (s *Service) handleEvent(ctx context.Context, msg *amqp.TransactionEvent) error {
	s.logger.InfoContext(ctx, "Transaction event received, reloading",
		log.FieldOperation, log.OpConsume,
		log.FieldTransaction, msg.TransactionID,
		"action", msg.Action)
	if err := s.Reload(ctx); err != nil {
		s.logger.WarnContext(ctx, "Reload after transaction event failed, waiting for next poll",
			log.FieldOperation, log.OpConsume,
			log.FieldTransaction, msg.TransactionID,
			log.FieldError, err.Error())
	}
	return nil
}

// poll ignores Reload errors; Reload logs them and the next tick retries.
func (s *Service) poll(ctx context.Context) error {
	_ = s.Reload(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = s.Reload(ctx)
		}
	}
}

// Package refresh serializes access to the ledger controller and keeps its
// data current.
package refresh

import (
	"context"
	"errors"

	"myex/internal/ledger"
	"myex/internal/log"
)

var ErrStopped = errors.New("dispatcher stopped")

// Command operates on the controller. It runs on the dispatcher goroutine and
// must not retain the controller after returning.
type Command func(c *ledger.Controller) error

type request struct {
	cmd    Command
	result chan error
}

// Dispatcher is the single writer of a ledger.Controller. Every read and
// mutation goes through Do, so the controller never sees concurrent callers.
type Dispatcher struct {
	ctrl    *ledger.Controller
	reqs    chan request
	stopped chan struct{}
	logger  *log.Logger
}

func NewDispatcher(ctrl *ledger.Controller, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		ctrl:    ctrl,
		reqs:    make(chan request),
		stopped: make(chan struct{}),
		logger:  logger.WithComponent(log.ComponentRefresh),
	}
}

// Run executes submitted commands one at a time until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer close(d.stopped)
	d.logger.DebugContext(ctx, "Dispatcher started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-d.reqs:
			req.result <- req.cmd(d.ctrl)
		}
	}
}

// Do submits cmd and waits for its result.
func (d *Dispatcher) Do(ctx context.Context, cmd Command) error {
	req := request{cmd: cmd, result: make(chan error, 1)}
	select {
	case d.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-d.stopped:
		return ErrStopped
	}
	select {
	case err := <-req.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

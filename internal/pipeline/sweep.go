package pipeline

import (
	"context"
	"fmt"

	"github.com/stefbowerman/undftd-cli/internal/models"
)

// Gate asks the operator to confirm before an irreversible step.
type Gate interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// GateFunc adapts a function to Gate.
type GateFunc func(ctx context.Context, prompt string) (bool, error)

func (f GateFunc) Confirm(ctx context.Context, prompt string) (bool, error) { return f(ctx, prompt) }

// SweepResult holds both phases of a sweep.
type SweepResult struct {
	Customers Result[models.Entrant, models.Customer]
	Orders    Result[models.Customer, models.DraftOrder]
	// OrdersStarted is false when the run stopped before the order phase.
	OrdersStarted bool
}

// Sweep reconciles every entrant, then creates draft orders for the
// reconciled customers. No order is created before reconciliation of the
// whole batch has finished.
type Sweep struct {
	reconciler *Reconciler
	orders     *OrderCreator
	gate       Gate
	opts       []RunnerOption
}

// NewSweep creates a sweep. A nil gate skips confirmation between phases.
func NewSweep(reconciler *Reconciler, orders *OrderCreator, gate Gate, opts ...RunnerOption) *Sweep {
	return &Sweep{
		reconciler: reconciler,
		orders:     orders,
		gate:       gate,
		opts:       opts,
	}
}

// Run executes both phases. On a run-level error the phases completed so far
// are returned with it.
func (s *Sweep) Run(ctx context.Context, entrants []models.Entrant) (SweepResult, error) {
	var res SweepResult

	customers, err := NewRunner(s.reconciler.Stage(), s.opts...).Run(ctx, entrants)
	res.Customers = customers
	if err != nil {
		return res, err
	}
	if len(customers.Successes) == 0 {
		return res, nil
	}

	if s.gate != nil {
		prompt := fmt.Sprintf("%d customers reconciled (%d failed). Create %d draft orders?",
			len(customers.Successes), len(customers.Failures), len(customers.Successes))
		ok, err := s.gate.Confirm(ctx, prompt)
		if err != nil {
			return res, fmt.Errorf("%w: confirm draft orders: %w", ErrBatchAborted, err)
		}
		if !ok {
			return res, fmt.Errorf("%w: %w", ErrBatchAborted, ErrDeclined)
		}
	}

	res.OrdersStarted = true
	orders, err := NewRunner(s.orders.Stage(), s.opts...).Run(ctx, customers.Successes)
	res.Orders = orders
	return res, err
}

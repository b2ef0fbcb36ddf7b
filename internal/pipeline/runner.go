// Package pipeline drives raffle entrants through reconciliation, draft order
// creation and invoice sending.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stefbowerman/undftd-cli/internal/ratelimit"
)

// StageName identifies a pipeline stage in failures, progress and outputs.
type StageName string

const (
	StageReconciliation StageName = "reconciliation"
	StageOrderCreation  StageName = "order-creation"
	StageInvoiceSend    StageName = "invoice-send"
)

// Stage is one record-at-a-time transformation.
type Stage[In, Out any] struct {
	Name     StageName
	Process  func(ctx context.Context, in In) (Out, error)
	Identify func(in In) string
}

// Failure is a record that could not be processed by a stage.
type Failure[In any] struct {
	Record     In
	Identifier string
	Stage      StageName
	Reason     string
	Err        error
}

// Kind returns the failure's machine-readable label.
func (f Failure[In]) Kind() string {
	return FailureKind(f.Err)
}

// Result partitions a batch. Every input record ends up in exactly one of
// the three slices, in input order.
type Result[In, Out any] struct {
	Successes   []Out
	Failures    []Failure[In]
	Unprocessed []In
}

// Total returns the number of records the result accounts for.
func (r Result[In, Out]) Total() int {
	return len(r.Successes) + len(r.Failures) + len(r.Unprocessed)
}

// Runner applies a stage to a batch sequentially.
type Runner[In, Out any] struct {
	stage       Stage[In, Out]
	callTimeout time.Duration
	observer    Observer
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	callTimeout time.Duration
	observer    Observer
	logger      *slog.Logger
}

// WithCallTimeout bounds the time spent on a single record, token waits
// included. Zero disables the bound.
func WithCallTimeout(d time.Duration) RunnerOption {
	return func(o *runnerOptions) { o.callTimeout = d }
}

// WithObserver sets the progress observer.
func WithObserver(obs Observer) RunnerOption {
	return func(o *runnerOptions) { o.observer = obs }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(o *runnerOptions) { o.logger = l }
}

func buildOptions(opts []RunnerOption) runnerOptions {
	o := runnerOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// NewRunner creates a runner for stage.
func NewRunner[In, Out any](stage Stage[In, Out], opts ...RunnerOption) *Runner[In, Out] {
	o := buildOptions(opts)
	if stage.Identify == nil {
		stage.Identify = func(In) string { return "" }
	}
	return &Runner[In, Out]{
		stage:       stage,
		callTimeout: o.callTimeout,
		observer:    o.observer,
		logger:      o.logger.With("component", "runner", "stage", string(stage.Name)),
	}
}

// Run processes records in order. Record errors are collected in the
// result. Cancellation of ctx or a limiter error stops the run: the record in
// flight and every later record are returned as unprocessed, and the error
// is returned next to the partial result.
func (r *Runner[In, Out]) Run(ctx context.Context, records []In) (Result[In, Out], error) {
	total := len(records)
	res := Result[In, Out]{
		Successes: make([]Out, 0, total),
	}

	r.phaseStarted(total)
	defer r.phaseFinished(total)

	r.logger.Info("stage started", "records", total)
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			res.Unprocessed = append(res.Unprocessed, records[i:]...)
			return res, r.abort(i, total, err)
		}

		id := r.stage.Identify(rec)
		out, err := r.process(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				res.Unprocessed = append(res.Unprocessed, records[i:]...)
				return res, r.abort(i, total, ctx.Err())
			}
			if ratelimit.IsLimiterError(err) {
				res.Unprocessed = append(res.Unprocessed, records[i:]...)
				r.logger.Error("rate limiter failed, stopping", "identifier", id, "error", err)
				return res, fmt.Errorf("%s stage record %d of %d: %w", r.stage.Name, i+1, total, err)
			}

			res.Failures = append(res.Failures, Failure[In]{
				Record:     rec,
				Identifier: id,
				Stage:      r.stage.Name,
				Reason:     err.Error(),
				Err:        err,
			})
			r.logger.Warn("record failed", "identifier", id, "kind", FailureKind(err), "error", err)
			r.notify(i+1, total, OutcomeFailure, id)
			continue
		}

		res.Successes = append(res.Successes, out)
		r.logger.Debug("record processed", "identifier", id)
		r.notify(i+1, total, OutcomeSuccess, id)
	}

	r.logger.Info("stage completed", "succeeded", len(res.Successes), "failed", len(res.Failures))
	return res, nil
}

// process isolates a single record: its own deadline, and a panic becomes a
// record failure.
func (r *Runner[In, Out]) process(ctx context.Context, rec In) (out Out, err error) {
	if r.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.callTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("stage panicked", "panic", p)
			err = fmt.Errorf("%w: %v", ErrStagePanic, p)
		}
	}()

	return r.stage.Process(ctx, rec)
}

func (r *Runner[In, Out]) abort(done, total int, cause error) error {
	r.logger.Warn("stage aborted", "completed", done, "records", total, "cause", cause)
	if errors.Is(cause, ErrBatchAborted) {
		return cause
	}
	return fmt.Errorf("%w: %s stage stopped after %d of %d records: %w", ErrBatchAborted, r.stage.Name, done, total, cause)
}

func (r *Runner[In, Out]) notify(completed, total int, outcome Outcome, id string) {
	if r.observer == nil {
		return
	}
	r.observer.Observe(Progress{
		Stage:      r.stage.Name,
		Completed:  completed,
		Total:      total,
		Outcome:    outcome,
		Identifier: id,
	})
}

func (r *Runner[In, Out]) phaseStarted(total int) {
	if po, ok := r.observer.(PhaseObserver); ok {
		po.PhaseStarted(r.stage.Name, total)
	}
}

func (r *Runner[In, Out]) phaseFinished(total int) {
	if po, ok := r.observer.(PhaseObserver); ok {
		po.PhaseFinished(r.stage.Name, total)
	}
}

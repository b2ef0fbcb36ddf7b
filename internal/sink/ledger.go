package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/stefbowerman/undftd-cli/internal/models"
)

// Ledger is the run ledger a LedgerSink writes to.
type Ledger interface {
	RecordFailures(ctx context.Context, runID string, failures []models.RunFailure) error
	RecordStates(ctx context.Context, runID string, states []models.RunRecordState) error
	CompleteRun(ctx context.Context, runID string, status models.RunStatus, counts models.RunCounts, errMsg string) error
}

// LedgerSink stores failures, record states and the final run status.
type LedgerSink struct {
	ledger Ledger
}

// NewLedgerSink creates a sink backed by ledger.
func NewLedgerSink(ledger Ledger) *LedgerSink {
	return &LedgerSink{ledger: ledger}
}

// Write records the report. The run is completed even when storing its
// failures or states fails.
func (s *LedgerSink) Write(ctx context.Context, r *Report) ([]string, error) {
	var errs []error
	if err := s.ledger.RecordFailures(ctx, r.RunID, r.Failures); err != nil {
		errs = append(errs, fmt.Errorf("record failures: %w", err))
	}
	if err := s.ledger.RecordStates(ctx, r.RunID, r.States); err != nil {
		errs = append(errs, fmt.Errorf("record states: %w", err))
	}

	errMsg := ""
	if r.Err != nil {
		errMsg = r.Err.Error()
	}
	counts := models.RunCounts{
		Total:       r.Total,
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
		Unprocessed: r.Unprocessed,
	}
	if err := s.ledger.CompleteRun(ctx, r.RunID, r.Status, counts, errMsg); err != nil {
		errs = append(errs, fmt.Errorf("complete run: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return []string{"ledger run:" + r.RunID}, nil
}

// Multi writes a report to every sink, continuing past failures, and joins
// their errors.
type Multi []Sink

func (m Multi) Write(ctx context.Context, r *Report) ([]string, error) {
	var (
		written []string
		errs    []error
	)
	for _, s := range m {
		if s == nil {
			continue
		}
		locs, err := s.Write(ctx, r)
		written = append(written, locs...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return written, errors.Join(errs...)
}

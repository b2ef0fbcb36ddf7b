package pipeline

import (
	"context"
	"errors"

	"github.com/stefbowerman/undftd-cli/internal/ratelimit"
)

// Record-level errors. These end up in a Result's Failures and never stop a
// batch. Use errors.Is() to check for them.
var (
	// ErrDirectoryLookup indicates the directory search failed or could not be
	// resolved to a single customer.
	ErrDirectoryLookup = errors.New("directory lookup failed")

	// ErrAmbiguousMatch indicates more than one directory customer carries the
	// entrant's identifier. It is always wrapped together with ErrDirectoryLookup.
	ErrAmbiguousMatch = errors.New("ambiguous directory match")

	// ErrDirectoryCreate indicates the directory rejected the customer creation.
	ErrDirectoryCreate = errors.New("directory create failed")

	// ErrMissingVariantMapping indicates a reconciled customer's selector has no
	// product variant configured.
	ErrMissingVariantMapping = errors.New("missing variant mapping")

	// ErrOrderCreate indicates the order service rejected the draft order.
	ErrOrderCreate = errors.New("order create failed")

	// ErrInvoiceSend indicates the order service failed to send an invoice.
	ErrInvoiceSend = errors.New("invoice send failed")

	// ErrStagePanic indicates a stage function panicked on a record.
	ErrStagePanic = errors.New("stage panicked")
)

// Run-level errors. These stop the batch; the partial result is still
// returned alongside them.
var (
	// ErrBatchAborted indicates the run was cancelled or a confirmation gate
	// was declined.
	ErrBatchAborted = errors.New("batch aborted")

	// ErrDeclined indicates the operator declined a confirmation gate. It is
	// always wrapped together with ErrBatchAborted.
	ErrDeclined = errors.New("confirmation declined")
)

// IsRunLevel reports whether err must stop the run instead of being recorded
// against a single record.
func IsRunLevel(err error) bool {
	return errors.Is(err, ErrBatchAborted) || ratelimit.IsLimiterError(err)
}

// FailureKind returns a short machine-readable label for a record failure.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAmbiguousMatch):
		return "ambiguous_match"
	case errors.Is(err, ErrDirectoryLookup):
		return "directory_lookup"
	case errors.Is(err, ErrDirectoryCreate):
		return "directory_create"
	case errors.Is(err, ErrMissingVariantMapping):
		return "missing_variant_mapping"
	case errors.Is(err, ErrOrderCreate):
		return "order_create"
	case errors.Is(err, ErrInvoiceSend):
		return "invoice_send"
	case errors.Is(err, ErrStagePanic):
		return "panic"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

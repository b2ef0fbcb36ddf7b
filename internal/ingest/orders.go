package ingest

import (
	"io"
	"time"

	"github.com/stefbowerman/undftd-cli/internal/models"
)

var createdAtLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ReadDraftOrders parses a draft order listing such as the draft-orders
// output of a sweep or the invoices-failed output of an invoice run. The id
// column may be titled "ID" or "Draft Order ID", the name column "Name",
// "Draft Order #" or "Draft Order Name". Rows without an id are returned as
// RowErrors.
func ReadDraftOrders(r io.Reader) ([]models.DraftOrderRef, []RowError, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, nil, err
	}
	idKey := t.pick("id", "draftOrderId")
	if err := t.require(idKey, "email"); err != nil {
		return nil, nil, err
	}
	nameKey := t.pick("name", "draftOrder", "draftOrderName")

	var (
		refs    []models.DraftOrderRef
		rowErrs []RowError
	)
	for _, rw := range t.rows {
		ref := models.DraftOrderRef{
			ID:        rw.get(idKey),
			Name:      rw.get(nameKey),
			Email:     rw.get("email"),
			CreatedAt: parseCreatedAt(rw.get("createdAt")),
			Status:    rw.get("status"),
		}
		if ref.ID == "" {
			rowErrs = append(rowErrs, RowError{Line: rw.line, Identifier: ref.Name, Reason: "missing draft order id"})
			continue
		}
		refs = append(refs, ref)
	}

	return refs, rowErrs, nil
}

// parseCreatedAt accepts the layouts Shopify and spreadsheet tools emit and
// returns the zero time for anything else.
func parseCreatedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

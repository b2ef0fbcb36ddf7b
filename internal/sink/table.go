// Package sink persists the outcome of a run: CSV tables in a blob bucket
// and, optionally, the run ledger.
package sink

import (
	"encoding/csv"
	"fmt"
	"io"
)

// Table names, used in output keys.
const (
	TableCustomers          = "customers"
	TableCustomerFailures   = "customer-failures"
	TableDraftOrders        = "draft-orders"
	TableDraftOrderFailures = "draft-order-failures"
	TableInvoicesSent       = "invoices-sent"
	TableInvoicesFailed     = "invoices-failed"
	TableUnprocessed        = "unprocessed"
	TableRejectedRows       = "rejected-rows"
)

// Table is a named CSV document.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// WriteCSV writes the header and every row to w.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write %s header: %w", t.Name, err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write %s rows: %w", t.Name, err)
	}
	return nil
}

var tableHeaders = map[string][]string{
	TableCustomers:          {"Customer ID", "Email", "First Name", "Last Name", "Size", "Created"},
	TableCustomerFailures:   {"Email", "First Name", "Last Name", "Stage", "Error Type", "Error"},
	TableDraftOrders:        {"ID", "Draft Order #", "Email", "Created At", "Status", "Total Price"},
	TableDraftOrderFailures: {"Email", "Customer ID", "Size", "Stage", "Error Type", "Error"},
	TableInvoicesSent:       {"Draft Order ID", "Draft Order Name", "Sent To"},
	TableInvoicesFailed:     {"Draft Order ID", "Draft Order Name", "Email", "Error Type", "Error"},
	TableUnprocessed:        {"Stage", "Identifier"},
	TableRejectedRows:       {"Line", "Identifier", "Reason"},
}

func newTable(name string) *Table {
	return &Table{Name: name, Header: tableHeaders[name]}
}

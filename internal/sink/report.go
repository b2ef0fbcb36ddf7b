package sink

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/stefbowerman/undftd-cli/internal/ingest"
	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/stefbowerman/undftd-cli/internal/pipeline"
)

// Report is everything a run persists. Build it with NewReport and the Add
// methods, then Finish it.
type Report struct {
	RunID     string
	Command   string
	Tag       string
	Source    string
	StartedAt time.Time

	Status      models.RunStatus
	Err         error
	Total       int
	Succeeded   int
	Failed      int
	Unprocessed int

	Failures []models.RunFailure
	States   []models.RunRecordState

	tables     []*Table
	byName     map[string]*Table
	stateIndex map[string]int
}

// NewReport starts a report for one command invocation.
func NewReport(runID, command, tag, source string, startedAt time.Time) *Report {
	return &Report{
		RunID:      runID,
		Command:    command,
		Tag:        tag,
		Source:     source,
		StartedAt:  startedAt,
		Status:     models.RunStatusRunning,
		byName:     make(map[string]*Table),
		stateIndex: make(map[string]int),
	}
}

// Tables returns every table the report touched, in the order they were
// first touched. Tables can be empty.
func (r *Report) Tables() []Table {
	out := make([]Table, 0, len(r.tables))
	for _, t := range r.tables {
		out = append(out, *t)
	}
	return out
}

// Table returns the named table, or false when nothing created it.
func (r *Report) Table(name string) (Table, bool) {
	t, ok := r.byName[name]
	if !ok {
		return Table{}, false
	}
	return *t, true
}

func (r *Report) table(name string) *Table {
	if t, ok := r.byName[name]; ok {
		return t
	}
	t := newTable(name)
	r.tables = append(r.tables, t)
	r.byName[name] = t
	return t
}

func (r *Report) setState(id string, state models.RecordState, remoteID string) {
	key := models.NormalizeIdentifier(id)
	if i, ok := r.stateIndex[key]; ok {
		// States only move forward within a run.
		if !r.States[i].State.Reaches(state) {
			return
		}
		r.States[i].State = state
		if remoteID != "" {
			r.States[i].RemoteID = remoteID
		}
		return
	}
	r.stateIndex[key] = len(r.States)
	r.States = append(r.States, models.RunRecordState{Identifier: id, State: state, RemoteID: remoteID})
}

func (r *Report) addFailure(stage pipeline.StageName, id string, err error, record any) {
	r.Failures = append(r.Failures, models.RunFailure{
		Stage:      string(stage),
		Identifier: id,
		Reason:     err.Error(),
		Record:     recordMap(record),
		CreatedAt:  time.Now().UTC(),
	})
}

// AddRejected records rows the reader dropped. They count towards the
// total as failures.
func (r *Report) AddRejected(rows []ingest.RowError) {
	if len(rows) == 0 {
		return
	}
	t := r.table(TableRejectedRows)
	for _, re := range rows {
		t.Rows = append(t.Rows, []string{strconv.Itoa(re.Line), re.Identifier, re.Reason})
		r.Failures = append(r.Failures, models.RunFailure{
			Stage:      "ingest",
			Identifier: re.Identifier,
			Reason:     re.Error(),
			CreatedAt:  time.Now().UTC(),
		})
	}
	r.Total += len(rows)
	r.Failed += len(rows)
}

// AddReconciliation records the customers phase. final is true when no
// later phase consumes the reconciled customers.
func (r *Report) AddReconciliation(res pipeline.Result[models.Entrant, models.Customer], final bool) {
	r.Total += res.Total()

	customers := r.table(TableCustomers)
	for _, c := range res.Successes {
		customers.Rows = append(customers.Rows, []string{
			c.RemoteID, c.Email, c.FirstName, c.LastName, c.VariantSelector, strconv.FormatBool(c.Created),
		})
		r.setState(c.Email, models.StateReconciled, c.RemoteID)
	}

	failures := r.table(TableCustomerFailures)
	for _, f := range res.Failures {
		e := f.Record
		failures.Rows = append(failures.Rows, []string{
			e.Identifier(), e.FirstName, e.LastName, string(f.Stage), f.Kind(), f.Reason,
		})
		r.setState(e.Identifier(), models.StateReconciliationFailed, "")
		r.addFailure(f.Stage, e.Identifier(), f.Err, e)
	}
	r.Failed += len(res.Failures)

	for _, e := range res.Unprocessed {
		r.addUnprocessed(pipeline.StageReconciliation, e.Identifier())
		r.setState(e.Identifier(), models.StatePending, "")
	}

	if final {
		r.Succeeded += len(res.Successes)
	}
}

// AddOrders records the draft order phase.
func (r *Report) AddOrders(res pipeline.Result[models.Customer, models.DraftOrder]) {
	orders := r.table(TableDraftOrders)
	for _, o := range res.Successes {
		orders.Rows = append(orders.Rows, []string{
			o.ID, o.Name, o.Email, formatTime(o.CreatedAt), o.Status, o.TotalPrice.StringFixed(2),
		})
		r.setState(o.Email, models.StateOrdered, "")
	}
	r.Succeeded += len(res.Successes)

	failures := r.table(TableDraftOrderFailures)
	for _, f := range res.Failures {
		c := f.Record
		failures.Rows = append(failures.Rows, []string{
			c.Email, c.RemoteID, c.VariantSelector, string(f.Stage), f.Kind(), f.Reason,
		})
		r.setState(c.Email, models.StateOrderFailed, "")
		r.addFailure(f.Stage, c.Email, f.Err, c)
	}
	r.Failed += len(res.Failures)

	for _, c := range res.Unprocessed {
		r.addUnprocessed(pipeline.StageOrderCreation, c.Email)
	}
}

// AddSweep records both phases of a sweep. Customers that never reached the
// order phase are reported as unprocessed.
func (r *Report) AddSweep(res pipeline.SweepResult) {
	r.AddReconciliation(res.Customers, false)
	if res.OrdersStarted {
		r.AddOrders(res.Orders)
		return
	}
	r.table(TableDraftOrders)
	for _, c := range res.Customers.Successes {
		r.addUnprocessed(pipeline.StageOrderCreation, c.Email)
	}
}

// AddInvoices records an invoice run.
func (r *Report) AddInvoices(res pipeline.Result[models.DraftOrderRef, models.Invoice]) {
	r.Total += res.Total()

	sent := r.table(TableInvoicesSent)
	for _, inv := range res.Successes {
		sent.Rows = append(sent.Rows, []string{inv.DraftOrderID, inv.DraftOrderName, inv.To})
	}
	r.Succeeded += len(res.Successes)

	failed := r.table(TableInvoicesFailed)
	for _, f := range res.Failures {
		ref := f.Record
		failed.Rows = append(failed.Rows, []string{ref.ID, ref.Name, ref.Email, f.Kind(), f.Reason})
		r.addFailure(f.Stage, ref.ID, f.Err, ref)
	}
	r.Failed += len(res.Failures)

	for _, ref := range res.Unprocessed {
		r.addUnprocessed(pipeline.StageInvoiceSend, ref.ID)
	}
}

func (r *Report) addUnprocessed(stage pipeline.StageName, id string) {
	t := r.table(TableUnprocessed)
	t.Rows = append(t.Rows, []string{string(stage), id})
	r.Unprocessed++
}

// Finish sets the final status from the run's error.
func (r *Report) Finish(err error) {
	r.Err = err
	switch {
	case err == nil:
		r.Status = models.RunStatusCompleted
	case errors.Is(err, pipeline.ErrBatchAborted):
		r.Status = models.RunStatusAborted
	default:
		r.Status = models.RunStatusFailed
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// recordMap turns a record into a JSON object for the ledger.
func recordMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}

package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefbowerman/undftd-cli/internal/models"
)

func newSweep(t *testing.T, log *callLog, dir *stubDirectory, gate Gate) (*Sweep, *stubOrders) {
	t.Helper()
	lim := newLimiter(t)
	orders := newStubOrders(log)
	s := NewSweep(
		NewReconciler(dir, lim, ReconcilerConfig{}),
		NewOrderCreator(orders, lim, testVariants(), nil),
		gate,
	)
	return s, orders
}

func TestReconcileScenarioKnownInTheMiddle(t *testing.T) {
	log := &callLog{}
	dir := newStubDirectory(log, models.DirectoryCustomer{ID: "gid://shopify/Customer/2", Email: "second@example.com"})
	r := NewReconciler(dir, newLimiter(t), ReconcilerConfig{})

	records := []models.Entrant{
		entrant("first@example.com", "9"),
		entrant("second@example.com", "10"),
		entrant("third@example.com", "11"),
	}
	res, err := NewRunner(r.Stage()).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, emails(records), customerEmails(res.Successes))
	assert.Empty(t, res.Failures)
	assert.Equal(t, 2, log.count("create"))
	assert.Equal(t, "gid://shopify/Customer/2", res.Successes[1].RemoteID)
}

func TestReconcileScenarioCreateFailsForSecond(t *testing.T) {
	dir := newStubDirectory(&callLog{})
	dir.createErr["second@example.com"] = errors.New("email has already been taken")
	r := NewReconciler(dir, newLimiter(t), ReconcilerConfig{})

	records := []models.Entrant{
		entrant("first@example.com", "9"),
		entrant("second@example.com", "10"),
	}
	res, err := NewRunner(r.Stage()).Run(context.Background(), records)
	require.NoError(t, err)

	require.Len(t, res.Successes, 1)
	assert.Equal(t, "first@example.com", res.Successes[0].Email)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, StageReconciliation, res.Failures[0].Stage)
	assert.Equal(t, "second@example.com", res.Failures[0].Identifier)
}

func TestSweepPhaseBarrier(t *testing.T) {
	log := &callLog{}
	s, orders := newSweep(t, log, newStubDirectory(log), nil)
	records := fakeEntrants(31, 12)

	res, err := s.Run(context.Background(), records)
	require.NoError(t, err)
	assert.True(t, res.OrdersStarted)
	assert.Len(t, res.Customers.Successes, 12)
	assert.Len(t, res.Orders.Successes, 12)
	assert.Len(t, orders.created, 12)

	ops := log.ops()
	firstOrder := slices.Index(ops, "order")
	require.GreaterOrEqual(t, firstOrder, 0)
	for _, op := range ops[firstOrder:] {
		assert.Equal(t, "order", op, "no directory call may follow the first order call")
	}
	assert.Equal(t, 12, log.count("search"))
}

func TestSweepGateDeclined(t *testing.T) {
	log := &callLog{}
	var prompt string
	gate := GateFunc(func(_ context.Context, p string) (bool, error) {
		prompt = p
		return false, nil
	})
	s, orders := newSweep(t, log, newStubDirectory(log), gate)

	res, err := s.Run(context.Background(), fakeEntrants(33, 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchAborted)
	assert.ErrorIs(t, err, ErrDeclined)
	assert.True(t, IsRunLevel(err))

	assert.Contains(t, prompt, "3 customers reconciled")
	assert.Len(t, res.Customers.Successes, 3, "phase one results are kept")
	assert.False(t, res.OrdersStarted)
	assert.Empty(t, orders.created)
	assert.Zero(t, log.count("order"))
}

func TestSweepGateError(t *testing.T) {
	log := &callLog{}
	gate := GateFunc(func(context.Context, string) (bool, error) { return false, errBoom })
	s, _ := newSweep(t, log, newStubDirectory(log), gate)

	_, err := s.Run(context.Background(), fakeEntrants(34, 2))
	assert.ErrorIs(t, err, ErrBatchAborted)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, log.count("order"))
}

func TestSweepOrdersOnlyReconciledCustomers(t *testing.T) {
	log := &callLog{}
	dir := newStubDirectory(log)
	records := []models.Entrant{
		entrant("ok@example.com", "10"),
		entrant("broken@example.com", "10"),
		entrant("nosize@example.com", "16"),
	}
	dir.createErr["broken@example.com"] = errBoom

	confirmed := false
	gate := GateFunc(func(context.Context, string) (bool, error) {
		confirmed = true
		return true, nil
	})
	s, orders := newSweep(t, log, dir, gate)

	res, err := s.Run(context.Background(), records)
	require.NoError(t, err)
	assert.True(t, confirmed)

	assert.Equal(t, []string{"ok@example.com", "nosize@example.com"}, customerEmails(res.Customers.Successes))
	require.Len(t, res.Customers.Failures, 1)
	require.Len(t, res.Orders.Successes, 1)
	require.Len(t, res.Orders.Failures, 1)
	assert.ErrorIs(t, res.Orders.Failures[0].Err, ErrMissingVariantMapping)
	assert.Len(t, orders.created, 1)
}

func TestSweepNothingReconciledSkipsGate(t *testing.T) {
	log := &callLog{}
	dir := newStubDirectory(log)
	dir.createErr["a@example.com"] = errBoom

	gate := GateFunc(func(context.Context, string) (bool, error) {
		t.Fatal("gate must not be asked when there is nothing to order")
		return false, nil
	})
	s, _ := newSweep(t, log, dir, gate)

	res, err := s.Run(context.Background(), []models.Entrant{entrant("a@example.com", "10")})
	require.NoError(t, err)
	assert.False(t, res.OrdersStarted)
	assert.Len(t, res.Customers.Failures, 1)
}

func TestSweepAbortDuringReconciliation(t *testing.T) {
	log := &callLog{}
	dir := newStubDirectory(log)
	s, _ := newSweep(t, log, dir, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cancelOnSecond := &cancellingDirectory{stubDirectory: dir, cancel: cancel, after: 2}
	s.reconciler.dir = cancelOnSecond

	records := fakeEntrants(35, 5)
	res, err := s.Run(ctx, records)
	assert.ErrorIs(t, err, ErrBatchAborted)
	assert.False(t, res.OrdersStarted)
	assert.Equal(t, len(records), res.Customers.Total())
	assert.NotEmpty(t, res.Customers.Unprocessed)
	assert.Zero(t, log.count("order"))
}

// cancellingDirectory cancels the run once it has served `after` searches.
type cancellingDirectory struct {
	*stubDirectory
	cancel   context.CancelFunc
	after    int
	searches int
}

func (d *cancellingDirectory) SearchCustomers(ctx context.Context, identifier string) ([]models.DirectoryCustomer, error) {
	d.searches++
	if d.searches == d.after {
		d.cancel()
	}
	return d.stubDirectory.SearchCustomers(ctx, identifier)
}

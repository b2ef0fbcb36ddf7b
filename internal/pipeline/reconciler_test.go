package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stefbowerman/undftd-cli/internal/models"
)

func TestReconcileCreatesMissingCustomer(t *testing.T) {
	log := &callLog{}
	dir := newStubDirectory(log)
	lim := newLimiter(t)
	r := NewReconciler(dir, lim, ReconcilerConfig{Tags: []string{"raffle"}})

	e := entrant("new@example.com", "10")
	c, err := r.Reconcile(context.Background(), e)
	require.NoError(t, err)

	assert.True(t, c.Created)
	assert.NotEmpty(t, c.RemoteID)
	assert.Equal(t, []string{"search", "create"}, log.ops())
	assert.Equal(t, int64(2), lim.Stats().Acquired, "one token per remote call")

	require.Len(t, dir.customers, 1)
	assert.Equal(t, "new@example.com", dir.customers[0].Email)
}

func TestReconcileCreateSendsIdentityOnly(t *testing.T) {
	var got models.CustomerInput
	dir := &captureDirectory{onCreate: func(in models.CustomerInput) { got = in }}
	r := NewReconciler(dir, newLimiter(t), ReconcilerConfig{Tags: []string{"raffle", "size-run"}})

	e := entrant(" Mixed@Example.com ", "9")
	e.FirstName, e.LastName = "Jane", "Doe"
	_, err := r.Reconcile(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, models.CustomerInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "Mixed@Example.com",
		Tags:      []string{"raffle", "size-run"},
	}, got)
}

func TestReconcileFindsExistingCaseInsensitive(t *testing.T) {
	log := &callLog{}
	existing := models.DirectoryCustomer{ID: "gid://shopify/Customer/1", Email: "Jane@Example.com", FirstName: "J", LastName: "D"}
	dir := newStubDirectory(log, existing)
	lim := newLimiter(t)
	r := NewReconciler(dir, lim, ReconcilerConfig{})

	for _, email := range []string{"jane@example.com", "JANE@EXAMPLE.COM", " Jane@Example.com "} {
		c, err := r.Reconcile(context.Background(), entrant(email, "10"))
		require.NoError(t, err, email)
		assert.Equal(t, existing.ID, c.RemoteID, email)
		assert.False(t, c.Created)
	}

	assert.Zero(t, log.count("create"))
	assert.Equal(t, int64(3), lim.Stats().Acquired)
}

func TestReconcileSameEntityForCaseVariants(t *testing.T) {
	log := &callLog{}
	r := NewReconciler(newStubDirectory(log), newLimiter(t), ReconcilerConfig{})

	a, err := r.Reconcile(context.Background(), entrant("A@B.com", "10"))
	require.NoError(t, err)
	b, err := r.Reconcile(context.Background(), entrant("a@b.com", "10"))
	require.NoError(t, err)

	assert.Equal(t, a.RemoteID, b.RemoteID)
	assert.Equal(t, 1, log.count("create"))
}

func TestReconcileIgnoresNearMatches(t *testing.T) {
	log := &callLog{}
	dir := newStubDirectory(log,
		models.DirectoryCustomer{ID: "gid://shopify/Customer/1", Email: "jane+raffle@example.com"},
		models.DirectoryCustomer{ID: "gid://shopify/Customer/2", Email: "mary-jane@example.com"},
	)
	r := NewReconciler(dir, newLimiter(t), ReconcilerConfig{})

	lookup, err := r.Lookup(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, NotFound, lookup.Kind)
	assert.Equal(t, 2, lookup.NearMatches)

	c, err := r.Reconcile(context.Background(), entrant("jane@example.com", "10"))
	require.NoError(t, err)
	assert.True(t, c.Created)
	assert.NotEqual(t, "gid://shopify/Customer/1", c.RemoteID)
}

func TestReconcileAmbiguousMatchFails(t *testing.T) {
	log := &callLog{}
	dir := newStubDirectory(log,
		models.DirectoryCustomer{ID: "gid://shopify/Customer/1", Email: "dup@example.com"},
		models.DirectoryCustomer{ID: "gid://shopify/Customer/2", Email: "DUP@example.com"},
	)
	r := NewReconciler(dir, newLimiter(t), ReconcilerConfig{})

	_, err := r.Reconcile(context.Background(), entrant("dup@example.com", "10"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAmbiguousMatch)
	assert.ErrorIs(t, err, ErrDirectoryLookup)
	assert.Equal(t, "ambiguous_match", FailureKind(err))
	assert.Zero(t, log.count("create"), "an ambiguous match must never create")
}

func TestReconcileRepeatedSearchRowIsOneMatch(t *testing.T) {
	log := &callLog{}
	jane := models.DirectoryCustomer{ID: "gid://shopify/Customer/1", Email: "jane@example.com"}
	dir := newStubDirectory(log, jane, jane, models.DirectoryCustomer{ID: "gid://shopify/Customer/9", Email: "jane@example.org"})
	r := NewReconciler(dir, newLimiter(t), ReconcilerConfig{})

	lookup, err := r.Lookup(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, Found, lookup.Kind)
	assert.Equal(t, jane.ID, lookup.Match.ID)
	assert.Equal(t, 1, lookup.NearMatches)

	c, err := r.Reconcile(context.Background(), entrant("jane@example.com", "10"))
	require.NoError(t, err)
	assert.False(t, c.Created)
	assert.Zero(t, log.count("create"))
}

func TestReconcileRemoteErrors(t *testing.T) {
	t.Run("search", func(t *testing.T) {
		log := &callLog{}
		dir := newStubDirectory(log)
		dir.searchErr["a@example.com"] = errBoom
		r := NewReconciler(dir, newLimiter(t), ReconcilerConfig{})

		_, err := r.Reconcile(context.Background(), entrant("a@example.com", "10"))
		assert.ErrorIs(t, err, ErrDirectoryLookup)
		assert.ErrorIs(t, err, errBoom)
		assert.Zero(t, log.count("create"))
	})

	t.Run("create", func(t *testing.T) {
		dir := newStubDirectory(&callLog{})
		dir.createErr["a@example.com"] = errBoom
		r := NewReconciler(dir, newLimiter(t), ReconcilerConfig{})

		_, err := r.Reconcile(context.Background(), entrant("a@example.com", "10"))
		assert.ErrorIs(t, err, ErrDirectoryCreate)
		assert.Equal(t, "directory_create", FailureKind(err))
	})

	t.Run("missing email", func(t *testing.T) {
		log := &callLog{}
		r := NewReconciler(newStubDirectory(log), newLimiter(t), ReconcilerConfig{})

		_, err := r.Reconcile(context.Background(), entrant("  ", "10"))
		assert.ErrorIs(t, err, ErrDirectoryLookup)
		assert.Empty(t, log.ops())
	})
}

func TestReconcileKeepsShippingFromEntrant(t *testing.T) {
	existing := models.DirectoryCustomer{ID: "gid://shopify/Customer/9", Email: "jane@example.com", FirstName: "Old", LastName: "Name"}
	r := NewReconciler(newStubDirectory(&callLog{}, existing), newLimiter(t), ReconcilerConfig{})

	e := entrant("jane@example.com", " 9.5 ")
	e.FirstName, e.LastName, e.State, e.City = "Jane", "Doe", "NV", "Reno"

	c, err := r.Reconcile(context.Background(), e)
	require.NoError(t, err)
	assert.Equal(t, "Jane", c.FirstName)
	assert.Equal(t, "9.5", c.VariantSelector)
	assert.Equal(t, "NV", c.Shipping.Province)
	assert.Equal(t, "Reno", c.Shipping.City)
	assert.Equal(t, models.DefaultCountryCode, c.Shipping.CountryCode)
}

func TestReconcileIsIdempotentAcrossRuns(t *testing.T) {
	log := &callLog{}
	dir := newStubDirectory(log)
	r := NewReconciler(dir, newLimiter(t), ReconcilerConfig{})
	records := fakeEntrants(21, 8)

	first, err := NewRunner(r.Stage()).Run(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, first.Successes, 8)
	assert.Equal(t, 8, log.count("create"))

	second, err := NewRunner(r.Stage()).Run(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, second.Successes, 8)
	assert.Equal(t, 8, log.count("create"), "second run must not create again")

	for i := range records {
		assert.Equal(t, first.Successes[i].RemoteID, second.Successes[i].RemoteID)
		assert.False(t, second.Successes[i].Created)
	}
}

func TestLookupPacesBeforeSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	log := &callLog{}
	r := NewReconciler(newStubDirectory(log), newLimiter(t), ReconcilerConfig{})
	_, err := r.Lookup(ctx, "a@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, log.ops(), "no call may be issued without a token")
}

// captureDirectory always misses and hands the create payload to onCreate.
type captureDirectory struct {
	onCreate func(models.CustomerInput)
}

func (d *captureDirectory) SearchCustomers(context.Context, string) ([]models.DirectoryCustomer, error) {
	return nil, nil
}

func (d *captureDirectory) CreateCustomer(_ context.Context, in models.CustomerInput) (models.DirectoryCustomer, error) {
	d.onCreate(in)
	return models.DirectoryCustomer{ID: "gid://shopify/Customer/1", Email: in.Email}, nil
}

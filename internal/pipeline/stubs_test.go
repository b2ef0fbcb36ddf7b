package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/require"

	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/stefbowerman/undftd-cli/internal/ratelimit"
)

var epoch = time.Date(2024, 11, 29, 9, 0, 0, 0, time.UTC)

// newLimiter returns the production bucket shape on a clock that never
// sleeps for real.
func newLimiter(t *testing.T) *ratelimit.TokenBucket {
	t.Helper()
	lim, err := ratelimit.New(ratelimit.Config{
		Rate:     4,
		Capacity: 4,
		Clock:    ratelimit.NewManualClock(epoch, true),
	})
	require.NoError(t, err)
	return lim
}

// call is one invocation seen by a stub, in global order.
type call struct {
	op  string
	arg string
}

type callLog struct {
	mu    sync.Mutex
	calls []call
}

func (l *callLog) add(op, arg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call{op: op, arg: arg})
}

func (l *callLog) ops() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	for i, c := range l.calls {
		out[i] = c.op
	}
	return out
}

func (l *callLog) count(op string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

// stubDirectory is an in-memory directory whose search behaves like a
// fuzzy full-text index: it matches on the local part of the address, so
// results include near matches.
type stubDirectory struct {
	log *callLog

	mu        sync.Mutex
	customers []models.DirectoryCustomer
	nextID    int
	searchErr map[string]error
	createErr map[string]error
}

func newStubDirectory(log *callLog, existing ...models.DirectoryCustomer) *stubDirectory {
	return &stubDirectory{
		log:       log,
		customers: existing,
		nextID:    1000,
		searchErr: map[string]error{},
		createErr: map[string]error{},
	}
}

func (d *stubDirectory) SearchCustomers(_ context.Context, identifier string) ([]models.DirectoryCustomer, error) {
	d.log.add("search", identifier)
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.searchErr[models.NormalizeIdentifier(identifier)]; ok {
		return nil, err
	}

	local, _, _ := strings.Cut(models.NormalizeIdentifier(identifier), "@")
	var out []models.DirectoryCustomer
	for _, c := range d.customers {
		if strings.Contains(strings.ToLower(c.Email), local) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *stubDirectory) CreateCustomer(_ context.Context, input models.CustomerInput) (models.DirectoryCustomer, error) {
	d.log.add("create", input.Email)
	d.mu.Lock()
	defer d.mu.Unlock()

	if err, ok := d.createErr[models.NormalizeIdentifier(input.Email)]; ok {
		return models.DirectoryCustomer{}, err
	}

	d.nextID++
	c := models.DirectoryCustomer{
		ID:        fmt.Sprintf("gid://shopify/Customer/%d", d.nextID),
		Email:     input.Email,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	}
	d.customers = append(d.customers, c)
	return c, nil
}

type createdOrder struct {
	customerID string
	variantID  string
	shipping   models.ShippingAddress
}

// stubOrders records every order and invoice request.
type stubOrders struct {
	log *callLog

	mu         sync.Mutex
	created    []createdOrder
	invoices   []string
	nextID     int
	orderErr   map[string]error // by customer id
	invoiceErr map[string]error // by draft order id
}

func newStubOrders(log *callLog) *stubOrders {
	return &stubOrders{
		log:        log,
		nextID:     1000,
		orderErr:   map[string]error{},
		invoiceErr: map[string]error{},
	}
}

func (o *stubOrders) CreateDraftOrder(_ context.Context, customerID, variantID string, shipping models.ShippingAddress) (models.DraftOrder, error) {
	o.log.add("order", customerID)
	o.mu.Lock()
	defer o.mu.Unlock()

	if err, ok := o.orderErr[customerID]; ok {
		return models.DraftOrder{}, err
	}

	o.nextID++
	o.created = append(o.created, createdOrder{customerID: customerID, variantID: variantID, shipping: shipping})
	return models.DraftOrder{
		ID:        fmt.Sprintf("gid://shopify/DraftOrder/%d", o.nextID),
		Name:      fmt.Sprintf("#D%d", o.nextID-1000),
		CreatedAt: epoch,
		Status:    "OPEN",
	}, nil
}

func (o *stubOrders) SendInvoice(_ context.Context, draftOrderID, message string) (models.Invoice, error) {
	o.log.add("invoice", draftOrderID)
	o.mu.Lock()
	defer o.mu.Unlock()

	if err, ok := o.invoiceErr[draftOrderID]; ok {
		return models.Invoice{}, err
	}
	o.invoices = append(o.invoices, draftOrderID)
	return models.Invoice{CustomMessage: message, SentAt: epoch}, nil
}

func entrant(email, size string) models.Entrant {
	return models.Entrant{
		Email:     email,
		FirstName: "First",
		LastName:  "Last",
		Address:   "1 Main St",
		City:      "Los Angeles",
		State:     "CA",
		Zip:       "90001",
		Size:      size,
	}
}

// fakeEntrants generates n entrants with unique addresses.
func fakeEntrants(seed uint64, n int) []models.Entrant {
	f := gofakeit.New(seed)
	sizes := []string{"8", "9", "9.5", "10", "11"}
	seen := map[string]bool{}
	out := make([]models.Entrant, 0, n)
	for len(out) < n {
		email := f.Email()
		if seen[models.NormalizeIdentifier(email)] {
			continue
		}
		seen[models.NormalizeIdentifier(email)] = true
		out = append(out, models.Entrant{
			Email:     email,
			FirstName: f.FirstName(),
			LastName:  f.LastName(),
			Address:   f.Street(),
			City:      f.City(),
			State:     f.StateAbr(),
			Zip:       f.Zip(),
			Size:      sizes[f.IntRange(0, len(sizes)-1)],
			Row:       len(out) + 1,
		})
	}
	return out
}

func testVariants() VariantMap {
	return VariantMap{
		"8":   "gid://shopify/ProductVariant/8",
		"9":   "gid://shopify/ProductVariant/9",
		"9.5": "gid://shopify/ProductVariant/95",
		"10":  "gid://shopify/ProductVariant/10",
		"11":  "gid://shopify/ProductVariant/11",
	}
}

func emails(es []models.Entrant) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.Email
	}
	return out
}

func customerEmails(cs []models.Customer) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Email
	}
	return out
}

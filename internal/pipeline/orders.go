package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/stefbowerman/undftd-cli/internal/ratelimit"
)

// OrderService creates draft orders and sends their invoices.
type OrderService interface {
	CreateDraftOrder(ctx context.Context, customerID, variantID string, shipping models.ShippingAddress) (models.DraftOrder, error)
	SendInvoice(ctx context.Context, draftOrderID, message string) (models.Invoice, error)
}

// VariantMap maps a variant selector (a shoe size) to a product variant id.
type VariantMap map[string]string

// Resolve returns the variant id for selector.
func (m VariantMap) Resolve(selector string) (string, bool) {
	id, ok := m[strings.TrimSpace(selector)]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// OrderCreator creates one draft order per reconciled customer.
type OrderCreator struct {
	orders   OrderService
	limiter  ratelimit.Limiter
	variants VariantMap
	logger   *slog.Logger
}

// NewOrderCreator creates an order creator. A nil logger uses slog.Default().
func NewOrderCreator(orders OrderService, limiter ratelimit.Limiter, variants VariantMap, logger *slog.Logger) *OrderCreator {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderCreator{
		orders:   orders,
		limiter:  limiter,
		variants: variants,
		logger:   logger.With("component", "order_creator"),
	}
}

// Create creates a draft order for c with a single line item. A selector
// without a variant fails before any token is taken.
func (o *OrderCreator) Create(ctx context.Context, c models.Customer) (models.DraftOrder, error) {
	variantID, ok := o.variants.Resolve(c.VariantSelector)
	if !ok {
		return models.DraftOrder{}, fmt.Errorf("%w: size %q", ErrMissingVariantMapping, c.VariantSelector)
	}

	if err := o.limiter.Acquire(ctx, 1); err != nil {
		return models.DraftOrder{}, fmt.Errorf("pace draft order create: %w", err)
	}

	order, err := o.orders.CreateDraftOrder(ctx, c.RemoteID, variantID, c.Shipping)
	if err != nil {
		return models.DraftOrder{}, fmt.Errorf("%w: customer %s variant %s: %w", ErrOrderCreate, c.RemoteID, variantID, err)
	}
	if order.Email == "" {
		order.Email = c.Email
	}
	if order.CustomerID == "" {
		order.CustomerID = c.RemoteID
	}

	o.logger.Debug("draft order created", "identifier", c.Email, "remote_id", c.RemoteID, "draft_order", order.Name)
	return order, nil
}

// Stage returns the order creation stage for a Runner.
func (o *OrderCreator) Stage() Stage[models.Customer, models.DraftOrder] {
	return Stage[models.Customer, models.DraftOrder]{
		Name:     StageOrderCreation,
		Process:  o.Create,
		Identify: func(c models.Customer) string { return c.Email },
	}
}

// InvoiceSender sends the invoice of an existing draft order.
type InvoiceSender struct {
	orders  OrderService
	limiter ratelimit.Limiter
	message string
	logger  *slog.Logger
}

// NewInvoiceSender creates an invoice sender. message is the custom message
// included in every invoice.
func NewInvoiceSender(orders OrderService, limiter ratelimit.Limiter, message string, logger *slog.Logger) *InvoiceSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceSender{
		orders:  orders,
		limiter: limiter,
		message: message,
		logger:  logger.With("component", "invoice_sender"),
	}
}

// Send sends the invoice for ref.
func (s *InvoiceSender) Send(ctx context.Context, ref models.DraftOrderRef) (models.Invoice, error) {
	if ref.ID == "" {
		return models.Invoice{}, fmt.Errorf("%w: draft order %q has no id", ErrInvoiceSend, ref.Name)
	}

	if err := s.limiter.Acquire(ctx, 1); err != nil {
		return models.Invoice{}, fmt.Errorf("pace invoice send: %w", err)
	}

	inv, err := s.orders.SendInvoice(ctx, ref.ID, s.message)
	if err != nil {
		return models.Invoice{}, fmt.Errorf("%w: draft order %s: %w", ErrInvoiceSend, ref.ID, err)
	}
	if inv.DraftOrderID == "" {
		inv.DraftOrderID = ref.ID
	}
	if inv.DraftOrderName == "" {
		inv.DraftOrderName = ref.Name
	}
	if inv.To == "" {
		inv.To = ref.Email
	}

	s.logger.Debug("invoice sent", "draft_order", inv.DraftOrderName, "to", inv.To)
	return inv, nil
}

// Stage returns the invoice stage for a Runner.
func (s *InvoiceSender) Stage() Stage[models.DraftOrderRef, models.Invoice] {
	return Stage[models.DraftOrderRef, models.Invoice]{
		Name:     StageInvoiceSend,
		Process:  s.Send,
		Identify: func(r models.DraftOrderRef) string { return r.Name },
	}
}

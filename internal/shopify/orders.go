package shopify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/stefbowerman/undftd-cli/internal/pipeline"
)

var _ pipeline.OrderService = (*Client)(nil)

// GID returns the global id for a resource. Values that already are global
// ids are returned unchanged.
func GID(resource, id string) string {
	id = strings.TrimSpace(id)
	if id == "" || strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/" + resource + "/" + id
}

// LegacyID returns the numeric tail of a global id.
func LegacyID(gid string) string {
	if i := strings.LastIndex(gid, "/"); i >= 0 {
		return gid[i+1:]
	}
	return gid
}

type draftOrderNode struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	CreatedAt  time.Time       `json:"createdAt"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Customer   *struct {
		ID string `json:"id"`
	} `json:"customer"`
}

func (n draftOrderNode) model() models.DraftOrder {
	o := models.DraftOrder{
		ID:         n.ID,
		Name:       n.Name,
		Email:      n.Email,
		CreatedAt:  n.CreatedAt,
		Status:     n.Status,
		TotalPrice: n.TotalPrice,
	}
	if n.Customer != nil {
		o.CustomerID = n.Customer.ID
	}
	return o
}

func mailingAddress(a models.ShippingAddress) map[string]any {
	return map[string]any{
		"address1":     a.Address1,
		"city":         a.City,
		"provinceCode": a.Province,
		"zip":          a.Zip,
		"firstName":    a.FirstName,
		"lastName":     a.LastName,
		"countryCode":  a.CountryCode,
	}
}

// CreateDraftOrder creates a draft order with one line item of variantID for
// the customer.
func (c *Client) CreateDraftOrder(ctx context.Context, customerID, variantID string, shipping models.ShippingAddress) (models.DraftOrder, error) {
	input := map[string]any{
		"purchasingEntity": map[string]any{"customerId": GID("Customer", customerID)},
		"lineItems": []map[string]any{
			{"variantId": GID("ProductVariant", variantID), "quantity": 1},
		},
		"shippingAddress": mailingAddress(shipping),
	}

	var result struct {
		DraftOrderCreate struct {
			DraftOrder *draftOrderNode `json:"draftOrder"`
			UserErrors []UserError     `json:"userErrors"`
		} `json:"draftOrderCreate"`
	}
	if err := c.Execute(ctx, draftOrderCreateOp, map[string]any{"input": input}, &result); err != nil {
		return models.DraftOrder{}, err
	}

	payload := result.DraftOrderCreate
	if err := userErrors(payload.UserErrors); err != nil {
		return models.DraftOrder{}, err
	}
	if payload.DraftOrder == nil || payload.DraftOrder.ID == "" {
		return models.DraftOrder{}, fmt.Errorf("%w: draftOrderCreate returned no draft order", ErrUnexpectedResponse)
	}
	return payload.DraftOrder.model(), nil
}

// SendInvoice emails the draft order's invoice to its customer with message.
func (c *Client) SendInvoice(ctx context.Context, draftOrderID, message string) (models.Invoice, error) {
	vars := map[string]any{"id": GID("DraftOrder", draftOrderID)}
	if message != "" {
		vars["email"] = map[string]any{"customMessage": message}
	}

	var result struct {
		DraftOrderInvoiceSend struct {
			DraftOrder *draftOrderNode `json:"draftOrder"`
			UserErrors []UserError     `json:"userErrors"`
		} `json:"draftOrderInvoiceSend"`
	}
	if err := c.Execute(ctx, draftOrderInvoiceSendOp, vars, &result); err != nil {
		return models.Invoice{}, err
	}

	payload := result.DraftOrderInvoiceSend
	if err := userErrors(payload.UserErrors); err != nil {
		return models.Invoice{}, err
	}
	if payload.DraftOrder == nil {
		return models.Invoice{}, fmt.Errorf("%w: draftOrderInvoiceSend returned no draft order", ErrUnexpectedResponse)
	}

	return models.Invoice{
		DraftOrderID:   payload.DraftOrder.ID,
		DraftOrderName: payload.DraftOrder.Name,
		To:             payload.DraftOrder.Email,
		CustomMessage:  message,
		SentAt:         time.Now().UTC(),
	}, nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DraftOrder is a pending order created for a reconciled customer.
type DraftOrder struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	CreatedAt  time.Time       `json:"createdAt"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	CustomerID string          `json:"customerId,omitempty"`
}

// Ref returns the fields needed to send an invoice for this order later.
func (o DraftOrder) Ref() DraftOrderRef {
	return DraftOrderRef{
		ID:        o.ID,
		Name:      o.Name,
		Email:     o.Email,
		CreatedAt: o.CreatedAt,
		Status:    o.Status,
	}
}

// DraftOrderRef identifies an existing draft order, as listed in a previous
// run's output.
type DraftOrderRef struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// Invoice is the receipt of a sent draft-order invoice.
type Invoice struct {
	DraftOrderID   string    `json:"draft_order_id"`
	DraftOrderName string    `json:"draft_order_name"`
	To             string    `json:"to"`
	Subject        string    `json:"subject,omitempty"`
	CustomMessage  string    `json:"custom_message,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}

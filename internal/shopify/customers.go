package shopify

import (
	"context"
	"fmt"
	"strings"

	"github.com/stefbowerman/undftd-cli/internal/models"
	"github.com/stefbowerman/undftd-cli/internal/pipeline"
)

// searchLimit caps how many candidates a customer search returns.
const searchLimit = 10

var _ pipeline.Directory = (*Client)(nil)

// SearchCustomers runs a customer search on the email field. Shopify search
// is fuzzy, so the result can contain near matches.
func (c *Client) SearchCustomers(ctx context.Context, email string) ([]models.DirectoryCustomer, error) {
	var result struct {
		Customers struct {
			Nodes []models.DirectoryCustomer `json:"nodes"`
		} `json:"customers"`
	}
	vars := map[string]any{
		"query": EmailQuery(email),
		"first": searchLimit,
	}
	if err := c.Execute(ctx, searchCustomersOp, vars, &result); err != nil {
		return nil, err
	}
	return result.Customers.Nodes, nil
}

// EmailQuery builds the search expression for an exact email.
func EmailQuery(email string) string {
	email = strings.TrimSpace(email)
	email = strings.ReplaceAll(email, `\`, `\\`)
	email = strings.ReplaceAll(email, `"`, `\"`)
	return fmt.Sprintf(`email:"%s"`, email)
}

// CreateCustomer creates a customer from identity fields only.
func (c *Client) CreateCustomer(ctx context.Context, input models.CustomerInput) (models.DirectoryCustomer, error) {
	var result struct {
		CustomerCreate struct {
			Customer   *models.DirectoryCustomer `json:"customer"`
			UserErrors []UserError               `json:"userErrors"`
		} `json:"customerCreate"`
	}
	if err := c.Execute(ctx, customerCreateOp, map[string]any{"input": input}, &result); err != nil {
		return models.DirectoryCustomer{}, err
	}

	payload := result.CustomerCreate
	if err := userErrors(payload.UserErrors); err != nil {
		return models.DirectoryCustomer{}, err
	}
	if payload.Customer == nil || payload.Customer.ID == "" {
		return models.DirectoryCustomer{}, fmt.Errorf("%w: customerCreate returned no customer", ErrUnexpectedResponse)
	}
	return *payload.Customer, nil
}

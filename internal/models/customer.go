package models

// DirectoryCustomer is a customer as the remote directory knows it.
// Only identity fields are read from it.
type DirectoryCustomer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// CustomerInput is the identity-only payload used to create a customer.
type CustomerInput struct {
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Email     string   `json:"email"`
	Tags      []string `json:"tags,omitempty"`
}

// Customer is an entrant reconciled against the directory.
// RemoteID is assigned by the directory and never changes afterwards; the
// shipping and variant fields always come from the entrant.
type Customer struct {
	RemoteID        string          `json:"remote_id"`
	Email           string          `json:"email"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	Shipping        ShippingAddress `json:"shipping"`
	VariantSelector string          `json:"variant_selector"`
	Style           string          `json:"style,omitempty"`
	Created         bool            `json:"created"`
}

// NewCustomer combines a directory match with the entrant's own fields.
func NewCustomer(match DirectoryCustomer, e Entrant, created bool) Customer {
	email := match.Email
	if email == "" {
		email = e.Identifier()
	}
	return Customer{
		RemoteID:        match.ID,
		Email:           email,
		FirstName:       e.FirstName,
		LastName:        e.LastName,
		Shipping:        e.ShippingAddress(),
		VariantSelector: e.VariantSelector(),
		Style:           e.Style,
		Created:         created,
	}
}

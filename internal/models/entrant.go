// Package models defines the records that flow through the raffle pipeline.
package models

import (
	"strings"
)

// Shipping destination defaults. Entrants are US residents only.
const (
	DefaultCountry     = "United States"
	DefaultCountryCode = "US"
)

// Entrant is one row of a raffle entry export.
// It is immutable once read.
type Entrant struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Zip       string `json:"zip"`
	Style     string `json:"style,omitempty"`
	Size      string `json:"size"`

	// Audit columns carried from the export, never sent anywhere.
	IP           string `json:"ip,omitempty"`
	Location     string `json:"location,omitempty"`
	EntryDate    string `json:"entry_date,omitempty"`
	TotalEntries string `json:"total_entries,omitempty"`
	EntrySource  string `json:"entry_source,omitempty"`

	// Row is the 1-based data row in the source file (0 when unknown).
	Row int `json:"row,omitempty"`
}

// Identifier returns the natural key used to reconcile the entrant.
func (e Entrant) Identifier() string {
	return strings.TrimSpace(e.Email)
}

// FullName joins first and last name.
func (e Entrant) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// ShippingAddress builds the shipping payload for a draft order.
func (e Entrant) ShippingAddress() ShippingAddress {
	return ShippingAddress{
		Address1:    e.Address,
		City:        e.City,
		Province:    e.State,
		Zip:         e.Zip,
		FirstName:   e.FirstName,
		LastName:    e.LastName,
		Name:        e.FullName(),
		Country:     DefaultCountry,
		CountryCode: DefaultCountryCode,
	}
}

// VariantSelector returns the value used to pick the product variant.
func (e Entrant) VariantSelector() string {
	return strings.TrimSpace(e.Size)
}

// IdentityInput returns the minimal fields needed to create a directory
// customer for this entrant.
func (e Entrant) IdentityInput(tags []string) CustomerInput {
	return CustomerInput{
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Email:     e.Identifier(),
		Tags:      tags,
	}
}

// ShippingAddress is the destination attached to a draft order.
type ShippingAddress struct {
	Address1    string `json:"address1"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Zip         string `json:"zip"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Name        string `json:"-"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

// NormalizeIdentifier folds an identifier for comparison.
func NormalizeIdentifier(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

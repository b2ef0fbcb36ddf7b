package models

import "testing"

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "a@b.com", "a@b.com"},
		{"uppercase", "A@B.COM", "a@b.com"},
		{"mixed case", "Jane.Doe@Example.com", "jane.doe@example.com"},
		{"surrounding whitespace", "  a@b.com\t", "a@b.com"},
		{"tagged address kept distinct", "User+Tag@Domain.com", "user+tag@domain.com"},
		{"empty string", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeIdentifier(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeIdentifier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEntrantShippingAddress(t *testing.T) {
	e := Entrant{
		Email:     " jane@example.com ",
		FirstName: "Jane",
		LastName:  "Doe",
		Address:   "1 Main St",
		City:      "Los Angeles",
		State:     "CA",
		Zip:       "90001",
		Size:      " 9.5 ",
	}

	addr := e.ShippingAddress()
	if addr.Province != "CA" {
		t.Errorf("Province = %q, want state %q", addr.Province, "CA")
	}
	if addr.City != "Los Angeles" {
		t.Errorf("City = %q", addr.City)
	}
	if addr.Name != "Jane Doe" {
		t.Errorf("Name = %q", addr.Name)
	}
	if addr.Country != DefaultCountry || addr.CountryCode != DefaultCountryCode {
		t.Errorf("country = %q/%q, want %q/%q", addr.Country, addr.CountryCode, DefaultCountry, DefaultCountryCode)
	}
	if got := e.Identifier(); got != "jane@example.com" {
		t.Errorf("Identifier() = %q", got)
	}
	if got := e.VariantSelector(); got != "9.5" {
		t.Errorf("VariantSelector() = %q", got)
	}
}

func TestNewCustomerKeepsEntrantFields(t *testing.T) {
	e := Entrant{Email: "jane@example.com", FirstName: "Jane", LastName: "Doe", State: "NV", Size: "10"}
	match := DirectoryCustomer{ID: "gid://shopify/Customer/1", Email: "Jane@Example.com", FirstName: "J", LastName: "D"}

	c := NewCustomer(match, e, false)
	if c.RemoteID != match.ID {
		t.Errorf("RemoteID = %q", c.RemoteID)
	}
	if c.FirstName != "Jane" || c.LastName != "Doe" {
		t.Errorf("name should come from the entrant, got %q %q", c.FirstName, c.LastName)
	}
	if c.Shipping.Province != "NV" || c.VariantSelector != "10" {
		t.Errorf("shipping/variant should come from the entrant, got %+v", c)
	}
}

func TestRecordStateTransitions(t *testing.T) {
	tests := []struct {
		from, to RecordState
		want     bool
	}{
		{StatePending, StateReconciling, true},
		{StateReconciling, StateReconciled, true},
		{StateReconciling, StateReconciliationFailed, true},
		{StateReconciled, StateOrderPending, true},
		{StateOrderPending, StateOrdered, true},
		{StateOrderPending, StateOrderFailed, true},
		{StatePending, StateOrdered, false},
		{StateReconciliationFailed, StateOrderPending, false},
		{StateOrdered, StateOrderPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	for _, s := range []RecordState{StateOrdered, StateOrderFailed, StateReconciliationFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []RecordState{StateReconciling, StateReconciled} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRecordStateReaches(t *testing.T) {
	tests := []struct {
		from, to RecordState
		want     bool
	}{
		{StateReconciled, StateReconciled, true},
		{StatePending, StateOrdered, true},
		{StateReconciled, StateOrderFailed, true},
		{StateReconciled, StatePending, false},
		{StateOrdered, StateOrderFailed, false},
		{StateReconciliationFailed, StateOrdered, false},
	}

	for _, tt := range tests {
		if got := tt.from.Reaches(tt.to); got != tt.want {
			t.Errorf("%s reaches %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestShortRunID(t *testing.T) {
	if got := ShortRunID("0123456789abcdef"); got != "01234567" {
		t.Errorf("ShortRunID = %q", got)
	}
	if got := ShortRunID("abc"); got != "abc" {
		t.Errorf("ShortRunID = %q", got)
	}
}

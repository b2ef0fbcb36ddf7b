package shopify

import (
	"errors"
	"strings"
)

// Sentinel errors for Admin API failures. Use errors.Is() to check for them.
var (
	// ErrThrottled indicates the shop's API budget is exhausted (HTTP 429 or a
	// THROTTLED GraphQL error).
	ErrThrottled = errors.New("shopify: throttled")

	// ErrUnauthorized indicates the access token was rejected.
	ErrUnauthorized = errors.New("shopify: unauthorized")

	// ErrGraphQL indicates a top-level GraphQL error.
	ErrGraphQL = errors.New("shopify: graphql error")

	// ErrUnexpectedResponse indicates a response missing the requested object.
	ErrUnexpectedResponse = errors.New("shopify: unexpected response")
)

// UserError is a validation error returned in a mutation payload.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserErrors is returned when a mutation reports userErrors.
type UserErrors []UserError

func (e UserErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ue := range e {
		if len(ue.Field) > 0 {
			msgs = append(msgs, strings.Join(ue.Field, ".")+": "+ue.Message)
			continue
		}
		msgs = append(msgs, ue.Message)
	}
	return "shopify: " + strings.Join(msgs, "; ")
}

func userErrors(errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	return UserErrors(errs)
}

package shopify

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Operation is a parsed GraphQL document with a single named operation.
type Operation struct {
	Name     string
	Kind     ast.Operation
	Document string
}

// ParseOperation parses doc and returns its only operation.
func ParseOperation(doc string) (Operation, error) {
	qd, err := parser.ParseQuery(&ast.Source{Name: "operation", Input: doc})
	if err != nil {
		return Operation{}, fmt.Errorf("parse operation: %w", err)
	}
	if len(qd.Operations) != 1 {
		return Operation{}, fmt.Errorf("parse operation: want 1 operation, got %d", len(qd.Operations))
	}
	op := qd.Operations[0]
	if op.Name == "" {
		return Operation{}, fmt.Errorf("parse operation: operation must be named")
	}
	return Operation{Name: op.Name, Kind: op.Operation, Document: doc}, nil
}

func mustParse(doc string) Operation {
	op, err := ParseOperation(doc)
	if err != nil {
		panic(err)
	}
	return op
}

var (
	searchCustomersOp = mustParse(`
		query SearchCustomers($query: String!, $first: Int!) {
			customers(first: $first, query: $query) {
				nodes { id email firstName lastName }
			}
		}
	`)

	customerCreateOp = mustParse(`
		mutation CustomerCreate($input: CustomerInput!) {
			customerCreate(input: $input) {
				customer { id email firstName lastName }
				userErrors { field message }
			}
		}
	`)

	draftOrderCreateOp = mustParse(`
		mutation DraftOrderCreate($input: DraftOrderInput!) {
			draftOrderCreate(input: $input) {
				draftOrder {
					id name email createdAt status totalPrice
					customer { id }
				}
				userErrors { field message }
			}
		}
	`)

	draftOrderInvoiceSendOp = mustParse(`
		mutation DraftOrderInvoiceSend($id: ID!, $email: EmailInput) {
			draftOrderInvoiceSend(id: $id, email: $email) {
				draftOrder { id name email }
				userErrors { field message }
			}
		}
	`)
)

package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/stefbowerman/undftd-cli/internal/models"
)

type capturedRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
	token         string
}

// newTestServer answers every request with the response registered for its
// operation name.
func newTestServer(t *testing.T, responses map[string]string) (*Client, *[]capturedRequest) {
	t.Helper()
	var seen []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req capturedRequest
		require.NoError(t, json.Unmarshal(body, &req))
		req.token = r.Header.Get("X-Shopify-Access-Token")
		seen = append(seen, req)

		resp, ok := responses[req.OperationName]
		if !ok {
			http.Error(w, "unknown operation", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{AccessToken: "shpat_test", Endpoint: srv.URL})
	require.NoError(t, err)
	return c, &seen
}

func TestOperationsAreNamed(t *testing.T) {
	tests := []struct {
		op   Operation
		name string
		kind ast.Operation
	}{
		{searchCustomersOp, "SearchCustomers", ast.Query},
		{customerCreateOp, "CustomerCreate", ast.Mutation},
		{draftOrderCreateOp, "DraftOrderCreate", ast.Mutation},
		{draftOrderInvoiceSendOp, "DraftOrderInvoiceSend", ast.Mutation},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.op.Name)
		assert.Equal(t, tt.kind, tt.op.Kind)
	}
}

func TestParseOperationRejectsAnonymous(t *testing.T) {
	_, err := ParseOperation(`query { shop { name } }`)
	assert.Error(t, err)

	_, err = ParseOperation(`query A { shop { name } } query B { shop { name } }`)
	assert.Error(t, err)

	_, err = ParseOperation(`query Broken {`)
	assert.Error(t, err)
}

func TestNewBuildsShopEndpoint(t *testing.T) {
	c, err := New(Config{Shop: "Undefeated", AccessToken: "x"})
	require.NoError(t, err)
	assert.Equal(t, "https://undefeated.myshopify.com/admin/api/2024-10/graphql.json", c.Endpoint())

	c, err = New(Config{Shop: "https://undefeated.myshopify.com/", AccessToken: "x", APIVersion: "2025-01"})
	require.NoError(t, err)
	assert.Equal(t, "https://undefeated.myshopify.com/admin/api/2025-01/graphql.json", c.Endpoint())

	_, err = New(Config{Shop: "undefeated"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = New(Config{AccessToken: "x"})
	assert.Error(t, err)
}

func TestSearchCustomers(t *testing.T) {
	c, seen := newTestServer(t, map[string]string{
		"SearchCustomers": `{"data":{"customers":{"nodes":[
			{"id":"gid://shopify/Customer/1","email":"jane+raffle@example.com","firstName":"Jane","lastName":"Doe"},
			{"id":"gid://shopify/Customer/2","email":"Jane@Example.com","firstName":"Jane","lastName":"Doe"}
		]}}}`,
	})

	got, err := c.SearchCustomers(context.Background(), " Jane@Example.com ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "gid://shopify/Customer/2", got[1].ID)

	require.Len(t, *seen, 1)
	req := (*seen)[0]
	assert.Equal(t, "shpat_test", req.token)
	assert.Equal(t, `email:"Jane@Example.com"`, req.Variables["query"])
	assert.EqualValues(t, searchLimit, req.Variables["first"])
}

func TestEmailQueryEscapes(t *testing.T) {
	assert.Equal(t, `email:"a\"b@example.com"`, EmailQuery(`a"b@example.com`))
}

func TestCreateCustomer(t *testing.T) {
	c, seen := newTestServer(t, map[string]string{
		"CustomerCreate": `{"data":{"customerCreate":{
			"customer":{"id":"gid://shopify/Customer/9","email":"new@example.com","firstName":"New","lastName":"Person"},
			"userErrors":[]
		}}}`,
	})

	got, err := c.CreateCustomer(context.Background(), models.CustomerInput{
		FirstName: "New", LastName: "Person", Email: "new@example.com", Tags: []string{"raffle"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Customer/9", got.ID)

	input := (*seen)[0].Variables["input"].(map[string]any)
	assert.Equal(t, "new@example.com", input["email"])
	assert.Equal(t, []any{"raffle"}, input["tags"])
	assert.NotContains(t, input, "addresses")
}

func TestCreateCustomerUserErrors(t *testing.T) {
	c, _ := newTestServer(t, map[string]string{
		"CustomerCreate": `{"data":{"customerCreate":{
			"customer":null,
			"userErrors":[{"field":["email"],"message":"Email has already been taken"}]
		}}}`,
	})

	_, err := c.CreateCustomer(context.Background(), models.CustomerInput{Email: "dup@example.com"})
	require.Error(t, err)

	var ue UserErrors
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "shopify: email: Email has already been taken", ue.Error())
}

func TestCreateDraftOrder(t *testing.T) {
	c, seen := newTestServer(t, map[string]string{
		"DraftOrderCreate": `{"data":{"draftOrderCreate":{
			"draftOrder":{
				"id":"gid://shopify/DraftOrder/55","name":"#D55","email":"jane@example.com",
				"createdAt":"2024-11-29T09:00:00Z","status":"OPEN","totalPrice":"220.00",
				"customer":{"id":"gid://shopify/Customer/7"}
			},
			"userErrors":[]
		}}}`,
	})

	shipping := models.Entrant{
		FirstName: "Jane", LastName: "Doe", Address: "1 Main St", City: "Las Vegas", State: "NV", Zip: "89101",
	}.ShippingAddress()

	order, err := c.CreateDraftOrder(context.Background(), "7", "39812345", shipping)
	require.NoError(t, err)
	assert.Equal(t, "#D55", order.Name)
	assert.Equal(t, "gid://shopify/Customer/7", order.CustomerID)
	assert.True(t, decimal.RequireFromString("220").Equal(order.TotalPrice))

	input := (*seen)[0].Variables["input"].(map[string]any)
	assert.Equal(t, map[string]any{"customerId": "gid://shopify/Customer/7"}, input["purchasingEntity"])

	items := input["lineItems"].([]any)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "gid://shopify/ProductVariant/39812345", item["variantId"])
	assert.EqualValues(t, 1, item["quantity"])

	addr := input["shippingAddress"].(map[string]any)
	assert.Equal(t, "NV", addr["provinceCode"])
	assert.Equal(t, "Las Vegas", addr["city"])
	assert.Equal(t, "US", addr["countryCode"])
}

func TestSendInvoice(t *testing.T) {
	c, seen := newTestServer(t, map[string]string{
		"DraftOrderInvoiceSend": `{"data":{"draftOrderInvoiceSend":{
			"draftOrder":{"id":"gid://shopify/DraftOrder/55","name":"#D55","email":"jane@example.com"},
			"userErrors":[]
		}}}`,
	})

	inv, err := c.SendInvoice(context.Background(), "gid://shopify/DraftOrder/55", "You won!")
	require.NoError(t, err)
	assert.Equal(t, "#D55", inv.DraftOrderName)
	assert.Equal(t, "jane@example.com", inv.To)
	assert.Equal(t, "You won!", inv.CustomMessage)

	vars := (*seen)[0].Variables
	assert.Equal(t, "gid://shopify/DraftOrder/55", vars["id"])
	assert.Equal(t, map[string]any{"customMessage": "You won!"}, vars["email"])
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrThrottled},
		{"throttled graphql", http.StatusOK, `{"errors":[{"message":"Throttled","extensions":{"code":"THROTTLED"}}]}`, ErrThrottled},
		{"unauthorized", http.StatusUnauthorized, `{"errors":"[API] Invalid API key"}`, ErrUnauthorized},
		{"graphql error", http.StatusOK, `{"errors":[{"message":"Field 'nope' doesn't exist"}]}`, ErrGraphQL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			var calledWith error
			c, err := New(Config{
				AccessToken: "x",
				Endpoint:    srv.URL,
				OnCall:      func(_ string, _ time.Duration, err error) { calledWith = err },
			})
			require.NoError(t, err)

			_, err = c.SearchCustomers(context.Background(), "a@example.com")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, calledWith, tt.wantErr)
		})
	}
}

func TestExecuteHonorsContext(t *testing.T) {
	c, _ := newTestServer(t, map[string]string{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.SearchCustomers(ctx, "a@example.com")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGID(t *testing.T) {
	assert.Equal(t, "gid://shopify/ProductVariant/123", GID("ProductVariant", "123"))
	assert.Equal(t, "gid://shopify/Customer/1", GID("Customer", "gid://shopify/Customer/1"))
	assert.Equal(t, "", GID("Customer", " "))
	assert.Equal(t, "123", LegacyID("gid://shopify/DraftOrder/123"))
}

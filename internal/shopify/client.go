// Package shopify provides a client for the Shopify Admin GraphQL API.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIVersion is the Admin API version used when none is configured.
const DefaultAPIVersion = "2024-10"

// Config holds the client settings.
type Config struct {
	// Shop is the shop handle ("undefeated") or its full myshopify.com domain.
	Shop        string
	AccessToken string
	APIVersion  string
	// Endpoint overrides the URL derived from Shop and APIVersion.
	Endpoint string
	// Timeout bounds each HTTP request (default 30s).
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	// OnCall, if set, is called after every request with the operation name
	// its duration and its error.
	OnCall func(operation string, elapsed time.Duration, err error)
}

// Client is a Shopify Admin GraphQL client.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	onCall     func(string, time.Duration, error)
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("%w: access token is required", ErrUnauthorized)
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.Shop == "" {
			return nil, fmt.Errorf("shopify: shop is required")
		}
		version := cfg.APIVersion
		if version == "" {
			version = DefaultAPIVersion
		}
		endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", ShopDomain(cfg.Shop), version)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   endpoint,
		token:      cfg.AccessToken,
		httpClient: httpClient,
		logger:     logger.With("component", "shopify"),
		onCall:     cfg.OnCall,
	}, nil
}

// ShopDomain expands a shop handle to its myshopify.com domain.
func ShopDomain(shop string) string {
	shop = strings.TrimSpace(strings.ToLower(shop))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimSuffix(shop, "/")
	if strings.Contains(shop, ".") {
		return shop
	}
	return shop + ".myshopify.com"
}

// Endpoint returns the GraphQL URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type graphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// Execute sends op and decodes its data into result.
func (c *Client) Execute(ctx context.Context, op Operation, variables map[string]any, result any) (err error) {
	start := time.Now()
	defer func() {
		c.logger.Debug("shopify call", "operation", op.Name, "duration", time.Since(start), "error", err)
		if c.onCall != nil {
			c.onCall(op.Name, time.Since(start), err)
		}
	}()

	reqBody, err := json.Marshal(graphQLRequest{
		Query:         op.Document,
		OperationName: op.Name,
		Variables:     variables,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute %s: %w", op.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s retry after %q", ErrThrottled, op.Name, resp.Header.Get("Retry-After"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("server error: %s - %s", resp.Status, truncate(string(body), 200))
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(body, &gqlResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		first := gqlResp.Errors[0]
		if first.Extensions.Code == "THROTTLED" {
			return fmt.Errorf("%w: %s", ErrThrottled, first.Message)
		}
		if first.Extensions.Code == "ACCESS_DENIED" {
			return fmt.Errorf("%w: %s", ErrUnauthorized, first.Message)
		}
		return fmt.Errorf("%w: %s", ErrGraphQL, first.Message)
	}

	if result != nil && len(gqlResp.Data) > 0 {
		if err := json.Unmarshal(gqlResp.Data, result); err != nil {
			return fmt.Errorf("unmarshal data: %w", err)
		}
	}

	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package shopifysync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
)

// APIError is a non-2xx reply from the Shopify Admin API. The body is kept
// so sync errors can be audited later.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify api error %d on %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

type shopifyClient struct {
	baseURL     string
	graphqlURL  string
	accessToken string
	http        *http.Client
	limiter     <-chan time.Time
}

func newShopifyClient(cfg config.ShopifyConfig) *shopifyClient {
	// Shopify's REST bucket allows 2 requests/second on standard plans.
	rateLimitPerSec := int64(2)
	if v := strings.TrimSpace(os.Getenv("SHOPIFY_RATE_LIMIT_PER_SEC")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerSec = n
		}
	}
	interval := time.Second / time.Duration(rateLimitPerSec)

	base := fmt.Sprintf("https://%s/admin/api/%s", cfg.StoreDomain, cfg.ApiVersion)
	return &shopifyClient{
		baseURL:     base,
		graphqlURL:  base + "/graphql.json",
		accessToken: cfg.AccessToken,
		http:        &http.Client{Timeout: 30 * time.Second},
		limiter:     time.Tick(interval),
	}
}

func (c *shopifyClient) do(ctx context.Context, method string, path string, params url.Values, payload interface{}) ([]byte, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	return raw, nil
}

func (c *shopifyClient) get(ctx context.Context, path string, params url.Values, dest interface{}) error {
	raw, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (c *shopifyClient) post(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	raw, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// graphql runs one query against the Admin GraphQL endpoint. Transport-level
// success with GraphQL errors still returns an error.
func (c *shopifyClient) graphql(ctx context.Context, query string, variables map[string]interface{}, dest interface{}) error {
	<-c.limiter
	reqBody, err := json.Marshal(map[string]interface{}{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Endpoint:   "/graphql.json",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("shopify graphql error: %s", envelope.Errors[0].Message)
	}
	if dest == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, dest)
}

const orderPageSize = 250

// ListOrders fetches one page of orders starting after sinceId.
func (c *shopifyClient) ListOrders(ctx context.Context, sinceId string) ([]shopifyOrder, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(orderPageSize))
	params.Set("status", "any")
	if sinceId != "" {
		params.Set("since_id", sinceId)
	}

	var resp struct {
		Orders []shopifyOrder `json:"orders"`
	}
	if err := c.get(ctx, "/orders.json", params, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *shopifyClient) GetOrder(ctx context.Context, orderId string) (*shopifyOrder, error) {
	var resp struct {
		Order shopifyOrder `json:"order"`
	}
	if err := c.get(ctx, "/orders/"+orderId+".json", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

func (c *shopifyClient) GetTransactions(ctx context.Context, orderId string) ([]shopifyTransaction, error) {
	var resp struct {
		Transactions []shopifyTransaction `json:"transactions"`
	}
	if err := c.get(ctx, "/orders/"+orderId+"/transactions.json", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

func (c *shopifyClient) GetRefunds(ctx context.Context, orderId string) ([]shopifyRefund, error) {
	var resp struct {
		Refunds []shopifyRefund `json:"refunds"`
	}
	if err := c.get(ctx, "/orders/"+orderId+"/refunds.json", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Refunds, nil
}

func (c *shopifyClient) GetFulfillmentOrders(ctx context.Context, orderId string) ([]shopifyFulfillmentOrder, error) {
	var resp struct {
		FulfillmentOrders []shopifyFulfillmentOrder `json:"fulfillment_orders"`
	}
	if err := c.get(ctx, "/orders/"+orderId+"/fulfillment_orders.json", nil, &resp); err != nil {
		return nil, err
	}
	return resp.FulfillmentOrders, nil
}

func (c *shopifyClient) GetLocations(ctx context.Context) ([]shopifyLocation, error) {
	var resp struct {
		Locations []shopifyLocation `json:"locations"`
	}
	if err := c.get(ctx, "/locations.json", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

func (c *shopifyClient) CreateFulfillment(ctx context.Context, payload map[string]interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/fulfillments.json", nil, payload)
}

func (c *shopifyClient) CancelOrder(ctx context.Context, orderId string, payload map[string]interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/orders/"+orderId+"/cancel.json", nil, payload)
}

func (c *shopifyClient) CalculateRefund(ctx context.Context, orderId string, payload map[string]interface{}) (*shopifyCalculatedRefund, error) {
	var resp struct {
		Refund shopifyCalculatedRefund `json:"refund"`
	}
	if err := c.post(ctx, "/orders/"+orderId+"/refunds/calculate.json", payload, &resp); err != nil {
		return nil, err
	}
	return &resp.Refund, nil
}

func (c *shopifyClient) CreateRefund(ctx context.Context, orderId string, payload map[string]interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/orders/"+orderId+"/refunds.json", nil, payload)
}

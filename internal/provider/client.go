// Package provider talks to the external fulfillment/logistics service.
// The provider models a "shop order" as a single-product shipment, so
// local orders fan out into one request per order item.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"commerce-core/internal/apperr"
)

// HTTPClient matches the subset of http.Client used by Client
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a JSON-over-HTTP client for the fulfillment provider
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPClient
}

// NewClient creates a fulfillment provider client
func NewClient(baseURL, apiKey string, client HTTPClient) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, client: client}
}

// Recipient is the shipping destination for one shipment
type Recipient struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// CreateOrderRequest submits one single-product shipment
type CreateOrderRequest struct {
	ProductID    string    `json:"product_id"`
	VariationID  string    `json:"variation_id"`
	Quantity     int       `json:"quantity"`
	ShippingPaid int64     `json:"shipping_paid"`
	Reference    string    `json:"reference"`
	Recipient    Recipient `json:"recipient"`
}

// CreateOrderResponse carries the provider's quoted amounts
type CreateOrderResponse struct {
	OrderID      string `json:"order_id"`
	ShippingCost int64  `json:"shipping_cost"`
	Commission   int64  `json:"commission"`
}

// StatusResponse is the provider's view of a shipment
type StatusResponse struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
}

// CreateOrder submits one shipment to the provider. Once accepted there
// is no cancellation path; progress is observed via OrderStatus.
func (c *Client) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/shop-orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Upstream("fulfillment submission failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Upstream(fmt.Sprintf("fulfillment provider returned %d: %s", resp.StatusCode, msg), nil)
	}

	var out CreateOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	if out.OrderID == "" {
		return nil, apperr.Upstream("fulfillment provider returned no order id", nil)
	}
	return &out, nil
}

// OrderStatus is a read-through query for shipment status. Pure read,
// always safe to retry.
func (c *Client) OrderStatus(ctx context.Context, externalOrderID string) (*StatusResponse, error) {
	endpoint := c.baseURL + "/shop-orders/" + url.PathEscape(externalOrderID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, apperr.Upstream("fulfillment status query failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperr.NotFound("external order does not exist")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperr.Upstream(fmt.Sprintf("fulfillment provider returned %d: %s", resp.StatusCode, msg), nil)
	}

	var out StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return &out, nil
}

// Package supplier talks to the external dropshipping catalog feed, the
// source of truth for raw product data.
package supplier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"commerce-core/internal/apperr"
	"commerce-core/internal/util"
)

// HTTPClient matches the subset of http.Client used by Client
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a JSON-over-HTTP client for the supplier feed
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPClient
}

// NewClient creates a supplier feed client. The injected HTTPClient
// carries the call timeout.
func NewClient(baseURL, apiKey string, client HTTPClient) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{baseURL: baseURL, apiKey: apiKey, client: client}
}

// RawFeedItem is one unparsed feed record plus the supplier id it is
// keyed by
type RawFeedItem struct {
	SupplierID string
	Payload    json.RawMessage
}

// FeedProduct is the parsed shape of a feed record
type FeedProduct struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Image    string        `json:"image"`
	Active   bool          `json:"active"`
	Variants []FeedVariant `json:"variants"`
}

// FeedVariant is one purchasable variation inside a feed record
type FeedVariant struct {
	ID    string `json:"id"`
	SKU   string `json:"sku"`
	Price int64  `json:"price"`
}

// ProductDetail is the per-product enrichment payload
type ProductDetail struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// StockRecord is one per-warehouse stock count from the stock feed
type StockRecord struct {
	VariantID string `json:"variant_id"`
	Warehouse string `json:"warehouse"`
	Quantity  int    `json:"quantity"`
}

type productPage struct {
	Total int               `json:"total"`
	Items []json.RawMessage `json:"items"`
}

type stockPage struct {
	Total int           `json:"total"`
	Items []StockRecord `json:"items"`
}

// ListProducts fetches one page of the product feed, returning the feed
// total and the unmodified records keyed by supplier id.
func (c *Client) ListProducts(ctx context.Context, page, limit int) (int, []RawFeedItem, error) {
	var resp productPage
	endpoint := fmt.Sprintf("/products?page=%d&limit=%d", page, limit)
	if err := c.get(ctx, endpoint, "list_products", &resp); err != nil {
		return 0, nil, err
	}

	items := make([]RawFeedItem, 0, len(resp.Items))
	for _, raw := range resp.Items {
		var key struct {
			ID string `json:"id"`
		}
		// A record without a usable id keeps an empty SupplierID; the
		// caller decides what to do with it. An empty slice still means
		// the page itself was empty.
		_ = json.Unmarshal(raw, &key)
		items = append(items, RawFeedItem{SupplierID: key.ID, Payload: raw})
	}
	return resp.Total, items, nil
}

// GetProductDetail fetches enrichment detail for one product
func (c *Client) GetProductDetail(ctx context.Context, supplierID string) (*ProductDetail, error) {
	var detail ProductDetail
	endpoint := "/products/" + url.PathEscape(supplierID)
	if err := c.get(ctx, endpoint, "product_detail", &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListStocks fetches one page of per-warehouse stock counts
func (c *Client) ListStocks(ctx context.Context, page, limit int) (int, []StockRecord, error) {
	var resp stockPage
	endpoint := fmt.Sprintf("/stocks?page=%d&limit=%d", page, limit)
	if err := c.get(ctx, endpoint, "list_stocks", &resp); err != nil {
		return 0, nil, err
	}
	return resp.Total, resp.Items, nil
}

// ParseFeedProduct decodes a stored raw record into its canonical shape
func ParseFeedProduct(payload json.RawMessage) (*FeedProduct, error) {
	var p FeedProduct
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed feed record: %w", err)
	}
	return &p, nil
}

func (c *Client) get(ctx context.Context, endpoint, metricLabel string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		util.SupplierRequestsTotal.WithLabelValues(metricLabel, "error").Inc()
		return apperr.Upstream("supplier feed request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		util.SupplierRequestsTotal.WithLabelValues(metricLabel, strconv.Itoa(resp.StatusCode)).Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperr.Upstream(fmt.Sprintf("supplier feed returned %d: %s", resp.StatusCode, body), nil)
	}

	util.SupplierRequestsTotal.WithLabelValues(metricLabel, "ok").Inc()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode supplier response: %w", err)
	}
	return nil
}

package supplier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commerce-core/internal/apperr"
)

func TestListProducts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products", r.URL.Path)
		require.Equal(t, "2", r.URL.Query().Get("page"))
		require.Equal(t, "Bearer feed-key", r.Header.Get("Authorization"))

		w.Write([]byte(`{
			"total": 5,
			"items": [
				{"id": "P3", "name": "Topi", "active": true, "variants": [{"id": "V3", "sku": "TPI-U", "price": 25000}]},
				{"name": "no id"},
				{"id": "P4", "name": "Jaket", "active": false}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "feed-key", nil)
	total, items, err := client.ListProducts(context.Background(), 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, total)
	require.Len(t, items, 3, "every raw record is returned")
	assert.Equal(t, "P3", items[0].SupplierID)
	assert.Empty(t, items[1].SupplierID, "a record without an id keeps an empty key")
	assert.Equal(t, "P4", items[2].SupplierID)

	// The payload survives untouched for the raw store
	product, err := ParseFeedProduct(items[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, "Topi", product.Name)
	require.Len(t, product.Variants, 1)
	assert.Equal(t, int64(25000), product.Variants[0].Price)
}

func TestListProductsUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	_, _, err := client.ListProducts(context.Background(), 1, 50)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
	assert.Contains(t, err.Error(), "429")
}

func TestGetProductDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/products/P1", r.URL.Path)
		json.NewEncoder(w).Encode(ProductDetail{
			ID:          "P1",
			Description: "Kemeja lengan panjang",
			Image:       "https://img.example/p1-full.jpg",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	detail, err := client.GetProductDetail(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "Kemeja lengan panjang", detail.Description)
}

func TestListStocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stocks", r.URL.Path)
		json.NewEncoder(w).Encode(stockPage{
			Total: 2,
			Items: []StockRecord{
				{VariantID: "V1", Warehouse: "JKT", Quantity: 12},
				{VariantID: "V1", Warehouse: "SBY", Quantity: 3},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "", nil)
	total, records, err := client.ListStocks(context.Background(), 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, records, 2)
	assert.Equal(t, "JKT", records[0].Warehouse)
}

func TestParseFeedProductMalformed(t *testing.T) {
	_, err := ParseFeedProduct(json.RawMessage(`{"id": broken`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed feed record")
}

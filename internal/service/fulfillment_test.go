package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"
)

// placeOrder persists an order with one line per basePrices entry
// (quantity 1 each) through the real builder so frozen prices and the
// address snapshot are in place.
func placeOrder(t *testing.T, orders *fakeOrderStore, catalog *fakeCatalog, method, cartID string, basePrices ...int64) (*models.Order, []models.OrderItem) {
	t.Helper()

	builder := NewOrderBuilder(orders, catalog, &fakePublisher{})
	req := &CreateOrderRequest{
		UserID:        7,
		CartID:        cartID,
		Address:       validAddress(),
		PaymentMethod: method,
	}
	for i, base := range basePrices {
		variantID := int64(100 + i)
		seedVariant(catalog, variantID, int64(1+i), base, "SKU-"+string(rune('A'+i)))
		catalog.mappings[variantID] = &models.VariantMapping{
			VariantID:           variantID,
			ExternalProductID:   "P" + string(rune('A'+i)),
			ExternalVariationID: "V" + string(rune('A'+i)),
		}
		req.Items = append(req.Items, CheckoutItem{ProductID: int64(1 + i), VariantID: variantID, Quantity: 1})
	}

	order, items, err := builder.CreateOrder(context.Background(), req)
	require.NoError(t, err)
	return order, items
}

func TestSubmitOrderAllItemsSucceed(t *testing.T) {
	orders := newFakeOrderStore()
	catalog := newFakeCatalog()
	carts := newFakeCartStore()
	prov := newFakeProvider(8000, 1500)

	order, _ := placeOrder(t, orders, catalog, models.PaymentMethodBankTransfer, "", 50000, 50000)
	submitter := NewFulfillmentSubmitter(orders, catalog, carts, prov, &fakePublisher{})

	result, err := submitter.SubmitOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.ExternalIDs, 2)
	assert.Empty(t, result.Errors)

	// Totals barrier: subtotal from frozen prices, shipping from quotes
	updated, err := orders.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(135000), updated.Subtotal)
	assert.Equal(t, int64(16000), updated.ShippingTotal)
	assert.Equal(t, int64(151000), updated.Total)

	items, err := orders.GetOrderItems(context.Background(), order.ID)
	require.NoError(t, err)
	for _, it := range items {
		assert.True(t, it.Linked())
		require.NotNil(t, it.ExternalStatus)
		assert.Equal(t, models.ExternalStatusPendingTracking, *it.ExternalStatus)
	}
}

func TestSubmitOrderPartialFailureIsSuccess(t *testing.T) {
	orders := newFakeOrderStore()
	catalog := newFakeCatalog()
	prov := newFakeProvider(8000, 1500)
	prov.failFor["VB"] = true

	order, items := placeOrder(t, orders, catalog, models.PaymentMethodBankTransfer, "", 50000, 60000, 70000)
	submitter := NewFulfillmentSubmitter(orders, catalog, newFakeCartStore(), prov, &fakePublisher{})

	result, err := submitter.SubmitOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, result.Success, "one linked item is enough")
	assert.Len(t, result.ExternalIDs, 2)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, items[1].ID, result.Errors[0].ItemID)

	stored, err := orders.GetOrderItems(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, stored[0].Linked())
	assert.False(t, stored[1].Linked(), "failed item must stay unlinked for retry")
	assert.True(t, stored[2].Linked())

	// Shipping reflects only the two successful quotes
	updated, _ := orders.GetOrderByID(context.Background(), order.ID)
	assert.Equal(t, int64(16000), updated.ShippingTotal)
}

func TestSubmitOrderAllItemsFail(t *testing.T) {
	orders := newFakeOrderStore()
	catalog := newFakeCatalog()
	prov := newFakeProvider(8000, 1500)
	prov.failFor["VA"] = true

	order, _ := placeOrder(t, orders, catalog, models.PaymentMethodBankTransfer, "", 50000)
	submitter := NewFulfillmentSubmitter(orders, catalog, newFakeCartStore(), prov, &fakePublisher{})

	result, err := submitter.SubmitOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.ExternalIDs)
	assert.Len(t, result.Errors, 1)
}

func TestSubmitOrderRetrySkipsLinkedItems(t *testing.T) {
	orders := newFakeOrderStore()
	catalog := newFakeCatalog()
	prov := newFakeProvider(8000, 1500)
	prov.failFor["VB"] = true

	order, _ := placeOrder(t, orders, catalog, models.PaymentMethodBankTransfer, "", 50000, 60000)
	submitter := NewFulfillmentSubmitter(orders, catalog, newFakeCartStore(), prov, &fakePublisher{})

	first, err := submitter.SubmitOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, first.ExternalIDs, 1)
	callsAfterFirst := len(prov.calls)

	// Provider recovers; the retry must only submit the unlinked item
	prov.failFor["VB"] = false
	second, err := submitter.SubmitOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Len(t, second.ExternalIDs, 2)
	assert.Empty(t, second.Errors)
	assert.Equal(t, callsAfterFirst+1, len(prov.calls), "linked item must not be resubmitted")

	updated, _ := orders.GetOrderByID(context.Background(), order.ID)
	assert.Equal(t, int64(16000), updated.ShippingTotal)
}

func TestSubmitOrderWriteOnceLinkage(t *testing.T) {
	orders := newFakeOrderStore()
	catalog := newFakeCatalog()

	order, items := placeOrder(t, orders, catalog, models.PaymentMethodBankTransfer, "", 50000)

	require.NoError(t, orders.SetItemExternalLinkage(context.Background(), items[0].ID, "EXT-1", 8000, 1500, models.ExternalStatusPendingTracking))
	err := orders.SetItemExternalLinkage(context.Background(), items[0].ID, "EXT-2", 9000, 1500, models.ExternalStatusPendingTracking)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

	stored, _ := orders.GetOrderItems(context.Background(), order.ID)
	assert.Equal(t, "EXT-1", *stored[0].ExternalOrderID)
}

func TestSubmitOrderMissingOrder(t *testing.T) {
	submitter := NewFulfillmentSubmitter(newFakeOrderStore(), newFakeCatalog(), newFakeCartStore(), newFakeProvider(0, 0), &fakePublisher{})

	_, err := submitter.SubmitOrder(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestSubmitOrderCartCleanup(t *testing.T) {
	t.Run("cod success removes lines", func(t *testing.T) {
		orders := newFakeOrderStore()
		catalog := newFakeCatalog()
		carts := newFakeCartStore()

		order, items := placeOrder(t, orders, catalog, models.PaymentMethodCOD, "cart-1", 50000)
		submitter := NewFulfillmentSubmitter(orders, catalog, carts, newFakeProvider(8000, 1500), &fakePublisher{})

		result, err := submitter.SubmitOrder(context.Background(), order.ID)
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Equal(t, []int64{items[0].VariantID}, carts.removed["cart-1"])
	})

	t.Run("cod failure keeps cart", func(t *testing.T) {
		orders := newFakeOrderStore()
		catalog := newFakeCatalog()
		carts := newFakeCartStore()
		prov := newFakeProvider(8000, 1500)
		prov.failFor["VA"] = true

		order, _ := placeOrder(t, orders, catalog, models.PaymentMethodCOD, "cart-1", 50000)
		submitter := NewFulfillmentSubmitter(orders, catalog, carts, prov, &fakePublisher{})

		result, err := submitter.SubmitOrder(context.Background(), order.ID)
		require.NoError(t, err)
		require.False(t, result.Success)
		assert.Empty(t, carts.removed)
	})

	t.Run("prepaid success leaves cart alone", func(t *testing.T) {
		orders := newFakeOrderStore()
		catalog := newFakeCatalog()
		carts := newFakeCartStore()

		order, _ := placeOrder(t, orders, catalog, models.PaymentMethodBankTransfer, "cart-1", 50000)
		submitter := NewFulfillmentSubmitter(orders, catalog, carts, newFakeProvider(8000, 1500), &fakePublisher{})

		result, err := submitter.SubmitOrder(context.Background(), order.ID)
		require.NoError(t, err)
		require.True(t, result.Success)
		assert.Empty(t, carts.removed)
	})
}

func TestSubmitOrderLegacySKUFallback(t *testing.T) {
	orders := newFakeOrderStore()
	catalog := newFakeCatalog()
	prov := newFakeProvider(8000, 1500)

	order, _ := placeOrder(t, orders, catalog, models.PaymentMethodBankTransfer, "", 50000)
	// Strip the mapping so resolution has to fall back to the SKU
	delete(catalog.mappings, int64(100))
	catalog.variants[100].SKU = "SP-98765-RED-L"
	catalog.catItems[1] = &models.CatalogItem{ID: 1, SupplierID: "SUP-42", Published: true}

	submitter := NewFulfillmentSubmitter(orders, catalog, newFakeCartStore(), prov, &fakePublisher{})
	result, err := submitter.SubmitOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, result.Success)

	require.Len(t, prov.calls, 1)
	assert.Equal(t, "SUP-42", prov.calls[0].ProductID)
	assert.Equal(t, "98765", prov.calls[0].VariationID)
}

func TestParseLegacySKU(t *testing.T) {
	cases := []struct {
		sku  string
		want string
		ok   bool
	}{
		{"SP-12345-RED-L", "12345", true},
		{"KEMEJA-RED-SP-9876", "9876", true},
		{"SP-777", "777", true},
		{"PLAIN-SKU", "", false},
		{"SP-", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := parseLegacySKU(tc.sku)
		assert.Equal(t, tc.ok, ok, tc.sku)
		assert.Equal(t, tc.want, got, tc.sku)
	}
}

func TestSubmitOrderPublishesEvent(t *testing.T) {
	orders := newFakeOrderStore()
	catalog := newFakeCatalog()
	publisher := &fakePublisher{}

	order, _ := placeOrder(t, orders, catalog, models.PaymentMethodBankTransfer, "", 50000)
	submitter := NewFulfillmentSubmitter(orders, catalog, newFakeCartStore(), newFakeProvider(8000, 1500), publisher)

	_, err := submitter.SubmitOrder(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		return len(publisher.fulfillmentSubmitted) == 1
	}, time.Second, 10*time.Millisecond)
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"
	"commerce-core/internal/provider"
	"commerce-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// legacySKUPrefix marks the supplier variation id embedded in SKUs
// minted before the variant mapping table existed. Two encodings are in
// the wild: "SP-{id}-{rest}" and "{rest}-SP-{id}".
const legacySKUPrefix = "SP"

// FulfillmentSubmitter submits one external shipment per order item and
// records the resulting linkage
type FulfillmentSubmitter struct {
	orders   OrderStore
	catalog  CatalogReader
	carts    CartStore
	provider FulfillmentProvider
	events   EventPublisher
	logger   *zap.Logger
}

// NewFulfillmentSubmitter creates a new fulfillment submitter
func NewFulfillmentSubmitter(orders OrderStore, catalog CatalogReader, carts CartStore, fp FulfillmentProvider, events EventPublisher) *FulfillmentSubmitter {
	return &FulfillmentSubmitter{
		orders:   orders,
		catalog:  catalog,
		carts:    carts,
		provider: fp,
		events:   events,
		logger:   util.GetLogger(),
	}
}

// ItemError records a per-item submission failure for operators
type ItemError struct {
	ItemID int64  `json:"item_id"`
	Reason string `json:"reason"`
}

// SubmitResult aggregates an order-level submission. Success means at
// least one item has an external fulfillment order; failed items are
// listed individually because each item ships independently.
type SubmitResult struct {
	Success     bool        `json:"success"`
	ExternalIDs []string    `json:"external_ids"`
	Errors      []ItemError `json:"errors,omitempty"`
}

// SubmitOrder submits every unlinked item of the order to the external
// provider. Safe to re-run after a partial failure: items that already
// carry a linkage are counted, not resubmitted.
func (f *FulfillmentSubmitter) SubmitOrder(ctx context.Context, orderID int64) (*SubmitResult, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentSubmitter.SubmitOrder")
	defer span.End()

	order, err := f.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ShipLine1 == "" {
		return nil, apperr.InvalidState("order has no shipping address").WithOrder(orderID)
	}

	items, err := f.orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	result := &SubmitResult{}
	var shippingTotal int64
	var submittable []int
	for i := range items {
		if items[i].Linked() {
			result.ExternalIDs = append(result.ExternalIDs, *items[i].ExternalOrderID)
			if items[i].ExternalShipping != nil {
				shippingTotal += *items[i].ExternalShipping
			}
			continue
		}
		submittable = append(submittable, i)
	}

	// Allocation of an existing order-level shipping estimate; on the
	// first submission no estimate exists yet and the share is 0.
	var allocation int64
	if order.ShippingTotal > 0 && len(submittable) > 0 {
		allocation = order.ShippingTotal / int64(len(submittable))
	}

	recipient := provider.Recipient{
		Name:       order.ShipName,
		Phone:      order.ShipPhone,
		Line1:      order.ShipLine1,
		City:       order.ShipCity,
		State:      order.ShipState,
		PostalCode: order.ShipPostal,
	}

	for _, i := range submittable {
		item := &items[i]

		mapping, err := f.resolveExternal(ctx, item.VariantID)
		if err != nil {
			f.recordItemError(result, item.ID, err)
			continue
		}

		start := time.Now()
		resp, err := f.provider.CreateOrder(ctx, &provider.CreateOrderRequest{
			ProductID:    mapping.ExternalProductID,
			VariationID:  mapping.ExternalVariationID,
			Quantity:     item.Quantity,
			ShippingPaid: allocation,
			Reference:    fmt.Sprintf("%d-%d", order.ID, item.ID),
			Recipient:    recipient,
		})
		util.FulfillmentSubmitLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			f.recordItemError(result, item.ID, err)
			continue
		}

		if err := f.orders.SetItemExternalLinkage(ctx, item.ID,
			resp.OrderID, resp.ShippingCost, resp.Commission,
			models.ExternalStatusPendingTracking); err != nil {
			// A concurrent retry linked it first; the provider call was
			// redundant but the recorded linkage stands.
			f.logger.Warn("Item linkage already written",
				zap.Int64("order_id", order.ID),
				zap.Int64("item_id", item.ID),
				zap.Error(err))
			continue
		}

		result.ExternalIDs = append(result.ExternalIDs, resp.OrderID)
		shippingTotal += resp.ShippingCost

		f.logger.Info("Fulfillment order created",
			zap.Int64("order_id", order.ID),
			zap.Int64("item_id", item.ID),
			zap.String("external_order_id", resp.OrderID),
			zap.Int64("shipping_cost", resp.ShippingCost))
	}

	// Single-writer barrier: totals are recomputed once, after every
	// item outcome is known. Subtotal is re-derived from the frozen
	// per-item prices rather than trusted from the stored row.
	var subtotal int64
	for i := range items {
		subtotal += items[i].FinalPrice * int64(items[i].Quantity)
	}
	if err := f.orders.UpdateOrderTotals(ctx, order.ID, subtotal, shippingTotal); err != nil {
		return nil, fmt.Errorf("failed to update order totals: %w", err)
	}

	result.Success = len(result.ExternalIDs) > 0
	if result.Success {
		util.FulfillmentSubmissionsTotal.WithLabelValues("success").Inc()
	} else {
		util.FulfillmentSubmissionsTotal.WithLabelValues("failure").Inc()
	}

	f.cleanupCart(ctx, order, items, result)
	f.publishSubmitted(order, result)

	return result, nil
}

func (f *FulfillmentSubmitter) recordItemError(result *SubmitResult, itemID int64, err error) {
	util.FulfillmentItemErrorsTotal.Inc()
	result.Errors = append(result.Errors, ItemError{ItemID: itemID, Reason: err.Error()})
	f.logger.Warn("Item submission failed",
		zap.Int64("item_id", itemID),
		zap.Error(err))
}

// resolveExternal maps a variant to the provider's product/variation
// identifiers. The variant_mappings table is canonical; legacy SKU
// parsing only covers variants synced before the table existed.
func (f *FulfillmentSubmitter) resolveExternal(ctx context.Context, variantID int64) (*models.VariantMapping, error) {
	mapping, err := f.catalog.GetVariantMapping(ctx, variantID)
	if err != nil {
		return nil, err
	}
	if mapping != nil {
		return mapping, nil
	}

	variant, err := f.catalog.GetVariantByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	variationID, ok := parseLegacySKU(variant.SKU)
	if !ok {
		return nil, apperr.NotFound(fmt.Sprintf("no external mapping for variant %d (sku %q)", variantID, variant.SKU))
	}

	item, err := f.catalog.GetItemByID(ctx, variant.ItemID)
	if err != nil {
		return nil, err
	}

	return &models.VariantMapping{
		VariantID:           variantID,
		ExternalProductID:   item.SupplierID,
		ExternalVariationID: variationID,
	}, nil
}

// parseLegacySKU extracts the supplier variation id from either
// historical SKU encoding
func parseLegacySKU(sku string) (string, bool) {
	parts := strings.Split(sku, "-")
	if len(parts) >= 2 && parts[0] == legacySKUPrefix && parts[1] != "" {
		return parts[1], true
	}
	if len(parts) >= 2 && parts[len(parts)-2] == legacySKUPrefix && parts[len(parts)-1] != "" {
		return parts[len(parts)-1], true
	}
	return "", false
}

// cleanupCart removes the originating cart's selected lines for
// pay-on-delivery orders, only when submission succeeded overall so a
// failed checkout does not silently lose the customer's selection.
func (f *FulfillmentSubmitter) cleanupCart(ctx context.Context, order *models.Order, items []models.OrderItem, result *SubmitResult) {
	if !result.Success || order.CartID == "" || !models.PayOnDelivery(order.PaymentMethod) {
		return
	}

	variantIDs := make([]int64, 0, len(items))
	for _, it := range items {
		variantIDs = append(variantIDs, it.VariantID)
	}

	if err := f.carts.RemoveCartLines(ctx, order.CartID, variantIDs); err != nil {
		f.logger.Error("Failed to clean up cart",
			zap.Int64("order_id", order.ID),
			zap.String("cart_id", order.CartID),
			zap.Error(err))
	}
}

func (f *FulfillmentSubmitter) publishSubmitted(order *models.Order, result *SubmitResult) {
	event := &models.FulfillmentSubmittedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeFulfillmentSubmitted,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		ExternalIDs: result.ExternalIDs,
		FailedItems: len(result.Errors),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := f.events.PublishFulfillmentSubmitted(ctx, event); err != nil {
			f.logger.Error("Failed to publish FulfillmentSubmitted event",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}()
}

// GetExternalStatus queries the provider for shipment status. Pure
// read, always safe to retry.
func (f *FulfillmentSubmitter) GetExternalStatus(ctx context.Context, externalOrderID string) (*provider.StatusResponse, error) {
	return f.provider.OrderStatus(ctx, externalOrderID)
}

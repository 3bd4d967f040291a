package service

import (
	"context"
	"fmt"
	"time"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"
	"commerce-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderBuilder validates a cart selection, prices it and persists the
// resulting order
type OrderBuilder struct {
	orders  OrderStore
	catalog CatalogReader
	events  EventPublisher
	logger  *zap.Logger
}

// NewOrderBuilder creates a new order builder
func NewOrderBuilder(orders OrderStore, catalog CatalogReader, events EventPublisher) *OrderBuilder {
	return &OrderBuilder{
		orders:  orders,
		catalog: catalog,
		events:  events,
		logger:  util.GetLogger(),
	}
}

// CheckoutItem is one requested order line
type CheckoutItem struct {
	ProductID int64 `json:"product_id" binding:"required"`
	VariantID int64 `json:"variant_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// AddressInput is the shipping destination supplied at checkout
type AddressInput struct {
	Name       string `json:"name" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	Line1      string `json:"line1" binding:"required"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
}

// CreateOrderRequest represents a checkout
type CreateOrderRequest struct {
	UserID        int64          `json:"user_id" binding:"required"`
	CartID        string         `json:"cart_id,omitempty"`
	Items         []CheckoutItem `json:"items" binding:"required,min=1"`
	Address       AddressInput   `json:"address" binding:"required"`
	PaymentMethod string         `json:"payment_method" binding:"required"`
}

func (r *CreateOrderRequest) validate() error {
	if len(r.Items) == 0 {
		return apperr.Validation("order must contain at least one item")
	}
	for _, it := range r.Items {
		if it.Quantity < 1 {
			return apperr.Validation(fmt.Sprintf("invalid quantity for variant %d", it.VariantID))
		}
	}
	a := r.Address
	if a.Name == "" || a.Phone == "" || a.Line1 == "" || a.City == "" || a.State == "" || a.PostalCode == "" {
		return apperr.Validation("address is missing required fields")
	}
	if !models.KnownPaymentMethod(r.PaymentMethod) {
		return apperr.Validation(fmt.Sprintf("unknown payment method %q", r.PaymentMethod))
	}
	return nil
}

// CreateOrder prices the requested lines, snapshots the shipping
// address and persists the order atomically. Shipping is 0 until the
// external fulfillment submission responds with quoted costs.
func (b *OrderBuilder) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, []models.OrderItem, error) {
	ctx, span := util.StartSpan(ctx, "OrderBuilder.CreateOrder")
	defer span.End()

	if err := req.validate(); err != nil {
		util.OrdersFailedTotal.WithLabelValues("validation").Inc()
		return nil, nil, err
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	var subtotal int64
	for _, reqItem := range req.Items {
		variant, err := b.catalog.GetVariantByID(ctx, reqItem.VariantID)
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues("unknown_variant").Inc()
			return nil, nil, err
		}

		// Price is frozen here; the catalog's formula changing later
		// must not move a placed order.
		finalPrice := FinalPrice(variant.BasePrice)
		subtotal += finalPrice * int64(reqItem.Quantity)

		items = append(items, models.OrderItem{
			ItemID:     variant.ItemID,
			VariantID:  variant.ID,
			Quantity:   reqItem.Quantity,
			BasePrice:  variant.BasePrice,
			FinalPrice: finalPrice,
		})
	}

	addressID, err := b.orders.FindOrCreateAddress(ctx, &models.Address{
		UserID:     req.UserID,
		Name:       req.Address.Name,
		Phone:      req.Address.Phone,
		Line1:      req.Address.Line1,
		City:       req.Address.City,
		State:      req.Address.State,
		PostalCode: req.Address.PostalCode,
	})
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("address").Inc()
		return nil, nil, fmt.Errorf("failed to resolve address: %w", err)
	}

	paymentStatus := models.PaymentStatusAwaiting
	if models.PayOnDelivery(req.PaymentMethod) {
		paymentStatus = models.PaymentStatusNotPaid
	}

	order := &models.Order{
		UserID:        req.UserID,
		CartID:        req.CartID,
		Status:        models.OrderStatusCreated,
		PaymentStatus: paymentStatus,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      subtotal,
		ShippingTotal: 0,
		Total:         subtotal,
		AddressID:     addressID,
		ShipName:      req.Address.Name,
		ShipPhone:     req.Address.Phone,
		ShipLine1:     req.Address.Line1,
		ShipCity:      req.Address.City,
		ShipState:     req.Address.State,
		ShipPostal:    req.Address.PostalCode,
	}

	if err := b.orders.CreateOrder(ctx, order, items); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	util.OrdersCreatedTotal.Inc()
	b.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.Int64("subtotal", order.Subtotal))

	b.publishOrderCreated(order, items)

	return order, items, nil
}

// publishOrderCreated emits the popularity/notification event without
// blocking or failing the checkout
func (b *OrderBuilder) publishOrderCreated(order *models.Order, items []models.OrderItem) {
	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, it := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ItemID:     it.ItemID,
			VariantID:  it.VariantID,
			Quantity:   it.Quantity,
			FinalPrice: it.FinalPrice,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:  order.ID,
		UserID:   order.UserID,
		Subtotal: order.Subtotal,
		Items:    eventItems,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := b.events.PublishOrderCreated(ctx, event); err != nil {
			b.logger.Error("Failed to publish OrderCreated event",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}()
}

// GetOrder retrieves an order with its items
func (b *OrderBuilder) GetOrder(ctx context.Context, orderID int64) (*models.Order, []models.OrderItem, error) {
	order, err := b.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := b.orders.GetOrderItems(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// VariantView is the storefront read model for one variant, with the
// display price derived from the same formula that prices order items
type VariantView struct {
	Variant    *models.CatalogVariant `json:"variant"`
	Item       *models.CatalogItem    `json:"item"`
	FinalPrice int64                  `json:"final_price"`
}

// GetVariantView returns a published variant with its display price
func (b *OrderBuilder) GetVariantView(ctx context.Context, variantID int64) (*VariantView, error) {
	variant, err := b.catalog.GetVariantByID(ctx, variantID)
	if err != nil {
		return nil, err
	}
	item, err := b.catalog.GetItemByID(ctx, variant.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.Published {
		return nil, apperr.NotFound("variant does not exist")
	}

	return &VariantView{
		Variant:    variant,
		Item:       item,
		FinalPrice: FinalPrice(variant.BasePrice),
	}, nil
}

package service

import (
	"context"
	"time"

	"commerce-core/internal/models"
	"commerce-core/internal/provider"
)

// JobStore is the persistence surface the job queue needs
type JobStore interface {
	CreateJob(ctx context.Context, jobType models.JobType, params models.JobParams) (*models.Job, error)
	GetJobByID(ctx context.Context, id int64) (*models.Job, error)
	CancelJob(ctx context.Context, id int64) (*models.Job, error)
}

// CatalogReader is the read side of the catalog consumed at checkout
// and submission time
type CatalogReader interface {
	GetItemByID(ctx context.Context, id int64) (*models.CatalogItem, error)
	GetVariantByID(ctx context.Context, id int64) (*models.CatalogVariant, error)
	GetVariantMapping(ctx context.Context, variantID int64) (*models.VariantMapping, error)
}

// OrderStore is the persistence surface for orders and their items
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	SetItemExternalLinkage(ctx context.Context, itemID int64, externalOrderID string, shipping, commission int64, status string) error
	UpdateOrderTotals(ctx context.Context, orderID, subtotal, shippingTotal int64) error
	UpdateOrderPaymentStatus(ctx context.Context, orderID int64, paymentStatus, externalTxID string) error
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) error
	OrderHasFulfillment(ctx context.Context, orderID int64) (bool, error)
	FindOrCreateAddress(ctx context.Context, addr *models.Address) (int64, error)
}

// CartStore is the external cart collaborator
type CartStore interface {
	GetCart(ctx context.Context, cartID string) (*models.Cart, error)
	RemoveCartLines(ctx context.Context, cartID string, variantIDs []int64) error
}

// FulfillmentProvider is the external logistics collaborator
type FulfillmentProvider interface {
	CreateOrder(ctx context.Context, req *provider.CreateOrderRequest) (*provider.CreateOrderResponse, error)
	OrderStatus(ctx context.Context, externalOrderID string) (*provider.StatusResponse, error)
}

// EventPublisher emits fire-and-forget domain events
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error
	PublishFulfillmentSubmitted(ctx context.Context, event *models.FulfillmentSubmittedEvent) error
	PublishNotification(ctx context.Context, event *models.NotificationEvent) error
}

// OrderLocker serializes concurrent webhook deliveries for one order
type OrderLocker interface {
	AcquireOrderLock(ctx context.Context, orderID int64, ttl time.Duration) (bool, error)
	ReleaseOrderLock(ctx context.Context, orderID int64) error
}

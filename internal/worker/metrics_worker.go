package worker

import (
	"context"
	"time"

	"commerce-core/internal/broker"
	"commerce-core/internal/models"
	"commerce-core/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MetricsStore is the catalog surface the metrics worker writes to
type MetricsStore interface {
	IncrementItemOrderCount(ctx context.Context, itemID int64, delta int64) error
}

// Notifier delivers best-effort user notifications
type Notifier interface {
	PublishNotification(ctx context.Context, event *models.NotificationEvent) error
}

// MetricsWorker consumes order events and applies the side effects the
// checkout path fires and forgets: item popularity counters and user
// notifications. Failures here never touch an order.
type MetricsWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	store    MetricsStore
	notifier Notifier
	logger   *zap.Logger
}

// NewMetricsWorker creates a new metrics worker
func NewMetricsWorker(consumer *broker.Consumer, store MetricsStore, notifier Notifier) *MetricsWorker {
	w := &MetricsWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(),
		store:    store,
		notifier: notifier,
		logger:   util.GetLogger(),
	}

	w.handler.OnOrderCreated(w.handleOrderCreated)
	w.handler.OnFulfillmentSubmitted(w.handleFulfillmentSubmitted)
	return w
}

// Start starts consuming order events
func (w *MetricsWorker) Start(ctx context.Context) error {
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *MetricsWorker) Stop() error {
	return w.consumer.Close()
}

func (w *MetricsWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	for _, item := range event.Items {
		if err := w.store.IncrementItemOrderCount(ctx, item.ItemID, int64(item.Quantity)); err != nil {
			w.logger.Error("Failed to bump item order count",
				zap.Int64("item_id", item.ItemID),
				zap.Error(err))
		}
	}

	w.notify(ctx, event.UserID, "order_created", event.OrderID)
	return nil
}

func (w *MetricsWorker) handleFulfillmentSubmitted(ctx context.Context, event *models.FulfillmentSubmittedEvent) error {
	w.notify(ctx, event.UserID, "order_shipping", event.OrderID)
	return nil
}

func (w *MetricsWorker) notify(ctx context.Context, userID int64, kind string, orderID int64) {
	event := &models.NotificationEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeNotification,
			Timestamp: time.Now(),
		},
		UserID:  userID,
		Event:   kind,
		OrderID: orderID,
	}

	if err := w.notifier.PublishNotification(ctx, event); err != nil {
		w.logger.Warn("Failed to publish notification",
			zap.Int64("user_id", userID),
			zap.String("event", kind),
			zap.Error(err))
	}
}

package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"commerce-core/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events. All publishes are
// fire-and-forget from the caller's point of view: failures are logged
// by the caller, never propagated into the originating transaction.
type EventPublisher struct {
	orders        *Producer
	notifications *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(orders, notifications *Producer) *EventPublisher {
	return &EventPublisher{orders: orders, notifications: notifications}
}

// PublishOrderCreated publishes OrderCreated to the order topic
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orders.PublishEvent(ctx, key, event)
}

// PublishOrderConfirmed publishes OrderConfirmed to the order topic
func (ep *EventPublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orders.PublishEvent(ctx, key, event)
}

// PublishFulfillmentSubmitted publishes FulfillmentSubmitted to the
// order topic
func (ep *EventPublisher) PublishFulfillmentSubmitted(ctx context.Context, event *models.FulfillmentSubmittedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.orders.PublishEvent(ctx, key, event)
}

// PublishNotification publishes a best-effort user notification
func (ep *EventPublisher) PublishNotification(ctx context.Context, event *models.NotificationEvent) error {
	key := fmt.Sprintf("user-%d", event.UserID)
	return ep.notifications.PublishEvent(ctx, key, event)
}

// EventHandler routes consumed order events to registered callbacks
type EventHandler struct {
	onOrderCreated         func(context.Context, *models.OrderCreatedEvent) error
	onFulfillmentSubmitted func(context.Context, *models.FulfillmentSubmittedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnFulfillmentSubmitted registers a handler for FulfillmentSubmitted
// events
func (eh *EventHandler) OnFulfillmentSubmitted(handler func(context.Context, *models.FulfillmentSubmittedEvent) error) {
	eh.onFulfillmentSubmitted = handler
}

// HandleMessage routes messages to the appropriate handler
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	case models.EventTypeFulfillmentSubmitted:
		if eh.onFulfillmentSubmitted != nil {
			var event models.FulfillmentSubmittedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal FulfillmentSubmitted event: %w", err)
			}
			return eh.onFulfillmentSubmitted(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}

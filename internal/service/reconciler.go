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

// OrderSubmitter abstracts fulfillment submission for the reconciler
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, orderID int64) (*SubmitResult, error)
}

const (
	orderLockTTL      = 30 * time.Second
	orderLockAttempts = 20
	orderLockBackoff  = 100 * time.Millisecond

	// The gateway can deliver the webhook before order creation has
	// committed; a brief wait beats failing hard.
	orderLookupAttempts = 3
	orderLookupBackoff  = 100 * time.Millisecond
)

// PaymentReconciler consumes asynchronous payment-gateway callbacks and
// reconciles them against local order state
type PaymentReconciler struct {
	orders    OrderStore
	submitter OrderSubmitter
	locker    OrderLocker
	events    EventPublisher
	logger    *zap.Logger
}

// NewPaymentReconciler creates a new payment reconciler
func NewPaymentReconciler(orders OrderStore, submitter OrderSubmitter, locker OrderLocker, events EventPublisher) *PaymentReconciler {
	return &PaymentReconciler{
		orders:    orders,
		submitter: submitter,
		locker:    locker,
		events:    events,
		logger:    util.GetLogger(),
	}
}

// WebhookResult reports what the reconciler did. FulfillmentError is a
// report, not a failure: the payment write already succeeded.
type WebhookResult struct {
	OrderID              int64         `json:"order_id"`
	PaymentStatus        string        `json:"payment_status"`
	FulfillmentTriggered bool          `json:"fulfillment_triggered"`
	Fulfillment          *SubmitResult `json:"fulfillment,omitempty"`
	FulfillmentError     string        `json:"fulfillment_error,omitempty"`
}

// HandlePaymentWebhook records the gateway's reported payment state and,
// on the first confirmed success, triggers fulfillment submission.
// Tolerates at-least-once delivery and deliveries racing order creation.
func (r *PaymentReconciler) HandlePaymentWebhook(ctx context.Context, orderID int64, externalTxID, paymentStatus string) (*WebhookResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentReconciler.HandlePaymentWebhook")
	defer span.End()

	util.PaymentWebhooksTotal.WithLabelValues(paymentStatus).Inc()

	if _, err := r.findOrder(ctx, orderID); err != nil {
		return nil, err
	}

	if err := r.lockOrder(ctx, orderID); err != nil {
		return nil, err
	}
	defer func() {
		if err := r.locker.ReleaseOrderLock(context.Background(), orderID); err != nil {
			r.logger.Warn("Failed to release order lock",
				zap.Int64("order_id", orderID),
				zap.Error(err))
		}
	}()

	// Reload inside the lock so concurrent deliveries see each other's
	// writes.
	order, err := r.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	localStatus := normalizePaymentStatus(paymentStatus)
	result := &WebhookResult{OrderID: orderID, PaymentStatus: localStatus}

	if !models.PaymentSuccess(paymentStatus) {
		// Paid is terminal. A late non-success delivery for an order
		// already paid (and possibly fulfilled) must not roll it back.
		if order.PaymentStatus == models.PaymentStatusPaid {
			r.logger.Warn("Ignoring out-of-order non-success webhook for paid order",
				zap.Int64("order_id", orderID),
				zap.String("gateway_status", paymentStatus))
			result.PaymentStatus = models.PaymentStatusPaid
			return result, nil
		}
		if err := r.orders.UpdateOrderPaymentStatus(ctx, orderID, localStatus, externalTxID); err != nil {
			return nil, fmt.Errorf("failed to record payment status: %w", err)
		}
		r.logger.Info("Payment status recorded",
			zap.Int64("order_id", orderID),
			zap.String("status", localStatus))
		return result, nil
	}

	alreadyPaid := order.PaymentStatus == models.PaymentStatusPaid
	if alreadyPaid {
		util.PaymentWebhookDuplicates.Inc()
	}

	// Refreshing the transaction id on a duplicate success is harmless;
	// re-triggering fulfillment is not, hence the linkage guard below.
	if err := r.orders.UpdateOrderPaymentStatus(ctx, orderID, models.PaymentStatusPaid, externalTxID); err != nil {
		return nil, fmt.Errorf("failed to record payment status: %w", err)
	}
	if err := r.orders.UpdateOrderStatus(ctx, orderID, models.OrderStatusConfirmed); err != nil {
		return nil, fmt.Errorf("failed to confirm order: %w", err)
	}

	if !alreadyPaid {
		r.publishConfirmed(order)
	}

	hasFulfillment, err := r.orders.OrderHasFulfillment(ctx, orderID)
	if err != nil {
		result.FulfillmentError = err.Error()
		return result, nil
	}
	if hasFulfillment {
		r.logger.Info("Fulfillment already submitted, skipping",
			zap.Int64("order_id", orderID))
		return result, nil
	}

	// Payment confirmation is authoritative: a fulfillment failure is
	// reported but never rolls the payment status back.
	submitResult, err := r.submitter.SubmitOrder(ctx, orderID)
	result.FulfillmentTriggered = true
	if err != nil {
		result.FulfillmentError = err.Error()
		r.logger.Error("Fulfillment submission failed after payment",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return result, nil
	}
	result.Fulfillment = submitResult

	return result, nil
}

func (r *PaymentReconciler) findOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	backoff := orderLookupBackoff
	for attempt := 0; ; attempt++ {
		order, err := r.orders.GetOrderByID(ctx, orderID)
		if err == nil {
			return order, nil
		}
		if !apperr.IsKind(err, apperr.KindNotFound) || attempt == orderLookupAttempts-1 {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (r *PaymentReconciler) lockOrder(ctx context.Context, orderID int64) error {
	for attempt := 0; attempt < orderLockAttempts; attempt++ {
		ok, err := r.locker.AcquireOrderLock(ctx, orderID, orderLockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire order lock: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(orderLockBackoff):
		}
	}
	return apperr.InvalidState("order is being reconciled by another delivery").WithOrder(orderID)
}

// normalizePaymentStatus maps gateway statuses onto local ones
func normalizePaymentStatus(gatewayStatus string) string {
	switch gatewayStatus {
	case "paid", "captured":
		return models.PaymentStatusPaid
	case "failed", "denied", "expired", "cancelled":
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusAwaiting
	}
}

func (r *PaymentReconciler) publishConfirmed(order *models.Order) {
	event := &models.OrderConfirmedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderConfirmed,
			Timestamp: time.Now(),
		},
		OrderID: order.ID,
		UserID:  order.UserID,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := r.events.PublishOrderConfirmed(ctx, event); err != nil {
			r.logger.Error("Failed to publish OrderConfirmed event",
				zap.Int64("order_id", order.ID),
				zap.Error(err))
		}
	}()
}

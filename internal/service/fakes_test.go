package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"
	"commerce-core/internal/provider"
)

type fakeOrderStore struct {
	mu        sync.Mutex
	orders    map[int64]*models.Order
	items     map[int64][]models.OrderItem
	addresses []models.Address
	nextID    int64
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]models.OrderItem),
	}
}

func (s *fakeOrderStore) CreateOrder(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	order.ID = s.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt

	stored := make([]models.OrderItem, len(items))
	for i := range items {
		s.nextID++
		items[i].ID = s.nextID
		items[i].OrderID = order.ID
		stored[i] = items[i]
	}

	cp := *order
	s.orders[order.ID] = &cp
	s.items[order.ID] = stored
	return nil
}

func (s *fakeOrderStore) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order does not exist").WithOrder(id)
	}
	cp := *order
	return &cp, nil
}

func (s *fakeOrderStore) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]models.OrderItem, len(s.items[orderID]))
	copy(items, s.items[orderID])
	return items, nil
}

func (s *fakeOrderStore) SetItemExternalLinkage(ctx context.Context, itemID int64, externalOrderID string, shipping, commission int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for orderID := range s.items {
		for i := range s.items[orderID] {
			item := &s.items[orderID][i]
			if item.ID != itemID {
				continue
			}
			if item.ExternalOrderID != nil {
				return apperr.InvalidState("item already linked to an external order").WithItem(itemID)
			}
			item.ExternalOrderID = &externalOrderID
			item.ExternalShipping = &shipping
			item.ExternalCommission = &commission
			item.ExternalStatus = &status
			return nil
		}
	}
	return apperr.NotFound("order item does not exist").WithItem(itemID)
}

func (s *fakeOrderStore) UpdateOrderTotals(ctx context.Context, orderID, subtotal, shippingTotal int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return apperr.NotFound("order does not exist").WithOrder(orderID)
	}
	order.Subtotal = subtotal
	order.ShippingTotal = shippingTotal
	order.Total = subtotal + shippingTotal
	return nil
}

func (s *fakeOrderStore) UpdateOrderPaymentStatus(ctx context.Context, orderID int64, paymentStatus, externalTxID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return apperr.NotFound("order does not exist").WithOrder(orderID)
	}
	order.PaymentStatus = paymentStatus
	order.ExternalTxID = externalTxID
	return nil
}

func (s *fakeOrderStore) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return apperr.NotFound("order does not exist").WithOrder(orderID)
	}
	order.Status = status
	return nil
}

func (s *fakeOrderStore) OrderHasFulfillment(ctx context.Context, orderID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items[orderID] {
		if item.ExternalOrderID != nil {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeOrderStore) FindOrCreateAddress(ctx context.Context, addr *models.Address) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.addresses {
		if existing.UserID == addr.UserID && existing.Line1 == addr.Line1 &&
			existing.City == addr.City && existing.State == addr.State &&
			existing.PostalCode == addr.PostalCode {
			return existing.ID, nil
		}
	}

	s.nextID++
	addr.ID = s.nextID
	s.addresses = append(s.addresses, *addr)
	return addr.ID, nil
}

type fakeCatalog struct {
	variants map[int64]*models.CatalogVariant
	catItems map[int64]*models.CatalogItem
	mappings map[int64]*models.VariantMapping
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		variants: make(map[int64]*models.CatalogVariant),
		catItems: make(map[int64]*models.CatalogItem),
		mappings: make(map[int64]*models.VariantMapping),
	}
}

func (c *fakeCatalog) GetItemByID(ctx context.Context, id int64) (*models.CatalogItem, error) {
	item, ok := c.catItems[id]
	if !ok {
		return nil, apperr.NotFound("catalog item does not exist").WithItem(id)
	}
	return item, nil
}

func (c *fakeCatalog) GetVariantByID(ctx context.Context, id int64) (*models.CatalogVariant, error) {
	v, ok := c.variants[id]
	if !ok {
		return nil, apperr.NotFound("variant does not exist")
	}
	return v, nil
}

func (c *fakeCatalog) GetVariantMapping(ctx context.Context, variantID int64) (*models.VariantMapping, error) {
	return c.mappings[variantID], nil
}

type fakeCartStore struct {
	mu      sync.Mutex
	carts   map[string]*models.Cart
	removed map[string][]int64
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{
		carts:   make(map[string]*models.Cart),
		removed: make(map[string][]int64),
	}
}

func (c *fakeCartStore) GetCart(ctx context.Context, cartID string) (*models.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cart, ok := c.carts[cartID]
	if !ok {
		return nil, apperr.NotFound("cart does not exist")
	}
	return cart, nil
}

func (c *fakeCartStore) RemoveCartLines(ctx context.Context, cartID string, variantIDs []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removed[cartID] = append(c.removed[cartID], variantIDs...)
	return nil
}

type fakePublisher struct {
	mu                   sync.Mutex
	orderCreated         []*models.OrderCreatedEvent
	orderConfirmed       []*models.OrderConfirmedEvent
	fulfillmentSubmitted []*models.FulfillmentSubmittedEvent
	notifications        []*models.NotificationEvent
}

func (p *fakePublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderCreated = append(p.orderCreated, event)
	return nil
}

func (p *fakePublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderConfirmed = append(p.orderConfirmed, event)
	return nil
}

func (p *fakePublisher) PublishFulfillmentSubmitted(ctx context.Context, event *models.FulfillmentSubmittedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fulfillmentSubmitted = append(p.fulfillmentSubmitted, event)
	return nil
}

func (p *fakePublisher) PublishNotification(ctx context.Context, event *models.NotificationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, event)
	return nil
}

type fakeProvider struct {
	mu           sync.Mutex
	calls        []*provider.CreateOrderRequest
	failFor      map[string]bool
	shippingCost int64
	commission   int64
	nextOrder    int
}

func newFakeProvider(shippingCost, commission int64) *fakeProvider {
	return &fakeProvider{
		failFor:      make(map[string]bool),
		shippingCost: shippingCost,
		commission:   commission,
	}
}

func (p *fakeProvider) CreateOrder(ctx context.Context, req *provider.CreateOrderRequest) (*provider.CreateOrderResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)
	if p.failFor[req.VariationID] {
		return nil, apperr.Upstream("fulfillment provider returned 503", nil)
	}

	p.nextOrder++
	return &provider.CreateOrderResponse{
		OrderID:      fmt.Sprintf("EXT-%d", p.nextOrder),
		ShippingCost: p.shippingCost,
		Commission:   p.commission,
	}, nil
}

func (p *fakeProvider) OrderStatus(ctx context.Context, externalOrderID string) (*provider.StatusResponse, error) {
	return &provider.StatusResponse{OrderID: externalOrderID, Status: "IN_TRANSIT"}, nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[int64]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[int64]bool)}
}

func (l *fakeLocker) AcquireOrderLock(ctx context.Context, orderID int64, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[orderID] {
		return false, nil
	}
	l.held[orderID] = true
	return true, nil
}

func (l *fakeLocker) ReleaseOrderLock(ctx context.Context, orderID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, orderID)
	return nil
}

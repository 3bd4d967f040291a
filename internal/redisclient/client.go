package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func cartKey(cartID string) string {
	return "cart:" + cartID
}

// GetCart loads a cart by id
func (c *Client) GetCart(ctx context.Context, cartID string) (*models.Cart, error) {
	data, err := c.rdb.Get(ctx, cartKey(cartID)).Bytes()
	if err == redis.Nil {
		return nil, apperr.NotFound("cart does not exist")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("malformed cart %s: %w", cartID, err)
	}
	return &cart, nil
}

// SaveCart stores a cart by id
func (c *Client) SaveCart(ctx context.Context, cartID string, cart *models.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, cartKey(cartID), data, 0).Err()
}

// RemoveCartLines deletes the given variant lines from a cart. Missing
// carts are ignored: the customer may have already emptied it.
func (c *Client) RemoveCartLines(ctx context.Context, cartID string, variantIDs []int64) error {
	cart, err := c.GetCart(ctx, cartID)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}

	remove := make(map[int64]bool, len(variantIDs))
	for _, id := range variantIDs {
		remove[id] = true
	}

	kept := cart.Lines[:0]
	for _, line := range cart.Lines {
		if !remove[line.VariantID] {
			kept = append(kept, line)
		}
	}
	cart.Lines = kept

	return c.SaveCart(ctx, cartID, cart)
}

func orderLockKey(orderID int64) string {
	return fmt.Sprintf("order-lock:%d", orderID)
}

// AcquireOrderLock takes a short-lived per-order lock used to serialize
// concurrent webhook deliveries for the same order. Returns false when
// another delivery holds it.
func (c *Client) AcquireOrderLock(ctx context.Context, orderID int64, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, orderLockKey(orderID), 1, ttl).Result()
}

// ReleaseOrderLock releases a per-order lock
func (c *Client) ReleaseOrderLock(ctx context.Context, orderID int64) error {
	return c.rdb.Del(ctx, orderLockKey(orderID)).Err()
}

// Package idempotency keeps order creation from producing more than one
// gateway order per receipt: gateway orders are cached by receipt and a
// short lock serialises concurrent creation for the same receipt.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fameuxarte/fameuxarte-api/razorpay"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// MaxReceiptLen is the gateway's limit on receipt length.
const MaxReceiptLen = 40

var (
	ErrMiss = errors.New("no gateway order cached for receipt")
	ErrBusy = errors.New("gateway order creation already in progress")
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Receipt derives the gateway receipt. With an order id the receipt is
// stable across retries; without one it is time based and every call gets
// a fresh receipt.
func Receipt(orderID string, now time.Time) (receipt string, stable bool) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "order_" + strconv.FormatInt(now.UnixMilli(), 10), false
	}

	receipt = "order_" + orderID
	if len(receipt) > MaxReceiptLen {
		receipt = "order_" + strings.ReplaceAll(orderID, "-", "")
	}
	if len(receipt) > MaxReceiptLen {
		receipt = receipt[:MaxReceiptLen]
	}
	return receipt, true
}

type Store struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func New(client *redis.Client) *Store {
	return &Store{
		client:  client,
		ttl:     24 * time.Hour,
		lockTTL: 30 * time.Second,
	}
}

func (s *Store) Lookup(ctx context.Context, receipt string) (razorpay.Order, error) {
	data, err := s.client.Get(ctx, orderKey(receipt)).Bytes()
	if errors.Is(err, redis.Nil) {
		return razorpay.Order{}, ErrMiss
	}
	if err != nil {
		return razorpay.Order{}, fmt.Errorf("redis get failed: %w", err)
	}

	var order razorpay.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return razorpay.Order{}, fmt.Errorf("unmarshal gateway order failed: %w", err)
	}
	return order, nil
}

func (s *Store) Remember(ctx context.Context, receipt string, order razorpay.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal gateway order failed: %w", err)
	}
	if err := s.client.Set(ctx, orderKey(receipt), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Acquire takes the creation lock for a receipt. The returned release only
// deletes the lock while it is still ours.
func (s *Store) Acquire(ctx context.Context, receipt string) (func(context.Context) error, error) {
	token := uuid.NewString()
	key := lockKey(receipt)

	ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return nil, ErrBusy
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, s.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock failed: %w", err)
		}
		return nil
	}
	return release, nil
}

func orderKey(receipt string) string {
	return fmt.Sprintf("checkout:gateway-order:%s", receipt)
}

func lockKey(receipt string) string {
	return fmt.Sprintf("checkout:gateway-lock:%s", receipt)
}

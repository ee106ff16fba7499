// Package store persists orders and their payment lifecycle.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fameuxarte/fameuxarte-api/models"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal order status transition")
	ErrAlreadyLinked     = errors.New("order is already linked to a gateway order")
)

// GatewayLink is what the payment gateway handed back for an order.
type GatewayLink struct {
	OrderID string
	Receipt string
	Amount  int64
}

type Orders struct {
	db *gorm.DB
}

func NewOrders(db *gorm.DB) *Orders {
	return &Orders{db: db}
}

// Create inserts the order and its lines in one transaction.
func (s *Orders) Create(ctx context.Context, order *models.Order) error {
	if len(order.OrderItems) == 0 {
		return errors.New("order has no items")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return nil
	})
}

func (s *Orders) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Orders) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	return s.findOne(ctx, "razorpay_order_id = ?", gatewayOrderID)
}

func (s *Orders) findOne(ctx context.Context, query string, arg string) (*models.Order, error) {
	if arg == "" {
		return nil, ErrOrderNotFound
	}

	var order models.Order
	err := s.db.WithContext(ctx).Preload("OrderItems").Where(query, arg).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Orders) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("OrderItems").
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// LinkGatewayOrder records the gateway order on a pending order. A pending
// order is linked at most once; linking again with the same gateway order
// id is a no-op.
func (s *Orders) LinkGatewayOrder(ctx context.Context, orderID string, link GatewayLink) error {
	res := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND razorpay_order_id IS NULL", orderID, models.OrderStatusPending).
		Updates(map[string]any{
			"razorpay_order_id": link.OrderID,
			"gateway_receipt":   link.Receipt,
			"gateway_amount":    link.Amount,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("link gateway order: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	order, err := s.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.GatewayOrderID != nil && *order.GatewayOrderID == link.OrderID {
		return nil
	}
	if order.Status != models.OrderStatusPending {
		return fmt.Errorf("%w: order %s is %s", ErrIllegalTransition, order.ID, order.Status)
	}
	return ErrAlreadyLinked
}

// MarkCompleted moves the order tied to a gateway order from pending to
// completed and records the payment id. The order is looked up by gateway
// order id first and by its own id second. Marking an already completed
// order with the same payment id again succeeds without changes.
func (s *Orders) MarkCompleted(ctx context.Context, gatewayOrderID, paymentID string) (*models.Order, error) {
	order, err := s.FindByGatewayOrderID(ctx, gatewayOrderID)
	if errors.Is(err, ErrOrderNotFound) {
		order, err = s.FindByID(ctx, gatewayOrderID)
	}
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(map[string]any{
			"status":            models.OrderStatusCompleted,
			"payment_intent_id": paymentID,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("mark order %s completed: %w", order.ID, res.Error)
	}
	if res.RowsAffected == 1 {
		order.Status = models.OrderStatusCompleted
		order.PaymentIntentID = &paymentID
		return order, nil
	}

	current, err := s.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.OrderStatusCompleted &&
		current.PaymentIntentID != nil && *current.PaymentIntentID == paymentID {
		return current, nil
	}
	return nil, fmt.Errorf("%w: order %s is %s", ErrIllegalTransition, current.ID, current.Status)
}

// MarkFailed moves a pending order to failed. Failing an already failed
// order is a no-op.
func (s *Orders) MarkFailed(ctx context.Context, orderID string) (*models.Order, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, models.OrderStatusPending).
		Updates(map[string]any{
			"status":     models.OrderStatusFailed,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("mark order %s failed: %w", orderID, res.Error)
	}

	order, err := s.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 1 || order.Status == models.OrderStatusFailed {
		return order, nil
	}
	return nil, fmt.Errorf("%w: order %s is %s", ErrIllegalTransition, order.ID, order.Status)
}

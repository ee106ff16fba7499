package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func init() {
	// totals and prices go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether an order may move from one status to
// another. Only pending orders move, and never back to pending.
func CanTransitionTo(from, to OrderStatus) bool {
	return from == OrderStatusPending && to.IsTerminal()
}

type Order struct {
	ID              string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	UserID          string          `json:"userId" gorm:"type:varchar(64);index"`
	Email           string          `json:"email"`
	TotalAmount     decimal.Decimal `json:"totalAmount" gorm:"type:numeric(12,2);not null"`
	Currency        string          `json:"currency" gorm:"type:varchar(3);not null;default:INR"`
	Status          OrderStatus     `json:"status" gorm:"type:varchar(16);not null;default:pending;index"`
	PaymentIntentID *string         `json:"paymentIntentId,omitempty" gorm:"type:varchar(64)"`
	GatewayOrderID  *string         `json:"razorpayOrderId,omitempty" gorm:"column:razorpay_order_id;type:varchar(64);uniqueIndex"`
	GatewayReceipt  *string         `json:"receipt,omitempty" gorm:"type:varchar(64)"`
	GatewayAmount   *int64          `json:"gatewayAmount,omitempty"`
	BillingAddress  datatypes.JSON  `json:"billingAddress,omitempty"`
	ShippingAddress datatypes.JSON  `json:"shippingAddress,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	OrderItems      []OrderItem     `json:"orderItems" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	if o.Currency == "" {
		o.Currency = "INR"
	}
	return nil
}

// OrderItem is one purchased line. PriceAtPurchase is fixed when the order
// is created.
type OrderItem struct {
	ID              uint            `json:"-" gorm:"primaryKey"`
	OrderID         string          `json:"orderId" gorm:"type:varchar(36);index;not null"`
	ArtworkID       string          `json:"artworkId" gorm:"type:varchar(64);not null"`
	Title           string          `json:"title"`
	Quantity        int             `json:"quantity" gorm:"not null"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase" gorm:"type:numeric(12,2);not null"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (i OrderItem) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

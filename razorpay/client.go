// Package razorpay is a small client for the parts of the Razorpay API the
// checkout needs: creating and fetching orders, and checking the payment
// signature the checkout widget hands back.
package razorpay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL = "https://api.razorpay.com/v1"
	CurrencyINR    = "INR"
)

// ErrGateway wraps every failure talking to the gateway.
var ErrGateway = errors.New("payment gateway error")

type OrderParams struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is a gateway order. Amount is in minor units.
type Order struct {
	ID         string          `json:"id"`
	Entity     string          `json:"entity"`
	Amount     int64           `json:"amount"`
	AmountPaid int64           `json:"amount_paid"`
	AmountDue  int64           `json:"amount_due"`
	Currency   string          `json:"currency"`
	Receipt    string          `json:"receipt"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	Notes      json.RawMessage `json:"notes,omitempty"`
	CreatedAt  int64           `json:"created_at"`
}

// Paid reports whether the gateway considers the order settled.
func (o Order) Paid() bool {
	return o.Status == "paid"
}

type APIError struct {
	StatusCode  int
	Code        string `json:"code"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Reason      string `json:"reason"`
	Field       string `json:"field"`
}

type errorBody struct {
	Error APIError `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("razorpay: status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

func (e *APIError) Unwrap() error {
	return ErrGateway
}

type Client struct {
	http  *resty.Client
	creds Credentials
}

// NewClient builds a client for one set of credentials. An empty baseURL
// means the public API.
func NewClient(creds Credentials, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetBasicAuth(creds.KeyID, creds.KeySecret).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &Client{http: http, creds: creds}
}

func (c *Client) CreateOrder(ctx context.Context, params OrderParams) (Order, error) {
	if params.Amount <= 0 {
		return Order{}, fmt.Errorf("%w: amount must be positive, got %d", ErrGateway, params.Amount)
	}
	if params.Currency == "" {
		params.Currency = CurrencyINR
	}

	var order Order
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(params).
		SetResult(&order).
		SetError(&apiErr).
		Post("/orders")

	if err := checkResponse(resp, err, &apiErr); err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	if order.ID == "" {
		return Order{}, fmt.Errorf("create order: %w: response has no order id", ErrGateway)
	}

	return order, nil
}

func (c *Client) FetchOrder(ctx context.Context, orderID string) (Order, error) {
	var order Order
	var apiErr errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", orderID).
		SetResult(&order).
		SetError(&apiErr).
		Get("/orders/{id}")

	if err := checkResponse(resp, err, &apiErr); err != nil {
		return Order{}, fmt.Errorf("fetch order %s: %w", orderID, err)
	}

	return order, nil
}

func checkResponse(resp *resty.Response, err error, body *errorBody) error {
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGateway, err)
	}
	if resp.IsError() {
		apiErr := body.Error
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Description == "" {
			apiErr.Description = http.StatusText(resp.StatusCode())
		}
		return &apiErr
	}
	return nil
}

// ToMinorUnits converts an amount in rupees to paise, rounding half away
// from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

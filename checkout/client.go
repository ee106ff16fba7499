package checkout

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/fameuxarte/fameuxarte-api/orderrequest"
	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx answer from the storefront API.
type APIError struct {
	StatusCode int            `json:"-"`
	Message    string         `json:"error"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storefront api: %d %s", e.StatusCode, e.Message)
}

// Client talks to the storefront API on behalf of the signed-in user. Calls
// that are safe to repeat are retried on transport errors and 5xx answers;
// placing an order is not, since a retry could store a second order.
type Client struct {
	http    *resty.Client
	noRetry *resty.Client
}

var _ Backend = (*Client)(nil)

func NewClient(baseURL string, session Session) *Client {
	retrying := newRestyClient(baseURL, session).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		})

	return &Client{http: retrying, noRetry: newRestyClient(baseURL, session)}
}

func newRestyClient(baseURL string, session Session) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(45*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			if session != nil {
				if token := session.AccessToken(); token != "" {
					r.SetAuthToken(token)
				}
			}
			return nil
		})
}

func (c *Client) PlaceOrder(ctx context.Context, payload orderrequest.Payload) (PlacedOrder, error) {
	var placed PlacedOrder
	var apiErr APIError
	resp, err := c.noRetry.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&placed).
		SetError(&apiErr).
		Post("/orders")

	if err := checkResponse(resp, err, &apiErr); err != nil {
		return PlacedOrder{}, fmt.Errorf("place order: %w", err)
	}
	return placed, nil
}

func (c *Client) CreateGatewayOrder(ctx context.Context, payload orderrequest.Payload) (GatewayOrder, error) {
	var order GatewayOrder
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&order).
		SetError(&apiErr).
		Post("/create-order")

	if err := checkResponse(resp, err, &apiErr); err != nil {
		return GatewayOrder{}, fmt.Errorf("create gateway order: %w", err)
	}
	return order, nil
}

func (c *Client) VerifyPayment(ctx context.Context, result PaymentResult) (Verification, error) {
	var v Verification
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(result).
		SetResult(&v).
		SetError(&apiErr).
		Post("/verify-payment")

	if err := checkResponse(resp, err, &apiErr); err != nil {
		return Verification{Error: apiErr.Message}, fmt.Errorf("verify payment: %w", err)
	}
	return v, nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (models.OrderStatus, error) {
	var body struct {
		Order struct {
			Status models.OrderStatus `json:"status"`
		} `json:"order"`
	}
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("orderId", orderID).
		SetResult(&body).
		SetError(&apiErr).
		Get("/orders/{orderId}")

	if err := checkResponse(resp, err, &apiErr); err != nil {
		return "", fmt.Errorf("order status %s: %w", orderID, err)
	}
	return body.Order.Status, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("orderId", orderID).
		SetError(&apiErr).
		Post("/orders/{orderId}/cancel")

	if err := checkResponse(resp, err, &apiErr); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// Cart returns the cart API of the same user.
func (c *Client) Cart() *CartClient {
	return &CartClient{http: c.http}
}

// CartClient is the server-side cart of the signed-in user.
type CartClient struct {
	http *resty.Client
}

var _ CartStore = (*CartClient)(nil)

func (c *CartClient) Lines(ctx context.Context) ([]orderrequest.CartLine, error) {
	var body struct {
		Items []orderrequest.CartLine `json:"items"`
	}
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&body).
		SetError(&apiErr).
		Get("/cart")

	if err := checkResponse(resp, err, &apiErr); err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	return body.Items, nil
}

func (c *CartClient) Remove(ctx context.Context, lineID string) error {
	var apiErr APIError
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("lineId", lineID).
		SetError(&apiErr).
		Delete("/cart/{lineId}")

	if err := checkResponse(resp, err, &apiErr); err != nil {
		return fmt.Errorf("remove cart line %s: %w", lineID, err)
	}
	return nil
}

func checkResponse(resp *resty.Response, err error, apiErr *APIError) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		apiErr.StatusCode = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}
	return nil
}

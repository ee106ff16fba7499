package controllers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fameuxarte/fameuxarte-api/idempotency"
	"github.com/fameuxarte/fameuxarte-api/initializers"
	"github.com/fameuxarte/fameuxarte-api/middlewares"
	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/fameuxarte/fameuxarte-api/orderrequest"
	"github.com/fameuxarte/fameuxarte-api/razorpay"
	"github.com/fameuxarte/fameuxarte-api/reconcile"
	"github.com/fameuxarte/fameuxarte-api/store"
	"github.com/fameuxarte/fameuxarte-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type paymentVerification struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
}

func gatewayCredentials() (razorpay.Credentials, bool) {
	creds, err := razorpay.CredentialsFromEnv()
	if err != nil {
		slog.Error("Razorpay credentials missing",
			"key_id", creds.MaskedKeyID(),
			"key_secret_set", creds.KeySecret != "",
		)
		return creds, false
	}

	intent := strings.ToLower(strings.TrimSpace(os.Getenv("PAYMENT_MODE")))
	if intent != "" && razorpay.Mode(intent) != creds.Mode() {
		slog.Warn("Razorpay key mode does not match PAYMENT_MODE",
			"payment_mode", intent,
			"key_mode", creds.Mode(),
			"key_id", creds.MaskedKeyID(),
		)
	}
	return creds, true
}

func gatewayClient(creds razorpay.Credentials) *razorpay.Client {
	return razorpay.NewClient(creds, os.Getenv("RAZORPAY_API_BASE"))
}

func gatewayOrderResponse(ctx *gin.Context, order razorpay.Order, keyID string) {
	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"id":       order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
		"receipt":  order.Receipt,
		"key_id":   keyID,
	})
}

// CreateRazorpayOrder turns a cart payload into a gateway order. When an
// orderId is supplied the gateway order is tied to that pending order and
// repeated calls return the same gateway order.
func CreateRazorpayOrder(ctx *gin.Context) {
	var body orderrequest.Body
	if err := ctx.ShouldBindJSON(&body); err != nil {
		slog.Warn("Invalid create-order payload", "error", err)
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	creds, ok := gatewayCredentials()
	if !ok {
		sendErrorResponse(ctx, http.StatusInternalServerError, msgPaymentNotConfigured)
		return
	}

	req, err := orderrequest.Normalize(body)
	if err != nil {
		slog.Warn("Order validation failed", "error", err, "orderId", body.OrderID)
		var ve *orderrequest.ValidationError
		if errors.As(err, &ve) {
			sendErrorDetails(ctx, http.StatusBadRequest, orderrequest.UserMessage(err), ve.Details())
			return
		}
		sendErrorResponse(ctx, http.StatusBadRequest, orderrequest.UserMessage(err))
		return
	}

	amount := razorpay.ToMinorUnits(req.TotalAmount)
	if amount <= 0 {
		slog.Warn("Order total rounds to zero", "totalAmount", req.TotalAmount.String(), "orderId", body.OrderID)
		sendErrorDetails(ctx, http.StatusBadRequest, msgAmountTooSmall, map[string]any{
			"kind":   orderrequest.InvalidValue.String(),
			"fields": []string{"totalAmount"},
			"reason": "must be at least 0.01",
		})
		return
	}
	receipt, stable := idempotency.Receipt(body.OrderID, time.Now())
	if !stable {
		slog.Warn("Creating gateway order without an order id; retries will not be deduplicated", "receipt", receipt)
	}

	var orders *store.Orders
	var pending *models.Order
	if body.OrderID != "" {
		if initializers.DB == nil {
			slog.Error("Database is not configured")
			sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
			return
		}
		userID, ok := bearerUser(ctx)
		if !ok {
			sendErrorResponse(ctx, http.StatusUnauthorized, msgSignInToPay)
			return
		}
		orders = store.NewOrders(initializers.DB)

		pending, err = orders.FindByID(ctx.Request.Context(), body.OrderID)
		if errors.Is(err, store.ErrOrderNotFound) || (err == nil && pending.UserID != userID) {
			sendErrorResponse(ctx, http.StatusNotFound, msgOrderNotFound)
			return
		}
		if err != nil {
			slog.Error("Failed to load order", "orderId", body.OrderID, "error", err)
			sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
			return
		}
		if pending.Status != models.OrderStatusPending {
			sendErrorResponse(ctx, http.StatusConflict, msgOrderNotPayable)
			return
		}
		if razorpay.ToMinorUnits(pending.TotalAmount) != amount {
			sendErrorDetails(ctx, http.StatusBadRequest, msgOrderTotalMismatch, map[string]any{
				"kind":   orderrequest.InvalidValue.String(),
				"fields": []string{"totalAmount"},
				"reason": "does not match the saved order total " + pending.TotalAmount.StringFixed(2),
			})
			return
		}
		if pending.GatewayOrderID != nil {
			slog.Info("Returning existing gateway order", "orderId", pending.ID, "razorpayOrderId", *pending.GatewayOrderID)
			gatewayOrderResponse(ctx, linkedGatewayOrder(pending, amount, receipt), creds.KeyID)
			return
		}
	}

	var cache *idempotency.Store
	if stable && initializers.Redis != nil {
		cache = idempotency.New(initializers.Redis)

		if cached, err := cache.Lookup(ctx.Request.Context(), receipt); err == nil {
			slog.Info("Returning cached gateway order", "receipt", receipt, "razorpayOrderId", cached.ID)
			gatewayOrderResponse(ctx, cached, creds.KeyID)
			return
		} else if !errors.Is(err, idempotency.ErrMiss) {
			slog.Warn("Gateway order cache lookup failed", "receipt", receipt, "error", err)
		}

		release, err := cache.Acquire(ctx.Request.Context(), receipt)
		switch {
		case errors.Is(err, idempotency.ErrBusy):
			sendErrorResponse(ctx, http.StatusConflict, msgOrderCreationBusy)
			return
		case err != nil:
			slog.Warn("Could not take gateway order lock", "receipt", receipt, "error", err)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx.Request.Context())); err != nil {
					slog.Warn("Could not release gateway order lock", "receipt", receipt, "error", err)
				}
			}()
		}
	}

	noteItems := lo.Map(req.Items, func(item orderrequest.Item, _ int) razorpay.NoteItem {
		return razorpay.NoteItem{ArtworkID: item.ArtworkID, Quantity: item.Quantity, Price: item.Price.StringFixed(2)}
	})

	gatewayOrder, err := gatewayClient(creds).CreateOrder(ctx.Request.Context(), razorpay.OrderParams{
		Amount:   amount,
		Currency: razorpay.CurrencyINR,
		Receipt:  receipt,
		Notes:    razorpay.Notes(body.OrderID, noteItems),
	})
	if err != nil {
		slog.Error("Razorpay order creation failed", "receipt", receipt, "amount", amount, "error", err)
		sendErrorResponse(ctx, http.StatusBadGateway, msgPaymentGatewayError)
		return
	}
	if gatewayOrder.Amount != amount {
		slog.Warn("Gateway order amount differs from request", "requested", amount, "gateway", gatewayOrder.Amount)
	}
	if gatewayOrder.Currency == "" {
		gatewayOrder.Currency = razorpay.CurrencyINR
	}
	if gatewayOrder.Receipt == "" {
		gatewayOrder.Receipt = receipt
	}

	if pending != nil {
		gatewayOrder, err = linkGatewayOrder(ctx.Request.Context(), orders, pending.ID, gatewayOrder, amount, receipt)
		if errors.Is(err, store.ErrIllegalTransition) {
			sendErrorResponse(ctx, http.StatusConflict, msgOrderNotPayable)
			return
		}
		if err != nil {
			slog.Error("Gateway order created but not linked to order",
				"orderId", pending.ID, "razorpayOrderId", gatewayOrder.ID, "error", err)
		}
	}

	if cache != nil {
		if err := cache.Remember(ctx.Request.Context(), receipt, gatewayOrder); err != nil {
			slog.Warn("Could not cache gateway order", "receipt", receipt, "error", err)
		}
	}

	slog.Info("Razorpay order created",
		"razorpayOrderId", gatewayOrder.ID,
		"orderId", body.OrderID,
		"amount", gatewayOrder.Amount,
		"mode", creds.Mode(),
	)
	gatewayOrderResponse(ctx, gatewayOrder, creds.KeyID)
}

// linkGatewayOrder stores created against the pending order. If another
// request linked a gateway order first, that one is returned instead and
// created is left unused.
func linkGatewayOrder(ctx context.Context, orders *store.Orders, orderID string, created razorpay.Order, amount int64, receipt string) (razorpay.Order, error) {
	err := orders.LinkGatewayOrder(ctx, orderID, store.GatewayLink{
		OrderID: created.ID,
		Receipt: created.Receipt,
		Amount:  created.Amount,
	})
	if !errors.Is(err, store.ErrAlreadyLinked) {
		return created, err
	}

	winner, ferr := orders.FindByID(ctx, orderID)
	if ferr != nil {
		return created, fmt.Errorf("reload order after losing link race: %w", ferr)
	}
	if winner.Status != models.OrderStatusPending || winner.GatewayOrderID == nil {
		return created, store.ErrIllegalTransition
	}
	slog.Warn("Gateway order lost link race; returning the linked order",
		"orderId", orderID, "razorpayOrderId", *winner.GatewayOrderID, "unusedRazorpayOrderId", created.ID)
	return linkedGatewayOrder(winner, amount, receipt), nil
}

// bearerUser reads the caller from an optional bearer token on a public
// route.
func bearerUser(ctx *gin.Context) (string, bool) {
	token, found := strings.CutPrefix(ctx.GetHeader("Authorization"), "Bearer ")
	secret := os.Getenv("SUPABASE_JWT_SECRET")
	if !found || strings.TrimSpace(token) == "" || secret == "" {
		return "", false
	}
	claims, err := middlewares.ParseToken(strings.TrimSpace(token), secret)
	if err != nil {
		slog.Warn("Rejected bearer token on create-order", "error", err)
		return "", false
	}
	sub, _ := claims.GetSubject()
	return sub, true
}

func linkedGatewayOrder(order *models.Order, amount int64, receipt string) razorpay.Order {
	linked := razorpay.Order{
		ID:       *order.GatewayOrderID,
		Amount:   amount,
		Currency: order.Currency,
		Receipt:  receipt,
	}
	if order.GatewayAmount != nil {
		linked.Amount = *order.GatewayAmount
	}
	if order.GatewayReceipt != nil && *order.GatewayReceipt != "" {
		linked.Receipt = *order.GatewayReceipt
	}
	return linked
}

// VerifyRazorpayPayment checks the widget's payment signature and marks
// the order completed. Once the signature is valid the caller is told the
// payment succeeded even if the order could not be updated; that case is
// logged and queued for reconciliation.
func VerifyRazorpayPayment(ctx *gin.Context) {
	var payload paymentVerification
	if err := ctx.ShouldBindJSON(&payload); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			verificationError(ctx, http.StatusBadRequest, msgMissingPaymentFields)
			return
		}
		verificationError(ctx, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	payload.OrderID = strings.TrimSpace(payload.OrderID)
	payload.PaymentID = strings.TrimSpace(payload.PaymentID)
	payload.Signature = strings.TrimSpace(payload.Signature)
	if payload.OrderID == "" || payload.PaymentID == "" || payload.Signature == "" {
		verificationError(ctx, http.StatusBadRequest, msgMissingPaymentFields)
		return
	}

	creds, ok := gatewayCredentials()
	if !ok {
		verificationError(ctx, http.StatusInternalServerError, msgPaymentNotConfigured)
		return
	}

	if !razorpay.VerifyPaymentSignature(payload.OrderID, payload.PaymentID, payload.Signature, creds.KeySecret) {
		slog.Warn("Payment signature mismatch",
			"razorpayOrderId", payload.OrderID,
			"paymentId", payload.PaymentID,
		)
		verificationError(ctx, http.StatusBadRequest, msgInvalidSignature)
		return
	}

	order, err := completeOrder(ctx.Request.Context(), payload.OrderID, payload.PaymentID)
	if err != nil {
		slog.Error("Payment verified but order update failed",
			"razorpayOrderId", payload.OrderID,
			"paymentId", payload.PaymentID,
			"error", err,
		)
		queueIncident(ctx.Request.Context(), reconcile.Incident{
			GatewayOrderID: payload.OrderID,
			PaymentID:      payload.PaymentID,
			Reason:         err.Error(),
		})
	} else {
		slog.Info("Payment verified", "orderId", order.ID, "razorpayOrderId", payload.OrderID, "paymentId", payload.PaymentID)
		if utils.MailConfigured() && order.Email != "" {
			go func(order models.Order) {
				if err := utils.SendOrderConfirmation(order); err != nil {
					slog.Warn("Order confirmation mail failed", "orderId", order.ID, "error", err)
				}
			}(*order)
		}
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{
		"success":    true,
		"message":    msgPaymentVerified,
		"payment_id": payload.PaymentID,
		"order_id":   payload.OrderID,
	})
}

func completeOrder(ctx context.Context, gatewayOrderID, paymentID string) (*models.Order, error) {
	if initializers.DB == nil {
		return nil, errors.New("database is not configured")
	}
	return store.NewOrders(initializers.DB).MarkCompleted(ctx, gatewayOrderID, paymentID)
}

func queueIncident(ctx context.Context, incident reconcile.Incident) {
	if initializers.Redis == nil {
		return
	}
	if err := reconcile.NewQueue(initializers.Redis).Record(context.WithoutCancel(ctx), incident); err != nil {
		slog.Error("Could not queue reconciliation incident",
			"razorpayOrderId", incident.GatewayOrderID,
			"paymentId", incident.PaymentID,
			"error", err,
		)
	}
}

func verificationError(ctx *gin.Context, status int, message string) {
	sendJSONResponse(ctx, status, gin.H{"success": false, "error": message, "timestamp": timestamp()})
}

package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fameuxarte/fameuxarte-api/initializers"
	"github.com/fameuxarte/fameuxarte-api/middlewares"
	"github.com/fameuxarte/fameuxarte-api/models"
	"github.com/fameuxarte/fameuxarte-api/orderrequest"
	"github.com/fameuxarte/fameuxarte-api/store"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type placeOrderRequest struct {
	Items           []orderrequest.RawItem `json:"items"`
	TotalAmount     orderrequest.Scalar    `json:"totalAmount"`
	BillingAddress  datatypes.JSON         `json:"billingAddress"`
	ShippingAddress datatypes.JSON         `json:"shippingAddress"`
}

// CreateOrder persists a pending order for the caller. Prices are taken
// from the catalog, so a cart showing stale prices is rejected rather than
// charged at the old price.
func CreateOrder(ctx *gin.Context) {
	var body placeOrderRequest
	if err := ctx.ShouldBindJSON(&body); err != nil {
		sendErrorResponse(ctx, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	req, err := orderrequest.Normalize(orderrequest.Body{Items: body.Items, TotalAmount: body.TotalAmount})
	if err != nil {
		var ve *orderrequest.ValidationError
		if errors.As(err, &ve) {
			sendErrorDetails(ctx, http.StatusBadRequest, orderrequest.UserMessage(err), ve.Details())
			return
		}
		sendErrorResponse(ctx, http.StatusBadRequest, orderrequest.UserMessage(err))
		return
	}

	artworks, err := store.NewCatalog(initializers.DB).FindMany(ctx.Request.Context(),
		lo.Map(req.Items, func(item orderrequest.Item, _ int) string { return item.ArtworkID }))
	if err != nil {
		slog.Error("Failed to load artworks", "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	var unknown, repriced []string
	for _, item := range req.Items {
		artwork, ok := artworks[item.ArtworkID]
		switch {
		case !ok:
			unknown = append(unknown, item.ArtworkID)
		case !artwork.Price.Equal(item.Price):
			repriced = append(repriced, item.ArtworkID)
		}
	}
	if len(unknown) > 0 {
		sendErrorDetails(ctx, http.StatusBadRequest, msgArtworkUnavailable, map[string]any{"artworkIds": lo.Uniq(unknown)})
		return
	}
	if len(repriced) > 0 {
		sendErrorDetails(ctx, http.StatusConflict, msgPriceChanged, map[string]any{"artworkIds": lo.Uniq(repriced)})
		return
	}

	order := models.Order{
		UserID:          middlewares.UserID(ctx),
		Email:           ctx.GetString(middlewares.CtxKeyEmail),
		BillingAddress:  body.BillingAddress,
		ShippingAddress: body.ShippingAddress,
	}
	total := decimal.Zero
	for _, item := range req.Items {
		artwork := artworks[item.ArtworkID]
		line := models.OrderItem{
			ArtworkID:       artwork.ID,
			Title:           artwork.Title,
			Quantity:        item.Quantity,
			PriceAtPurchase: artwork.Price,
		}
		total = total.Add(line.Subtotal())
		order.OrderItems = append(order.OrderItems, line)
	}
	order.TotalAmount = total

	if err := store.NewOrders(initializers.DB).Create(ctx.Request.Context(), &order); err != nil {
		slog.Error("Failed to create order", "userId", order.UserID, "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	slog.Info("Order created", "orderId", order.ID, "userId", order.UserID, "total", order.TotalAmount.StringFixed(2))
	sendJSONResponse(ctx, http.StatusCreated, gin.H{
		"id":          order.ID,
		"status":      order.Status,
		"totalAmount": order.TotalAmount,
		"currency":    order.Currency,
	})
}

func GetOrders(ctx *gin.Context) {
	orders, err := store.NewOrders(initializers.DB).ListByUser(ctx.Request.Context(), middlewares.UserID(ctx))
	if err != nil {
		slog.Error("Failed to fetch orders", "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"orders": orders})
}

func GetOrder(ctx *gin.Context) {
	order, ok := findOwnOrder(ctx)
	if !ok {
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"order": order})
}

// CancelOrder fails a pending order after the payment widget was closed.
func CancelOrder(ctx *gin.Context) {
	order, ok := findOwnOrder(ctx)
	if !ok {
		return
	}

	updated, err := store.NewOrders(initializers.DB).MarkFailed(ctx.Request.Context(), order.ID)
	if errors.Is(err, store.ErrIllegalTransition) {
		sendErrorResponse(ctx, http.StatusConflict, msgOrderAlreadyPaid)
		return
	}
	if err != nil {
		slog.Error("Failed to cancel order", "orderId", order.ID, "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"order": updated})
}

// findOwnOrder loads :orderId for the caller. Orders of other users are
// reported as missing.
func findOwnOrder(ctx *gin.Context) (*models.Order, bool) {
	order, err := store.NewOrders(initializers.DB).FindByID(ctx.Request.Context(), ctx.Param("orderId"))
	if errors.Is(err, store.ErrOrderNotFound) || (err == nil && order.UserID != middlewares.UserID(ctx)) {
		sendErrorResponse(ctx, http.StatusNotFound, msgOrderNotFound)
		return nil, false
	}
	if err != nil {
		slog.Error("Failed to fetch order", "orderId", ctx.Param("orderId"), "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return nil, false
	}
	return order, true
}

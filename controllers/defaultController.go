package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func GetHome(ctx *gin.Context) {
	message := `Welcome to the Fameux Arte API.

The following are the endpoints for this API:

CHECKOUT
- POST "/create-order" - Create a payment gateway order for a cart
- POST "/verify-payment" - Verify a payment and complete the order

ORDER (auth)
- POST "/orders" - Place a pending order
- GET "/orders" - List your orders
- GET "/orders/:orderId" - Get an order and its status
- POST "/orders/:orderId/cancel" - Cancel a pending order

CART (auth)
- GET "/cart" - Get your cart
- POST "/cart" - Add an artwork to your cart
- PATCH "/cart/:lineId" - Change a line's quantity
- DELETE "/cart/:lineId" - Remove a line

ARTWORK
- GET "/artworks" - List artworks
- GET "/artworks/:id" - Get an artwork
- PUT "/admin/artworks" - Create or update an artwork (admin)

RECONCILIATION (admin)
- GET "/admin/reconciliation" - List payments awaiting reconciliation
- POST "/admin/reconciliation/:paymentId/resolve" - Reconcile a payment`

	ctx.JSON(http.StatusOK, gin.H{
		"message": message,
	})
}

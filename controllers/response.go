package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidJSON           = "Invalid JSON payload"
	msgInvalidInput          = "Invalid input"
	msgInternalServerError   = "Internal server error"
	msgPaymentNotConfigured  = "Payment service is not configured. Please try again later."
	msgPaymentGatewayError   = "Payment service error. Please try again."
	msgOrderNotFound         = "Order not found"
	msgOrderNotPayable       = "Order is no longer awaiting payment"
	msgOrderTotalMismatch    = "Order total does not match the saved order"
	msgOrderCreationBusy     = "Order creation is already in progress. Please wait."
	msgMissingPaymentFields  = "Missing required payment verification fields"
	msgInvalidSignature      = "Invalid payment signature"
	msgPaymentVerified       = "Payment verified successfully"
	msgArtworkUnavailable    = "Some artworks in your cart are no longer available"
	msgPriceChanged          = "Prices have changed. Please refresh your cart."
	msgOrderAlreadyPaid      = "Order has already been paid"
	msgCartLineNotFound      = "Cart item not found"
	msgArtworkNotFound       = "Artwork not found"
	msgIncidentNotFound      = "Reconciliation incident not found"
	msgReconcileNotAvailable = "Reconciliation queue is not configured"
	msgGatewayOrderNotPaid   = "Gateway order is not paid"
	msgAmountTooSmall        = "Total amount is too small to charge"
	msgSignInToPay           = "Please sign in to pay for this order"
)

func sendJSONResponse(ctx *gin.Context, status int, data gin.H) {
	ctx.JSON(status, data)
}

func sendErrorResponse(ctx *gin.Context, status int, message string) {
	sendJSONResponse(ctx, status, gin.H{"error": message, "timestamp": timestamp()})
}

func sendErrorDetails(ctx *gin.Context, status int, message string, details map[string]any) {
	sendJSONResponse(ctx, status, gin.H{"error": message, "details": details, "timestamp": timestamp()})
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

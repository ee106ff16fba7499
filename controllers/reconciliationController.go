package controllers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/fameuxarte/fameuxarte-api/initializers"
	"github.com/fameuxarte/fameuxarte-api/reconcile"
	"github.com/fameuxarte/fameuxarte-api/store"
	"github.com/gin-gonic/gin"
)

func GetReconciliationIncidents(ctx *gin.Context) {
	if initializers.Redis == nil {
		sendErrorResponse(ctx, http.StatusServiceUnavailable, msgReconcileNotAvailable)
		return
	}

	incidents, err := reconcile.NewQueue(initializers.Redis).List(ctx.Request.Context())
	if err != nil {
		slog.Error("Failed to list reconciliation incidents", "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	sendJSONResponse(ctx, http.StatusOK, gin.H{"incidents": incidents})
}

// ResolveReconciliationIncident re-applies a verified payment once the
// gateway confirms the order is paid, then drops the incident.
func ResolveReconciliationIncident(ctx *gin.Context) {
	if initializers.Redis == nil {
		sendErrorResponse(ctx, http.StatusServiceUnavailable, msgReconcileNotAvailable)
		return
	}
	queue := reconcile.NewQueue(initializers.Redis)

	incident, err := queue.Get(ctx.Request.Context(), ctx.Param("paymentId"))
	if errors.Is(err, reconcile.ErrIncidentNotFound) {
		sendErrorResponse(ctx, http.StatusNotFound, msgIncidentNotFound)
		return
	}
	if err != nil {
		slog.Error("Failed to load reconciliation incident", "paymentId", ctx.Param("paymentId"), "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	creds, ok := gatewayCredentials()
	if !ok {
		sendErrorResponse(ctx, http.StatusInternalServerError, msgPaymentNotConfigured)
		return
	}

	gatewayOrder, err := gatewayClient(creds).FetchOrder(ctx.Request.Context(), incident.GatewayOrderID)
	if err != nil {
		slog.Error("Failed to fetch gateway order", "razorpayOrderId", incident.GatewayOrderID, "error", err)
		sendErrorResponse(ctx, http.StatusBadGateway, msgPaymentGatewayError)
		return
	}
	if !gatewayOrder.Paid() {
		sendErrorResponse(ctx, http.StatusConflict, msgGatewayOrderNotPaid)
		return
	}

	order, err := store.NewOrders(initializers.DB).MarkCompleted(ctx.Request.Context(), incident.GatewayOrderID, incident.PaymentID)
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		sendErrorResponse(ctx, http.StatusNotFound, msgOrderNotFound)
		return
	case errors.Is(err, store.ErrIllegalTransition):
		sendErrorResponse(ctx, http.StatusConflict, err.Error())
		return
	case err != nil:
		slog.Error("Failed to complete order during reconciliation", "razorpayOrderId", incident.GatewayOrderID, "error", err)
		sendErrorResponse(ctx, http.StatusInternalServerError, msgInternalServerError)
		return
	}

	if err := queue.Resolve(ctx.Request.Context(), incident.PaymentID); err != nil && !errors.Is(err, reconcile.ErrIncidentNotFound) {
		slog.Warn("Order completed but incident not removed", "paymentId", incident.PaymentID, "error", err)
	}

	slog.Info("Reconciled payment", "orderId", order.ID, "paymentId", incident.PaymentID)
	sendJSONResponse(ctx, http.StatusOK, gin.H{"message": "Payment reconciled", "order": order})
}

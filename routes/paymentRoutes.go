package routes

import (
	"github.com/fameuxarte/fameuxarte-api/controllers"
	"github.com/gin-gonic/gin"
)

// PaymentRoutes are the two checkout endpoints the storefront calls
// around the payment widget.
func PaymentRoutes(server *gin.Engine) {
	server.POST("/create-order", controllers.CreateRazorpayOrder)
	server.POST("/verify-payment", controllers.VerifyRazorpayPayment)
}

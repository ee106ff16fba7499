package routes

import (
	"github.com/fameuxarte/fameuxarte-api/controllers"
	"github.com/fameuxarte/fameuxarte-api/middlewares"
	"github.com/gin-gonic/gin"
)

func OrderRoutes(server *gin.Engine) {
	orders := server.Group("/orders", middlewares.RequireAuth())
	{
		orders.POST("", controllers.CreateOrder)
		orders.GET("", controllers.GetOrders)
		orders.GET("/:orderId", controllers.GetOrder)
		orders.POST("/:orderId/cancel", controllers.CancelOrder)
	}
}

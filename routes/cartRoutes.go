package routes

import (
	"github.com/fameuxarte/fameuxarte-api/controllers"
	"github.com/fameuxarte/fameuxarte-api/middlewares"
	"github.com/gin-gonic/gin"
)

func CartRoutes(server *gin.Engine) {
	cart := server.Group("/cart", middlewares.RequireAuth())
	{
		cart.GET("", controllers.GetCart)
		cart.POST("", controllers.AddCartItem)
		cart.PATCH("/:lineId", controllers.UpdateCartItem)
		cart.DELETE("/:lineId", controllers.DeleteCartItem)
	}
}

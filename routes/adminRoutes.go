package routes

import (
	"github.com/fameuxarte/fameuxarte-api/controllers"
	"github.com/fameuxarte/fameuxarte-api/middlewares"
	"github.com/gin-gonic/gin"
)

func AdminRoutes(server *gin.Engine) {
	admin := server.Group("/admin", middlewares.RequireAuth(), middlewares.RequireAdmin())
	{
		admin.PUT("/artworks", controllers.UpsertArtwork)
		admin.GET("/reconciliation", controllers.GetReconciliationIncidents)
		admin.POST("/reconciliation/:paymentId/resolve", controllers.ResolveReconciliationIncident)
	}
}

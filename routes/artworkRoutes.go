package routes

import (
	"github.com/fameuxarte/fameuxarte-api/controllers"
	"github.com/gin-gonic/gin"
)

func ArtworkRoutes(server *gin.Engine) {
	server.GET("/artworks", controllers.GetArtworks)
	server.GET("/artworks/:id", controllers.GetArtwork)
}

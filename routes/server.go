package routes

import (
	"log/slog"
	"net/http"

	"github.com/fameuxarte/fameuxarte-api/middlewares"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewServer builds the router with every route registered. The checkout
// endpoints are called straight from the browser, so CORS is open.
func NewServer(logger *slog.Logger) *gin.Engine {
	server := gin.New()
	server.Use(middlewares.RequestID(), middlewares.RequestLogger(logger), gin.Recovery())
	server.Use(cors.New(cors.Config{
		AllowAllOrigins:           true,
		AllowMethods:              []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:              []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type", middlewares.HeaderRequestID},
		ExposeHeaders:             []string{middlewares.HeaderRequestID},
		OptionsResponseStatusCode: http.StatusOK,
	}))

	DefaultRoutes(server)
	PaymentRoutes(server)
	OrderRoutes(server)
	CartRoutes(server)
	ArtworkRoutes(server)
	AdminRoutes(server)

	return server
}

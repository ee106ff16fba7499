package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// RequireAdmin must run after RequireAuth. Supabase keeps the role in
// app_metadata, which users cannot edit themselves.
func RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userClaims, exists := ctx.Get(CtxKeyUser)
		if !exists {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found in context"})
			return
		}

		claims, _ := userClaims.(jwt.MapClaims)
		appMetadata, _ := claims["app_metadata"].(map[string]any)
		role, ok := appMetadata["role"].(string)
		if !ok || role != "admin" {
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		ctx.Next()
	}
}

package middlewares

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxKeyUser   = "user"
	CtxKeyUserID = "userId"
	CtxKeyEmail  = "email"
)

// RequireAuth accepts Supabase access tokens: HS256, signed with
// SUPABASE_JWT_SECRET, subject is the user id.
func RequireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		secret := os.Getenv("SUPABASE_JWT_SECRET")
		if secret == "" {
			ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Authentication is not configured"})
			return
		}

		header := ctx.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(tokenString) == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		claims, err := ParseToken(strings.TrimSpace(tokenString), secret)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		sub, _ := claims.GetSubject()
		email, _ := claims["email"].(string)

		ctx.Set(CtxKeyUser, claims)
		ctx.Set(CtxKeyUserID, sub)
		ctx.Set(CtxKeyEmail, email)
		ctx.Next()
	}
}

func ParseToken(tokenString, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if sub, _ := claims.GetSubject(); sub == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func UserID(ctx *gin.Context) string {
	return ctx.GetString(CtxKeyUserID)
}

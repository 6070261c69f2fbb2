// Package middleware provides gin middleware for the HTTP API.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// claimsKey is the gin context key for authenticated claims.
const claimsKey = "claims"

// Claims are the token claims issued by the auth service. Sub is the
// stable user id this service keys everything on.
type Claims struct {
	Sub string `json:"sub"`
	jwt.RegisteredClaims
}

// Auth validates the bearer token and stores its claims on the context.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &Claims{}, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("invalid signing method")
			}
			return []byte(secret), nil
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(*Claims)
		if !ok || !token.Valid || claims.Sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" if the request did not
// pass through Auth.
func UserID(c *gin.Context) string {
	v, exists := c.Get(claimsKey)
	if !exists {
		return ""
	}
	claims, ok := v.(*Claims)
	if !ok {
		return ""
	}
	return claims.Sub
}

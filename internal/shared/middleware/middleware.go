package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"barbuddy/internal/shared/config"
	"barbuddy/internal/shared/utils/response"
	"barbuddy/pkg/logger"
)

// Context keys set by SessionAuth
const (
	ContextHolderID   = "holder_id"
	ContextCustomerID = "customer_id"
)

// TokenTypeSession marks tokens issued by the sessions endpoint
const TokenTypeSession = "session"

// SessionAuth validates the bearer session token and exposes its holder id
func SessionAuth(cfg *config.Config, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.LogAuthFailure(c.Request.Context(), "missing authorization header", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Authorization header is required", nil, nil)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.LogAuthFailure(c.Request.Context(), "malformed authorization header", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authorization header format must be Bearer {token}", nil, nil)
			c.Abort()
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWT.Secret), nil
		})

		if err != nil || !token.Valid {
			log.LogAuthFailure(c.Request.Context(), "invalid or expired token", c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, nil)
			c.Abort()
			return
		}

		if tokenType, ok := claims["type"]; !ok || tokenType != TokenTypeSession {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid token type", nil, nil)
			c.Abort()
			return
		}

		holderID, _ := claims["sub"].(string)
		if holderID == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "token has no subject", nil, nil)
			c.Abort()
			return
		}

		c.Set(ContextHolderID, holderID)
		if customerID, ok := claims["customer_id"].(string); ok {
			c.Set(ContextCustomerID, customerID)
		}

		c.Next()
	}
}

// HolderID returns the session holder id set by SessionAuth
func HolderID(c *gin.Context) string {
	return c.GetString(ContextHolderID)
}

// CustomerID returns the customer id set by SessionAuth
func CustomerID(c *gin.Context) string {
	return c.GetString(ContextCustomerID)
}

// RequestLogger logs every request once it has been served
func RequestLogger(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}

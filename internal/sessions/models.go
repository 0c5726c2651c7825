package sessions

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// SessionClaims are carried by a session token. The subject is the holder id
// that owns every hold the session takes.
type SessionClaims struct {
	CustomerID string `json:"customer_id"`
	Type       string `json:"type"`
	jwt.RegisteredClaims
}

// represents a session open request
type OpenSessionRequest struct {
	CustomerID string `json:"customer_id" validate:"required,max=64"`
}

// represents an issued session
type SessionResponse struct {
	Token     string    `json:"token"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"barbuddy/internal/shared/config"
	"barbuddy/internal/shared/middleware"
	"barbuddy/pkg/logger"
)

const issuer = "barbuddy"

type Service interface {
	Open(ctx context.Context, customerID string) (*SessionResponse, error)
}

type service struct {
	config *config.Config
	log    *logger.Logger
	now    func() time.Time
}

func NewService(cfg *config.Config, log *logger.Logger) Service {
	return &service{
		config: cfg,
		log:    log,
		now:    time.Now,
	}
}

// Open issues a token for a fresh holder id. Two sessions of the same
// customer get distinct holder ids and so never share holds.
func (s *service) Open(ctx context.Context, customerID string) (*SessionResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.config.JWT.SessionExpiresIn)
	holderID := uuid.NewString()

	claims := SessionClaims{
		CustomerID: customerID,
		Type:       middleware.TokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    issuer,
			Subject:   holderID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.config.JWT.Secret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	s.log.WithSession(holderID).InfoContext(ctx, "Session opened", "customer_id", customerID)

	return &SessionResponse{
		Token:     signed,
		HolderID:  holderID,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

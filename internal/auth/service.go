package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

// Service issues, validates and revokes access tokens. Revocations live in
// Redis until the token would have expired anyway.
type Service struct {
	jwt         *JWTManager
	redisClient *redis.Client
}

// NewService creates a Service. A nil redisClient disables revocation.
func NewService(jwt *JWTManager, redisClient *redis.Client) *Service {
	return &Service{
		jwt:         jwt,
		redisClient: redisClient,
	}
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

// IssueToken signs a token for actor.
func (s *Service) IssueToken(actor domain.Actor) (*Token, error) {
	token, claims, err := s.jwt.GenerateToken(actor)
	if err != nil {
		return nil, err
	}
	if _, err := claims.Actor(); err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}
	return token, nil
}

// Authenticate validates the token and rejects revoked ones.
func (s *Service) Authenticate(ctx context.Context, token string) (*AccessClaims, error) {
	claims, err := s.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	if s.redisClient == nil || claims.ID == "" {
		return claims, nil
	}

	exists, err := s.redisClient.Exists(ctx, revokedKey(claims.ID)).Result()
	if err != nil {
		return nil, fmt.Errorf("checking token revocation: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("token revoked")
	}
	return claims, nil
}

// Revoke blacklists the token identified by claims for its remaining lifetime.
func (s *Service) Revoke(ctx context.Context, claims *AccessClaims) error {
	if s.redisClient == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}
	if err := s.redisClient.Set(ctx, revokedKey(claims.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

func (s *Service) JWT() *JWTManager {
	return s.jwt
}

package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

const issuer = "avellaneda"

type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// AccessClaims carry the actor a request acts as.
type AccessClaims struct {
	ActorType string `json:"actor_type"`
	ActorID   string `json:"actor_id"`
	ShopID    string `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims into a domain actor. Shop actors must carry a shop id.
func (c *AccessClaims) Actor() (domain.Actor, error) {
	actor := domain.Actor{Type: domain.ActorType(c.ActorType), ID: c.ActorID}
	switch actor.Type {
	case domain.ActorAdmin, domain.ActorSystem:
	case domain.ActorShop:
		shopID, err := uuid.Parse(c.ShopID)
		if err != nil {
			return domain.Actor{}, fmt.Errorf("shop token without a valid shop id: %w", err)
		}
		actor.ShopID = shopID
	default:
		return domain.Actor{}, fmt.Errorf("unknown actor type %q", c.ActorType)
	}
	if actor.ID == "" {
		return domain.Actor{}, fmt.Errorf("token without actor id")
	}
	return actor, nil
}

type JWTManager struct {
	secret []byte
	expiry time.Duration
}

func NewJWTManager(secret string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

func (m *JWTManager) GenerateToken(actor domain.Actor) (*Token, *AccessClaims, error) {
	now := time.Now()

	claims := &AccessClaims{
		ActorType: string(actor.Type),
		ActorID:   actor.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   actor.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	if actor.Type == domain.ActorShop {
		claims.ShopID = actor.ShopID.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, nil, fmt.Errorf("signing access token: %w", err)
	}

	return &Token{
		AccessToken: signed,
		ExpiresIn:   int64(m.expiry.Seconds()),
	}, claims, nil
}

func (m *JWTManager) ValidateAccessToken(tokenStr string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return nil, fmt.Errorf("parsing access token: %w", err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid access token claims")
	}

	return claims, nil
}

func (m *JWTManager) Expiry() time.Duration {
	return m.expiry
}

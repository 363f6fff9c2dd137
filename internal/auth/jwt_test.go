package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

const testSecret = "access-secret-32-chars-long!!!!!"

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	mgr := NewJWTManager(testSecret, 15*time.Minute)
	shopID := uuid.New()

	t.Run("shop token round trip", func(t *testing.T) {
		token, claims, err := mgr.GenerateToken(domain.Actor{Type: domain.ActorShop, ID: "user-123", ShopID: shopID})
		require.NoError(t, err)
		assert.NotEmpty(t, token.AccessToken)
		assert.Equal(t, int64(900), token.ExpiresIn)
		assert.NotEmpty(t, claims.ID)

		parsed, err := mgr.ValidateAccessToken(token.AccessToken)
		require.NoError(t, err)
		actor, err := parsed.Actor()
		require.NoError(t, err)
		assert.Equal(t, domain.ActorShop, actor.Type)
		assert.Equal(t, "user-123", actor.ID)
		assert.Equal(t, shopID, actor.ShopID)
	})

	t.Run("admin token has no shop", func(t *testing.T) {
		token, _, err := mgr.GenerateToken(domain.Actor{Type: domain.ActorAdmin, ID: "admin-1"})
		require.NoError(t, err)

		parsed, err := mgr.ValidateAccessToken(token.AccessToken)
		require.NoError(t, err)
		assert.Empty(t, parsed.ShopID)
		actor, err := parsed.Actor()
		require.NoError(t, err)
		assert.True(t, actor.IsAdmin())
	})

	t.Run("invalid token fails validation", func(t *testing.T) {
		_, err := mgr.ValidateAccessToken("invalid-token")
		assert.Error(t, err)
	})

	t.Run("token signed with another secret fails", func(t *testing.T) {
		other := NewJWTManager("another-secret-32-chars-long!!!!", time.Minute)
		token, _, err := other.GenerateToken(domain.Actor{Type: domain.ActorAdmin, ID: "admin-1"})
		require.NoError(t, err)
		_, err = mgr.ValidateAccessToken(token.AccessToken)
		assert.Error(t, err)
	})

	t.Run("expired token fails", func(t *testing.T) {
		shortMgr := NewJWTManager(testSecret, -1*time.Second)
		token, _, err := shortMgr.GenerateToken(domain.Actor{Type: domain.ActorAdmin, ID: "admin-1"})
		require.NoError(t, err)

		_, err = shortMgr.ValidateAccessToken(token.AccessToken)
		assert.Error(t, err)
	})
}

func TestAccessClaims_Actor(t *testing.T) {
	tests := []struct {
		name    string
		claims  AccessClaims
		wantErr bool
	}{
		{"admin", AccessClaims{ActorType: "ADMIN", ActorID: "a"}, false},
		{"shop", AccessClaims{ActorType: "SHOP", ActorID: "u", ShopID: uuid.NewString()}, false},
		{"shop without shop id", AccessClaims{ActorType: "SHOP", ActorID: "u"}, true},
		{"unknown type", AccessClaims{ActorType: "ROBOT", ActorID: "r"}, true},
		{"missing id", AccessClaims{ActorType: "ADMIN"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.claims.Actor()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

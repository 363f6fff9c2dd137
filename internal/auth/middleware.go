package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/analianare-star/avellaneda-backend/internal/api"
	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

type contextKey string

const ClaimsKey contextKey = "access_claims"

func Middleware(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := svc.Authenticate(r.Context(), parts[1])
			if err != nil {
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			actor, err := claims.Actor()
			if err != nil {
				api.HandleError(w, api.ErrInvalidToken)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			ctx = WithActor(ctx, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin rejects requests whose actor is not an administrator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			api.HandleError(w, api.ErrUnauthorized)
			return
		}
		if !actor.IsAdmin() {
			api.HandleError(w, api.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return domain.WithActor(ctx, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	return domain.ActorFromContext(ctx)
}

func GetClaims(ctx context.Context) *AccessClaims {
	claims, _ := ctx.Value(ClaimsKey).(*AccessClaims)
	return claims
}

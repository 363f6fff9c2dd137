package auth

import (
	"log/slog"
	"net/http"

	"github.com/analianare-star/avellaneda-backend/internal/api"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Me returns the actor behind the bearer token.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	api.JSON(w, http.StatusOK, actor)
}

// Logout revokes the bearer token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	if err := h.svc.Revoke(r.Context(), claims); err != nil {
		slog.Error("revoking token", "error", err, "actor_id", claims.ActorID)
		api.HandleError(w, api.ErrInternalServer)
		return
	}

	api.JSONMessage(w, http.StatusOK, "logged out")
}

package broadcasts

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/api"
	"github.com/analianare-star/avellaneda-backend/internal/auth"
	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

type CreateBroadcastRequest struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"max=2000"`
	Platform    string    `json:"platform" validate:"required,max=64"`
	URL         string    `json:"url" validate:"omitempty,url"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

type UpdateBroadcastRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

type CancelBroadcastRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	shopID, err := api.URLParamUUID(r, "shopID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req CreateBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	b, err := h.svc.Schedule(r.Context(), ScheduleRequest{
		ShopID:      shopID,
		Title:       req.Title,
		Description: req.Description,
		Platform:    req.Platform,
		URL:         req.URL,
		ScheduledAt: req.ScheduledAt,
	}, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, b)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	shopID, err := api.URLParamUUID(r, "shopID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var statuses []domain.BroadcastStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			statuses = append(statuses, domain.BroadcastStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
	}

	list, err := h.svc.ListByShop(r.Context(), shopID, statuses, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, list)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	id, err := api.URLParamUUID(r, "broadcastID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	b, err := h.svc.Get(r.Context(), id, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, b)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	id, err := api.URLParamUUID(r, "broadcastID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req UpdateBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	b, err := h.svc.Reschedule(r.Context(), id, req.ScheduledAt, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, b)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	id, err := api.URLParamUUID(r, "broadcastID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req CancelBroadcastRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.HandleError(w, api.ErrBadRequest)
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	b, err := h.svc.Cancel(r.Context(), id, req.Reason, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, b)
}

type ModerationRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, http.StatusCreated, func(ctx context.Context, id uuid.UUID, reason string, actor domain.Actor) (any, error) {
		return h.svc.Report(ctx, id, reason, actor)
	})
}

func (h *Handler) Ban(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, http.StatusOK, func(ctx context.Context, id uuid.UUID, reason string, actor domain.Actor) (any, error) {
		return h.svc.Ban(ctx, id, reason, actor)
	})
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, status int,
	fn func(ctx context.Context, id uuid.UUID, reason string, actor domain.Actor) (any, error),
) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	id, err := api.URLParamUUID(r, "broadcastID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req ModerationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.HandleError(w, api.ErrBadRequest)
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	out, err := fn(r.Context(), id, req.Reason, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, status, out)
}

func (h *Handler) GoLive(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.GoLive)
}

func (h *Handler) Finish(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Finish)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id uuid.UUID, actor domain.Actor) (*domain.Broadcast, error),
) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	id, err := api.URLParamUUID(r, "broadcastID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	b, err := fn(r.Context(), id, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, b)
}

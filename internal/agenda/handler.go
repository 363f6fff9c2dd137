package agenda

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/analianare-star/avellaneda-backend/internal/api"
	"github.com/analianare-star/avellaneda-backend/internal/auth"
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

type SuspendAgendaRequest struct {
	Days   int    `json:"days" validate:"gte=0,lte=365"`
	Reason string `json:"reason" validate:"max=500"`
}

func (h *Handler) Suspend(w http.ResponseWriter, r *http.Request) {
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

	var req SuspendAgendaRequest
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

	summary, err := h.svc.SuspendAndReschedule(r.Context(), shopID, SuspendRequest{
		Days:   req.Days,
		Reason: req.Reason,
		Actor:  actor,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, summary)
}

func (h *Handler) Lift(w http.ResponseWriter, r *http.Request) {
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

	shop, err := h.svc.LiftSuspension(r.Context(), shopID, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, shop)
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := api.URLParamUUID(r, "batchID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	summary, err := h.svc.GetBatch(r.Context(), batchID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, summary)
}

func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}
	batchID, err := api.URLParamUUID(r, "batchID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	summary, err := h.svc.ResumeBatch(r.Context(), batchID, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, summary)
}

package posts

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

type PublishPostRequest struct {
	URL      string `json:"url" validate:"required,url,max=2048"`
	Platform string `json:"platform" validate:"max=64"`
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

	var req PublishPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	p, err := h.svc.Create(r.Context(), CreatePostRequest{
		ShopID:   shopID,
		URL:      req.URL,
		Platform: req.Platform,
	}, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, p)
}

package shops

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

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

type CreateShopBody struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Plan                 string `json:"plan" validate:"required,max=64"`
	LegacyBroadcastQuota int    `json:"legacy_broadcast_quota"`
	LegacyPostQuota      int    `json:"legacy_post_quota"`
}

type ChangePlanBody struct {
	Plan string `json:"plan" validate:"required,max=64"`
}

type PurchaseBody struct {
	Resource string `json:"resource" validate:"required,oneof=broadcast post BROADCAST POST"`
	Quantity int    `json:"quantity"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		api.HandleError(w, api.ErrUnauthorized)
		return
	}

	var req CreateShopBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	shop, err := h.svc.Create(r.Context(), CreateShopRequest{
		Name:                 req.Name,
		Plan:                 req.Plan,
		LegacyBroadcastQuota: req.LegacyBroadcastQuota,
		LegacyPostQuota:      req.LegacyPostQuota,
	}, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, shop)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
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

	shop, err := h.svc.Get(r.Context(), shopID, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, shop)
}

func (h *Handler) ChangePlan(w http.ResponseWriter, r *http.Request) {
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

	var req ChangePlanBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	shop, err := h.svc.ChangePlan(r.Context(), shopID, req.Plan, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, shop)
}

// Purchase leaves quantity validation to the service so a non-positive
// quantity surfaces as invalid_amount.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
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

	var req PurchaseBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	receipt, err := h.svc.Purchase(r.Context(), PurchaseRequest{
		ShopID:   shopID,
		Resource: domain.Resource(strings.ToUpper(req.Resource)),
		Quantity: req.Quantity,
	}, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, receipt)
}

package quota

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/analianare-star/avellaneda-backend/internal/api"
	"github.com/analianare-star/avellaneda-backend/internal/auth"
	"github.com/analianare-star/avellaneda-backend/internal/domain"
	"github.com/analianare-star/avellaneda-backend/internal/store"
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

type GrantBody struct {
	Resource string `json:"resource" validate:"required,oneof=broadcast post BROADCAST POST"`
	Amount   int    `json:"amount"`
	Note     string `json:"note" validate:"max=500"`
}

// Snapshot returns both resources at ?at= (RFC3339) or now.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
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
	if !actor.CanActOn(shopID) {
		api.HandleError(w, api.ErrForbidden)
		return
	}

	var at time.Time
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("at must be an RFC3339 timestamp"))
			return
		}
	}

	view, err := h.svc.Snapshot(r.Context(), shopID, at)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, view)
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
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
	if !actor.CanActOn(shopID) {
		api.HandleError(w, api.ErrForbidden)
		return
	}

	page, pageSize := api.Pagination(r)
	filter := store.LedgerFilter{Page: page, PageSize: pageSize}
	if raw := r.URL.Query().Get("resource"); raw != "" {
		filter.Resource = domain.Resource(strings.ToUpper(raw))
		if !filter.Resource.Valid() {
			api.HandleError(w, api.NewBadRequestError("unknown resource"))
			return
		}
	}

	result, err := h.svc.Transactions(r.Context(), shopID, filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSONPaginated(w, http.StatusOK, result.Items, result.Total, result.Page, result.PageSize)
}

func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
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

	var req GrantBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.HandleError(w, api.ErrBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		api.HandleError(w, api.NewValidationError(err.Error()))
		return
	}

	entry, err := h.svc.Grant(r.Context(), GrantRequest{
		ShopID:   shopID,
		Resource: domain.Resource(strings.ToUpper(req.Resource)),
		Amount:   req.Amount,
		Note:     req.Note,
	}, actor)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Migrate(w http.ResponseWriter, r *http.Request) {
	shopID, err := api.URLParamUUID(r, "shopID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.svc.MigrateLegacyWallet(r.Context(), shopID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	api.JSON(w, status, result)
}

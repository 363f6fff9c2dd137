package audit

import (
	"net/http"
	"time"

	"github.com/analianare-star/avellaneda-backend/internal/api"
)

// Handler serves audit log listings.
type Handler struct {
	repo Lister
}

func NewHandler(repo Lister) *Handler {
	return &Handler{repo: repo}
}

// ListByShop handles GET /admin/shops/{shopID}/audit-logs.
func (h *Handler) ListByShop(w http.ResponseWriter, r *http.Request) {
	shopID, err := api.URLParamUUID(r, "shopID")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	params := DefaultListParams()
	params.Page, params.PageSize = api.Pagination(r)
	params.EventType = r.URL.Query().Get("event_type")

	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("from must be an RFC3339 timestamp"))
			return
		}
		params.From = &t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			api.HandleError(w, api.NewBadRequestError("to must be an RFC3339 timestamp"))
			return
		}
		params.To = &t
	}

	logs, total, err := h.repo.ListByShop(r.Context(), shopID, params)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSONPaginated(w, http.StatusOK, logs, total, params.Page, params.PageSize)
}

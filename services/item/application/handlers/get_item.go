package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/secondchance/pkg/errhttp"
	"github.com/ghuser/secondchance/pkg/httpx"
	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/telemetry"
	appsvcs "github.com/ghuser/secondchance/services/item/application/services"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
)

// GetItemHandler handles GET /secondchance/items/{id} requests.
type GetItemHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

// NewGetItemHandler returns a GetItemHandler backed by the given services.
func NewGetItemHandler(svc *appsvcs.Services, log logger.Logger) *GetItemHandler {
	return &GetItemHandler{svc: svc, log: log}
}

// Execute returns one item by id.
//
//	@Summary		Get item
//	@Description	Returns the item whose id field equals the path parameter
//	@Tags			items
//	@Produce		json
//	@Param			id	path		string	true	"Item id"
//	@Success		200	{object}	Item
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/secondchance/items/{id} [get]
func (h *GetItemHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.svc.Item.GetByID(r.Context(), id)
	if err != nil {
		if !errors.Is(err, itemdomain.ErrItemNotFound) {
			h.log.ErrorContext(r.Context(), "get item failed", "item_id", id, "error", err)
			telemetry.CaptureError(r.Context(), err, "operation", "get", "item_id", id)
		}
		errhttp.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

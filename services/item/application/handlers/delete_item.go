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

// DeleteItemHandler handles DELETE /secondchance/items/{id} requests.
type DeleteItemHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

// NewDeleteItemHandler returns a DeleteItemHandler backed by the given services.
func NewDeleteItemHandler(svc *appsvcs.Services, log logger.Logger) *DeleteItemHandler {
	return &DeleteItemHandler{svc: svc, log: log}
}

// Execute deletes one item by id.
//
//	@Summary		Delete item
//	@Tags			items
//	@Produce		json
//	@Param			id	path		string	true	"Item id"
//	@Success		200	{object}	DeleteItemResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/secondchance/items/{id} [delete]
func (h *DeleteItemHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.svc.Item.Delete(r.Context(), id); err != nil {
		if !errors.Is(err, itemdomain.ErrItemNotFound) {
			h.log.ErrorContext(r.Context(), "delete item failed", "item_id", id, "error", err)
			telemetry.CaptureError(r.Context(), err, "operation", "delete", "item_id", id)
		}
		errhttp.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, DeleteItemResponse{Deleted: "success"})
}

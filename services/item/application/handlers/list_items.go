package handlers

import (
	"net/http"

	"github.com/ghuser/secondchance/pkg/errhttp"
	"github.com/ghuser/secondchance/pkg/httpx"
	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/telemetry"
	appsvcs "github.com/ghuser/secondchance/services/item/application/services"
)

// ListItemsHandler handles GET /secondchance/items requests.
type ListItemsHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

// NewListItemsHandler returns a ListItemsHandler backed by the given services.
func NewListItemsHandler(svc *appsvcs.Services, log logger.Logger) *ListItemsHandler {
	return &ListItemsHandler{svc: svc, log: log}
}

// Execute lists every item.
//
//	@Summary		List items
//	@Description	Returns every second chance item in store order
//	@Tags			items
//	@Produce		json
//	@Success		200	{array}		Item
//	@Failure		500	{object}	ErrorResponse
//	@Router			/secondchance/items [get]
func (h *ListItemsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Item.List(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "list items failed", "error", err)
		telemetry.CaptureError(r.Context(), err, "operation", "list")
		errhttp.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

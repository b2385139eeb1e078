package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ghuser/secondchance/pkg/errhttp"
	"github.com/ghuser/secondchance/pkg/httpx"
	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/telemetry"
	pkgvalidator "github.com/ghuser/secondchance/pkg/validator"
	appsvcs "github.com/ghuser/secondchance/services/item/application/services"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
	"github.com/ghuser/secondchance/services/item/domain/models"
)

// PutItemHandler handles PUT /secondchance/items/{id} requests.
type PutItemHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

// NewPutItemHandler returns a PutItemHandler backed by the given services.
func NewPutItemHandler(svc *appsvcs.Services, log logger.Logger) *PutItemHandler {
	return &PutItemHandler{svc: svc, log: log}
}

// Execute overwrites category, condition, description and age_days, and
// recomputes age_years. The status stays 200 when the conditional write did
// not match; callers read the uploaded flag.
//
//	@Summary		Update item
//	@Description	Overwrites the four mutable fields, recomputes age_years and sets updatedAt
//	@Tags			items
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			id		path		string				true	"Item id"
//	@Param			request	body		UpdateItemRequest	true	"Mutable fields"
//	@Success		200		{object}	UpdateItemResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/secondchance/items/{id} [put]
func (h *PutItemHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, ok := pkgvalidator.ValidateRequest[UpdateItemRequest](w, r)
	if !ok {
		return
	}
	ageDays, _ := req.AgeDays.Float()

	update := models.NewUpdate(req.Category, req.Condition, req.Description, ageDays, time.Now())
	updated, err := h.svc.Item.Update(r.Context(), id, update)
	if err != nil {
		if !errors.Is(err, itemdomain.ErrItemNotFound) {
			h.log.ErrorContext(r.Context(), "update item failed", "item_id", id, "error", err)
			telemetry.CaptureError(r.Context(), err, "operation", "update", "item_id", id)
		}
		errhttp.WriteError(w, err)
		return
	}

	outcome := "success"
	if !updated {
		outcome = "failed"
	}
	httpx.JSON(w, http.StatusOK, UpdateItemResponse{Uploaded: outcome})
}

package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/ghuser/secondchance/pkg/errhttp"
	"github.com/ghuser/secondchance/pkg/httpx"
	"github.com/ghuser/secondchance/pkg/logger"
	"github.com/ghuser/secondchance/pkg/storage"
	"github.com/ghuser/secondchance/pkg/telemetry"
	pkgvalidator "github.com/ghuser/secondchance/pkg/validator"
	appsvcs "github.com/ghuser/secondchance/services/item/application/services"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
)

// FileField is the multipart field carrying the item image.
const FileField = "file"

// PostItemHandler handles POST /secondchance/items requests.
type PostItemHandler struct {
	svc *appsvcs.Services
	log logger.Logger
}

// NewPostItemHandler returns a PostItemHandler backed by the given services.
func NewPostItemHandler(svc *appsvcs.Services, log logger.Logger) *PostItemHandler {
	return &PostItemHandler{svc: svc, log: log}
}

// Execute creates a new item.
//
//	@Summary		Create item
//	@Description	Stores the request fields verbatim plus an assigned id and date_added.
//	@Description	Accepts a JSON object or a multipart form with an optional image in the "file" field.
//	@Tags			items
//	@Accept			json,mpfd
//	@Produce		json
//	@Param			file	formData	file	false	"Item image"
//	@Success		201		{object}	InsertAckResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		413		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/secondchance/items [post]
func (h *PostItemHandler) Execute(w http.ResponseWriter, r *http.Request) {
	fields, upload, cleanup, err := readCreateRequest(r)
	defer cleanup()
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			errhttp.WriteError(w, err)
			return
		}
		httpx.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ack, err := h.svc.Item.Create(r.Context(), fields, upload)
	if err != nil {
		if !errors.Is(err, itemdomain.ErrInvalidItem) {
			h.log.ErrorContext(r.Context(), "create item failed", "error", err)
			telemetry.CaptureError(r.Context(), err, "operation", "create")
		}
		errhttp.WriteError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ack)
}

var errInvalidBody = errors.New("Invalid JSON")

// readCreateRequest returns the item fields and the optional upload. The
// returned cleanup releases multipart temp files and must always be called.
func readCreateRequest(r *http.Request) (map[string]any, *storage.Upload, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		fields, err := pkgvalidator.FormFields(r)
		if err != nil {
			return nil, nil, noop, err
		}
		if r.MultipartForm == nil {
			return fields, nil, noop, nil
		}
		form := r.MultipartForm
		upload, err := formUpload(form)
		if err != nil {
			return nil, nil, func() { _ = form.RemoveAll() }, err
		}
		cleanup := func() {
			if upload != nil {
				if c, ok := upload.Body.(io.Closer); ok {
					_ = c.Close()
				}
			}
			_ = form.RemoveAll()
		}
		return fields, upload, cleanup, nil
	default:
		fields, err := decodeJSONObject(r.Body)
		return fields, nil, noop, err
	}
}

func formUpload(form *multipart.Form) (*storage.Upload, error) {
	headers := form.File[FileField]
	if len(headers) == 0 {
		return nil, nil
	}
	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	return &storage.Upload{
		OriginalName: fh.Filename,
		Size:         fh.Size,
		Body:         f,
	}, nil
}

// decodeJSONObject decodes a JSON object, keeping numbers exact. An empty
// body is an empty object.
func decodeJSONObject(body io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return nil, errInvalidBody
	}
	return fields, nil
}

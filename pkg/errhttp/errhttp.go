// Package errhttp maps domain sentinel errors to HTTP status codes.
// Add a case to mapErrorToStatus for each new domain sentinel error.
package errhttp

import (
	"errors"
	"net/http"

	"github.com/ghuser/secondchance/pkg/httpx"
	itemdomain "github.com/ghuser/secondchance/services/item/domain"
)

// WriteError maps err to an HTTP status code and writes a JSON error response.
// Uses errors.Is() so wrapped sentinel errors are matched correctly.
// Defaults to 500 Internal Server Error for unrecognized errors, whose
// details are never sent to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := mapErrorToStatus(err)
	httpx.JSONError(w, status, message(err, status))
}

func mapErrorToStatus(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, itemdomain.ErrItemNotFound):
		return http.StatusNotFound // 404
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge // 413
	case errors.Is(err, itemdomain.ErrDuplicateID):
		return http.StatusConflict // 409
	case errors.Is(err, itemdomain.ErrInvalidItem):
		return http.StatusUnprocessableEntity // 422
	case errors.Is(err, itemdomain.ErrUploadFailed):
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

func message(err error, status int) string {
	switch status {
	case http.StatusNotFound:
		return itemdomain.ErrItemNotFound.Error()
	case http.StatusConflict:
		return itemdomain.ErrDuplicateID.Error()
	case http.StatusRequestEntityTooLarge:
		return "request body too large"
	case http.StatusBadGateway:
		return itemdomain.ErrUploadFailed.Error()
	default:
		return httpx.PublicMessage(err, status)
	}
}

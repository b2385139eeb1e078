package httpx

import (
	"encoding/json"
	"net/http"
)

// ValidationFailed is the error message of every 422 field-validation response.
const ValidationFailed = "Validation failed"

// ErrorBody is the envelope of every non-2xx JSON response. Fields maps a
// request field name to a human-readable message and is only set on 422.
type ErrorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSON writes v as JSON with the given status code. Encoding errors are
// dropped; the status line has already been sent.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// JSONError writes {"error": message}.
func JSONError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

// JSONValidation writes a 422 {"error":"Validation failed","fields":{...}}.
func JSONValidation(w http.ResponseWriter, fields map[string]string) {
	JSON(w, http.StatusUnprocessableEntity, ErrorBody{Error: ValidationFailed, Fields: fields})
}

// PublicMessage returns the text sent to clients for err. Server errors are
// reduced to the status text so storage and driver details stay in the logs.
func PublicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

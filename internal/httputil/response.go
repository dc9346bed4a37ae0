package httputil

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"github.com/R3E-Network/fortivo/internal/errors"
)

// MaxJSONBody bounds decoded request bodies.
const MaxJSONBody = 10 << 20

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteErrorResponse writes a structured error body.
func WriteErrorResponse(w http.ResponseWriter, _ *http.Request, status int, code, message string, details map[string]interface{}) {
	WriteJSON(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

// WriteServiceError maps err onto the wire. Errors without a ServiceError in
// their chain become a 500 carrying fallback as the code.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error, fallback errors.ErrorCode) int {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal(fallback, err)
	}
	if se.HTTPStatus >= http.StatusInternalServerError && se.Code == errors.CodeInternal && fallback != "" {
		se = errors.Internal(fallback, se.Err)
	}
	WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
	return se.HTTPStatus
}

// Unauthorized writes the standard 401 body.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteErrorResponse(w, nil, http.StatusUnauthorized, string(errors.CodeUnauthorized), message, nil)
}

// DecodeJSON decodes the request body into v. An empty body leaves v untouched.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	body := http.MaxBytesReader(w, r.Body, MaxJSONBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.TooLarge("payload_too_large", "Request body exceeds 10MB")
		}
		return errors.BadRequest("invalid_json", strings.TrimSpace(err.Error()))
	}
	return nil
}

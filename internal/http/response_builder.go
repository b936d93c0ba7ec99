package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"eventfin/internal/attachments"
	"eventfin/internal/core"
	"eventfin/internal/log"
	"eventfin/internal/middleware/trace"
	"eventfin/internal/ocr"
)

// Error codes returned in the "code" field of error bodies.
const (
	codeBadRequest        = "bad_request"
	codeNotFound          = "not_found"
	codeValidation        = "validation_failed"
	codeInvalidTransition = "invalid_transition"
	codeTooLarge          = "payload_too_large"
	codeRateLimited       = "rate_limited"
	codeUnavailable       = "unavailable"
	codeInternal          = "internal_error"
)

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// requestError is a client mistake detected before reaching a service.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error to its HTTP status and code.
func statusFor(err error) (int, errorBody) {
	var (
		reqErr *requestError
		valErr *core.ValidationError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, errorBody{Error: reqErr.msg, Code: codeBadRequest}
	case errors.Is(err, core.ErrNotFound), errors.Is(err, attachments.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: err.Error(), Code: codeNotFound}
	case errors.As(err, &valErr):
		return http.StatusUnprocessableEntity, errorBody{Error: valErr.Err.Error(), Code: codeValidation, Field: valErr.Field}
	case errors.Is(err, ocr.ErrEmptyDocument):
		return http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Code: codeValidation, Field: "file"}
	case errors.Is(err, core.ErrInvalidTransition):
		return http.StatusConflict, errorBody{Error: err.Error(), Code: codeInvalidTransition}
	case errors.Is(err, attachments.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, errorBody{Error: err.Error(), Code: codeTooLarge}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error", Code: codeInternal}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := statusFor(err)
	logger := log.FromContext(r.Context())
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err, log.FieldPath, r.URL.Path)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}
	body.RequestID = trace.GetRequestID(r.Context())
	writeJSON(w, status, body)
}

// listResponse keeps list payloads objects so fields can be added later.
type listResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items)}
}

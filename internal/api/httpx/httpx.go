package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/baharkarakas/broker-ledger/internal/apperr"
)

type APIError struct {
	Error   string      `json:"error"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

var statusByKind = map[apperr.Kind]int{
	apperr.KindNotFound:          http.StatusNotFound,
	apperr.KindInvalidState:      http.StatusConflict,
	apperr.KindInsufficientFunds: http.StatusUnprocessableEntity,
	apperr.KindUnauthorized:      http.StatusForbidden,
	apperr.KindAlreadyFinalized:  http.StatusConflict,
	apperr.KindValidation:        http.StatusBadRequest,
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(err error) int {
	if s, ok := statusByKind[apperr.KindOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Fail writes err with the status of its kind. Internal errors are logged and
// never echoed to the client.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		WriteError(w, status, string(apperr.KindInternal), "internal error", nil)
		return
	}
	WriteError(w, status, string(kind), err.Error(), nil)
}

const maxBody = 1 << 20

// Decode reads a JSON body into v, rejecting unknown fields.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("malformed JSON: %v", err)
	}
	return nil
}

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"storefront/pkg/catalog"
	"storefront/pkg/idempotency"
	"storefront/pkg/order"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var errBadRequest = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: status < http.StatusBadRequest, Message: message, Data: data})
}

// respondError maps err to a status code. Internal errors carry their raw
// message.
func respondError(w http.ResponseWriter, err error) {
	respond(w, statusFor(err), err.Error(), nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, catalog.ErrInvalidFilter),
		errors.Is(err, catalog.ErrInvalidProduct),
		errors.Is(err, catalog.ErrNameTaken),
		errors.Is(err, order.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, order.ErrProductNotFound),
		errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrInsufficientStock),
		errors.Is(err, idempotency.ErrInProgress):
		return http.StatusConflict
	case errors.Is(err, idempotency.ErrKeyReused):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

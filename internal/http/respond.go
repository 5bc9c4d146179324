package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/auth"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/service"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps the business error taxonomy onto HTTP statuses.
// Insufficient balance and an empty cart are expected outcomes and stay in
// the client-error class; only unknown failures become 5xx.
func handleServiceError(w http.ResponseWriter, err error) {
	var insufficient *service.InsufficientBalanceError
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, service.ErrBookUnavailable):
		respondError(w, http.StatusBadRequest, "book_unavailable", err.Error())
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   insufficient.Error(),
			Code:    "insufficient_balance",
			Details: "required=" + insufficient.Required.StringFixed(2) + " available=" + insufficient.Available.StringFixed(2),
		})
	case errors.Is(err, repository.ErrAlreadyInCart):
		respondError(w, http.StatusConflict, "already_in_cart", err.Error())
	case errors.Is(err, repository.ErrConcurrentModification):
		// Safe to retry the whole call; it re-reads fresh state.
		respondError(w, http.StatusConflict, "concurrent_modification", err.Error())
	case errors.Is(err, repository.ErrCartLineNotFound),
		errors.Is(err, repository.ErrBookNotFound),
		errors.Is(err, repository.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, repository.ErrDuplicateUser):
		respondError(w, http.StatusBadRequest, "already_registered", err.Error())
	case errors.Is(err, service.ErrWrongPassword), errors.Is(err, auth.ErrInvalidToken):
		respondError(w, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, service.ErrInactiveUser):
		respondError(w, http.StatusBadRequest, "inactive_user", err.Error())
	case errors.Is(err, repository.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "store unavailable, try again")
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

package http

import (
	"context"
	"net/http"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
)

type CheckoutEngine interface {
	Checkout(ctx context.Context, userID int64) ([]domain.Purchase, error)
}

type CheckoutHandler struct {
	checkout CheckoutEngine
}

func NewCheckoutHandler(checkout CheckoutEngine) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout}
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	completed, err := h.checkout.Checkout(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, completed)
}

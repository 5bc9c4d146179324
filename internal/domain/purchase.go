package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseStatusInCart    PurchaseStatus = "IN_CART"
	PurchaseStatusPending   PurchaseStatus = "PENDING"
	PurchaseStatusCompleted PurchaseStatus = "COMPLETED"
	PurchaseStatusFailed    PurchaseStatus = "FAILED"
	PurchaseStatusCancelled PurchaseStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is driven for this status.
// PENDING/FAILED/CANCELLED belong to payment flows this backend does not run.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusCompleted
}

func (s PurchaseStatus) String() string {
	return string(s)
}

// Purchase is one line of a user's cart or order history. While status is
// IN_CART the line may be deleted; once COMPLETED it is append-only history.
// CostAtPurchase is snapshotted when the line enters the cart and is never
// re-read from the book, so later catalog price changes do not affect it.
type Purchase struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	BookID         int64           `json:"book_id"`
	CostAtPurchase decimal.Decimal `json:"cost_at_purchase"`
	Status         PurchaseStatus  `json:"status"`
	PurchaseDate   time.Time       `json:"purchase_date"`
	Book           *Book           `json:"book,omitempty"`
}

// Cart is the user-facing view of all IN_CART lines plus their running total.
type Cart struct {
	Items     []Purchase      `json:"items"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

func NewCart(items []Purchase) *Cart {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.CostAtPurchase)
	}
	return &Cart{Items: items, TotalCost: total}
}

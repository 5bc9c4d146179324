package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User.Balance is mutated only through the repository's credit and the
// checkout engine's conditional debit; it is never written from a value
// computed in application code.
type User struct {
	ID             int64           `json:"id"`
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	HashedPassword string          `json:"-"`
	FullName       string          `json:"full_name,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	IsActive       bool            `json:"is_active"`
	IsSuperuser    bool            `json:"is_superuser"`
	IsBookManager  bool            `json:"is_book_manager"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

// UserStats aggregates a user's completed purchases.
type UserStats struct {
	TotalSpent       decimal.Decimal  `json:"total_spent"`
	BooksBoughtCount int64            `json:"books_bought_count"`
	GenresPreference map[string]int64 `json:"genres_preference"`
}

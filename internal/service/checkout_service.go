package service

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/cache"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
)

type CheckoutService struct {
	purchases repository.PurchaseRepository
	users     repository.UserRepository
	cache     cache.CartCache
}

func NewCheckoutService(purchases repository.PurchaseRepository, users repository.UserRepository, cartCache cache.CartCache) *CheckoutService {
	return &CheckoutService{
		purchases: purchases,
		users:     users,
		cache:     cartCache,
	}
}

// Checkout settles the user's whole cart in one all-or-nothing unit of work:
// every IN_CART line goes COMPLETED and the balance is debited by the sum
// of the snapshot costs, or nothing happens at all. A concurrent checkout,
// cart removal or debit against the same user surfaces as
// repository.ErrConcurrentModification; retrying the call is always safe
// because it re-reads fresh state.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64) ([]domain.Purchase, error) {
	lines, err := s.purchases.ListCartLines(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	// Total over the snapshots, never the live book price.
	total := decimal.Zero
	lineIDs := make([]int64, 0, len(lines))
	for _, line := range lines {
		total = total.Add(line.CostAtPurchase)
		lineIDs = append(lineIDs, line.ID)
	}

	// Freshest committed balance; the one loaded with the request may be
	// stale. The real guard is the conditional debit inside the
	// transaction, this pre-check just gives the expected business error
	// with the amounts filled in.
	balance, err := s.users.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(total) {
		return nil, &InsufficientBalanceError{Required: total, Available: balance}
	}

	if err := s.purchases.CompleteCheckout(ctx, userID, lineIDs, total); err != nil {
		return nil, err
	}

	s.invalidateCache(userID)

	return s.purchases.ListPurchasesByIDs(ctx, lineIDs)
}

func (s *CheckoutService) invalidateCache(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

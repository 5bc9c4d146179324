package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
)

func TestCheckout_Success(t *testing.T) {
	store := newMockStore()
	store.addUser(1, "50.00")
	b1 := store.addBook(10, "20.00", domain.BookAvailable)
	b2 := store.addBook(11, "15.00", domain.BookAvailable)

	ctx := context.Background()
	_, err := store.AddCartLine(ctx, 1, b1)
	require.NoError(t, err)
	_, err = store.AddCartLine(ctx, 1, b2)
	require.NoError(t, err)

	svc := NewCheckoutService(store, store, &mockCache{})

	completed, err := svc.Checkout(ctx, 1)
	require.NoError(t, err)
	require.Len(t, completed, 2)
	for _, line := range completed {
		assert.Equal(t, domain.PurchaseStatusCompleted, line.Status)
	}

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("15.00")),
		"expected balance 15.00, got %s", balance)

	// Cart is empty after settlement.
	lines, err := store.ListCartLines(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestCheckout_InsufficientBalance(t *testing.T) {
	store := newMockStore()
	store.addUser(1, "10.00")
	book := store.addBook(10, "20.00", domain.BookAvailable)

	ctx := context.Background()
	_, err := store.AddCartLine(ctx, 1, book)
	require.NoError(t, err)

	svc := NewCheckoutService(store, store, &mockCache{})

	_, err = svc.Checkout(ctx, 1)
	var insErr *InsufficientBalanceError
	require.ErrorAs(t, err, &insErr)
	assert.True(t, insErr.Required.Equal(decimal.RequireFromString("20.00")))
	assert.True(t, insErr.Available.Equal(decimal.RequireFromString("10.00")))

	// Nothing changed: the line is still IN_CART and the balance untouched.
	lines, err := store.ListCartLines(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, domain.PurchaseStatusInCart, lines[0].Status)

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("10.00")))
}

func TestCheckout_EmptyCart(t *testing.T) {
	store := newMockStore()
	store.addUser(1, "100.00")

	svc := NewCheckoutService(store, store, &mockCache{})

	_, err := svc.Checkout(context.Background(), 1)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

// Two checkouts of the same cart race past the read phase together;
// exactly one may settle and the balance must be debited exactly once.
func TestCheckout_ConcurrentOnlyOneWins(t *testing.T) {
	store := newMockStore()
	store.addUser(1, "50.00")
	book := store.addBook(10, "20.00", domain.BookAvailable)

	ctx := context.Background()
	_, err := store.AddCartLine(ctx, 1, book)
	require.NoError(t, err)

	// Hold both goroutines at ListCartLines until each has read the same
	// IN_CART snapshot, then let them race CompleteCheckout.
	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	store.listBarrier = barrier

	svc := NewCheckoutService(store, store, &mockCache{})

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, e := svc.Checkout(ctx, 1)
			errs <- e
		}()
	}

	var wins, conflicts int
	for i := 0; i < 2; i++ {
		switch e := <-errs; {
		case e == nil:
			wins++
		case errors.Is(e, repository.ErrConcurrentModification):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", e)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	store.listBarrier = nil
	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("30.00")),
		"balance debited once, expected 30.00, got %s", balance)

	// Retrying the losing checkout against fresh state finds an empty cart.
	_, err = svc.Checkout(ctx, 1)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

// A line removed before checkout must not be settled or billed.
func TestCheckout_RemovedLineExcluded(t *testing.T) {
	store := newMockStore()
	store.addUser(1, "50.00")
	b1 := store.addBook(10, "20.00", domain.BookAvailable)
	b2 := store.addBook(11, "15.00", domain.BookAvailable)

	ctx := context.Background()
	keep, err := store.AddCartLine(ctx, 1, b1)
	require.NoError(t, err)
	dropped, err := store.AddCartLine(ctx, 1, b2)
	require.NoError(t, err)

	require.NoError(t, store.DeleteCartLine(ctx, 1, dropped.ID))

	svc := NewCheckoutService(store, store, &mockCache{})

	completed, err := svc.Checkout(ctx, 1)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, keep.ID, completed[0].ID)

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("30.00")))
}

// The price captured at add time is billed even if the catalog price
// changed before checkout.
func TestCheckout_BillsSnapshotPrice(t *testing.T) {
	store := newMockStore()
	store.addUser(1, "50.00")
	book := store.addBook(10, "20.00", domain.BookAvailable)

	ctx := context.Background()
	_, err := store.AddCartLine(ctx, 1, book)
	require.NoError(t, err)

	// Price hike after the line was added.
	store.mu.Lock()
	store.books[10].Cost = decimal.RequireFromString("99.00")
	store.mu.Unlock()

	svc := NewCheckoutService(store, store, &mockCache{})

	completed, err := svc.Checkout(ctx, 1)
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.True(t, completed[0].CostAtPurchase.Equal(decimal.RequireFromString("20.00")))

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("30.00")))
}

func TestCheckout_InvalidatesCartCache(t *testing.T) {
	store := newMockStore()
	store.addUser(1, "50.00")
	book := store.addBook(10, "20.00", domain.BookAvailable)

	ctx := context.Background()
	_, err := store.AddCartLine(ctx, 1, book)
	require.NoError(t, err)

	cartCache := &mockCache{cart: domain.NewCart(nil)}
	svc := NewCheckoutService(store, store, cartCache)

	_, err = svc.Checkout(ctx, 1)
	require.NoError(t, err)

	cartCache.mu.Lock()
	defer cartCache.mu.Unlock()
	assert.Equal(t, 1, cartCache.deletes)
	assert.Nil(t, cartCache.cart)
}

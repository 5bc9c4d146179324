package service

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/cache"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
)

type CartService struct {
	purchases repository.PurchaseRepository
	books     repository.BookRepository
	cache     cache.CartCache
	sfg       singleflight.Group // Prevents cache stampede
}

func NewCartService(purchases repository.PurchaseRepository, books repository.BookRepository, cartCache cache.CartCache) *CartService {
	return &CartService{
		purchases: purchases,
		books:     books,
		cache:     cartCache,
	}
}

// AddToCart snapshots the book's current cost into a new IN_CART line.
// Availability is checked here, at add time only; checkout later relies
// solely on the snapshot.
func (s *CartService) AddToCart(ctx context.Context, userID, bookID int64) (*domain.Purchase, error) {
	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if book.Availability != domain.BookAvailable {
		return nil, ErrBookUnavailable
	}

	line, err := s.purchases.AddCartLine(ctx, userID, book)
	if err != nil {
		return nil, err
	}

	s.invalidateCache(userID)
	return line, nil
}

func (s *CartService) GetCart(ctx context.Context, userID int64) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(cartKey(userID), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil // cart is in cache
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		lines, errList := s.purchases.ListCartLines(ctx, userID)
		if errList != nil {
			return nil, errList
		}
		cart = domain.NewCart(lines)

		go func() {
			if errSet := s.cache.Set(context.Background(), userID, cart); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// RemoveFromCart deletes an IN_CART line the user owns. Nothing was ever
// debited for a cart-only line, so deletion has no balance side effect.
func (s *CartService) RemoveFromCart(ctx context.Context, userID, lineID int64) error {
	if err := s.purchases.DeleteCartLine(ctx, userID, lineID); err != nil {
		return err
	}

	s.invalidateCache(userID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context, userID int64) (int64, error) {
	n, err := s.purchases.ClearCart(ctx, userID)
	if err != nil {
		return 0, err
	}

	s.invalidateCache(userID)
	return n, nil
}

func (s *CartService) invalidateCache(userID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}

func cartKey(userID int64) string {
	return "cart:" + strconv.FormatInt(userID, 10)
}

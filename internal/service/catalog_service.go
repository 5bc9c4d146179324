package service

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
)

// CatalogService is the read-mostly browse surface plus book management for
// book-manager users. Checkout never calls it; it owns availability and
// price only up to the moment a line enters a cart.
type CatalogService struct {
	books repository.BookRepository
	sfg   singleflight.Group
}

func NewCatalogService(books repository.BookRepository) *CatalogService {
	return &CatalogService{books: books}
}

func (s *CatalogService) ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, int64, error) {
	return s.books.ListBooks(ctx, filter)
}

func (s *CatalogService) GetBookDetail(ctx context.Context, bookID int64) (*domain.BookDetail, error) {
	// Detail aggregates comments and ratings; collapse concurrent loads.
	v, err, _ := s.sfg.Do("book:"+strconv.FormatInt(bookID, 10), func() (interface{}, error) {
		return s.books.GetBookDetail(ctx, bookID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.BookDetail), nil
}

func (s *CatalogService) CreateBook(ctx context.Context, book *domain.Book) error {
	return s.books.CreateBook(ctx, book)
}

func (s *CatalogService) UpdateBook(ctx context.Context, book *domain.Book) error {
	return s.books.UpdateBook(ctx, book)
}

func (s *CatalogService) DeleteBook(ctx context.Context, bookID int64) error {
	return s.books.DeleteBook(ctx, bookID)
}

func (s *CatalogService) AddComment(ctx context.Context, userID, bookID int64, text string) (*domain.Comment, error) {
	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	comment := &domain.Comment{Text: text, UserID: userID, BookID: bookID}
	if err := s.books.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *CatalogService) ListComments(ctx context.Context, bookID int64, skip, limit int) ([]domain.Comment, error) {
	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	return s.books.ListComments(ctx, bookID, skip, limit)
}

func (s *CatalogService) RateBook(ctx context.Context, userID, bookID int64, score int32) (*domain.Rating, error) {
	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		return nil, err
	}
	rating := &domain.Rating{Score: score, UserID: userID, BookID: bookID}
	if err := s.books.UpsertRating(ctx, rating); err != nil {
		return nil, err
	}
	return rating, nil
}

func (s *CatalogService) MarkFavorite(ctx context.Context, userID, bookID int64) error {
	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		return err
	}
	return s.books.AddFavorite(ctx, userID, bookID)
}

func (s *CatalogService) UnmarkFavorite(ctx context.Context, userID, bookID int64) error {
	if _, err := s.books.GetBook(ctx, bookID); err != nil {
		return err
	}
	return s.books.RemoveFavorite(ctx, userID, bookID)
}

func (s *CatalogService) ListFavorites(ctx context.Context, userID int64) ([]domain.Book, error) {
	return s.books.ListFavorites(ctx, userID)
}

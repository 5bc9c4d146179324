package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/cache"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
)

// mockStore backs the service tests with the same conditional-update
// semantics the postgres repository has: CompleteCheckout verifies the
// expected row counts under one lock and mutates nothing on a conflict.
type mockStore struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	books  map[int64]*domain.Book
	lines  map[int64]*domain.Purchase
	nextID int64

	// listBarrier, when set, holds every ListCartLines call until all
	// expected callers have read the same cart. Lets a test drive two
	// checkouts into the conflict window deterministically.
	listBarrier *sync.WaitGroup
}

func newMockStore() *mockStore {
	return &mockStore{
		users: map[int64]*domain.User{},
		books: map[int64]*domain.Book{},
		lines: map[int64]*domain.Purchase{},
	}
}

func (m *mockStore) addUser(id int64, balance string) *domain.User {
	u := &domain.User{ID: id, Username: "user", IsActive: true, Balance: decimal.RequireFromString(balance)}
	m.users[id] = u
	return u
}

func (m *mockStore) addBook(id int64, cost string, availability domain.BookAvailability) *domain.Book {
	b := &domain.Book{ID: id, Title: "book", Author: "author", Cost: decimal.RequireFromString(cost), Availability: availability}
	m.books[id] = b
	return b
}

// --- repository.PurchaseRepository ---

func (m *mockStore) AddCartLine(_ context.Context, userID int64, book *domain.Book) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, line := range m.lines {
		if line.UserID == userID && line.BookID == book.ID && line.Status == domain.PurchaseStatusInCart {
			return nil, repository.ErrAlreadyInCart
		}
	}

	m.nextID++
	line := &domain.Purchase{
		ID:             m.nextID,
		UserID:         userID,
		BookID:         book.ID,
		CostAtPurchase: book.Cost,
		Status:         domain.PurchaseStatusInCart,
		Book:           book,
	}
	m.lines[line.ID] = line
	copied := *line
	return &copied, nil
}

func (m *mockStore) ListCartLines(_ context.Context, userID int64) ([]domain.Purchase, error) {
	m.mu.Lock()
	var out []domain.Purchase
	for id := int64(1); id <= m.nextID; id++ {
		line, ok := m.lines[id]
		if ok && line.UserID == userID && line.Status == domain.PurchaseStatusInCart {
			out = append(out, *line)
		}
	}
	m.mu.Unlock()

	if m.listBarrier != nil {
		m.listBarrier.Done()
		m.listBarrier.Wait()
	}
	return out, nil
}

func (m *mockStore) GetCartLine(_ context.Context, userID, lineID int64) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, ok := m.lines[lineID]
	if !ok || line.UserID != userID || line.Status != domain.PurchaseStatusInCart {
		return nil, repository.ErrCartLineNotFound
	}
	copied := *line
	return &copied, nil
}

func (m *mockStore) DeleteCartLine(_ context.Context, userID, lineID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, ok := m.lines[lineID]
	if !ok || line.UserID != userID || line.Status != domain.PurchaseStatusInCart {
		return repository.ErrCartLineNotFound
	}
	delete(m.lines, lineID)
	return nil
}

func (m *mockStore) ClearCart(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, line := range m.lines {
		if line.UserID == userID && line.Status == domain.PurchaseStatusInCart {
			delete(m.lines, id)
			removed++
		}
	}
	return removed, nil
}

func (m *mockStore) CompleteCheckout(_ context.Context, userID int64, lineIDs []int64, total decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Verify every line is still IN_CART before touching anything.
	for _, id := range lineIDs {
		line, ok := m.lines[id]
		if !ok || line.UserID != userID || line.Status != domain.PurchaseStatusInCart {
			return repository.ErrConcurrentModification
		}
	}

	user, ok := m.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if user.Balance.LessThan(total) {
		return repository.ErrConcurrentModification
	}

	for _, id := range lineIDs {
		m.lines[id].Status = domain.PurchaseStatusCompleted
	}
	user.Balance = user.Balance.Sub(total)
	return nil
}

func (m *mockStore) ListPurchasesByIDs(_ context.Context, ids []int64) ([]domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Purchase
	for _, id := range ids {
		if line, ok := m.lines[id]; ok {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (m *mockStore) ListCompletedPurchases(_ context.Context, userID int64, _, _ int) ([]domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Purchase
	for id := int64(1); id <= m.nextID; id++ {
		line, ok := m.lines[id]
		if ok && line.UserID == userID && line.Status == domain.PurchaseStatusCompleted {
			out = append(out, *line)
		}
	}
	return out, nil
}

func (m *mockStore) GetUserStats(_ context.Context, userID int64) (*domain.UserStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := &domain.UserStats{TotalSpent: decimal.Zero, GenresPreference: map[string]int64{}}
	for _, line := range m.lines {
		if line.UserID == userID && line.Status == domain.PurchaseStatusCompleted {
			stats.TotalSpent = stats.TotalSpent.Add(line.CostAtPurchase)
			stats.BooksBoughtCount++
		}
	}
	return stats, nil
}

// --- repository.UserRepository ---

func (m *mockStore) CreateUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicateUser
		}
	}
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return nil
}

func (m *mockStore) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *mockStore) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *mockStore) UpdateUser(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return repository.ErrUserNotFound
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockStore) GetBalance(_ context.Context, userID int64) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return decimal.Zero, repository.ErrUserNotFound
	}
	return user.Balance, nil
}

func (m *mockStore) CreditBalance(_ context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return decimal.Zero, repository.ErrUserNotFound
	}
	user.Balance = user.Balance.Add(amount)
	return user.Balance, nil
}

// --- minimal repository.BookRepository (only what CartService touches) ---

type mockBooks struct {
	store *mockStore
}

func (m mockBooks) GetBook(_ context.Context, id int64) (*domain.Book, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	book, ok := m.store.books[id]
	if !ok {
		return nil, repository.ErrBookNotFound
	}
	copied := *book
	return &copied, nil
}

func (m mockBooks) CreateBook(context.Context, *domain.Book) error { return nil }
func (m mockBooks) GetBookDetail(context.Context, int64) (*domain.BookDetail, error) {
	return nil, repository.ErrBookNotFound
}
func (m mockBooks) ListBooks(context.Context, domain.BookFilter) ([]domain.Book, int64, error) {
	return nil, 0, nil
}
func (m mockBooks) UpdateBook(context.Context, *domain.Book) error { return nil }
func (m mockBooks) DeleteBook(context.Context, int64) error        { return nil }
func (m mockBooks) AddComment(context.Context, *domain.Comment) error {
	return nil
}
func (m mockBooks) ListComments(context.Context, int64, int, int) ([]domain.Comment, error) {
	return nil, nil
}
func (m mockBooks) UpsertRating(context.Context, *domain.Rating) error     { return nil }
func (m mockBooks) AddFavorite(context.Context, int64, int64) error        { return nil }
func (m mockBooks) RemoveFavorite(context.Context, int64, int64) error     { return nil }
func (m mockBooks) ListFavorites(context.Context, int64) ([]domain.Book, error) {
	return nil, nil
}

// --- cache.CartCache ---

type mockCache struct {
	mu      sync.Mutex
	cart    *domain.Cart
	getErr  error
	sets    int
	deletes int
}

func (m *mockCache) Get(context.Context, int64) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *mockCache) Set(_ context.Context, _ int64, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = cart
	m.sets++
	return nil
}

func (m *mockCache) Delete(context.Context, int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = nil
	m.deletes++
	return nil
}

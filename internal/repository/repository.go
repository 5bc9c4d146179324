package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrBookNotFound     = errors.New("book not found")
	ErrCartLineNotFound = errors.New("cart line not found")
	ErrAlreadyInCart    = errors.New("book already in cart")
	ErrDuplicateUser    = errors.New("username or email already registered")

	// ErrConcurrentModification means a conditional update inside the
	// checkout unit of work affected fewer rows than expected: a concurrent
	// writer got there first. The whole transaction was rolled back and the
	// caller can safely retry the checkout against fresh state.
	ErrConcurrentModification = errors.New("concurrent modification, retry checkout")

	ErrStoreUnavailable = errors.New("store unavailable")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type Repository struct {
	db *sql.DB
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	CreditBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)
}

type BookRepository interface {
	CreateBook(ctx context.Context, book *domain.Book) error
	GetBook(ctx context.Context, id int64) (*domain.Book, error)
	GetBookDetail(ctx context.Context, id int64) (*domain.BookDetail, error)
	ListBooks(ctx context.Context, filter domain.BookFilter) ([]domain.Book, int64, error)
	UpdateBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, id int64) error
	AddComment(ctx context.Context, comment *domain.Comment) error
	ListComments(ctx context.Context, bookID int64, skip, limit int) ([]domain.Comment, error)
	UpsertRating(ctx context.Context, rating *domain.Rating) error
	AddFavorite(ctx context.Context, userID, bookID int64) error
	RemoveFavorite(ctx context.Context, userID, bookID int64) error
	ListFavorites(ctx context.Context, userID int64) ([]domain.Book, error)
}

type PurchaseRepository interface {
	AddCartLine(ctx context.Context, userID int64, book *domain.Book) (*domain.Purchase, error)
	ListCartLines(ctx context.Context, userID int64) ([]domain.Purchase, error)
	GetCartLine(ctx context.Context, userID, lineID int64) (*domain.Purchase, error)
	DeleteCartLine(ctx context.Context, userID, lineID int64) error
	ClearCart(ctx context.Context, userID int64) (int64, error)
	CompleteCheckout(ctx context.Context, userID int64, lineIDs []int64, total decimal.Decimal) error
	ListPurchasesByIDs(ctx context.Context, ids []int64) ([]domain.Purchase, error)
	ListCompletedPurchases(ctx context.Context, userID int64, skip, limit int) ([]domain.Purchase, error)
	GetUserStats(ctx context.Context, userID int64) (*domain.UserStats, error)
}

type OutboxRepository interface {
	GetUnpublishedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventPublished(ctx context.Context, id string) error
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

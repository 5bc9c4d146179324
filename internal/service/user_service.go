package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Cyb3rKotl3Ta/bookshop/internal/auth"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/domain"
	"github.com/Cyb3rKotl3Ta/bookshop/internal/repository"
)

type UserService struct {
	users     repository.UserRepository
	purchases repository.PurchaseRepository
}

func NewUserService(users repository.UserRepository, purchases repository.PurchaseRepository) *UserService {
	return &UserService{users: users, purchases: purchases}
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hash,
		FullName:       in.FullName,
		Balance:        decimal.Zero,
		IsActive:       true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate never reveals whether the username or the password was wrong.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrWrongPassword
	}
	if err != nil {
		return nil, err
	}

	if !auth.CheckPassword(password, user.HashedPassword) {
		return nil, ErrWrongPassword
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.users.GetUserByUsername(ctx, username)
}

type UpdateProfileInput struct {
	Username string
	Email    string
	FullName string
	Password string
}

func (s *UserService) UpdateProfile(ctx context.Context, user *domain.User, in UpdateProfileInput) (*domain.User, error) {
	if in.Username != "" {
		user.Username = in.Username
	}
	if in.Email != "" {
		user.Email = in.Email
	}
	if in.FullName != "" {
		user.FullName = in.FullName
	}
	if in.Password != "" {
		hash, err := auth.HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		user.HashedPassword = hash
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// TopUpBalance credits the stored balance. Debits happen only inside the
// checkout unit of work.
func (s *UserService) TopUpBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.users.CreditBalance(ctx, userID, amount)
}

func (s *UserService) PurchaseHistory(ctx context.Context, userID int64, skip, limit int) ([]domain.Purchase, error) {
	return s.purchases.ListCompletedPurchases(ctx, userID, skip, limit)
}

func (s *UserService) Stats(ctx context.Context, userID int64) (*domain.UserStats, error) {
	return s.purchases.GetUserStats(ctx, userID)
}

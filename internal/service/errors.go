package service

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart       = errors.New("cart is empty, nothing to checkout")
	ErrBookUnavailable = errors.New("book is not available for purchase")
	ErrWrongPassword   = errors.New("incorrect username or password")
	ErrInactiveUser    = errors.New("inactive user")
)

// InsufficientBalanceError reports how much the checkout needed against what
// the user actually had. An expected business outcome, not a server fault.
type InsufficientBalanceError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: required %s, available %s", e.Required, e.Available)
}

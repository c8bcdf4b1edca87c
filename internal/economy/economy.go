// Package economy is the market's view of the currency service: balance
// checks, withdrawals and deposits.
package economy

import (
	"context"
	"errors"

	"github.com/dustin/go-humanize"
)

// Errors returned by currency services.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
)

// Currency is what settlement needs from the currency service.
type Currency interface {
	HasBalance(ctx context.Context, playerID string, amount int64) (bool, error)
	// Withdraw fails with ErrInsufficientFunds and leaves the balance alone
	// when the player cannot cover amount.
	Withdraw(ctx context.Context, playerID string, amount int64) error
	Deposit(ctx context.Context, playerID string, amount int64) error
	Format(amount int64) string
}

// Bank is a Currency that can also report balances.
type Bank interface {
	Currency
	Balance(ctx context.Context, playerID string) (int64, error)
}

// Formatter renders amounts as symbol plus grouped digits, e.g. "$12,500".
type Formatter struct {
	Symbol string
}

// Format renders amount.
func (f Formatter) Format(amount int64) string {
	if amount < 0 {
		return "-" + f.Symbol + humanize.Comma(-amount)
	}
	return f.Symbol + humanize.Comma(amount)
}

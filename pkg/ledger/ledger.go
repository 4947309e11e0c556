// Package ledger holds user balances and exposes atomic debit and
// credit operations.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds is returned when a debit would drive the
// balance negative. It is an expected, recoverable condition: batch
// callers treat it as a per-item skip signal, never a programming
// error.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrAccountNotFound is returned when the account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// Ledger mutates account balances. AuthorizeAndDebit must be atomic
// per account: the balance check and the write happen as one step, so
// two concurrent debits can never both pass a stale check.
type Ledger interface {
	// AuthorizeAndDebit subtracts amount from the account's balance and
	// adds it to the spend total, failing with ErrInsufficientFunds if
	// the balance does not cover the amount. Returns the new balance.
	AuthorizeAndDebit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)

	// Credit unconditionally adds amount to the account's balance.
	// Used for top-ups and for refunding a debit whose fulfillment
	// ultimately failed.
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)

	// Balance returns the current balance.
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

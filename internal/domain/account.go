// Package domain provides defenitions of all entities.
package domain

import (
	"time"

	"github.com/go-petr/fund-transfer/pkg/errorspkg"
	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errorspkg.New(errorspkg.KindNotFound, "ACCOUNT_NOT_FOUND", "account not found")
	// ErrInsufficientBalance indicates that the account does not have sufficient balance.
	ErrInsufficientBalance = errorspkg.New(errorspkg.KindInsufficientBalance, "INSUFFICIENT_BALANCE", "insufficient balance")
	// ErrConcurrencyConflict indicates that the account was modified by someone else in the meantime.
	ErrConcurrencyConflict = errorspkg.New(errorspkg.KindConflict, "CONCURRENCY_FAILURE", "transfer could not be completed due to concurrent updates")
	// ErrInvalidBalance indicates negative opening balance.
	ErrInvalidBalance = errorspkg.New(errorspkg.KindInvalid, "INVALID_BALANCE", "balance must not be negative")
)

// Account holds the balance of a single ledger account.
//
// Version grows by one with every balance mutation.
type Account struct {
	ID        int64           `json:"id"`
	Owner     string          `json:"owner"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BalanceUpdateParams is the input of a conditional balance mutation.
type BalanceUpdateParams struct {
	ID      int64
	Amount  decimal.Decimal
	Version int64 // expected current version
}

// CreateAccountParams is the input data to open an account.
type CreateAccountParams struct {
	Owner   string          `json:"owner" binding:"required"`
	Balance decimal.Decimal `json:"balance" binding:"amount"`
}

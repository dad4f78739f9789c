// Package helpers provides seeding functions used in integration tests.
package helpers

import (
	"context"
	"testing"

	"github.com/go-petr/fund-transfer/internal/accountrepo"
	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/go-petr/fund-transfer/internal/transferrepo"
	"github.com/go-petr/fund-transfer/pkg/dbpkg"
	"github.com/go-petr/fund-transfer/pkg/randompkg"
	"github.com/shopspring/decimal"
)

// SeedAccount creates an account with the given balance.
func SeedAccount(t *testing.T, db dbpkg.SQLInterface, balance decimal.Decimal) domain.Account {
	t.Helper()

	accountRepo := accountrepo.NewRepoPGS(db)
	owner := randompkg.Owner()

	account, err := accountRepo.Create(context.Background(), owner, balance)
	if err != nil {
		t.Fatalf("accountRepo.Create(context.Background(), %v, %v) returned error: %v", owner, balance, err)
	}

	return account
}

// SeedAccountWith1000Balance creates an account with 1000 balance.
func SeedAccountWith1000Balance(t *testing.T, db dbpkg.SQLInterface) domain.Account {
	t.Helper()

	return SeedAccount(t, db, decimal.NewFromInt(1000))
}

// SeedTransfer creates a SUCCESS transfer record with a random reference code.
//
// It does not touch the balances.
func SeedTransfer(t *testing.T, db dbpkg.SQLInterface, sourceID, destinationID int64, amount decimal.Decimal) domain.Transfer {
	t.Helper()

	transferRepo := transferrepo.NewRepoPGS(db)

	arg := domain.CreateTransferParams{
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               amount,
		Status:               domain.StatusSuccess,
		ReferenceCode:        randompkg.ReferenceCode(),
	}

	transfer, err := transferRepo.Create(context.Background(), arg)
	if err != nil {
		t.Fatalf("transferRepo.Create(context.Background(), %+v) returned error: %v", arg, err)
	}

	return transfer
}

// SeedTransfers creates count transfer records with random amounts.
func SeedTransfers(t *testing.T, db dbpkg.SQLInterface, sourceID, destinationID int64, count int) []domain.Transfer {
	t.Helper()

	transfers := make([]domain.Transfer, count)

	for i := range transfers {
		transfers[i] = SeedTransfer(t, db, sourceID, destinationID, randompkg.MoneyAmountBetween(1, 10))
	}

	return transfers
}

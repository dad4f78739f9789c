//go:build integration

package accountrepo_test

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/go-petr/fund-transfer/internal/accountrepo"
	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/go-petr/fund-transfer/internal/integrationtest"
	"github.com/go-petr/fund-transfer/internal/integrationtest/helpers"
	"github.com/go-petr/fund-transfer/pkg/configpkg"
	"github.com/go-petr/fund-transfer/pkg/dbpkg"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
)

var (
	dbDriver string
	dbSource string
)

func TestMain(m *testing.M) {
	config, err := configpkg.Load("../../configs")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	dbDriver = config.DBDriver
	dbSource = config.DBSource

	os.Exit(m.Run())
}

func TestCreate(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	accountRepo := accountrepo.NewRepoPGS(tx)

	want := domain.Account{
		Owner:     "alice",
		Balance:   decimal.RequireFromString("100.50"),
		Version:   0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	got, err := accountRepo.Create(context.Background(), want.Owner, want.Balance)
	if err != nil {
		t.Fatalf("accountRepo.Create(context.Background(), %v, %v) returned error: %v", want.Owner, want.Balance, err)
	}

	ignoreID := cmpopts.IgnoreFields(domain.Account{}, "ID")
	compareTime := cmpopts.EquateApproxTime(time.Minute)
	if diff := cmp.Diff(want, got, ignoreID, compareTime); diff != "" {
		t.Errorf("accountRepo.Create returned unexpected difference (-want +got):\n%s", diff)
	}

	if got.ID == 0 {
		t.Error("got.ID = 0, want non-zero")
	}
}

func TestCreateNegativeBalance(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	accountRepo := accountrepo.NewRepoPGS(tx)

	_, err := accountRepo.Create(context.Background(), "bob", decimal.NewFromInt(-1))
	if err != domain.ErrInvalidBalance {
		t.Fatalf("accountRepo.Create(...) error = %v, want %v", err, domain.ErrInvalidBalance)
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	want := helpers.SeedAccountWith1000Balance(t, tx)
	accountRepo := accountrepo.NewRepoPGS(tx)

	got, err := accountRepo.Get(context.Background(), want.ID)
	if err != nil {
		t.Fatalf("accountRepo.Get(context.Background(), %v) returned error: %v", want.ID, err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("accountRepo.Get(context.Background(), %v) returned unexpected difference (-want +got):\n%s", want.ID, diff)
	}

	if _, err := accountRepo.Get(context.Background(), 0); err != domain.ErrAccountNotFound {
		t.Errorf("accountRepo.Get(context.Background(), 0) error = %v, want %v", err, domain.ErrAccountNotFound)
	}
}

func TestDebit(t *testing.T) {
	testCases := []struct {
		name        string
		amount      decimal.Decimal
		version     func(a domain.Account) int64
		id          func(a domain.Account) int64
		wantApplied int64
		wantBalance decimal.Decimal
		wantErr     error
	}{
		{
			name:        "OK",
			amount:      decimal.NewFromInt(400),
			version:     func(a domain.Account) int64 { return a.Version },
			id:          func(a domain.Account) int64 { return a.ID },
			wantApplied: 1,
			wantBalance: decimal.NewFromInt(600),
		},
		{
			name:        "WholeBalance",
			amount:      decimal.NewFromInt(1000),
			version:     func(a domain.Account) int64 { return a.Version },
			id:          func(a domain.Account) int64 { return a.ID },
			wantApplied: 1,
			wantBalance: decimal.Zero,
		},
		{
			name:        "InsufficientFunds",
			amount:      decimal.RequireFromString("1000.0001"),
			version:     func(a domain.Account) int64 { return a.Version },
			id:          func(a domain.Account) int64 { return a.ID },
			wantApplied: 0,
			wantBalance: decimal.NewFromInt(1000),
		},
		{
			name:    "StaleVersion",
			amount:  decimal.NewFromInt(1),
			version: func(a domain.Account) int64 { return a.Version + 1 },
			id:      func(a domain.Account) int64 { return a.ID },
			wantErr: domain.ErrConcurrencyConflict,
		},
		{
			name:    "AccountNotFound",
			amount:  decimal.NewFromInt(1),
			version: func(a domain.Account) int64 { return a.Version },
			id:      func(a domain.Account) int64 { return 0 },
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tx := integrationtest.SetupTX(t, dbDriver, dbSource)
			account := helpers.SeedAccountWith1000Balance(t, tx)
			accountRepo := accountrepo.NewRepoPGS(tx)

			arg := domain.BalanceUpdateParams{
				ID:      tc.id(account),
				Amount:  tc.amount,
				Version: tc.version(account),
			}

			got, applied, err := accountRepo.Debit(context.Background(), arg)
			if err != tc.wantErr {
				t.Fatalf("accountRepo.Debit(context.Background(), %+v) error = %v, want %v", arg, err, tc.wantErr)
			}

			if tc.wantErr != nil {
				return
			}

			if applied != tc.wantApplied {
				t.Errorf("applied = %d, want %d", applied, tc.wantApplied)
			}

			if !got.Balance.Equal(tc.wantBalance) {
				t.Errorf("got.Balance = %v, want %v", got.Balance, tc.wantBalance)
			}

			wantVersion := account.Version + tc.wantApplied
			if got.Version != wantVersion {
				t.Errorf("got.Version = %d, want %d", got.Version, wantVersion)
			}
		})
	}
}

func TestCredit(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)
	account := helpers.SeedAccount(t, tx, decimal.Zero)
	accountRepo := accountrepo.NewRepoPGS(tx)

	arg := domain.BalanceUpdateParams{ID: account.ID, Amount: decimal.RequireFromString("60.00"), Version: account.Version}

	got, err := accountRepo.Credit(context.Background(), arg)
	if err != nil {
		t.Fatalf("accountRepo.Credit(context.Background(), %+v) returned error: %v", arg, err)
	}

	if !got.Balance.Equal(decimal.NewFromInt(60)) || got.Version != account.Version+1 {
		t.Errorf("got = %+v, want balance 60 and version %d", got, account.Version+1)
	}

	// Same expected version again must be rejected.
	if _, err := accountRepo.Credit(context.Background(), arg); err != domain.ErrConcurrencyConflict {
		t.Errorf("second accountRepo.Credit(...) error = %v, want %v", err, domain.ErrConcurrencyConflict)
	}
}

func TestDebitWithinTxManager(t *testing.T) {
	db := integrationtest.SetupDB(t, dbDriver, dbSource)
	account := helpers.SeedAccountWith1000Balance(t, db)
	accountRepo := accountrepo.NewRepoPGS(db)
	txManager := dbpkg.NewTxManager(db)

	arg := domain.BalanceUpdateParams{ID: account.ID, Amount: decimal.NewFromInt(1), Version: account.Version}

	err := txManager.ExecTx(context.Background(), func(ctx context.Context) error {
		if _, _, err := accountRepo.Debit(ctx, arg); err != nil {
			return err
		}

		return domain.ErrInsufficientBalance
	})
	if err != domain.ErrInsufficientBalance {
		t.Fatalf("txManager.ExecTx(...) error = %v, want %v", err, domain.ErrInsufficientBalance)
	}

	got, err := accountRepo.Get(context.Background(), account.ID)
	if err != nil {
		t.Fatalf("accountRepo.Get(context.Background(), %v) returned error: %v", account.ID, err)
	}

	if diff := cmp.Diff(account, got); diff != "" {
		t.Errorf("rolled back account changed (-want +got):\n%s", diff)
	}
}

func TestList(t *testing.T) {
	t.Parallel()

	tx := integrationtest.SetupTX(t, dbDriver, dbSource)

	for i := 0; i < 3; i++ {
		helpers.SeedAccountWith1000Balance(t, tx)
	}

	accountRepo := accountrepo.NewRepoPGS(tx)

	got, err := accountRepo.List(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("accountRepo.List(context.Background(), 2, 0) returned error: %v", err)
	}

	if len(got) != 2 {
		t.Errorf("len(got) = %d, want 2", len(got))
	}
}

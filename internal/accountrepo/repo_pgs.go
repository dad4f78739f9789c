// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/go-petr/fund-transfer/pkg/dbpkg"
	"github.com/go-petr/fund-transfer/pkg/errorspkg"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RepoPGS facilitates account repository layer logic.
//
// Every method runs inside the transaction carried by ctx, if there is one.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const accountColumns = `id, owner, balance, version, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Owner,
		&a.Balance,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

// mapError converts a driver error into a domain error.
func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAccountNotFound
	}

	if dbpkg.IsRetryable(err) {
		return domain.ErrConcurrencyConflict
	}

	if dbpkg.ViolatedConstraint(err) == "accounts_balance_check" {
		return domain.ErrInsufficientBalance
	}

	return errorspkg.ErrInternal
}

const createQuery = `
INSERT INTO
    accounts (owner, balance)
VALUES
    ($1, $2)
RETURNING ` + accountColumns

// Create creates the account and then returns it.
func (r *RepoPGS) Create(ctx context.Context, owner string, balance decimal.Decimal) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(dbpkg.Conn(ctx, r.db).QueryRowContext(ctx, createQuery, owner, balance))
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx, %q, %v)", owner, balance)

		if dbpkg.ViolatedConstraint(err) == "accounts_balance_check" {
			return domain.Account{}, domain.ErrInvalidBalance
		}

		return domain.Account{}, errorspkg.ErrInternal
	}

	return a, nil
}

const getQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Account, error) {
	a, err := scanAccount(dbpkg.Conn(ctx, r.db).QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			zerolog.Ctx(ctx).Error().Err(err).Int64("account_id", id).Send()
		}

		return domain.Account{}, mapError(err)
	}

	return a, nil
}

const debitQuery = `
UPDATE accounts
SET balance = balance - $1, version = version + 1, updated_at = now()
WHERE id = $2 AND version = $3 AND balance >= $1
RETURNING ` + accountColumns

// Debit withdraws the amount from the account in a single conditional write.
//
// The write applies only if the account still has the expected version and enough funds.
// It returns the updated account and 1 when applied, or the current account and 0 when
// the funds condition failed.
func (r *RepoPGS) Debit(ctx context.Context, arg domain.BalanceUpdateParams) (domain.Account, int64, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(dbpkg.Conn(ctx, r.db).QueryRowContext(ctx, debitQuery, arg.Amount, arg.ID, arg.Version))
	if err == nil {
		return a, 1, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		l.Error().Err(err).Msgf("Debit(ctx, %+v)", arg)
		return domain.Account{}, 0, mapError(err)
	}

	current, err := r.disambiguate(ctx, arg)
	if err != nil {
		return domain.Account{}, 0, err
	}

	return current, 0, nil
}

const creditQuery = `
UPDATE accounts
SET balance = balance + $1, version = version + 1, updated_at = now()
WHERE id = $2 AND version = $3
RETURNING ` + accountColumns

// Credit deposits the amount to the account if it still has the expected version.
func (r *RepoPGS) Credit(ctx context.Context, arg domain.BalanceUpdateParams) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(dbpkg.Conn(ctx, r.db).QueryRowContext(ctx, creditQuery, arg.Amount, arg.ID, arg.Version))
	if err == nil {
		return a, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		l.Error().Err(err).Msgf("Credit(ctx, %+v)", arg)
		return domain.Account{}, mapError(err)
	}

	if _, err := r.disambiguate(ctx, arg); err != nil {
		return domain.Account{}, err
	}

	// The row exists with the expected version yet nothing was updated.
	l.Error().Msgf("Credit(ctx, %+v) updated no rows", arg)

	return domain.Account{}, errorspkg.ErrInternal
}

// disambiguate explains why a conditional update touched no row.
func (r *RepoPGS) disambiguate(ctx context.Context, arg domain.BalanceUpdateParams) (domain.Account, error) {
	current, err := r.Get(ctx, arg.ID)
	if err != nil {
		return domain.Account{}, err
	}

	if current.Version != arg.Version {
		zerolog.Ctx(ctx).Warn().
			Int64("account_id", arg.ID).
			Int64("expected_version", arg.Version).
			Int64("actual_version", current.Version).
			Msg("version mismatch")

		return domain.Account{}, domain.ErrConcurrencyConflict
	}

	return current, nil
}

const listQuery = `
SELECT ` + accountColumns + `
FROM accounts
ORDER BY id
LIMIT $1 OFFSET $2
`

// List returns the specified number of accounts.
func (r *RepoPGS) List(ctx context.Context, limit, offset int32) ([]domain.Account, error) {
	l := zerolog.Ctx(ctx)

	rows, err := dbpkg.Conn(ctx, r.db).QueryContext(ctx, listQuery, limit, offset)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Account{}

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, a)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}

	return items, nil
}

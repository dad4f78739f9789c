// Package transferrepo manages repository layer of transfers.
package transferrepo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-petr/fund-transfer/internal/domain"
	"github.com/go-petr/fund-transfer/pkg/dbpkg"
	"github.com/go-petr/fund-transfer/pkg/errorspkg"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates transfer repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns transfer RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const transferColumns = `id, source_account_id, destination_account_id, amount, status, reference_code, created_at`

func scanTransfer(row interface{ Scan(...any) error }) (domain.Transfer, error) {
	var t domain.Transfer

	err := row.Scan(
		&t.ID,
		&t.SourceAccountID,
		&t.DestinationAccountID,
		&t.Amount,
		&t.Status,
		&t.ReferenceCode,
		&t.CreatedAt,
	)

	return t, err
}

const createQuery = `
INSERT INTO
    transfers (source_account_id, destination_account_id, amount, status, reference_code)
VALUES
    ($1, $2, $3, $4, $5)
RETURNING ` + transferColumns

// Create appends the transfer record and then returns it.
//
// A second record with the same reference code is rejected by the store with ErrDuplicateReference.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateTransferParams) (domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	row := dbpkg.Conn(ctx, r.db).QueryRowContext(ctx, createQuery,
		arg.SourceAccountID,
		arg.DestinationAccountID,
		arg.Amount,
		arg.Status,
		arg.ReferenceCode,
	)

	t, err := scanTransfer(row)
	if err != nil {
		if dbpkg.IsRetryable(err) {
			l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)
			return domain.Transfer{}, domain.ErrConcurrencyConflict
		}

		switch dbpkg.ViolatedConstraint(err) {
		case "transfers_reference_code_key":
			l.Info().Str("reference_code", arg.ReferenceCode).Msg("duplicate reference code")
			return domain.Transfer{}, domain.ErrDuplicateReference
		case "transfers_source_account_id_fkey", "transfers_destination_account_id_fkey":
			return domain.Transfer{}, domain.ErrAccountNotFound
		case "transfers_amount_check":
			return domain.Transfer{}, domain.ErrInvalidAmount
		}

		l.Error().Err(err).Msgf("Create(ctx, %+v)", arg)

		return domain.Transfer{}, errorspkg.ErrInternal
	}

	return t, nil
}

const getQuery = `
SELECT ` + transferColumns + `
FROM transfers
WHERE id = $1
`

// Get returns the transfer with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transfer, error) {
	return r.getOne(ctx, getQuery, id)
}

const getByReferenceCodeQuery = `
SELECT ` + transferColumns + `
FROM transfers
WHERE reference_code = $1
`

// GetByReferenceCode returns the transfer with the given reference code.
func (r *RepoPGS) GetByReferenceCode(ctx context.Context, code string) (domain.Transfer, error) {
	return r.getOne(ctx, getByReferenceCodeQuery, code)
}

func (r *RepoPGS) getOne(ctx context.Context, query string, arg any) (domain.Transfer, error) {
	t, err := scanTransfer(dbpkg.Conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transfer{}, domain.ErrTransferNotFound
		}

		zerolog.Ctx(ctx).Error().Err(err).Send()

		return domain.Transfer{}, errorspkg.ErrInternal
	}

	return t, nil
}

const listTransfers = `
SELECT ` + transferColumns + `
FROM transfers
WHERE
    source_account_id = $1 OR destination_account_id = $1
ORDER BY id
LIMIT $2 OFFSET $3
`

// List returns the transfers sent or received by the account.
func (r *RepoPGS) List(ctx context.Context, arg domain.ListTransfersParams) ([]domain.Transfer, error) {
	l := zerolog.Ctx(ctx)

	rows, err := dbpkg.Conn(ctx, r.db).QueryContext(ctx, listTransfers,
		arg.AccountID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, errorspkg.ErrInternal
	}
	defer rows.Close()

	items := []domain.Transfer{}

	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, errorspkg.ErrInternal
		}

		items = append(items, t)
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

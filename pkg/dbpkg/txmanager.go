package dbpkg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-petr/fund-transfer/pkg/errorspkg"
	"github.com/rs/zerolog"
)

// ErrCommitConflict is returned when the database aborts a commit because of a concurrent write.
var ErrCommitConflict = errorspkg.New(errorspkg.KindConflict, "CONCURRENCY_FAILURE", "concurrent modification, please retry")

// TxManager runs units of work inside a database transaction.
type TxManager struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// NewTxManager returns TxManager using read committed isolation.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{
		db:   db,
		opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
}

// ExecTx executes fn within a database transaction stored in the context passed to fn.
//
// The transaction is committed when fn returns nil and rolled back otherwise.
// A call made with a context already carrying a transaction joins it.
func (m *TxManager) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	l := zerolog.Ctx(ctx)

	tx, err := m.db.BeginTx(ctx, m.opts)
	if err != nil {
		l.Error().Err(err).Send()
		return errorspkg.ErrInternal
	}

	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			l.Error().Err(rbErr).Msg("rollback")
		}
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		l.Error().Err(err).Msg("commit")

		if IsRetryable(err) {
			return ErrCommitConflict
		}

		return errorspkg.ErrInternal
	}

	return nil
}

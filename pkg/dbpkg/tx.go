package dbpkg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type txKey struct{}

// WithTx returns a copy of ctx carrying tx.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction stored in ctx, if any.
func TxFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok && tx != nil
}

// Conn returns the transaction stored in ctx or db when ctx carries none.
func Conn(ctx context.Context, db SQLInterface) SQLInterface {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}

	return db
}

// Postgres error codes the repositories react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}

	return nil, false
}

// IsRetryable reports whether err is a write conflict the database resolved by aborting us.
func IsRetryable(err error) bool {
	pqErr, ok := pqError(err)
	if !ok {
		return false
	}

	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

// ViolatedConstraint returns the name of the constraint violated by err.
//
// It returns an empty string for errors that are not integrity violations.
func ViolatedConstraint(err error) string {
	pqErr, ok := pqError(err)
	if !ok {
		return ""
	}

	switch pqErr.Code {
	case codeUniqueViolation, codeForeignKeyViolation, codeCheckViolation:
		return pqErr.Constraint
	}

	return ""
}

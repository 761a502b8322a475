package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/internal/domain/student"
)

// Store is a ledger.Store backed by PostgreSQL.
type Store struct {
	conn *Connection
}

// NewStore creates a Store on an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

var _ ledger.Store = (*Store)(nil)

// Atomic implements ledger.Store. The student id only scopes logging here:
// isolation between units comes from the version columns.
func (s *Store) Atomic(ctx context.Context, _ string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &unit{q: tx})
	})
}

// Reader implements ledger.Store. Each read runs on its own pooled connection.
func (s *Store) Reader() ledger.Tx {
	return &unit{q: s.conn, readOnly: true}
}

type unit struct {
	q        Querier
	readOnly bool
}

func (u *unit) Enrollments() enrollment.Repository { return enrollmentRepo{u} }
func (u *unit) Grades() grading.Repository         { return gradeRepo{u} }
func (u *unit) Records() record.Repository         { return recordRepo{u} }
func (u *unit) Students() student.Repository       { return studentRepo{u} }

var errReadOnly = shared.NewDomainError("ledger", "Write", shared.ErrForbidden, "writes must run inside a ledger unit")

func (u *unit) writable() error {
	if u.readOnly {
		return errReadOnly
	}
	return nil
}

// translate maps driver errors onto domain errors. notFound is returned for
// pgx.ErrNoRows; a nil notFound keeps the driver error.
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows) && notFound != nil:
		return notFound
	}
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return shared.WrapError("ledger", "Commit", shared.ErrVersionConflict, "concurrent update", err)
	case codeUniqueViolation:
		return shared.WrapError("ledger", "Write", shared.ErrConflict, "duplicate key", err)
	}
	return err
}

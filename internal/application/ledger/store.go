// Package ledger holds the consistency contract of the academic ledger and
// the transcript synchronizer that drives it.
//
// Ledger update is atomic per student: every write to a student's
// enrollments, grades, academic record or credit cache runs inside one
// Store.Atomic unit keyed by that student. Either every write of the unit
// becomes visible or none does.
package ledger

import (
	"context"

	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/student"
)

// Tx exposes the repositories bound to one atomic unit.
type Tx interface {
	Enrollments() enrollment.Repository
	Grades() grading.Repository
	Records() record.Repository
	Students() student.Repository
}

// Store is the persistence boundary of the ledger.
type Store interface {
	// Atomic runs fn as one unit scoped to studentID. Implementations must
	// serialize or version-check concurrent units of the same student and
	// discard every write of fn when it returns an error.
	Atomic(ctx context.Context, studentID string, fn func(ctx context.Context, tx Tx) error) error

	// Reader returns repositories for reads outside a unit.
	Reader() Tx
}

// Package memory implements the ledger Store in process memory. It is used
// when STORAGE_DRIVER=memory and by the application tests.
//
// Units of the same student are serialized by a per-student mutex. Writes of
// a unit are staged and applied in one step on commit, so readers never see
// half of a unit. Course seats are a separate counter guarded by the store
// lock, reserved at admission and released on rollback.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/internal/domain/student"
)

type pairKey struct{ student, course string }

// Store is an in-memory ledger.Store.
type Store struct {
	mu sync.RWMutex

	students    map[string]*student.Student
	emails      map[string]string
	codes       map[string]string
	records     map[string]*record.AcademicRecord
	recordOf    map[string]string
	enrollments map[string]*enrollment.Enrollment
	pairs       map[pairKey]string
	grades      map[string]*grading.Grade
	seats       map[string]int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		students:    make(map[string]*student.Student),
		emails:      make(map[string]string),
		codes:       make(map[string]string),
		records:     make(map[string]*record.AcademicRecord),
		recordOf:    make(map[string]string),
		enrollments: make(map[string]*enrollment.Enrollment),
		pairs:       make(map[pairKey]string),
		grades:      make(map[string]*grading.Grade),
		seats:       make(map[string]int),
		locks:       make(map[string]*sync.Mutex),
	}
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) studentLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Atomic implements ledger.Store.
func (s *Store) Atomic(ctx context.Context, studentID string, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l := s.studentLock(studentID)
	l.Lock()
	defer l.Unlock()

	t := newTx(s, false)
	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		t.rollback()
		return err
	}
	return t.commit()
}

// Reader implements ledger.Store. Writes through it fail.
func (s *Store) Reader() ledger.Tx {
	return newTx(s, true)
}

// ForceCreditsEarned overwrites a student's credit cache outside the ledger.
// Only reconciliation tests use it to plant a divergence.
func (s *Store) ForceCreditsEarned(studentID string, credits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.students[studentID]; ok {
		st.CreditsEarned = credits
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION
// ══════════════════════════════════════════════════════════════════════════════

type tx struct {
	s        *Store
	readOnly bool

	students    map[string]*student.Student
	records     map[string]*record.AcademicRecord
	enrollments map[string]*enrollment.Enrollment
	grades      map[string]*grading.Grade

	// created marks staged ids that do not exist in the committed maps.
	created map[string]bool
	// base holds the committed version each staged entity was read at.
	base map[string]int

	reserved []string
}

func newTx(s *Store, readOnly bool) *tx {
	return &tx{
		s:           s,
		readOnly:    readOnly,
		students:    make(map[string]*student.Student),
		records:     make(map[string]*record.AcademicRecord),
		enrollments: make(map[string]*enrollment.Enrollment),
		grades:      make(map[string]*grading.Grade),
		created:     make(map[string]bool),
		base:        make(map[string]int),
	}
}

func (t *tx) Enrollments() enrollment.Repository { return enrollmentRepo{t} }
func (t *tx) Grades() grading.Repository         { return gradeRepo{t} }
func (t *tx) Records() record.Repository         { return recordRepo{t} }
func (t *tx) Students() student.Repository       { return studentRepo{t} }

var errReadOnly = shared.NewDomainError("memory", "Write", shared.ErrForbidden, "write outside a ledger unit")

func (t *tx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *tx) rollback() {
	if len(t.reserved) == 0 {
		return
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.releaseSeatsLocked()
}

func (t *tx) releaseSeatsLocked() {
	for _, c := range t.reserved {
		if t.s.seats[c] > 0 {
			t.s.seats[c]--
		}
	}
	t.reserved = nil
}

// commit validates every staged write against the committed state and then
// applies all of them, or none.
func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := t.validateLocked(); err != nil {
		t.releaseSeatsLocked()
		return err
	}

	for id, st := range t.students {
		if t.created[id] {
			s.emails[st.Email] = id
			s.codes[string(st.Code)] = id
		}
		s.students[id] = st
	}
	for id, r := range t.records {
		if t.created[id] {
			s.recordOf[r.StudentID] = id
		}
		s.records[id] = r
	}
	for id, e := range t.enrollments {
		if t.created[id] {
			s.pairs[pairKey{e.StudentID, e.CourseID}] = id
		} else if prev := s.enrollments[id]; prev.IsActive() && !e.IsActive() && s.seats[e.CourseID] > 0 {
			s.seats[e.CourseID]--
		}
		s.enrollments[id] = e
	}
	for id, g := range t.grades {
		s.grades[id] = g
	}
	t.reserved = nil
	return nil
}

func (t *tx) validateLocked() error {
	s := t.s
	for id, st := range t.students {
		if t.created[id] {
			if _, ok := s.emails[st.Email]; ok {
				return shared.ErrStudentAlreadyExists
			}
			if _, ok := s.codes[string(st.Code)]; ok {
				return shared.ErrStudentAlreadyExists
			}
			continue
		}
		if _, ok := s.students[id]; !ok {
			return shared.ErrStudentNotFound
		}
	}
	for id, r := range t.records {
		if t.created[id] {
			if _, ok := s.recordOf[r.StudentID]; ok {
				return shared.NewDomainError("record", "Create", shared.ErrConflict, "student already has an academic record")
			}
			continue
		}
		cur, ok := s.records[id]
		if !ok {
			return shared.ErrRecordNotFound
		}
		if cur.Version != t.base[id] {
			return shared.ErrVersionConflict
		}
	}
	for id, e := range t.enrollments {
		if t.created[id] {
			if _, ok := s.pairs[pairKey{e.StudentID, e.CourseID}]; ok {
				return shared.ErrEnrollmentExists
			}
			continue
		}
		cur, ok := s.enrollments[id]
		if !ok {
			return shared.ErrEnrollmentNotFound
		}
		if cur.Version != t.base[id] {
			return shared.ErrVersionConflict
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLONES
// ══════════════════════════════════════════════════════════════════════════════

func cloneStudent(s *student.Student) *student.Student {
	cp := *s
	return &cp
}

func cloneGrade(g *grading.Grade) *grading.Grade {
	cp := *g
	return &cp
}

func cloneEnrollment(e *enrollment.Enrollment) *enrollment.Enrollment {
	cp := *e
	cp.CompletedModules = append([]string(nil), e.CompletedModules...)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		cp.CompletedAt = &t
	}
	if e.DroppedAt != nil {
		t := *e.DroppedAt
		cp.DroppedAt = &t
	}
	return &cp
}

func cloneRecord(r *record.AcademicRecord) *record.AcademicRecord {
	cp := *r
	cp.CourseRecords = make([]record.TranscriptEntry, len(r.CourseRecords))
	for i, e := range r.CourseRecords {
		e.SkillTags = append([]string(nil), e.SkillTags...)
		cp.CourseRecords[i] = e
	}
	cp.SkillsAcquired = append([]string{}, r.SkillsAcquired...)
	cp.ExitQualifications = append([]record.ExitQualification{}, r.ExitQualifications...)
	if r.VerifiedAt != nil {
		t := *r.VerifiedAt
		cp.VerifiedAt = &t
	}
	return &cp
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

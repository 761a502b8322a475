package memory

import (
	"context"
	"sort"

	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

type enrollmentRepo struct{ t *tx }

func (r enrollmentRepo) lookup(id string) (*enrollment.Enrollment, bool) {
	if e, ok := r.t.enrollments[id]; ok {
		return e, true
	}
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	e, ok := r.t.s.enrollments[id]
	return e, ok
}

func (r enrollmentRepo) Admit(_ context.Context, e *enrollment.Enrollment, capacity int) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	for _, staged := range r.t.enrollments {
		if staged.StudentID == e.StudentID && staged.CourseID == e.CourseID {
			return shared.ErrEnrollmentExists
		}
	}

	s := r.t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pairs[pairKey{e.StudentID, e.CourseID}]; ok {
		return shared.ErrEnrollmentExists
	}
	if capacity > 0 && s.seats[e.CourseID] >= capacity {
		return shared.ErrCourseFull
	}
	s.seats[e.CourseID]++
	r.t.reserved = append(r.t.reserved, e.CourseID)

	e.Version = 1
	r.t.enrollments[e.ID] = cloneEnrollment(e)
	r.t.created[e.ID] = true
	return nil
}

func (r enrollmentRepo) GetByID(_ context.Context, id string) (*enrollment.Enrollment, error) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return cloneEnrollment(e), nil
}

func (r enrollmentRepo) GetByPair(ctx context.Context, studentID, courseID string) (*enrollment.Enrollment, error) {
	for _, e := range r.t.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID {
			return cloneEnrollment(e), nil
		}
	}
	r.t.s.mu.RLock()
	id, ok := r.t.s.pairs[pairKey{studentID, courseID}]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return r.GetByID(ctx, id)
}

func (r enrollmentRepo) Update(_ context.Context, e *enrollment.Enrollment) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	cur, ok := r.lookup(e.ID)
	if !ok {
		return shared.ErrEnrollmentNotFound
	}
	if cur.Version != e.Version {
		return shared.ErrVersionConflict
	}
	if _, staged := r.t.enrollments[e.ID]; !staged {
		r.t.base[e.ID] = cur.Version
	}
	if r.t.created[e.ID] {
		// still uncommitted: keep the admission version
		r.t.enrollments[e.ID] = cloneEnrollment(e)
		return nil
	}
	e.Version++
	r.t.enrollments[e.ID] = cloneEnrollment(e)
	return nil
}

func (r enrollmentRepo) ListByStudent(_ context.Context, studentID string) ([]*enrollment.Enrollment, error) {
	merged := make(map[string]*enrollment.Enrollment)
	r.t.s.mu.RLock()
	for id, e := range r.t.s.enrollments {
		if e.StudentID == studentID {
			merged[id] = e
		}
	}
	r.t.s.mu.RUnlock()
	for id, e := range r.t.enrollments {
		if e.StudentID == studentID {
			merged[id] = e
		}
	}

	out := make([]*enrollment.Enrollment, 0, len(merged))
	for _, e := range merged {
		out = append(out, cloneEnrollment(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnrolledAt.Equal(out[j].EnrolledAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EnrolledAt.Before(out[j].EnrolledAt)
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADES
// ══════════════════════════════════════════════════════════════════════════════

type gradeRepo struct{ t *tx }

func (r gradeRepo) lookup(id string) (*grading.Grade, bool) {
	if g, ok := r.t.grades[id]; ok {
		return g, true
	}
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	g, ok := r.t.s.grades[id]
	return g, ok
}

func (r gradeRepo) Create(_ context.Context, g *grading.Grade) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.lookup(g.ID); ok {
		return shared.NewDomainError("grade", "Create", shared.ErrConflict, "grade id already exists")
	}
	r.t.grades[g.ID] = cloneGrade(g)
	r.t.created[g.ID] = true
	return nil
}

func (r gradeRepo) GetByID(_ context.Context, id string) (*grading.Grade, error) {
	g, ok := r.lookup(id)
	if !ok {
		return nil, shared.ErrGradeNotFound
	}
	return cloneGrade(g), nil
}

func (r gradeRepo) Update(_ context.Context, g *grading.Grade) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	if _, ok := r.lookup(g.ID); !ok {
		return shared.ErrGradeNotFound
	}
	r.t.grades[g.ID] = cloneGrade(g)
	return nil
}

func (r gradeRepo) LatestFinal(ctx context.Context, studentID, courseID string) (*grading.Grade, error) {
	all, err := r.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	var latest *grading.Grade
	for _, g := range all {
		if g.CourseID != courseID || !g.IsFinal() {
			continue
		}
		if latest == nil || !g.UpdatedAt.Before(latest.UpdatedAt) {
			latest = g
		}
	}
	if latest == nil {
		return nil, shared.ErrGradeNotFound
	}
	return latest, nil
}

func (r gradeRepo) ListByStudent(_ context.Context, studentID string) ([]*grading.Grade, error) {
	merged := make(map[string]*grading.Grade)
	r.t.s.mu.RLock()
	for id, g := range r.t.s.grades {
		if g.StudentID == studentID {
			merged[id] = g
		}
	}
	r.t.s.mu.RUnlock()
	for id, g := range r.t.grades {
		if g.StudentID == studentID {
			merged[id] = g
		}
	}

	out := make([]*grading.Grade, 0, len(merged))
	for _, g := range merged {
		out = append(out, cloneGrade(g))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACADEMIC RECORDS
// ══════════════════════════════════════════════════════════════════════════════

type recordRepo struct{ t *tx }

func (r recordRepo) lookup(id string) (*record.AcademicRecord, bool) {
	if rec, ok := r.t.records[id]; ok {
		return rec, true
	}
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	rec, ok := r.t.s.records[id]
	return rec, ok
}

func (r recordRepo) Create(_ context.Context, rec *record.AcademicRecord) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	rec.Version = 1
	r.t.records[rec.ID] = cloneRecord(rec)
	r.t.created[rec.ID] = true
	return nil
}

func (r recordRepo) GetByID(_ context.Context, id string) (*record.AcademicRecord, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	return cloneRecord(rec), nil
}

func (r recordRepo) GetByStudent(ctx context.Context, studentID string) (*record.AcademicRecord, error) {
	for _, rec := range r.t.records {
		if rec.StudentID == studentID {
			return cloneRecord(rec), nil
		}
	}
	r.t.s.mu.RLock()
	id, ok := r.t.s.recordOf[studentID]
	r.t.s.mu.RUnlock()
	if !ok {
		return nil, shared.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r recordRepo) Save(_ context.Context, rec *record.AcademicRecord) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	cur, ok := r.lookup(rec.ID)
	if !ok {
		return shared.ErrRecordNotFound
	}
	if cur.Version != rec.Version {
		return shared.ErrVersionConflict
	}
	if _, staged := r.t.records[rec.ID]; !staged {
		r.t.base[rec.ID] = cur.Version
	}
	if !r.t.created[rec.ID] {
		rec.Version++
	}
	r.t.records[rec.ID] = cloneRecord(rec)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

type studentRepo struct{ t *tx }

func (r studentRepo) lookup(id string) (*student.Student, bool) {
	if st, ok := r.t.students[id]; ok {
		return st, true
	}
	r.t.s.mu.RLock()
	defer r.t.s.mu.RUnlock()
	st, ok := r.t.s.students[id]
	return st, ok
}

func (r studentRepo) Create(_ context.Context, st *student.Student) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	r.t.s.mu.RLock()
	_, emailTaken := r.t.s.emails[st.Email]
	_, codeTaken := r.t.s.codes[string(st.Code)]
	r.t.s.mu.RUnlock()
	if emailTaken || codeTaken {
		return shared.ErrStudentAlreadyExists
	}
	r.t.students[st.ID] = cloneStudent(st)
	r.t.created[st.ID] = true
	return nil
}

func (r studentRepo) GetByID(_ context.Context, id string) (*student.Student, error) {
	st, ok := r.lookup(id)
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	return cloneStudent(st), nil
}

func (r studentRepo) SetCreditsEarned(_ context.Context, id string, credits int) error {
	if err := r.t.writable(); err != nil {
		return err
	}
	st, ok := r.lookup(id)
	if !ok {
		return shared.ErrStudentNotFound
	}
	cp := cloneStudent(st)
	cp.CreditsEarned = credits
	r.t.students[id] = cp
	return nil
}

func (r studentRepo) ListIDs(_ context.Context, afterID string, limit int) ([]string, error) {
	r.t.s.mu.RLock()
	ids := sortedKeys(r.t.s.students)
	r.t.s.mu.RUnlock()

	out := make([]string, 0, limit)
	for _, id := range ids {
		if id <= afterID {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

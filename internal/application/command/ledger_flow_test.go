package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/enrollment"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

func TestEnroll_ConcurrentAdmissionNeverOverfills(t *testing.T) {
	const capacity, extra = 5, 7
	capped := course.Facts{ID: "cap", Code: "CAP1", Name: "Capped", Credits: 3, IsActive: true, MaxEnrollment: capacity}
	f := newFixture(t, capped)

	students := make([]string, capacity+extra)
	for i := range students {
		students[i] = f.newStudent(t).Student.ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		full     int
		other    []error
	)
	start := make(chan struct{})
	for _, id := range students {
		wg.Add(1)
		go func(studentID string) {
			defer wg.Done()
			<-start
			_, err := f.enroll.Handle(context.Background(), EnrollCommand{StudentID: studentID, CourseID: "cap"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case shared.KindOf(err) == shared.KindCapacityExceeded:
				full++
			default:
				other = append(other, err)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, capacity, admitted)
	assert.Equal(t, extra, full)

	stored := 0
	for _, id := range students {
		list, err := f.store.Reader().Enrollments().ListByStudent(context.Background(), id)
		require.NoError(t, err)
		stored += len(list)
	}
	assert.Equal(t, capacity, stored)
}

func TestEnroll_Errors(t *testing.T) {
	inactive := course.Facts{ID: "old", Code: "OLD1", Name: "Retired", Credits: 2, IsActive: false}
	f := newFixture(t, pythonCourse(), inactive)
	s := f.newStudent(t).Student.ID
	ctx := context.Background()

	_, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "missing"})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	_, err = f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "old"})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	_, err = f.enroll.Handle(ctx, EnrollCommand{StudentID: "ghost", CourseID: "py101"})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	_, err = f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)
	_, err = f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))
}

func TestCompletion_AwardsCreditsAndSkills(t *testing.T) {
	f := newFixture(t, pythonCourse())
	ctx := context.Background()
	s := f.newStudent(t).Student.ID
	before := f.transcript(t, s).TotalCreditsEarned

	enr, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)

	res, err := f.progress.Handle(ctx, UpdateProgressCommand{
		EnrollmentID: enr.Enrollment.ID, CallerID: s, Percentage: ptr(60.0), CompletedModules: []string{"m1", "m2"},
	})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Empty(t, f.transcript(t, s).CourseRecords)

	res, err = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: enr.Enrollment.ID, CallerID: s, Percentage: ptr(100.0)})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 4, res.Enrollment.CreditsAwarded)
	assert.Equal(t, enrollment.StatusCompleted, res.Enrollment.Status)

	rec := f.transcript(t, s)
	assert.Equal(t, before+4, rec.TotalCreditsEarned)
	assert.Subset(t, rec.SkillsAcquired, []string{"python", "data"})
	require.Len(t, rec.CourseRecords, 1)
	assert.False(t, rec.CourseRecords[0].Graded)
	assert.Equal(t, 0.0, rec.CGPA, "an ungraded completion does not move CGPA")

	st, err := f.store.Reader().Students().GetByID(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, rec.TotalCreditsEarned, st.CreditsEarned, "credit cache written in the same unit")

	assert.Contains(t, f.events.types(), shared.EventEnrollmentCompleted)
	assert.Contains(t, f.events.types(), shared.EventTranscriptSynchronized)
}

func TestUpdateProgress_OwnershipAndState(t *testing.T) {
	f := newFixture(t, pythonCourse())
	ctx := context.Background()
	owner := f.newStudent(t).Student.ID
	intruder := f.newStudent(t).Student.ID

	enr, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: owner, CourseID: "py101"})
	require.NoError(t, err)

	_, err = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: enr.Enrollment.ID, CallerID: intruder, Percentage: ptr(100.0)})
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))

	_, err = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: "nope", CallerID: owner, Percentage: ptr(10.0)})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	_, err = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: enr.Enrollment.ID, CallerID: owner, Percentage: ptr(101.0)})
	assert.Equal(t, shared.KindInvalidArgument, shared.KindOf(err))

	_, err = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: enr.Enrollment.ID, CallerID: owner, Percentage: ptr(100.0)})
	require.NoError(t, err)
	_, err = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: enr.Enrollment.ID, CallerID: owner, Percentage: ptr(100.0)})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err), "completed enrollment is no longer active")
	assert.Equal(t, 4, f.transcript(t, owner).TotalCreditsEarned, "credits are never re-awarded")
}

func TestSubmitGrade_FinalGradeHitsTranscript(t *testing.T) {
	f := newFixture(t, pythonCourse())
	ctx := context.Background()
	s := f.newStudent(t).Student.ID
	_, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)

	res, err := f.submit.Handle(ctx, SubmitGradeCommand{
		StudentID: s, CourseID: "py101", Marks: 92, AssessmentType: "final", GraderID: "fac-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "A", res.Grade.LetterGrade)
	assert.Equal(t, 10.0, res.Grade.GradePoint)

	rec := f.transcript(t, s)
	require.Len(t, rec.CourseRecords, 1)
	entry := rec.CourseRecords[0]
	assert.Equal(t, "A", entry.LetterGrade)
	assert.Equal(t, 10.0, entry.GradePoint)
	assert.Equal(t, 92.0, entry.Marks)
	assert.Equal(t, 10.0, rec.CGPA)
}

func TestSubmitGrade_MidtermDoesNotSync(t *testing.T) {
	f := newFixture(t, pythonCourse())
	ctx := context.Background()
	s := f.newStudent(t).Student.ID
	_, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)

	res, err := f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 30, AssessmentType: "midterm", GraderID: "fac-1"})
	require.NoError(t, err)
	assert.Nil(t, res.Outcome)
	assert.Empty(t, f.transcript(t, s).CourseRecords)
}

func TestSubmitGrade_NotEnrolled(t *testing.T) {
	f := newFixture(t, pythonCourse())
	ctx := context.Background()
	s := f.newStudent(t).Student.ID

	_, err := f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 70, GraderID: "fac-1"})
	assert.Equal(t, shared.KindNotEnrolled, shared.KindOf(err))

	enr, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)
	_, err = f.drop.Handle(ctx, DropEnrollmentCommand{EnrollmentID: enr.Enrollment.ID, CallerID: s})
	require.NoError(t, err)

	_, err = f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 70, GraderID: "fac-1"})
	assert.Equal(t, shared.KindNotEnrolled, shared.KindOf(err))

	_, err = f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 170, GraderID: "fac-1"})
	assert.Equal(t, shared.KindInvalidArgument, shared.KindOf(err))
}

func TestReviseGrade_ReplacesEntryNeverDuplicates(t *testing.T) {
	f := newFixture(t, pythonCourse(), ethicsCourse())
	ctx := context.Background()
	s := f.newStudent(t).Student.ID
	for _, c := range []string{"py101", "eth201"} {
		_, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: c})
		require.NoError(t, err)
	}

	_, err := f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "eth201", Marks: 65, GraderID: "fac-2"})
	require.NoError(t, err)
	g, err := f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 75, GraderID: "fac-1"})
	require.NoError(t, err)

	// py101 point 8 x 4, eth201 point 7 x 2
	assert.InDelta(t, (4*8.0+2*7.0)/6, f.transcript(t, s).CGPA, 1e-9)

	revised, err := f.revise.Handle(ctx, ReviseGradeCommand{GradeID: g.Grade.ID, Marks: ptr(35.0), Remarks: ptr("recount")})
	require.NoError(t, err)
	assert.Equal(t, "F", revised.Grade.LetterGrade)

	rec := f.transcript(t, s)
	require.Len(t, rec.CourseRecords, 2)
	assert.Equal(t, "eth201", rec.CourseRecords[0].CourseID)
	py := rec.CourseRecords[1]
	assert.Equal(t, "py101", py.CourseID, "revision keeps the entry's position")
	assert.Equal(t, 35.0, py.Marks)
	assert.Equal(t, "F", py.LetterGrade)
	assert.Equal(t, 0.0, py.GradePoint)
	assert.Equal(t, 4, py.Credits)

	assert.Equal(t, 6, rec.TotalCreditsAttempted)
	assert.Equal(t, 2, rec.TotalCreditsEarned, "failing regrade retracts credit")
	assert.InDelta(t, (4*0.0+2*7.0)/6, rec.CGPA, 1e-9)

	_, err = f.revise.Handle(ctx, ReviseGradeCommand{GradeID: "missing", Marks: ptr(50.0)})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestReviseGrade_MostRecentlyTouchedFinalWins(t *testing.T) {
	f := newFixture(t, pythonCourse())
	ctx := context.Background()
	s := f.newStudent(t).Student.ID
	_, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)

	first, err := f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 92, GraderID: "fac-1"})
	require.NoError(t, err)
	_, err = f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 75, GraderID: "fac-2"})
	require.NoError(t, err)
	assert.Equal(t, "B", f.transcript(t, s).CourseRecords[0].LetterGrade, "later final replaces the entry")

	// revising the older final re-syncs the entry from it
	_, err = f.revise.Handle(ctx, ReviseGradeCommand{GradeID: first.Grade.ID, Marks: ptr(62.0)})
	require.NoError(t, err)

	rec := f.transcript(t, s)
	require.Len(t, rec.CourseRecords, 1)
	entry := rec.CourseRecords[0]
	assert.Equal(t, 62.0, entry.Marks)
	assert.Equal(t, "C+", entry.LetterGrade)
	assert.Equal(t, 7.0, entry.GradePoint)
	assert.Equal(t, 7.0, rec.CGPA)
}

func TestSynchronize_IsIdempotent(t *testing.T) {
	f := newFixture(t, pythonCourse())
	ctx := context.Background()
	s := f.newStudent(t).Student.ID
	_, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)

	g, err := f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 81, GraderID: "fac-1"})
	require.NoError(t, err)
	once := f.transcript(t, s)

	_, err = f.revise.Handle(ctx, ReviseGradeCommand{GradeID: g.Grade.ID, Marks: ptr(81.0)})
	require.NoError(t, err)
	twice := f.transcript(t, s)

	assert.Equal(t, once.CGPA, twice.CGPA)
	assert.Equal(t, once.TotalCreditsEarned, twice.TotalCreditsEarned)
	assert.Equal(t, once.TotalCreditsAttempted, twice.TotalCreditsAttempted)
	assert.Equal(t, once.SkillsAcquired, twice.SkillsAcquired)
	assert.Equal(t, once.CourseRecords, twice.CourseRecords)
}

func TestCompletionAfterFinalGrade_UsesGradeMarks(t *testing.T) {
	f := newFixture(t, pythonCourse())
	ctx := context.Background()
	s := f.newStudent(t).Student.ID
	enr, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)

	_, err = f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 68, GraderID: "fac-1"})
	require.NoError(t, err)
	_, err = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: enr.Enrollment.ID, CallerID: s, Percentage: ptr(100.0)})
	require.NoError(t, err)

	rec := f.transcript(t, s)
	require.Len(t, rec.CourseRecords, 1)
	assert.True(t, rec.CourseRecords[0].Graded)
	assert.Equal(t, "C+", rec.CourseRecords[0].LetterGrade)
	assert.Equal(t, 7.0, rec.CGPA)
}

func TestConcurrentRegradeAndCompletion(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t, pythonCourse())
		ctx := context.Background()
		s := f.newStudent(t).Student.ID
		enr, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
		require.NoError(t, err)
		g, err := f.submit.Handle(ctx, SubmitGradeCommand{StudentID: s, CourseID: "py101", Marks: 92, GraderID: "fac-1"})
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = f.revise.Handle(ctx, ReviseGradeCommand{GradeID: g.Grade.ID, Marks: ptr(55.0)})
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: enr.Enrollment.ID, CallerID: s, Percentage: ptr(100.0)})
		}()
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		rec := f.transcript(t, s)
		require.Len(t, rec.CourseRecords, 1)
		assert.Equal(t, 55.0, rec.CourseRecords[0].Marks)
		assert.Equal(t, "C", rec.CourseRecords[0].LetterGrade)
		assert.Equal(t, 4, rec.TotalCreditsEarned)
		assert.Equal(t, 6.0, rec.CGPA)
	}
}

func TestDrop_LeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t, pythonCourse(), ethicsCourse())
	ctx := context.Background()
	s := f.newStudent(t).Student.ID

	done, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "eth201"})
	require.NoError(t, err)
	_, err = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: done.Enrollment.ID, CallerID: s, Percentage: ptr(100.0)})
	require.NoError(t, err)
	before := f.transcript(t, s)

	enr, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)
	other := f.newStudent(t).Student.ID
	_, err = f.drop.Handle(ctx, DropEnrollmentCommand{EnrollmentID: enr.Enrollment.ID, CallerID: other})
	assert.Equal(t, shared.KindForbidden, shared.KindOf(err))

	dropped, err := f.drop.Handle(ctx, DropEnrollmentCommand{EnrollmentID: enr.Enrollment.ID, CallerID: s})
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusDropped, dropped.Status)

	after := f.transcript(t, s)
	assert.Equal(t, before.TotalCreditsEarned, after.TotalCreditsEarned)
	assert.Equal(t, before.CourseRecords, after.CourseRecords)
	assert.Equal(t, before.SkillsAcquired, after.SkillsAcquired)

	_, err = f.drop.Handle(ctx, DropEnrollmentCommand{EnrollmentID: enr.Enrollment.ID, CallerID: "admin", Administrative: true})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err), "dropped is terminal")

	_, err = f.drop.Handle(ctx, DropEnrollmentCommand{EnrollmentID: done.Enrollment.ID, CallerID: s})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err), "completed enrollments cannot be dropped")
}

func TestRecordExit_DefaultsToLedgerCredits(t *testing.T) {
	f := newFixture(t, pythonCourse())
	ctx := context.Background()
	reg := f.newStudent(t)
	s := reg.Student.ID
	enr, err := f.enroll.Handle(ctx, EnrollCommand{StudentID: s, CourseID: "py101"})
	require.NoError(t, err)
	_, err = f.progress.Handle(ctx, UpdateProgressCommand{EnrollmentID: enr.Enrollment.ID, CallerID: s, Percentage: ptr(100.0)})
	require.NoError(t, err)

	res, err := f.exit.Handle(ctx, RecordExitCommand{RecordID: reg.Record.ID, Level: "diploma"})
	require.NoError(t, err)
	assert.Equal(t, record.LevelDiploma, res.Exit.Level)
	assert.Equal(t, 4, res.Exit.TotalCredits)

	rec := f.transcript(t, s)
	assert.Equal(t, record.LevelDiploma, rec.CurrentLevel)
	require.Len(t, rec.ExitQualifications, 1)
	assert.Equal(t, rec.TotalCreditsEarned, rec.ExitQualifications[0].TotalCredits)

	_, err = f.exit.Handle(ctx, RecordExitCommand{RecordID: reg.Record.ID, Level: "masters"})
	assert.Equal(t, shared.KindInvalidArgument, shared.KindOf(err))

	_, err = f.exit.Handle(ctx, RecordExitCommand{RecordID: "missing", Level: "degree"})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	_, err = f.exit.Handle(ctx, RecordExitCommand{RecordID: reg.Record.ID, Level: "certificate", TotalCredits: ptr(1)})
	assert.Equal(t, shared.KindInvalidArgument, shared.KindOf(err), "regression rejected by default policy")

	res, err = f.exit.Handle(ctx, RecordExitCommand{RecordID: reg.Record.ID, Level: "degree", TotalCredits: ptr(120)})
	require.NoError(t, err)
	assert.Equal(t, 120, res.Exit.TotalCredits)
	assert.Equal(t, 4, res.Record.TotalCreditsEarned, "exit never touches the ledger totals")
}

func TestVerifyRecord(t *testing.T) {
	f := newFixture(t)
	reg := f.newStudent(t)

	rec, err := f.verify.Handle(context.Background(), VerifyRecordCommand{RecordID: reg.Record.ID, AdminID: "admin-1"})
	require.NoError(t, err)
	assert.True(t, rec.IsVerified)
	assert.Equal(t, "admin-1", rec.VerifiedBy)
	assert.NotNil(t, rec.VerifiedAt)

	_, err = f.verify.Handle(context.Background(), VerifyRecordCommand{RecordID: "nope", AdminID: "admin-1"})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestRegisterStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.register.Handle(ctx, RegisterStudentCommand{Name: "Asha", Email: "asha@campus.edu", Password: "longenough", Code: "CS-9001"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Student.PasswordHash)
	assert.NotEqual(t, "longenough", res.Student.PasswordHash)
	assert.Equal(t, res.Student.ID, res.Record.StudentID)
	assert.Empty(t, f.transcript(t, res.Student.ID).CourseRecords)

	_, err = f.register.Handle(ctx, RegisterStudentCommand{Name: "Asha 2", Email: "asha@campus.edu", Password: "longenough", Code: "CS-9002"})
	assert.Equal(t, shared.KindConflict, shared.KindOf(err))

	_, err = f.register.Handle(ctx, RegisterStudentCommand{Name: "Short", Email: "s@campus.edu", Password: "short", Code: "CS-9003"})
	assert.Equal(t, shared.KindInvalidArgument, shared.KindOf(err))
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nep-campus/credit-ledger/internal/application/command"
	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/application/query"
	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/infrastructure/persistence/memory"
)

func cachedRecord(version int, cgpa float64) *record.AcademicRecord {
	rec := record.New("r1", "s1", time.Now().UTC())
	rec.Version = version
	rec.CGPA = cgpa
	return rec
}

func TestTranscriptCache_InvalidatedReadIsNotCached(t *testing.T) {
	c := NewTranscriptCache(newMapKV())
	ctx := context.Background()

	gen, err := c.Generation(ctx, "s1")
	require.NoError(t, err)
	// a commit lands between the reader's store load and its cache write
	require.NoError(t, c.Invalidate(ctx, "s1"))
	require.NoError(t, c.Set(ctx, cachedRecord(1, 0), gen, 0))

	_, hit, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, hit)

	gen, err = c.Generation(ctx, "s1")
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, cachedRecord(2, 10), gen, 0))
	got, hit, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 2, got.Version)
}

func TestTranscriptCache_OlderVersionNeverOverwrites(t *testing.T) {
	c := NewTranscriptCache(NewGuardedKV(newMapKV(), nil))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, cachedRecord(5, 9), 0, 0))
	require.NoError(t, c.Set(ctx, cachedRecord(3, 4), 0, 0))

	got, hit, err := c.Get(ctx, "s1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 5, got.Version)
	assert.Equal(t, 9.0, got.CGPA)

	require.NoError(t, c.Set(ctx, cachedRecord(6, 8), 0, 0))
	got, _, err = c.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 6, got.Version)
}

type cachedLedger struct {
	kv         *mapKV
	cache      *TranscriptCache
	store      *memory.Store
	register   *command.RegisterStudentHandler
	enroll     *command.EnrollHandler
	submit     *command.SubmitGradeHandler
	transcript *query.GetTranscriptHandler
}

func newCachedLedger() *cachedLedger {
	c := &cachedLedger{kv: newMapKV(), store: memory.NewStore()}
	c.cache = NewTranscriptCache(c.kv)
	catalog := memory.NewCatalog(course.Facts{
		ID: "py101", Code: "CS101", Name: "Programming in Python", Credits: 4, Semester: 1,
		SkillTags: []string{"python"}, IsActive: true,
	})
	l := ledger.New(c.store, nil, nil, ledger.Config{ConflictRetries: 1, Evict: c.cache})
	syncer := ledger.NewSynchronizer(grading.DefaultScale, record.DefaultPolicy())

	c.register = command.NewRegisterStudentHandler(l, bcrypt.MinCost, nil)
	c.enroll = command.NewEnrollHandler(l, catalog, nil)
	c.submit = command.NewSubmitGradeHandler(l, syncer, catalog, nil)
	c.transcript = query.NewGetTranscriptHandler(c.store.Reader(), c.cache, time.Minute, nil)
	return c
}

func (c *cachedLedger) enrolledStudent(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	res, err := c.register.Handle(ctx, command.RegisterStudentCommand{
		Name: "Asel", Email: "asel@campus.edu", Password: "correct-horse", Code: "CS-0001",
	})
	require.NoError(t, err)
	_, err = c.enroll.Handle(ctx, command.EnrollCommand{StudentID: res.Student.ID, CourseID: "py101"})
	require.NoError(t, err)
	return res.Student.ID
}

func TestGetTranscript_FreshAfterFinalGrade(t *testing.T) {
	c := newCachedLedger()
	ctx := context.Background()
	s := c.enrolledStudent(t)

	warm, err := c.transcript.Handle(ctx, query.GetTranscriptQuery{StudentID: s})
	require.NoError(t, err)
	assert.Empty(t, warm.CourseRecords)
	_, hit, err := c.cache.Get(ctx, s)
	require.NoError(t, err)
	require.True(t, hit, "first read warms the cache")

	_, err = c.submit.Handle(ctx, command.SubmitGradeCommand{
		StudentID: s, CourseID: "py101", Marks: 92, AssessmentType: grading.AssessmentFinal, GraderID: "fac-1",
	})
	require.NoError(t, err)

	rec, err := c.transcript.Handle(ctx, query.GetTranscriptQuery{StudentID: s})
	require.NoError(t, err)
	require.Len(t, rec.CourseRecords, 1)
	assert.Equal(t, "A", rec.CourseRecords[0].LetterGrade)
	assert.Equal(t, 10.0, rec.CGPA)
}

func TestGetTranscript_SlowReaderCannotRestoreStaleRecord(t *testing.T) {
	c := newCachedLedger()
	ctx := context.Background()
	s := c.enrolledStudent(t)

	// a reader missed the cache and loaded the record before the grade commit
	gen, err := c.cache.Generation(ctx, s)
	require.NoError(t, err)
	stale, err := c.store.Reader().Records().GetByStudent(ctx, s)
	require.NoError(t, err)

	_, err = c.submit.Handle(ctx, command.SubmitGradeCommand{
		StudentID: s, CourseID: "py101", Marks: 92, AssessmentType: grading.AssessmentFinal, GraderID: "fac-1",
	})
	require.NoError(t, err)

	require.NoError(t, c.cache.Set(ctx, stale, gen, time.Minute))

	rec, err := c.transcript.Handle(ctx, query.GetTranscriptQuery{StudentID: s})
	require.NoError(t, err)
	require.Len(t, rec.CourseRecords, 1)
	assert.Equal(t, "A", rec.CourseRecords[0].LetterGrade)
	assert.Equal(t, 10.0, rec.CGPA)
}

package command

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/internal/infrastructure/persistence/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []shared.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType())
	}
	return out
}

type fixture struct {
	store   *memory.Store
	catalog *memory.Catalog
	events  *recordingPublisher
	ledger  *ledger.Ledger

	register *RegisterStudentHandler
	enroll   *EnrollHandler
	progress *UpdateProgressHandler
	drop     *DropEnrollmentHandler
	submit   *SubmitGradeHandler
	revise   *ReviseGradeHandler
	exit     *RecordExitHandler
	verify   *VerifyRecordHandler
}

func newFixture(t *testing.T, courses ...course.Facts) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		catalog: memory.NewCatalog(courses...),
		events:  &recordingPublisher{},
	}
	policy := record.DefaultPolicy()
	syncer := ledger.NewSynchronizer(grading.DefaultScale, policy)
	f.ledger = ledger.New(f.store, f.events, nil, ledger.Config{ConflictRetries: 1})

	f.register = NewRegisterStudentHandler(f.ledger, bcrypt.MinCost, nil)
	f.enroll = NewEnrollHandler(f.ledger, f.catalog, nil)
	f.progress = NewUpdateProgressHandler(f.ledger, syncer, f.catalog, nil)
	f.drop = NewDropEnrollmentHandler(f.ledger, nil)
	f.submit = NewSubmitGradeHandler(f.ledger, syncer, f.catalog, nil)
	f.revise = NewReviseGradeHandler(f.ledger, syncer, f.catalog, nil)
	f.exit = NewRecordExitHandler(f.ledger, policy, nil)
	f.verify = NewVerifyRecordHandler(f.ledger, nil)
	return f
}

var studentSeq struct {
	mu sync.Mutex
	n  int
}

func (f *fixture) newStudent(t *testing.T) *RegisterStudentResult {
	t.Helper()
	studentSeq.mu.Lock()
	studentSeq.n++
	n := studentSeq.n
	studentSeq.mu.Unlock()

	res, err := f.register.Handle(context.Background(), RegisterStudentCommand{
		Name:     fmt.Sprintf("Student %d", n),
		Email:    fmt.Sprintf("student%d@campus.edu", n),
		Password: "correct-horse",
		Code:     fmt.Sprintf("CS-%04d", n),
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) transcript(t *testing.T, studentID string) *record.AcademicRecord {
	t.Helper()
	rec, err := f.store.Reader().Records().GetByStudent(context.Background(), studentID)
	require.NoError(t, err)
	return rec
}

func pythonCourse() course.Facts {
	return course.Facts{
		ID: "py101", Code: "CS101", Name: "Programming in Python", Credits: 4, Semester: 1,
		SkillTags: []string{"python", "data"}, IsActive: true, MaxEnrollment: 30,
	}
}

func ethicsCourse() course.Facts {
	return course.Facts{
		ID: "eth201", Code: "HS201", Name: "Professional Ethics", Credits: 2, Semester: 2,
		SkillTags: []string{"ethics"}, IsActive: true,
	}
}

func ptr[T any](v T) *T { return &v }

package shared

import "time"

// EventType represents the type of domain event.
type EventType string

// Ledger event types. Every event is keyed by the student it concerns, so
// AggregateID is always a student id.
const (
	EventStudentRegistered EventType = "student.registered"

	EventEnrollmentAdmitted  EventType = "enrollment.admitted"
	EventEnrollmentCompleted EventType = "enrollment.completed"
	EventEnrollmentDropped   EventType = "enrollment.dropped"

	EventGradeSubmitted EventType = "grade.submitted"
	EventGradeRevised   EventType = "grade.revised"

	EventTranscriptSynchronized EventType = "transcript.synchronized"
	EventExitRecorded           EventType = "record.exit_recorded"
	EventRecordVerified         EventType = "record.verified"

	EventLedgerCacheDiverged EventType = "ledger.cache_diverged"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the student the event belongs to.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentRegisteredEvent is emitted when a student account and its record are created.
type StudentRegisteredEvent struct {
	BaseEvent
	RecordID    string `json:"record_id"`
	StudentCode string `json:"student_code"`
}

// Payload implements Event interface.
func (e StudentRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"record_id":    e.RecordID,
		"student_code": e.StudentCode,
	}
}

// NewStudentRegisteredEvent creates a new StudentRegisteredEvent.
func NewStudentRegisteredEvent(studentID, recordID, code string) StudentRegisteredEvent {
	return StudentRegisteredEvent{
		BaseEvent:   NewBaseEvent(EventStudentRegistered, studentID),
		RecordID:    recordID,
		StudentCode: code,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Enrollment Events
// ═══════════════════════════════════════════════════════════════════════════

// EnrollmentEvent covers admission, completion and drop.
type EnrollmentEvent struct {
	BaseEvent
	EnrollmentID   string `json:"enrollment_id"`
	CourseID       string `json:"course_id"`
	CreditsAwarded int    `json:"credits_awarded"`
}

// Payload implements Event interface.
func (e EnrollmentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"enrollment_id":   e.EnrollmentID,
		"course_id":       e.CourseID,
		"credits_awarded": e.CreditsAwarded,
	}
}

// NewEnrollmentEvent creates an enrollment lifecycle event.
func NewEnrollmentEvent(t EventType, studentID, enrollmentID, courseID string, credits int) EnrollmentEvent {
	return EnrollmentEvent{
		BaseEvent:      NewBaseEvent(t, studentID),
		EnrollmentID:   enrollmentID,
		CourseID:       courseID,
		CreditsAwarded: credits,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade Events
// ═══════════════════════════════════════════════════════════════════════════

// GradeEvent is emitted on submission and revision.
type GradeEvent struct {
	BaseEvent
	GradeID        string  `json:"grade_id"`
	CourseID       string  `json:"course_id"`
	AssessmentType string  `json:"assessment_type"`
	Marks          float64 `json:"marks"`
	LetterGrade    string  `json:"letter_grade"`
	GradePoint     float64 `json:"grade_point"`
}

// Payload implements Event interface.
func (e GradeEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"grade_id":        e.GradeID,
		"course_id":       e.CourseID,
		"assessment_type": e.AssessmentType,
		"marks":           e.Marks,
		"letter_grade":    e.LetterGrade,
		"grade_point":     e.GradePoint,
	}
}

// NewGradeEvent creates a grade event.
func NewGradeEvent(t EventType, studentID, gradeID, courseID, assessment string, marks float64, letter string, point float64) GradeEvent {
	return GradeEvent{
		BaseEvent:      NewBaseEvent(t, studentID),
		GradeID:        gradeID,
		CourseID:       courseID,
		AssessmentType: assessment,
		Marks:          marks,
		LetterGrade:    letter,
		GradePoint:     point,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Record Events
// ═══════════════════════════════════════════════════════════════════════════

// TranscriptSynchronizedEvent is emitted after a transcript entry settles.
type TranscriptSynchronizedEvent struct {
	BaseEvent
	RecordID      string  `json:"record_id"`
	CourseID      string  `json:"course_id"`
	Replaced      bool    `json:"replaced"`
	CGPA          float64 `json:"cgpa"`
	CreditsEarned int     `json:"credits_earned"`
}

// Payload implements Event interface.
func (e TranscriptSynchronizedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"record_id":      e.RecordID,
		"course_id":      e.CourseID,
		"replaced":       e.Replaced,
		"cgpa":           e.CGPA,
		"credits_earned": e.CreditsEarned,
	}
}

// NewTranscriptSynchronizedEvent creates a TranscriptSynchronizedEvent.
func NewTranscriptSynchronizedEvent(studentID, recordID, courseID string, replaced bool, cgpa float64, earned int) TranscriptSynchronizedEvent {
	return TranscriptSynchronizedEvent{
		BaseEvent:     NewBaseEvent(EventTranscriptSynchronized, studentID),
		RecordID:      recordID,
		CourseID:      courseID,
		Replaced:      replaced,
		CGPA:          cgpa,
		CreditsEarned: earned,
	}
}

// RecordEvent covers exit recording and verification.
type RecordEvent struct {
	BaseEvent
	RecordID string `json:"record_id"`
	Level    string `json:"level,omitempty"`
	Credits  int    `json:"credits,omitempty"`
	ActorID  string `json:"actor_id,omitempty"`
}

// Payload implements Event interface.
func (e RecordEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"record_id": e.RecordID,
		"level":     e.Level,
		"credits":   e.Credits,
		"actor_id":  e.ActorID,
	}
}

// NewExitRecordedEvent creates a record.exit_recorded event.
func NewExitRecordedEvent(studentID, recordID, level string, credits int) RecordEvent {
	return RecordEvent{
		BaseEvent: NewBaseEvent(EventExitRecorded, studentID),
		RecordID:  recordID,
		Level:     level,
		Credits:   credits,
	}
}

// NewRecordVerifiedEvent creates a record.verified event.
func NewRecordVerifiedEvent(studentID, recordID, adminID string) RecordEvent {
	return RecordEvent{
		BaseEvent: NewBaseEvent(EventRecordVerified, studentID),
		RecordID:  recordID,
		ActorID:   adminID,
	}
}

// CacheDivergedEvent reports a User.creditsEarned value that disagreed with
// the academic record.
type CacheDivergedEvent struct {
	BaseEvent
	Cached   int  `json:"cached"`
	Ledger   int  `json:"ledger"`
	Repaired bool `json:"repaired"`
}

// Payload implements Event interface.
func (e CacheDivergedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"cached":   e.Cached,
		"ledger":   e.Ledger,
		"repaired": e.Repaired,
	}
}

// NewCacheDivergedEvent creates a ledger.cache_diverged event.
func NewCacheDivergedEvent(studentID string, cached, ledger int, repaired bool) CacheDivergedEvent {
	return CacheDivergedEvent{
		BaseEvent: NewBaseEvent(EventLedgerCacheDiverged, studentID),
		Cached:    cached,
		Ledger:    ledger,
		Repaired:  repaired,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}

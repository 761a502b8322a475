package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nep-campus/credit-ledger/internal/application/command"
	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/application/query"
	"github.com/nep-campus/credit-ledger/internal/domain/course"
	"github.com/nep-campus/credit-ledger/internal/domain/grading"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST / RESPONSE BODIES
// ══════════════════════════════════════════════════════════════════════════════

type registerStudentRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	StudentCode string `json:"student_code" validate:"required"`
}

type enrollRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	// StudentID is honoured for admins only; students always enroll themselves.
	StudentID string `json:"student_id,omitempty"`
}

type progressRequest struct {
	Percentage       *float64 `json:"percentage" validate:"omitempty,gte=0,lte=100"`
	CompletedModules []string `json:"completed_modules" validate:"omitempty,dive,required"`
}

type submitGradeRequest struct {
	StudentID      string   `json:"student_id" validate:"required"`
	CourseID       string   `json:"course_id" validate:"required"`
	Marks          *float64 `json:"marks_obtained" validate:"required,gte=0,lte=100"`
	AssessmentType string   `json:"assessment_type" validate:"omitempty,max=32"`
	Remarks        string   `json:"remarks" validate:"max=500"`
}

type reviseGradeRequest struct {
	Marks   *float64 `json:"marks_obtained" validate:"omitempty,gte=0,lte=100"`
	Remarks *string  `json:"remarks" validate:"omitempty,max=500"`
}

type recordExitRequest struct {
	Level        string `json:"level" validate:"required,oneof=certificate diploma degree postgraduate"`
	TotalCredits *int   `json:"total_credits" validate:"omitempty,gte=0"`
}

type courseRequest struct {
	Code          string   `json:"code" validate:"required"`
	Name          string   `json:"name" validate:"required"`
	Credits       int      `json:"credits" validate:"gte=0"`
	Semester      int      `json:"semester" validate:"gte=0"`
	SkillTags     []string `json:"skill_tags"`
	IsActive      bool     `json:"is_active"`
	MaxEnrollment int      `json:"max_enrollment" validate:"gte=0"`
}

type registerStudentResponse struct {
	Student  any    `json:"student"`
	RecordID string `json:"record_id"`
}

type gradeResponse struct {
	Grade        *grading.Grade          `json:"grade"`
	Synchronized bool                    `json:"transcript_synchronized"`
	Replaced     bool                    `json:"entry_replaced,omitempty"`
	Record       *record.AcademicRecord  `json:"record,omitempty"`
	Entry        *record.TranscriptEntry `json:"entry,omitempty"`
}

func newGradeResponse(g *grading.Grade, out *ledger.Outcome) gradeResponse {
	resp := gradeResponse{Grade: g}
	if out != nil {
		resp.Synchronized = true
		resp.Replaced = out.Replaced
		resp.Record = out.Record
		entry := out.Entry
		resp.Entry = &entry
	}
	return resp
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	var req registerStudentRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.RegisterStudent.Handle(r.Context(), command.RegisterStudentCommand{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Code:     req.StudentCode,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, registerStudentResponse{Student: res.Student, RecordID: res.Record.ID})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.readableStudent(w, r)
	if !ok {
		return
	}
	rec, err := s.deps.Transcript.Handle(r.Context(), query.GetTranscriptQuery{StudentID: studentID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.readableStudent(w, r)
	if !ok {
		return
	}
	list, err := s.deps.Lists.Enrollments(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

func (s *Server) handleListGrades(w http.ResponseWriter, r *http.Request) {
	studentID, ok := s.readableStudent(w, r)
	if !ok {
		return
	}
	list, err := s.deps.Lists.Grades(r.Context(), studentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, list)
}

// readableStudent resolves {id} and checks the caller may read it.
func (s *Server) readableStudent(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return "", false
	}
	studentID := chi.URLParam(r, "id")
	if err := canRead(p, studentID); err != nil {
		writeError(w, r, err)
		return "", false
	}
	return studentID, true
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	facts, err := s.deps.Catalog.GetCourse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, facts)
}

func (s *Server) handlePutCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	facts := course.Facts{
		ID:            chi.URLParam(r, "id"),
		Code:          req.Code,
		Name:          req.Name,
		Credits:       req.Credits,
		Semester:      req.Semester,
		SkillTags:     course.NormalizeTags(req.SkillTags),
		IsActive:      req.IsActive,
		MaxEnrollment: req.MaxEnrollment,
	}
	if err := facts.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Catalog.PutCourse(r.Context(), facts); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, facts)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req enrollRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	studentID := p.UserID
	if req.StudentID != "" && req.StudentID != p.UserID {
		if p.Role != shared.RoleAdmin {
			writeError(w, r, shared.NewDomainError("auth", "Enroll", shared.ErrForbidden, "only admins may enroll another student"))
			return
		}
		studentID = req.StudentID
	}

	res, err := s.deps.Enroll.Handle(r.Context(), command.EnrollCommand{StudentID: studentID, CourseID: req.CourseID})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, res.Enrollment)
}

func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req progressRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.UpdateProgress.Handle(r.Context(), command.UpdateProgressCommand{
		EnrollmentID:     chi.URLParam(r, "id"),
		CallerID:         p.UserID,
		Percentage:       req.Percentage,
		CompletedModules: req.CompletedModules,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"enrollment": res.Enrollment,
		"completed":  res.Completed,
	})
}

func (s *Server) handleDropEnrollment(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.deps.DropEnrollment.Handle(r.Context(), command.DropEnrollmentCommand{
		EnrollmentID:   chi.URLParam(r, "id"),
		CallerID:       p.UserID,
		Administrative: p.Role == shared.RoleAdmin,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, e)
}

// ══════════════════════════════════════════════════════════════════════════════
// GRADES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleSubmitGrade(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req submitGradeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.SubmitGrade.Handle(r.Context(), command.SubmitGradeCommand{
		StudentID:      req.StudentID,
		CourseID:       req.CourseID,
		Marks:          *req.Marks,
		AssessmentType: req.AssessmentType,
		GraderID:       p.UserID,
		Remarks:        req.Remarks,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, newGradeResponse(res.Grade, res.Outcome))
}

func (s *Server) handleReviseGrade(w http.ResponseWriter, r *http.Request) {
	var req reviseGradeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.ReviseGrade.Handle(r.Context(), command.ReviseGradeCommand{
		GradeID: chi.URLParam(r, "id"),
		Marks:   req.Marks,
		Remarks: req.Remarks,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, newGradeResponse(res.Grade, res.Outcome))
}

// ══════════════════════════════════════════════════════════════════════════════
// RECORDS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.deps.Record.Handle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := canRead(p, rec.StudentID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleRecordExit(w http.ResponseWriter, r *http.Request) {
	var req recordExitRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.deps.RecordExit.Handle(r.Context(), command.RecordExitCommand{
		RecordID:     chi.URLParam(r, "id"),
		Level:        req.Level,
		TotalCredits: req.TotalCredits,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"exit":   res.Exit,
		"record": res.Record,
	})
}

func (s *Server) handleVerifyRecord(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.deps.VerifyRecord.Handle(r.Context(), command.VerifyRecordCommand{
		RecordID: chi.URLParam(r, "id"),
		AdminID:  p.UserID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, rec)
}

// handleReconcile runs a reconciliation pass; ?repair=true rewrites diverged caches.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	repair, _ := strconv.ParseBool(r.URL.Query().Get("repair"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	report, err := s.deps.Reconcile.Handle(r.Context(), query.ReconcileCreditsQuery{Repair: repair, PageSize: pageSize})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

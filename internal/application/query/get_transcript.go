// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nep-campus/credit-ledger/internal/application/ledger"
	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
	"github.com/nep-campus/credit-ledger/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TRANSCRIPT QUERY
// Возвращает академическую запись студента. Читает через кеш (cache-aside);
// леджер сбрасывает кеш синхронно после каждого коммита. Поколение берётся до
// чтения из хранилища, иначе медленное чтение вернёт в кеш устаревшую запись.
// ══════════════════════════════════════════════════════════════════════════════

// TranscriptCache - кеш академических записей по ID студента.
type TranscriptCache interface {
	// Get возвращает запись и true при попадании.
	Get(ctx context.Context, studentID string) (*record.AcademicRecord, bool, error)
	// Generation - счётчик инвалидаций студента.
	Generation(ctx context.Context, studentID string) (int64, error)
	// Set пишет rec, только если с момента чтения gen не было инвалидации
	// и в кеше нет записи новее.
	Set(ctx context.Context, rec *record.AcademicRecord, gen int64, ttl time.Duration) error
	Invalidate(ctx context.Context, studentID string) error
}

// GetTranscriptQuery - параметры запроса.
type GetTranscriptQuery struct {
	StudentID string
}

// Validate проверяет корректность параметров запроса.
func (q GetTranscriptQuery) Validate() error {
	if strings.TrimSpace(q.StudentID) == "" {
		return shared.NewDomainError("record", "GetTranscript", shared.ErrInvalidArgument, "student_id is required")
	}
	return nil
}

// GetTranscriptHandler обрабатывает GetTranscriptQuery.
type GetTranscriptHandler struct {
	reader ledger.Tx
	cache  TranscriptCache
	ttl    time.Duration
	log    *logger.Logger
}

// NewGetTranscriptHandler создаёт обработчик. cache может быть nil.
func NewGetTranscriptHandler(reader ledger.Tx, cache TranscriptCache, ttl time.Duration, log *logger.Logger) *GetTranscriptHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetTranscriptHandler{reader: reader, cache: cache, ttl: ttl, log: log.With(logger.Component("query"))}
}

// Handle выполняет запрос. Ошибки кеша не роняют запрос: читаем из хранилища.
func (h *GetTranscriptHandler) Handle(ctx context.Context, q GetTranscriptQuery) (*record.AcademicRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		gen       int64
		cacheable bool
	)
	if h.cache != nil {
		rec, hit, err := h.cache.Get(ctx, q.StudentID)
		switch {
		case err != nil:
			h.log.Warn("transcript cache read failed", logger.StudentID(q.StudentID), logger.Err(err))
		case hit:
			return rec, nil
		default:
			gen, cacheable = h.generation(ctx, q.StudentID)
		}
	}

	rec, err := h.reader.Records().GetByStudent(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_transcript: %w", err)
	}

	if cacheable {
		if err := h.cache.Set(ctx, rec, gen, h.ttl); err != nil {
			h.log.Warn("transcript cache write failed", logger.StudentID(q.StudentID), logger.Err(err))
		}
	}
	return rec, nil
}

// generation читается до хранилища.
func (h *GetTranscriptHandler) generation(ctx context.Context, studentID string) (int64, bool) {
	gen, err := h.cache.Generation(ctx, studentID)
	if err != nil {
		h.log.Warn("transcript cache generation read failed", logger.StudentID(studentID), logger.Err(err))
		return 0, false
	}
	return gen, true
}

// GetRecordHandler возвращает запись по её собственному ID.
type GetRecordHandler struct {
	reader ledger.Tx
}

// NewGetRecordHandler создаёт обработчик.
func NewGetRecordHandler(reader ledger.Tx) *GetRecordHandler {
	return &GetRecordHandler{reader: reader}
}

// Handle выполняет запрос.
func (h *GetRecordHandler) Handle(ctx context.Context, recordID string) (*record.AcademicRecord, error) {
	if strings.TrimSpace(recordID) == "" {
		return nil, shared.NewDomainError("record", "Get", shared.ErrInvalidArgument, "record_id is required")
	}
	rec, err := h.reader.Records().GetByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("get_record: %w", err)
	}
	return rec, nil
}

package postgres

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-campus/credit-ledger/internal/domain/record"
	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, shared.ErrRecordNotFound))
	assert.ErrorIs(t, translate(pgx.ErrNoRows, shared.ErrRecordNotFound), shared.ErrNotFound)
	assert.ErrorIs(t, translate(pgx.ErrNoRows, nil), pgx.ErrNoRows)

	serial := &pgconn.PgError{Code: codeSerializationFailure}
	assert.True(t, shared.IsVersionConflict(translate(serial, nil)))

	dup := &pgconn.PgError{Code: codeUniqueViolation}
	assert.Equal(t, shared.KindConflict, shared.KindOf(translate(dup, nil)))
	assert.True(t, IsUniqueViolation(dup))

	plain := errors.New("boom")
	assert.Equal(t, plain, translate(plain, nil))
}

func TestMigrations_OrderedAndComplete(t *testing.T) {
	migs := Migrations()
	seen := map[int]bool{}
	for _, m := range migs {
		assert.False(t, seen[m.Version], "duplicate version %d", m.Version)
		seen[m.Version] = true
		assert.NotEmpty(t, strings.TrimSpace(m.UpSQL))
		assert.NotEmpty(t, strings.TrimSpace(m.DownSQL))
	}

	all := strings.Join([]string{migration001Up, migration002Up, migration003Up}, "\n")
	for _, table := range []string{"students", "academic_records", "courses", "course_seats", "enrollments", "grades"} {
		assert.Contains(t, all, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	assert.Contains(t, migration003Up, "UNIQUE (student_id, course_id)")
}

func TestPending(t *testing.T) {
	migs := []Migration{{Version: 3}, {Version: 1}, {Version: 2}}
	got := pending(migs, map[int]time.Time{2: time.Now()})
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Version)
	assert.Equal(t, 3, got[1].Version)
}

func TestPoolOptions_Apply(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/ledger")
	require.NoError(t, err)
	before := cfg.MaxConnIdleTime

	PoolOptions{MaxConns: 7}.apply(cfg)
	assert.EqualValues(t, 7, cfg.MaxConns)
	assert.Equal(t, before, cfg.MaxConnIdleTime, "zero values keep defaults")
}

func TestMarshalRecord_NilSlicesBecomeArrays(t *testing.T) {
	courses, exits, err := marshalRecord(&record.AcademicRecord{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(courses))
	assert.JSONEq(t, `[]`, string(exits))
}

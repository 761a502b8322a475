package student

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

func TestNewStudent(t *testing.T) {
	s, err := NewStudent(NewStudentParams{
		ID: "s1", Name: " Asha Rao ", Email: "Asha@Campus.edu", Code: "cs2024-017", PasswordHash: "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", s.Name)
	assert.Equal(t, "asha@campus.edu", s.Email)
	assert.Equal(t, shared.StudentCode("CS2024-017"), s.Code)
	assert.Zero(t, s.CreditsEarned)
	assert.False(t, s.Diverged(0))
	assert.True(t, s.Diverged(4))
}

func TestNewStudent_Invalid(t *testing.T) {
	base := NewStudentParams{ID: "s1", Name: "A", Email: "a@b.c", Code: "CS-001", PasswordHash: "x"}

	p := base
	p.Email = "not-an-email"
	_, err := NewStudent(p)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	p = base
	p.Name = "  "
	_, err = NewStudent(p)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	p = base
	p.Code = "a b"
	_, err = NewStudent(p)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}

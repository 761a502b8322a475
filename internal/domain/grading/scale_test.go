package grading

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nep-campus/credit-ledger/internal/domain/shared"
)

func TestDefaultScale_Derive(t *testing.T) {
	cases := []struct {
		marks  float64
		letter string
		point  float64
	}{
		{100, "A", 10},
		{92, "A", 10},
		{90, "A", 10},
		{89.99, "B+", 9},
		{75, "B", 8},
		{60, "C+", 7},
		{50, "C", 6},
		{45, "D", 5},
		{40, "P", 4},
		{39.5, "F", 0},
		{0, "F", 0},
	}
	for _, tc := range cases {
		letter, point, err := DefaultScale.Derive(tc.marks)
		require.NoError(t, err, "marks %v", tc.marks)
		assert.Equal(t, tc.letter, letter, "marks %v", tc.marks)
		assert.Equal(t, tc.point, point, "marks %v", tc.marks)
	}
}

func TestDefaultScale_DeriveOutOfRange(t *testing.T) {
	for _, m := range []float64{-1, 100.01, 250} {
		_, _, err := DefaultScale.Derive(m)
		assert.ErrorIs(t, err, shared.ErrInvalidArgument, "marks %v", m)
	}
}

func TestNewScale_RejectsBadTables(t *testing.T) {
	_, err := NewScale(nil)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	_, err = NewScale([]Band{{MinMarks: 50, Letter: "P", Point: 4}})
	assert.Error(t, err, "last cutoff must be zero")

	_, err = NewScale([]Band{
		{MinMarks: 50, Letter: "P", Point: 4},
		{MinMarks: 60, Letter: "A", Point: 10},
		{MinMarks: 0, Letter: "F", Point: 0},
	})
	assert.Error(t, err, "cutoffs must descend")

	s, err := NewScale([]Band{
		{MinMarks: 85, Letter: "A", Point: 4},
		{MinMarks: 50, Letter: "C", Point: 2},
		{MinMarks: 0, Letter: "F", Point: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 4.0, s.MaxPoint())
	letter, point, err := s.Derive(70)
	require.NoError(t, err)
	assert.Equal(t, "C", letter)
	assert.Equal(t, 2.0, point)
}

func TestGrade_NewAndRevise(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	g, err := NewGrade(DefaultScale, NewGradeParams{
		ID: "g1", StudentID: "s1", CourseID: "c1", EnrollmentID: "e1",
		Marks: 92, GradedBy: "f1", Now: now,
	})
	require.NoError(t, err)
	assert.True(t, g.IsFinal(), "empty assessment type defaults to final")
	assert.Equal(t, "A", g.LetterGrade)
	assert.Equal(t, 10.0, g.GradePoint)

	marks := 55.0
	remarks := "  late submission "
	require.NoError(t, g.Revise(DefaultScale, &marks, &remarks, now.Add(time.Hour)))
	assert.Equal(t, 55.0, g.Marks)
	assert.Equal(t, "C", g.LetterGrade)
	assert.Equal(t, 6.0, g.GradePoint)
	assert.Equal(t, "late submission", g.Remarks)
	assert.Equal(t, now.Add(time.Hour), g.UpdatedAt)

	bad := 101.0
	err = g.Revise(DefaultScale, &bad, nil, now)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	assert.Equal(t, "C", g.LetterGrade, "failed revision leaves grade untouched")
}

func TestGrade_MidtermIsNotFinal(t *testing.T) {
	g, err := NewGrade(DefaultScale, NewGradeParams{ID: "g", Marks: 70, AssessmentType: " Midterm "})
	require.NoError(t, err)
	assert.Equal(t, "midterm", g.AssessmentType)
	assert.False(t, g.IsFinal())
}

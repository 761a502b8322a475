package shared

import (
	"regexp"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Identifier Value Objects
// ═══════════════════════════════════════════════════════════════════════════

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsUUID reports whether s looks like a canonical UUID.
func IsUUID(s string) bool {
	return uuidRegex.MatchString(s)
}

// StudentCode is the institution-issued roll number, e.g. "CS2024-017".
type StudentCode string

var studentCodeRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9-]{2,31}$`)

// IsValid checks the roll number format.
func (c StudentCode) IsValid() bool {
	return studentCodeRegex.MatchString(string(c))
}

// NewStudentCode normalizes and validates a roll number.
func NewStudentCode(value string) (StudentCode, error) {
	c := StudentCode(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", NewDomainError("shared", "NewStudentCode", ErrInvalidArgument, "invalid student code")
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentage Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Percentage is a value on the closed range [0, 100]. Marks and course
// progress both use it.
type Percentage float64

const (
	MinPercentage Percentage = 0
	MaxPercentage Percentage = 100
)

// IsValid checks the range.
func (p Percentage) IsValid() bool {
	return p >= MinPercentage && p <= MaxPercentage
}

// IsComplete reports whether p has reached 100.
func (p Percentage) IsComplete() bool {
	return p >= MaxPercentage
}

// ═══════════════════════════════════════════════════════════════════════════
// Role Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Role is the capability carried by an authenticated principal.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

// IsValid checks that the role is known.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleFaculty, RoleStudent:
		return true
	default:
		return false
	}
}

// Principal is the caller identity supplied by the authentication layer.
type Principal struct {
	UserID string
	Role   Role
}

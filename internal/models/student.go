package models

import (
	"strings"
	"time"
)

// UnassignedClass labels students without a class.
const UnassignedClass = "Unassigned"

// Student is a roster member owned by exactly one user. Counters and entries
// live in the embedded ledger.
type Student struct {
	ID           string  `db:"id" json:"id"`
	UserID       string  `db:"user_id" json:"-"`
	Name         string  `db:"name" json:"name"`
	ClassName    *string `db:"class_name" json:"class"`
	Image        *string `db:"image" json:"image"`
	MobileNumber *string `db:"mobile_number" json:"mobileNumber"`
	Address      *string `db:"address" json:"address"`
	AttendanceLedger
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// StudentProfile carries the optional display fields of a student.
type StudentProfile struct {
	ClassName    *string `json:"class"`
	Image        *string `json:"image"`
	MobileNumber *string `json:"mobileNumber"`
	Address      *string `json:"address"`
}

// Normalize trims values and turns blank ones into nil.
func (p StudentProfile) Normalize() StudentProfile {
	return StudentProfile{
		ClassName:    blankToNil(p.ClassName),
		Image:        blankToNil(p.Image),
		MobileNumber: blankToNil(p.MobileNumber),
		Address:      blankToNil(p.Address),
	}
}

// StudentFilter narrows roster listings.
type StudentFilter struct {
	Search string
}

// StudentSummary is the public projection of a student.
type StudentSummary struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Class        string         `json:"class"`
	Image        *string        `json:"image"`
	MobileNumber *string        `json:"mobileNumber"`
	Address      *string        `json:"address"`
	Present      int            `json:"present"`
	Absent       int            `json:"absent"`
	History      []HistoryEntry `json:"history"`
}

// ClassLabel returns the class name or UnassignedClass.
func (s *Student) ClassLabel() string {
	if s.ClassName == nil || strings.TrimSpace(*s.ClassName) == "" {
		return UnassignedClass
	}
	return *s.ClassName
}

// ApplyProfile overwrites the optional fields.
func (s *Student) ApplyProfile(p StudentProfile) {
	p = p.Normalize()
	s.ClassName = p.ClassName
	s.Image = p.Image
	s.MobileNumber = p.MobileNumber
	s.Address = p.Address
}

// MarkAttendance records attendance on the student's ledger.
func (s *Student) MarkAttendance(date time.Time, status AttendanceStatus, at time.Time) (AttendanceMark, error) {
	mark, err := s.AttendanceLedger.Mark(date, status, at)
	if err != nil {
		return AttendanceMark{}, err
	}
	mark.Entry.StudentID = s.ID
	return mark, nil
}

// Summary projects the student without mutating it.
func (s *Student) Summary() StudentSummary {
	return StudentSummary{
		ID:           s.ID,
		Name:         s.Name,
		Class:        s.ClassLabel(),
		Image:        s.Image,
		MobileNumber: s.MobileNumber,
		Address:      s.Address,
		Present:      s.Present,
		Absent:       s.Absent,
		History:      s.History(DateLayout),
	}
}

// NormalizeName trims surrounding whitespace from a student name.
func NormalizeName(name string) string {
	return strings.TrimSpace(name)
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

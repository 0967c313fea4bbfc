package models

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

// AttendanceStatus represents the outcome recorded for a student on a date.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent:
		return true
	default:
		return false
	}
}

// Layouts used when parsing and rendering attendance data.
const (
	DateLayout      = "2006-01-02"
	ClassDateLayout = "02/01/2006"
	TimeOfDayLayout = "15:04:05"
)

// ParseAttendanceDate parses a YYYY-MM-DD calendar date into UTC midnight.
func ParseAttendanceDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	date, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}

// ParseAttendanceStatus validates a raw status value.
func ParseAttendanceStatus(raw string) (AttendanceStatus, error) {
	status := AttendanceStatus(strings.TrimSpace(raw))
	if !status.Valid() {
		return "", appErrors.Clone(appErrors.ErrValidation, "status must be present or absent")
	}
	return status, nil
}

// AttendanceEntry is a single dated record in a student's ledger.
type AttendanceEntry struct {
	ID        string           `db:"id" json:"-"`
	StudentID string           `db:"student_id" json:"-"`
	Date      time.Time        `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Time      string           `db:"time" json:"time"`
	Position  int              `db:"position" json:"-"`
	CreatedAt time.Time        `db:"created_at" json:"-"`
}

// HistoryEntry is the rendered form of an AttendanceEntry.
type HistoryEntry struct {
	Date   string           `json:"date"`
	Status AttendanceStatus `json:"status"`
	Time   string           `json:"time"`
}

// AttendanceLedger holds a student's entries together with the running
// counters. Present and Absent always equal the number of entries carrying
// that status; every mutation goes through Mark.
type AttendanceLedger struct {
	Present int               `db:"present" json:"present"`
	Absent  int               `db:"absent" json:"absent"`
	Entries []AttendanceEntry `db:"-" json:"-"`
}

// AttendanceMark describes the transition applied by Mark so storage can
// persist it as one unit.
type AttendanceMark struct {
	Entry    AttendanceEntry
	Created  bool
	Previous AttendanceStatus
}

// StatusChanged reports whether an existing entry flipped status.
func (m AttendanceMark) StatusChanged() bool {
	return !m.Created && m.Previous != m.Entry.Status
}

// Mark records status for date. A new date appends an entry, a repeated date
// overwrites the entry in place and moves one count between the counters
// when the status differs.
func (l *AttendanceLedger) Mark(date time.Time, status AttendanceStatus, at time.Time) (AttendanceMark, error) {
	if !status.Valid() {
		return AttendanceMark{}, appErrors.Clone(appErrors.ErrValidation, "status must be present or absent")
	}
	if date.IsZero() {
		return AttendanceMark{}, appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	day := calendarDay(date)
	recordedAt := at.UTC().Format(TimeOfDayLayout)

	present, absent := l.Present, l.Absent
	if idx := l.indexOf(day); idx >= 0 {
		entry := &l.Entries[idx]
		previous := entry.Status
		if previous != status {
			present, absent = shift(present, absent, previous, -1)
			present, absent = shift(present, absent, status, 1)
		}
		entry.Status = status
		entry.Time = recordedAt
		l.Present, l.Absent = present, absent
		return AttendanceMark{Entry: *entry, Previous: previous}, nil
	}

	entry := AttendanceEntry{
		Date:      day,
		Status:    status,
		Time:      recordedAt,
		Position:  l.nextPosition(),
		CreatedAt: at.UTC(),
	}
	present, absent = shift(present, absent, status, 1)
	l.Entries = append(l.Entries, entry)
	l.Present, l.Absent = present, absent
	return AttendanceMark{Entry: entry, Created: true}, nil
}

// Tally recounts present and absent entries by walking the ledger.
func (l *AttendanceLedger) Tally() (present, absent int) {
	for _, entry := range l.Entries {
		switch entry.Status {
		case AttendanceStatusPresent:
			present++
		case AttendanceStatusAbsent:
			absent++
		}
	}
	return present, absent
}

// Reconcile returns an invariant violation when the counters drifted from
// the entries.
func (l *AttendanceLedger) Reconcile() error {
	present, absent := l.Tally()
	if present == l.Present && absent == l.Absent {
		return nil
	}
	drift := fmt.Errorf("counters present=%d absent=%d, ledger present=%d absent=%d", l.Present, l.Absent, present, absent)
	return appErrors.Wrap(drift, appErrors.ErrInvariant.Code, appErrors.ErrInvariant.Status, appErrors.ErrInvariant.Message)
}

// Records returns the number of entries in the ledger.
func (l *AttendanceLedger) Records() int {
	return len(l.Entries)
}

// History renders entries in ledger order using the given date layout.
func (l *AttendanceLedger) History(layout string) []HistoryEntry {
	history := make([]HistoryEntry, 0, len(l.Entries))
	for _, entry := range l.Entries {
		history = append(history, HistoryEntry{
			Date:   entry.Date.Format(layout),
			Status: entry.Status,
			Time:   entry.Time,
		})
	}
	return history
}

func (l *AttendanceLedger) indexOf(day time.Time) int {
	for i := range l.Entries {
		if sameDay(l.Entries[i].Date, day) {
			return i
		}
	}
	return -1
}

func (l *AttendanceLedger) nextPosition() int {
	if len(l.Entries) == 0 {
		return 0
	}
	return l.Entries[len(l.Entries)-1].Position + 1
}

func shift(present, absent int, status AttendanceStatus, delta int) (int, int) {
	if status == AttendanceStatusPresent {
		return present + delta, absent
	}
	return present, absent + delta
}

func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Deltas returns the counter adjustments the mark implies.
func (m AttendanceMark) Deltas() (present, absent int) {
	if m.Created {
		return shift(0, 0, m.Entry.Status, 1)
	}
	if !m.StatusChanged() {
		return 0, 0
	}
	present, absent = shift(0, 0, m.Previous, -1)
	return shift(present, absent, m.Entry.Status, 1)
}

package models

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

var markedAt = time.Date(2024, 1, 1, 9, 30, 15, 0, time.UTC)

func mustDate(t *testing.T, raw string) time.Time {
	t.Helper()
	d, err := ParseAttendanceDate(raw)
	require.NoError(t, err)
	return d
}

func TestParseAttendanceDate(t *testing.T) {
	d, err := ParseAttendanceDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	for _, raw := range []string{"", "2023-02-29", "01/02/2024", "2024-1-1", "yesterday"} {
		_, err := ParseAttendanceDate(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), raw)
	}
}

func TestParseAttendanceStatus(t *testing.T) {
	s, err := ParseAttendanceStatus("present")
	require.NoError(t, err)
	assert.Equal(t, AttendanceStatusPresent, s)

	for _, raw := range []string{"", "late", "Present", "H"} {
		_, err := ParseAttendanceStatus(raw)
		assert.True(t, errors.Is(err, appErrors.ErrValidation), raw)
	}
}

func TestLedgerMarkNewDate(t *testing.T) {
	var l AttendanceLedger
	mark, err := l.Mark(mustDate(t, "2024-01-01"), AttendanceStatusPresent, markedAt)
	require.NoError(t, err)

	assert.True(t, mark.Created)
	assert.False(t, mark.StatusChanged())
	assert.Equal(t, "09:30:15", mark.Entry.Time)
	assert.Equal(t, 0, mark.Entry.Position)
	assert.Equal(t, 1, l.Present)
	assert.Equal(t, 0, l.Absent)
	assert.Len(t, l.Entries, 1)
}

func TestLedgerMarkSameStatusOnlyTouchesTime(t *testing.T) {
	var l AttendanceLedger
	date := mustDate(t, "2024-01-01")
	_, err := l.Mark(date, AttendanceStatusAbsent, markedAt)
	require.NoError(t, err)

	mark, err := l.Mark(date, AttendanceStatusAbsent, markedAt.Add(time.Hour))
	require.NoError(t, err)

	assert.False(t, mark.Created)
	assert.False(t, mark.StatusChanged())
	assert.Equal(t, AttendanceStatusAbsent, mark.Previous)
	assert.Equal(t, "10:30:15", l.Entries[0].Time)
	assert.Equal(t, 0, l.Present)
	assert.Equal(t, 1, l.Absent)
	assert.Len(t, l.Entries, 1)
}

func TestLedgerStatusFlipMovesOneCount(t *testing.T) {
	l := AttendanceLedger{}
	_, err := l.Mark(mustDate(t, "2023-12-31"), AttendanceStatusPresent, markedAt)
	require.NoError(t, err)
	beforePresent, beforeAbsent := l.Present, l.Absent

	date := mustDate(t, "2024-01-01")
	_, err = l.Mark(date, AttendanceStatusPresent, markedAt)
	require.NoError(t, err)
	mark, err := l.Mark(date, AttendanceStatusAbsent, markedAt)
	require.NoError(t, err)

	assert.True(t, mark.StatusChanged())
	assert.Equal(t, AttendanceStatusPresent, mark.Previous)
	assert.Equal(t, beforePresent, l.Present)
	assert.Equal(t, beforeAbsent+1, l.Absent)

	matches := 0
	for _, e := range l.Entries {
		if sameDay(e.Date, date) {
			matches++
		}
	}
	assert.Equal(t, 1, matches)
	require.NoError(t, l.Reconcile())
}

func TestLedgerMarkRejectsInvalidInputWithoutMutation(t *testing.T) {
	var l AttendanceLedger
	_, err := l.Mark(mustDate(t, "2024-01-01"), AttendanceStatus("late"), markedAt)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = l.Mark(time.Time{}, AttendanceStatusPresent, markedAt)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	assert.Empty(t, l.Entries)
	assert.Zero(t, l.Present+l.Absent)
}

func TestLedgerMatchesDatesIgnoringTimeOfDay(t *testing.T) {
	var l AttendanceLedger
	_, err := l.Mark(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), AttendanceStatusPresent, markedAt)
	require.NoError(t, err)
	mark, err := l.Mark(time.Date(2024, 3, 5, 17, 45, 0, 0, time.UTC), AttendanceStatusAbsent, markedAt)
	require.NoError(t, err)

	assert.False(t, mark.Created)
	assert.Len(t, l.Entries, 1)
}

func TestLedgerHistoryKeepsInsertionOrder(t *testing.T) {
	var l AttendanceLedger
	for _, raw := range []string{"2024-01-03", "2024-01-01", "2024-01-02"} {
		_, err := l.Mark(mustDate(t, raw), AttendanceStatusPresent, markedAt)
		require.NoError(t, err)
	}
	_, err := l.Mark(mustDate(t, "2024-01-01"), AttendanceStatusAbsent, markedAt)
	require.NoError(t, err)

	history := l.History(DateLayout)
	require.Len(t, history, 3)
	assert.Equal(t, "2024-01-03", history[0].Date)
	assert.Equal(t, "2024-01-01", history[1].Date)
	assert.Equal(t, AttendanceStatusAbsent, history[1].Status)
	assert.Equal(t, "2024-01-02", history[2].Date)
	assert.Equal(t, "01/01/2024", l.History(ClassDateLayout)[1].Date)
}

func TestLedgerCountersMatchEntriesAfterEveryMark(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	statuses := []AttendanceStatus{AttendanceStatusPresent, AttendanceStatusAbsent}

	for run := 0; run < 50; run++ {
		var l AttendanceLedger
		for step := 0; step < 200; step++ {
			date := base.AddDate(0, 0, rng.Intn(15))
			status := statuses[rng.Intn(2)]
			before := l.Present + l.Absent
			mark, err := l.Mark(date, status, markedAt)
			require.NoError(t, err)

			require.NoError(t, l.Reconcile(), "run %d step %d", run, step)
			after := l.Present + l.Absent
			if mark.Created {
				require.Equal(t, before+1, after)
			} else {
				require.Equal(t, before, after)
			}
			require.Equal(t, l.Records(), after)
		}
	}
}

func TestLedgerReconcileDetectsDrift(t *testing.T) {
	l := AttendanceLedger{
		Present: 2,
		Entries: []AttendanceEntry{{Date: markedAt, Status: AttendanceStatusPresent}},
	}
	err := l.Reconcile()
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrInvariant))
}

func TestAttendanceMarkDeltas(t *testing.T) {
	created := AttendanceMark{Created: true, Entry: AttendanceEntry{Status: AttendanceStatusAbsent}}
	p, a := created.Deltas()
	assert.Equal(t, [2]int{0, 1}, [2]int{p, a})

	same := AttendanceMark{Previous: AttendanceStatusPresent, Entry: AttendanceEntry{Status: AttendanceStatusPresent}}
	p, a = same.Deltas()
	assert.Equal(t, [2]int{0, 0}, [2]int{p, a})

	flip := AttendanceMark{Previous: AttendanceStatusPresent, Entry: AttendanceEntry{Status: AttendanceStatusAbsent}}
	p, a = flip.Deltas()
	assert.Equal(t, [2]int{-1, 1}, [2]int{p, a})
}

// Stored counters advance by Deltas. Two requests flipping the same entry must
// each compute their transition from the ledger left by the previous one.
func TestAttendanceMarkDeltasAppliedInSequence(t *testing.T) {
	var stored AttendanceLedger
	_, err := stored.Mark(mustDate(t, "2024-01-01"), AttendanceStatusPresent, markedAt)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		locked := AttendanceLedger{Present: stored.Present, Absent: stored.Absent, Entries: append([]AttendanceEntry(nil), stored.Entries...)}
		mark, err := locked.Mark(mustDate(t, "2024-01-01"), AttendanceStatusAbsent, markedAt.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)

		p, a := mark.Deltas()
		stored.Present += p
		stored.Absent += a
		stored.Entries = locked.Entries
	}

	assert.Equal(t, 0, stored.Present)
	assert.Equal(t, 1, stored.Absent)
	assert.NoError(t, stored.Reconcile())
}

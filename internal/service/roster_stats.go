package service

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/rollcall-api/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ComputeRosterStats aggregates counters across students. Records are counted
// from the ledgers themselves so callers can check them against the counters.
func ComputeRosterStats(students []models.Student) models.RosterStats {
	stats := models.RosterStats{TotalStudents: len(students)}
	for i := range students {
		stats.TotalPresent += students[i].Present
		stats.TotalAbsent += students[i].Absent
		stats.TotalRecords += students[i].Records()
	}
	stats.AverageAttendance = attendanceRate(stats.TotalPresent, stats.TotalRecords)
	return stats
}

// attendanceRate returns present/records as a percentage rounded half-up to
// two decimals, or zero when there are no records.
func attendanceRate(present, records int) float64 {
	if records <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(int64(present)).Mul(hundred).Div(decimal.NewFromInt(int64(records)))
	value, _ := rate.Round(2).Float64()
	return value
}

// driftedStudents returns the ids of students whose counters disagree with
// their ledger.
func driftedStudents(students []models.Student) []string {
	var ids []string
	for i := range students {
		if err := students[i].Reconcile(); err != nil {
			ids = append(ids, students[i].ID)
		}
	}
	return ids
}

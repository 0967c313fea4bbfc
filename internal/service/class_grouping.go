package service

import (
	"sort"

	"github.com/noah-isme/rollcall-api/internal/models"
)

// GroupByClass partitions students by class label. Buckets are ordered by
// label with Unassigned last; students keep their input order. Each student's
// split is recounted from the ledger while bucket totals sum the counters.
func GroupByClass(students []models.Student) []models.ClassBucket {
	index := make(map[string]int)
	buckets := make([]models.ClassBucket, 0)

	for i := range students {
		student := &students[i]
		label := student.ClassLabel()
		pos, ok := index[label]
		if !ok {
			pos = len(buckets)
			index[label] = pos
			buckets = append(buckets, models.ClassBucket{Class: label, Students: []models.ClassStudent{}})
		}

		present, absent := student.Tally()
		bucket := &buckets[pos]
		bucket.TotalPresent += student.Present
		bucket.TotalAbsent += student.Absent
		bucket.Students = append(bucket.Students, models.ClassStudent{
			StudentID:         student.ID,
			StudentName:       student.Name,
			StudentImage:      student.Image,
			MobileNumber:      student.MobileNumber,
			Address:           student.Address,
			Present:           present,
			Absent:            absent,
			AttendanceRecords: student.History(models.ClassDateLayout),
		})
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		ui := buckets[i].Class == models.UnassignedClass
		uj := buckets[j].Class == models.UnassignedClass
		if ui != uj {
			return !ui
		}
		return buckets[i].Class < buckets[j].Class
	})
	return buckets
}

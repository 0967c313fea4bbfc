package models

// RosterStats aggregates attendance over every student of one owner.
type RosterStats struct {
	TotalStudents     int     `json:"totalStudents"`
	TotalPresent      int     `json:"totalPresent"`
	TotalAbsent       int     `json:"totalAbsent"`
	TotalRecords      int     `json:"totalRecords"`
	AverageAttendance float64 `json:"averageAttendance"`
}

// Consistent reports whether the independently counted records match the counters.
func (s RosterStats) Consistent() bool {
	return s.TotalRecords == s.TotalPresent+s.TotalAbsent
}

// ClassBucket groups the students sharing a class label.
type ClassBucket struct {
	Class        string         `json:"class"`
	TotalPresent int            `json:"totalPresent"`
	TotalAbsent  int            `json:"totalAbsent"`
	Students     []ClassStudent `json:"students"`
}

// ClassStudent is a student's entry inside a ClassBucket.
type ClassStudent struct {
	StudentID         string         `json:"studentId"`
	StudentName       string         `json:"studentName"`
	StudentImage      *string        `json:"studentImage"`
	MobileNumber      *string        `json:"mobileNumber"`
	Address           *string        `json:"address"`
	Present           int            `json:"present"`
	Absent            int            `json:"absent"`
	AttendanceRecords []HistoryEntry `json:"attendanceRecords"`
}

// RosterListing is a filtered student list with running totals.
type RosterListing struct {
	Students     []StudentSummary `json:"students"`
	Count        int              `json:"count"`
	TotalPresent int              `json:"totalPresent"`
	TotalAbsent  int              `json:"totalAbsent"`
}

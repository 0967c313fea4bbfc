package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/rollcall-api/internal/models"
)

const studentColumns = `id, user_id, name, class_name, image, mobile_number, address, present, absent, created_at, updated_at`

const entryColumns = `id, student_id, date, status, time, position, created_at`

const entryOrder = `position, created_at, id`

// ErrUniqueViolation marks writes rejected by a unique index, such as a
// duplicate student name.
var ErrUniqueViolation = errors.New("unique constraint violated")

// StudentRepository manages persistence for students and their attendance ledgers.
// Every query is scoped by the owning user.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// ListByOwner returns the owner's students newest first with ledgers attached.
func (r *StudentRepository) ListByOwner(ctx context.Context, ownerID string, filter models.StudentFilter) ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE user_id = $1"
	args := []interface{}{ownerID}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+escapeLike(strings.ToLower(search))+"%")
	}
	query += " ORDER BY created_at DESC, id"

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if len(students) == 0 {
		return students, nil
	}

	ids := make([]string, len(students))
	for i := range students {
		ids[i] = students[i].ID
	}
	var entries []models.AttendanceEntry
	entryQuery := "SELECT " + entryColumns + " FROM attendance_records WHERE student_id = ANY($1) ORDER BY student_id, " + entryOrder
	if err := r.db.SelectContext(ctx, &entries, entryQuery, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}

	byStudent := make(map[string][]models.AttendanceEntry, len(students))
	for _, entry := range entries {
		byStudent[entry.StudentID] = append(byStudent[entry.StudentID], entry)
	}
	for i := range students {
		students[i].Entries = byStudent[students[i].ID]
	}
	return students, nil
}

// FindByID loads one student owned by ownerID. Students of other owners
// yield sql.ErrNoRows exactly like missing ones.
func (r *StudentRepository) FindByID(ctx context.Context, ownerID, id string) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM students WHERE id = $1 AND user_id = $2"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}

	entryQuery := "SELECT " + entryColumns + " FROM attendance_records WHERE student_id = $1 ORDER BY " + entryOrder
	if err := r.db.SelectContext(ctx, &student.Entries, entryQuery, id); err != nil {
		return nil, fmt.Errorf("load attendance records: %w", err)
	}
	return &student, nil
}

// ExistsByName reports whether the owner already has a student with the same
// name ignoring case, optionally excluding one student.
func (r *StudentRepository) ExistsByName(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE user_id = $1 AND LOWER(name) = LOWER($2)"
	args := []interface{}{ownerID, name}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student name: %w", err)
	}
	return true, nil
}

// Create inserts a new student with zeroed counters.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	student.Present, student.Absent = 0, 0
	const query = `INSERT INTO students (id, user_id, name, class_name, image, mobile_number, address, present, absent, created_at, updated_at)
        VALUES (:id, :user_id, :name, :class_name, :image, :mobile_number, :address, :present, :absent, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", uniqueViolation(err))
	}
	return nil
}

// Update modifies the identity fields of a student. Counters are untouched.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, class_name = :class_name, image = :image, mobile_number = :mobile_number, address = :address, updated_at = :updated_at
        WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", uniqueViolation(err))
	}
	return expectOneRow(res)
}

// MarkAttendance locks the owner's student row, reloads its ledger inside the
// transaction and hands it to apply. The transition apply returns is written
// back with both counter adjustments before the lock is released, so
// concurrent marks on one student are computed against each other's results.
// Students of other owners yield sql.ErrNoRows.
func (r *StudentRepository) MarkAttendance(ctx context.Context, ownerID, id string, apply func(*models.Student) (models.AttendanceMark, error)) (_ *models.Student, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin mark attendance tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var student models.Student
	lock := "SELECT " + studentColumns + " FROM students WHERE id = $1 AND user_id = $2 FOR UPDATE"
	if err = tx.GetContext(ctx, &student, lock, id, ownerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock student: %w", err)
	}
	entryQuery := "SELECT " + entryColumns + " FROM attendance_records WHERE student_id = $1 ORDER BY " + entryOrder
	if err = tx.SelectContext(ctx, &student.Entries, entryQuery, id); err != nil {
		return nil, fmt.Errorf("load attendance records: %w", err)
	}

	var mark models.AttendanceMark
	if mark, err = apply(&student); err != nil {
		return nil, err
	}

	entry := mark.Entry
	if mark.Created {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		const insert = `INSERT INTO attendance_records (id, student_id, date, status, time, position, created_at)
        VALUES (:id, :student_id, :date, :status, :time, :position, :created_at)`
		if _, err = tx.NamedExecContext(ctx, insert, entry); err != nil {
			return nil, fmt.Errorf("insert attendance record: %w", err)
		}
	} else {
		const update = `UPDATE attendance_records SET status = $1, time = $2 WHERE student_id = $3 AND date = $4`
		var res sql.Result
		if res, err = tx.ExecContext(ctx, update, entry.Status, entry.Time, entry.StudentID, entry.Date); err != nil {
			return nil, fmt.Errorf("update attendance record: %w", err)
		}
		if err = expectOneRow(res); err != nil {
			return nil, err
		}
	}

	presentDelta, absentDelta := mark.Deltas()
	const counters = `UPDATE students SET present = present + $1, absent = absent + $2, updated_at = $3 WHERE id = $4 AND user_id = $5`
	if _, err = tx.ExecContext(ctx, counters, presentDelta, absentDelta, time.Now().UTC(), id, ownerID); err != nil {
		return nil, fmt.Errorf("update attendance counters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit mark attendance tx: %w", err)
	}
	return &student, nil
}

// Delete removes a student; attendance records go with it through the
// foreign key cascade. It returns false when nothing matched.
func (r *StudentRepository) Delete(ctx context.Context, ownerID, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete student rows: %w", err)
	}
	return affected > 0, nil
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func uniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrUniqueViolation, pqErr.Constraint)
	}
	return err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

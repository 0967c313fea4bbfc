package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/repository"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type studentRepository interface {
	ListByOwner(ctx context.Context, ownerID string, filter models.StudentFilter) ([]models.Student, error)
	FindByID(ctx context.Context, ownerID, id string) (*models.Student, error)
	ExistsByName(ctx context.Context, ownerID, name, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	MarkAttendance(ctx context.Context, ownerID, id string, apply func(*models.Student) (models.AttendanceMark, error)) (*models.Student, error)
	Delete(ctx context.Context, ownerID, id string) (bool, error)
}

// CreateStudentRequest holds payload for creating students.
type CreateStudentRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	models.StudentProfile
}

// UpdateStudentRequest replaces the name and profile of a student.
type UpdateStudentRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	models.StudentProfile
}

// MarkAttendanceRequest records attendance for one date.
type MarkAttendanceRequest struct {
	Date   string `json:"date" validate:"required"`
	Status string `json:"status" validate:"required"`
}

// StudentService handles roster use-cases. Every method is scoped by the
// owner; another owner's student is reported as not found.
type StudentService struct {
	repo      studentRepository
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, now: time.Now}
}

// Create registers a new student for the owner.
func (s *StudentService) Create(ctx context.Context, ownerID string, req CreateStudentRequest) (*models.StudentSummary, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	req.Name = models.NormalizeName(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student name is required")
	}
	if err := s.ensureUniqueName(ctx, ownerID, req.Name, ""); err != nil {
		return nil, err
	}

	student := &models.Student{UserID: ownerID, Name: req.Name}
	student.ApplyProfile(req.StudentProfile)
	if err := s.timed("student_create", func() error { return s.repo.Create(ctx, student) }); err != nil {
		if errors.Is(err, repository.ErrUniqueViolation) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateName, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.invalidate(ctx, ownerID)
	s.logger.Info("student created", zap.String("owner_id", ownerID), zap.String("student_id", student.ID))
	summary := student.Summary()
	return &summary, nil
}

// List returns the owner's students newest first with running totals.
func (s *StudentService) List(ctx context.Context, ownerID string, filter models.StudentFilter) (*models.RosterListing, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	students, err := s.load(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	listing := &models.RosterListing{Students: make([]models.StudentSummary, 0, len(students)), Count: len(students)}
	for i := range students {
		listing.Students = append(listing.Students, students[i].Summary())
		listing.TotalPresent += students[i].Present
		listing.TotalAbsent += students[i].Absent
	}
	return listing, nil
}

// Get returns one student's summary.
func (s *StudentService) Get(ctx context.Context, ownerID, id string) (*models.StudentSummary, error) {
	student, err := s.find(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	summary := student.Summary()
	return &summary, nil
}

// Update replaces a student's name and profile. Counters and ledger stay.
func (s *StudentService) Update(ctx context.Context, ownerID, id string, req UpdateStudentRequest) (*models.StudentSummary, error) {
	req.Name = models.NormalizeName(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student name is required")
	}
	student, err := s.find(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureUniqueName(ctx, ownerID, req.Name, student.ID); err != nil {
		return nil, err
	}

	student.Name = req.Name
	student.ApplyProfile(req.StudentProfile)
	if err := s.timed("student_update", func() error { return s.repo.Update(ctx, student) }); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		case errors.Is(err, repository.ErrUniqueViolation):
			return nil, appErrors.Clone(appErrors.ErrDuplicateName, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}

	s.invalidate(ctx, ownerID)
	summary := student.Summary()
	return &summary, nil
}

// MarkAttendance records a status for a date on the student's ledger and
// persists the entry and counters together.
func (s *StudentService) MarkAttendance(ctx context.Context, ownerID, id string, req MarkAttendanceRequest) (*models.StudentSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date and status are required")
	}
	date, err := models.ParseAttendanceDate(req.Date)
	if err != nil {
		return nil, err
	}
	status, err := models.ParseAttendanceStatus(req.Status)
	if err != nil {
		return nil, err
	}

	student, err := s.mark(ctx, ownerID, id, date, status)
	if err != nil {
		if appErr := appErrors.FromError(err); appErr.Code != appErrors.ErrInternal.Code {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark attendance")
	}

	s.invalidate(ctx, ownerID)
	summary := student.Summary()
	return &summary, nil
}

func (s *StudentService) mark(ctx context.Context, ownerID, id string, date time.Time, status models.AttendanceStatus) (*models.Student, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	var (
		student *models.Student
		mark    models.AttendanceMark
	)
	err := s.timed("attendance_mark", func() error {
		var err error
		student, err = s.repo.MarkAttendance(ctx, ownerID, id, func(locked *models.Student) (models.AttendanceMark, error) {
			var err error
			mark, err = locked.MarkAttendance(date, status, s.now())
			return mark, err
		})
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, err
	}
	s.metrics.RecordAttendanceMark(string(status), markOutcome(mark))
	return student, nil
}

// Delete removes a student and its ledger.
func (s *StudentService) Delete(ctx context.Context, ownerID, id string) error {
	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	var deleted bool
	err := s.timed("student_delete", func() error {
		var err error
		deleted, err = s.repo.Delete(ctx, ownerID, id)
		return err
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	s.invalidate(ctx, ownerID)
	s.logger.Info("student deleted", zap.String("owner_id", ownerID), zap.String("student_id", id))
	return nil
}

// Stats returns roster statistics. The boolean reports a cache hit.
func (s *StudentService) Stats(ctx context.Context, ownerID string) (*models.RosterStats, bool, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, false, err
	}
	generation, cacheable := s.cache.Generation(ctx, RosterGenerationKey(ownerID))
	key := RosterStatsKey(ownerID, generation)
	if cacheable {
		var cached models.RosterStats
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, true, nil
		}
	}

	students, err := s.load(ctx, ownerID, models.StudentFilter{})
	if err != nil {
		return nil, false, err
	}
	stats := ComputeRosterStats(students)
	if !stats.Consistent() {
		s.reportDrift(ownerID, driftSourceStats, students)
	}
	if cacheable {
		_ = s.cache.Set(ctx, key, stats, 0)
	}
	return &stats, false, nil
}

// ClassWise groups the roster by class. The boolean reports a cache hit.
func (s *StudentService) ClassWise(ctx context.Context, ownerID string) ([]models.ClassBucket, bool, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, false, err
	}
	generation, cacheable := s.cache.Generation(ctx, RosterGenerationKey(ownerID))
	key := RosterClassesKey(ownerID, generation)
	if cacheable {
		var cached []models.ClassBucket
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, true, nil
		}
	}

	students, err := s.load(ctx, ownerID, models.StudentFilter{})
	if err != nil {
		return nil, false, err
	}
	s.reportDrift(ownerID, driftSourceClassWise, students)
	buckets := GroupByClass(students)
	if cacheable {
		_ = s.cache.Set(ctx, key, buckets, 0)
	}
	return buckets, false, nil
}

func (s *StudentService) load(ctx context.Context, ownerID string, filter models.StudentFilter) ([]models.Student, error) {
	var students []models.Student
	err := s.timed("student_list", func() error {
		var err error
		students, err = s.repo.ListByOwner(ctx, ownerID, filter)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

func (s *StudentService) find(ctx context.Context, ownerID, id string) (*models.Student, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	var student *models.Student
	err := s.timed("student_find", func() error {
		var err error
		student, err = s.repo.FindByID(ctx, ownerID, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) ensureUniqueName(ctx context.Context, ownerID, name, excludeID string) error {
	exists, err := s.repo.ExistsByName(ctx, ownerID, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate student name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateName, "")
	}
	return nil
}

func (s *StudentService) reportDrift(ownerID, source string, students []models.Student) {
	ids := driftedStudents(students)
	if len(ids) == 0 {
		return
	}
	s.metrics.RecordCounterDrift(source, len(ids))
	s.logger.Error("attendance counters out of sync with ledger",
		zap.String("owner_id", ownerID),
		zap.String("source", source),
		zap.Strings("student_ids", ids),
	)
}

// invalidate retires every cached payload of the owner. Bumping the
// generation first means a computation that started before this write stores
// its result under a key no reader will look up.
func (s *StudentService) invalidate(ctx context.Context, ownerID string) {
	_ = s.cache.Bump(ctx, RosterGenerationKey(ownerID))
	_ = s.cache.Invalidate(ctx, RosterPayloadPattern(ownerID))
}

func (s *StudentService) timed(label string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.ObserveDBQuery(label, time.Since(start))
	return err
}

func requireOwner(ownerID string) error {
	if ownerID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing owner")
	}
	return nil
}

func markOutcome(mark models.AttendanceMark) string {
	switch {
	case mark.Created:
		return markOutcomeCreated
	case mark.StatusChanged():
		return markOutcomeFlipped
	default:
		return markOutcomeRetimed
	}
}

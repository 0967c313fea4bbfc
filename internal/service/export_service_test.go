package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rollcall-api/internal/models"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type stubClassWise struct {
	buckets []models.ClassBucket
	err     error
	owner   string
}

func (s *stubClassWise) ClassWise(ctx context.Context, ownerID string) ([]models.ClassBucket, bool, error) {
	s.owner = ownerID
	return s.buckets, false, s.err
}

func sampleBuckets(t *testing.T) []models.ClassBucket {
	return GroupByClass([]models.Student{
		rosterStudent(t, "s1", "Bob", nil, "2024-01-01 absent"),
		rosterStudent(t, "s2", "Alice", strPtr("A"), "2024-01-01 present", "2024-01-02 present", "2024-01-03 absent"),
	})
}

func newTestExportService(source classWiseSource, enabled bool) *ExportService {
	svc := NewExportService(source, ExportConfig{Enabled: enabled}, NewMetricsService(), nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC) }
	return svc
}

func TestExportServiceClassWiseCSV(t *testing.T) {
	source := &stubClassWise{buckets: sampleBuckets(t)}
	svc := newTestExportService(source, true)

	file, err := svc.ClassWise(context.Background(), ownerOne, "")
	require.NoError(t, err)
	assert.Equal(t, ownerOne, source.owner)
	assert.Equal(t, "class-wise-attendance_20240304_050607.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "Class,Student,Present,Absent,Attendance %\nA,Alice,2,1,66.67\nUnassigned,Bob,0,1,0.00\n", string(file.Payload))
}

func TestExportServiceClassWisePDF(t *testing.T) {
	svc := newTestExportService(&stubClassWise{buckets: sampleBuckets(t)}, true)

	file, err := svc.ClassWise(context.Background(), ownerOne, "PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Payload, []byte("%PDF")))
}

func TestExportServiceRejects(t *testing.T) {
	_, err := newTestExportService(&stubClassWise{}, false).ClassWise(context.Background(), ownerOne, "csv")
	assert.ErrorIs(t, err, appErrors.ErrFeatureDisabled)

	_, err = newTestExportService(&stubClassWise{}, true).ClassWise(context.Background(), ownerOne, "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	failing := &stubClassWise{err: appErrors.Wrap(errors.New("boom"), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")}
	_, err = newTestExportService(failing, true).ClassWise(context.Background(), ownerOne, "csv")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestExportServiceEmptyRoster(t *testing.T) {
	svc := newTestExportService(&stubClassWise{buckets: []models.ClassBucket{}}, true)

	file, err := svc.ClassWise(context.Background(), ownerOne, "csv")
	require.NoError(t, err)
	assert.Equal(t, "Class,Student,Present,Absent,Attendance %\n", string(file.Payload))
}

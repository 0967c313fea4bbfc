package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/rollcall-api/internal/models"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
	"github.com/noah-isme/rollcall-api/pkg/export"
)

// ExportFormat enumerates downloadable report encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Enabled bool
	Title   string
}

// ExportFile is a rendered report ready to stream to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

type classWiseSource interface {
	ClassWise(ctx context.Context, ownerID string) ([]models.ClassBucket, bool, error)
}

type reportRenderer interface {
	Render(report export.Report) ([]byte, error)
}

// ExportService renders the class-wise grouping as CSV or PDF.
type ExportService struct {
	source  classWiseSource
	csv     reportRenderer
	pdf     reportRenderer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(source classWiseSource, cfg ExportConfig, metrics *MetricsService, logger *zap.Logger, csv, pdf reportRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Title == "" {
		cfg.Title = "Class-wise attendance"
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{source: source, csv: csv, pdf: pdf, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// ClassWise renders the owner's class-wise report in the requested format.
func (s *ExportService) ClassWise(ctx context.Context, ownerID, format string) (*ExportFile, error) {
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled")
	}
	f := ExportFormat(strings.ToLower(strings.TrimSpace(format)))
	if f == "" {
		f = ExportFormatCSV
	}
	var renderer reportRenderer
	var contentType string
	switch f {
	case ExportFormatCSV:
		renderer, contentType = s.csv, "text/csv"
	case ExportFormatPDF:
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	buckets, _, err := s.source.ClassWise(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(s.buildReport(buckets))
	if err != nil {
		s.logger.Error("render class-wise report", zap.String("format", string(f)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.metrics.RecordExport(string(f))

	return &ExportFile{
		Filename:    fmt.Sprintf("class-wise-attendance_%s.%s", s.now().UTC().Format("20060102_150405"), f),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func (s *ExportService) buildReport(buckets []models.ClassBucket) export.Report {
	report := export.Report{
		Title:       s.cfg.Title,
		GroupHeader: "Class",
		Headers:     []string{"Student", "Present", "Absent", "Attendance %"},
		Sections:    make([]export.Section, 0, len(buckets)),
	}
	for _, bucket := range buckets {
		section := export.Section{
			Title:   bucket.Class,
			Rows:    make([][]string, 0, len(bucket.Students)),
			Summary: fmt.Sprintf("present %d / absent %d", bucket.TotalPresent, bucket.TotalAbsent),
		}
		for _, student := range bucket.Students {
			rate := attendanceRate(student.Present, student.Present+student.Absent)
			section.Rows = append(section.Rows, []string{
				student.StudentName,
				strconv.Itoa(student.Present),
				strconv.Itoa(student.Absent),
				strconv.FormatFloat(rate, 'f', 2, 64),
			})
		}
		report.Sections = append(report.Sections, section)
	}
	return report
}

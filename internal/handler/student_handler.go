package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/rollcall-api/internal/middleware"
	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/service"
	"github.com/noah-isme/rollcall-api/pkg/response"
)

type studentService interface {
	Create(ctx context.Context, ownerID string, req service.CreateStudentRequest) (*models.StudentSummary, error)
	List(ctx context.Context, ownerID string, filter models.StudentFilter) (*models.RosterListing, error)
	Get(ctx context.Context, ownerID, id string) (*models.StudentSummary, error)
	Update(ctx context.Context, ownerID, id string, req service.UpdateStudentRequest) (*models.StudentSummary, error)
	MarkAttendance(ctx context.Context, ownerID, id string, req service.MarkAttendanceRequest) (*models.StudentSummary, error)
	Delete(ctx context.Context, ownerID, id string) error
	Stats(ctx context.Context, ownerID string) (*models.RosterStats, bool, error)
	ClassWise(ctx context.Context, ownerID string) ([]models.ClassBucket, bool, error)
}

type classReportExporter interface {
	ClassWise(ctx context.Context, ownerID, format string) (*service.ExportFile, error)
}

// StudentHandler exposes roster endpoints for the authenticated owner.
type StudentHandler struct {
	service  studentService
	exporter classReportExporter
}

// NewStudentHandler constructs the handler. exporter may be nil when exports are off.
func NewStudentHandler(svc studentService, exporter classReportExporter) *StudentHandler {
	return &StudentHandler{service: svc, exporter: exporter}
}

// Create godoc
// @Summary Add student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateStudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/add [post]
func (h *StudentHandler) Create(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	var req service.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid student payload"))
		return
	}
	summary, err := h.service.Create(c.Request.Context(), ownerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "Student added successfully", summary)
}

// List godoc
// @Summary List students
// @Description Newest first, optionally filtered by a case-insensitive name fragment
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name contains"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	listing, err := h.service.List(c.Request.Context(), ownerID, models.StudentFilter{Search: strings.TrimSpace(c.Query("search"))})
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", listing.Count)
	middleware.SetMeta(c, "totalPresent", listing.TotalPresent)
	middleware.SetMeta(c, "totalAbsent", listing.TotalAbsent)
	response.JSON(c, http.StatusOK, listing.Students, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get student
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	summary, err := h.service.Get(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid student payload"))
		return
	}
	summary, err := h.service.Update(c.Request.Context(), ownerID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Student updated successfully", summary)
}

// MarkAttendance godoc
// @Summary Mark attendance
// @Description Records present or absent for a YYYY-MM-DD date, overwriting an earlier mark on the same date
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param payload body service.MarkAttendanceRequest true "Attendance payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/attendance [post]
func (h *StudentHandler) MarkAttendance(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	var req service.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid attendance payload"))
		return
	}
	summary, err := h.service.MarkAttendance(c.Request.Context(), ownerID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Attendance marked successfully", summary)
}

// Delete godoc
// @Summary Delete student
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "Student deleted successfully", nil)
}

// Stats godoc
// @Summary Roster statistics
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /students/stats [get]
func (h *StudentHandler) Stats(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	stats, hit, err := h.service.Stats(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, middleware.ExtractMeta(c))
}

// ClassWise godoc
// @Summary Class-wise attendance
// @Description Students grouped by class, Unassigned last, dates as DD/MM/YYYY
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /students/class-wise [get]
func (h *StudentHandler) ClassWise(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	buckets, hit, err := h.service.ClassWise(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, buckets, middleware.ExtractMeta(c))
}

// ExportClassWise godoc
// @Summary Download class-wise report
// @Tags Students
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /students/class-wise/export [get]
func (h *StudentHandler) ExportClassWise(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}
	file, err := h.exporter.ClassWise(c.Request.Context(), ownerID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}

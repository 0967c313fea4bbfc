package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/rollcall-api/internal/middleware"
	"github.com/noah-isme/rollcall-api/internal/models"
	"github.com/noah-isme/rollcall-api/internal/service"
	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

type responseEnvelope struct {
	Data    json.RawMessage        `json:"data"`
	Message string                 `json:"message"`
	Error   *appErrors.Error       `json:"error"`
	Meta    map[string]interface{} `json:"meta"`
}

type fakeStudentSrv struct {
	owner     string
	id        string
	create    service.CreateStudentRequest
	mark      service.MarkAttendanceRequest
	filter    models.StudentFilter
	summary   *models.StudentSummary
	listing   *models.RosterListing
	stats     *models.RosterStats
	buckets   []models.ClassBucket
	cacheHit  bool
	err       error
	deleteErr error
}

func (f *fakeStudentSrv) Create(_ context.Context, ownerID string, req service.CreateStudentRequest) (*models.StudentSummary, error) {
	f.owner, f.create = ownerID, req
	return f.summary, f.err
}

func (f *fakeStudentSrv) List(_ context.Context, ownerID string, filter models.StudentFilter) (*models.RosterListing, error) {
	f.owner, f.filter = ownerID, filter
	return f.listing, f.err
}

func (f *fakeStudentSrv) Get(_ context.Context, ownerID, id string) (*models.StudentSummary, error) {
	f.owner, f.id = ownerID, id
	return f.summary, f.err
}

func (f *fakeStudentSrv) Update(_ context.Context, ownerID, id string, req service.UpdateStudentRequest) (*models.StudentSummary, error) {
	f.owner, f.id = ownerID, id
	return f.summary, f.err
}

func (f *fakeStudentSrv) MarkAttendance(_ context.Context, ownerID, id string, req service.MarkAttendanceRequest) (*models.StudentSummary, error) {
	f.owner, f.id, f.mark = ownerID, id, req
	return f.summary, f.err
}

func (f *fakeStudentSrv) Delete(_ context.Context, ownerID, id string) error {
	f.owner, f.id = ownerID, id
	return f.deleteErr
}

func (f *fakeStudentSrv) Stats(_ context.Context, ownerID string) (*models.RosterStats, bool, error) {
	f.owner = ownerID
	return f.stats, f.cacheHit, f.err
}

func (f *fakeStudentSrv) ClassWise(_ context.Context, ownerID string) ([]models.ClassBucket, bool, error) {
	f.owner = ownerID
	return f.buckets, f.cacheHit, f.err
}

type fakeExporter struct {
	format string
	file   *service.ExportFile
	err    error
}

func (f *fakeExporter) ClassWise(_ context.Context, ownerID, format string) (*service.ExportFile, error) {
	f.format = format
	return f.file, f.err
}

func newStudentContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "owner-1"})
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestStudentHandlerCreate(t *testing.T) {
	srv := &fakeStudentSrv{summary: &models.StudentSummary{ID: "s1", Name: "Alice", Class: models.UnassignedClass}}
	h := NewStudentHandler(srv, nil)
	c, rec := newStudentContext(http.MethodPost, "/api/students/add", map[string]interface{}{"name": "Alice", "class": "7A", "mobileNumber": "0812"})

	h.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "owner-1", srv.owner)
	assert.Equal(t, "Alice", srv.create.Name)
	require.NotNil(t, srv.create.ClassName)
	assert.Equal(t, "7A", *srv.create.ClassName)
	require.NotNil(t, srv.create.MobileNumber)
	env := decode(t, rec)
	assert.Equal(t, "Student added successfully", env.Message)
	assert.Contains(t, string(env.Data), `"class":"Unassigned"`)
}

func TestStudentHandlerCreateDuplicate(t *testing.T) {
	h := NewStudentHandler(&fakeStudentSrv{err: appErrors.Clone(appErrors.ErrDuplicateName, "")}, nil)
	c, rec := newStudentContext(http.MethodPost, "/api/students/add", map[string]string{"name": "alice"})

	h.Create(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_NAME", decode(t, rec).Error.Code)
}

func TestStudentHandlerRequiresClaims(t *testing.T) {
	h := NewStudentHandler(&fakeStudentSrv{}, nil)
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/students", nil)

	h.List(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStudentHandlerListMeta(t *testing.T) {
	srv := &fakeStudentSrv{listing: &models.RosterListing{
		Students:     []models.StudentSummary{{ID: "s1", Name: "Alice"}},
		Count:        1,
		TotalPresent: 2,
		TotalAbsent:  1,
	}}
	h := NewStudentHandler(srv, nil)
	c, rec := newStudentContext(http.MethodGet, "/api/students?search=%20ali%20", nil)

	h.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ali", srv.filter.Search)
	env := decode(t, rec)
	assert.Equal(t, float64(1), env.Meta["count"])
	assert.Equal(t, float64(2), env.Meta["totalPresent"])
	assert.Equal(t, float64(1), env.Meta["totalAbsent"])
}

func TestStudentHandlerMarkAttendance(t *testing.T) {
	srv := &fakeStudentSrv{summary: &models.StudentSummary{ID: "s1", Present: 1}}
	h := NewStudentHandler(srv, nil)
	c, rec := newStudentContext(http.MethodPost, "/api/students/s1/attendance", map[string]string{"date": "2024-01-01", "status": "present"})
	c.Params = gin.Params{{Key: "id", Value: "s1"}}

	h.MarkAttendance(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", srv.id)
	assert.Equal(t, "2024-01-01", srv.mark.Date)
	assert.Equal(t, "present", srv.mark.Status)
}

func TestStudentHandlerMarkAttendanceErrors(t *testing.T) {
	cases := map[string]struct {
		err    error
		status int
	}{
		"validation": {appErrors.Clone(appErrors.ErrValidation, "status must be present or absent"), http.StatusBadRequest},
		"not found":  {appErrors.Clone(appErrors.ErrNotFound, "student not found"), http.StatusNotFound},
		"invariant":  {appErrors.Clone(appErrors.ErrInvariant, ""), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewStudentHandler(&fakeStudentSrv{err: tc.err}, nil)
			c, rec := newStudentContext(http.MethodPost, "/api/students/s1/attendance", map[string]string{"date": "x", "status": "y"})
			h.MarkAttendance(c)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestStudentHandlerMalformedJSON(t *testing.T) {
	h := NewStudentHandler(&fakeStudentSrv{}, nil)
	c, rec := newStudentContext(http.MethodPost, "/api/students/add", nil)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/students/add", bytes.NewBufferString("{"))

	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error.Code)
}

func TestStudentHandlerDelete(t *testing.T) {
	srv := &fakeStudentSrv{}
	h := NewStudentHandler(srv, nil)
	c, rec := newStudentContext(http.MethodDelete, "/api/students/s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}

	h.Delete(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Student deleted successfully", decode(t, rec).Message)

	srv.deleteErr = appErrors.Clone(appErrors.ErrNotFound, "student not found")
	c, rec = newStudentContext(http.MethodDelete, "/api/students/s1", nil)
	h.Delete(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudentHandlerStatsCacheMeta(t *testing.T) {
	srv := &fakeStudentSrv{stats: &models.RosterStats{TotalStudents: 2, TotalRecords: 4, TotalPresent: 3, TotalAbsent: 1, AverageAttendance: 75}, cacheHit: true}
	h := NewStudentHandler(srv, nil)
	c, rec := newStudentContext(http.MethodGet, "/api/students/stats", nil)

	h.Stats(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.JSONEq(t, `{"totalStudents":2,"totalPresent":3,"totalAbsent":1,"totalRecords":4,"averageAttendance":75}`, string(env.Data))
}

func TestStudentHandlerClassWise(t *testing.T) {
	srv := &fakeStudentSrv{buckets: []models.ClassBucket{{Class: "A", Students: []models.ClassStudent{}}, {Class: models.UnassignedClass, Students: []models.ClassStudent{}}}}
	h := NewStudentHandler(srv, nil)
	c, rec := newStudentContext(http.MethodGet, "/api/students/class-wise", nil)

	h.ClassWise(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var buckets []models.ClassBucket
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &buckets))
	require.Len(t, buckets, 2)
	assert.Equal(t, models.UnassignedClass, buckets[1].Class)
}

func TestStudentHandlerExport(t *testing.T) {
	exporter := &fakeExporter{file: &service.ExportFile{Filename: "report.csv", ContentType: "text/csv", Payload: []byte("Class\n")}}
	h := NewStudentHandler(&fakeStudentSrv{}, exporter)
	c, rec := newStudentContext(http.MethodGet, "/api/students/class-wise/export?format=csv", nil)

	h.ExportClassWise(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, `attachment; filename="report.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Class\n", rec.Body.String())
}

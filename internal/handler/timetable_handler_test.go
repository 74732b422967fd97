package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type timetableWorkflowMock struct {
	captured   dto.GenerateTimetableRequest
	applyErr   error
	conflictID string
	cached     bool
}

func (m *timetableWorkflowMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableProposalResponse, error) {
	m.captured = req
	return &dto.TimetableProposalResponse{ProposalID: "proposal-1", ClassID: req.ClassID, State: string(service.ProposalProposed)}, nil
}

func (m *timetableWorkflowMock) GetProposal(ctx context.Context, id string) (*dto.TimetableProposalResponse, error) {
	if id != "proposal-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &dto.TimetableProposalResponse{ProposalID: id}, nil
}

func (m *timetableWorkflowMock) Compare(ctx context.Context, id string) (*dto.TimetableComparisonResponse, error) {
	return &dto.TimetableComparisonResponse{ProposalID: id}, nil
}

func (m *timetableWorkflowMock) Apply(ctx context.Context, id string) (*dto.ApplyTimetableResponse, error) {
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	return &dto.ApplyTimetableResponse{ProposalID: id, ClassID: "class-1", State: string(service.ProposalApplied), Inserted: 25}, nil
}

func (m *timetableWorkflowMock) Reject(ctx context.Context, id string) (*dto.TimetableProposalResponse, error) {
	return &dto.TimetableProposalResponse{ProposalID: id, State: string(service.ProposalRejected)}, nil
}

func (m *timetableWorkflowMock) ClassTimetable(ctx context.Context, classID string) (*dto.ClassTimetableResponse, error) {
	return &dto.ClassTimetableResponse{ClassID: classID}, nil
}

func (m *timetableWorkflowMock) Conflicts(ctx context.Context, classID string) (*dto.ConflictReportResponse, error) {
	m.conflictID = classID
	return &dto.ConflictReportResponse{ClassID: classID, Cached: m.cached}, nil
}

func (m *timetableWorkflowMock) CreateTemplate(ctx context.Context, req dto.CreateTimetableTemplateRequest) (*dto.TimetableTemplateResponse, error) {
	return &dto.TimetableTemplateResponse{ID: "tmpl-1", Name: req.Name, Settings: req.Settings}, nil
}

func (m *timetableWorkflowMock) ListTemplates(ctx context.Context) ([]dto.TimetableTemplateResponse, error) {
	return []dto.TimetableTemplateResponse{}, nil
}

func (m *timetableWorkflowMock) GetTemplate(ctx context.Context, id string) (*dto.TimetableTemplateResponse, error) {
	return &dto.TimetableTemplateResponse{ID: id}, nil
}

func (m *timetableWorkflowMock) DeleteTemplate(ctx context.Context, id string) error {
	return nil
}

type exporterMock struct {
	format service.ExportFormat
}

func (m *exporterMock) ExportClass(ctx context.Context, classID string, format service.ExportFormat) (*service.ExportResult, error) {
	m.format = format
	if format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return &service.ExportResult{Filename: "timetable-x-a.csv", ContentType: "text/csv", Data: []byte("Time,Monday\n")}, nil
}

func withClaims(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: role})
		c.Next()
	}
}

func newTimetableRouter(h *TimetableHandler, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(internalmiddleware.WithResponseMeta())
	if role != "" {
		router.Use(withClaims(role))
	}
	admin := internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)
	router.POST("/timetables/generate", admin, h.Generate)
	router.POST("/timetables/proposals/:id/apply", admin, h.Apply)
	router.GET("/timetables/proposals/:id", h.GetProposal)
	router.GET("/timetables/conflicts", h.Conflicts)
	router.GET("/timetables/classes/:classId/export", h.Export)
	router.POST("/timetables/templates", admin, h.CreateTemplate)
	router.DELETE("/timetables/templates/:id", admin, h.DeleteTemplate)
	return router
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestTimetableGenerateBindsPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &timetableWorkflowMock{}
	handler := &TimetableHandler{service: mockSvc}
	payload := []byte(`{"classId":"class-1","templateId":"tmpl-1","settings":{"periodsPerDay":8},"seed":7}`)
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-1", mockSvc.captured.ClassID)
	assert.Equal(t, "tmpl-1", mockSvc.captured.TemplateID)
	assert.Equal(t, 8, mockSvc.captured.Settings.PeriodsPerDay)
	require.NotNil(t, mockSvc.captured.Seed)
	assert.Equal(t, int64(7), *mockSvc.captured.Seed)
}

func TestTimetableGenerateMalformedJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &TimetableHandler{service: &timetableWorkflowMock{}}
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader([]byte(`{"classId":`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableGenerateRequiresAdmin(t *testing.T) {
	handler := &TimetableHandler{service: &timetableWorkflowMock{}}
	payload := []byte(`{"classId":"class-1"}`)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	newTimetableRouter(handler, "").ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	newTimetableRouter(handler, models.RoleTeacher).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/timetables/generate", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	newTimetableRouter(handler, models.RoleAdmin).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimetableApplyIncompleteSurfacesWarning(t *testing.T) {
	cause := errors.New("connection reset")
	mockSvc := &timetableWorkflowMock{applyErr: appErrors.Wrap(cause, appErrors.ErrApplyIncomplete.Code, appErrors.ErrApplyIncomplete.Status, "timetable was cleared: connection reset; retry apply")}
	router := newTimetableRouter(&TimetableHandler{service: mockSvc}, models.RoleAdmin)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetables/proposals/proposal-1/apply", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeEnvelope(t, w)
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "TIMETABLE_APPLY_INCOMPLETE", errBody["code"])
	assert.Contains(t, errBody["message"], "connection reset")
}

func TestTimetableApplyReportsUser(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{service: &timetableWorkflowMock{}}, models.RoleSuperAdmin)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetables/proposals/proposal-1/apply", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeEnvelope(t, w)
	assert.Equal(t, float64(25), body["data"].(map[string]interface{})["inserted"])
	assert.Equal(t, "user-1", body["meta"].(map[string]interface{})["applied_by"])
}

func TestTimetableProposalNotFound(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{service: &timetableWorkflowMock{}}, models.RoleTeacher)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetables/proposals/unknown", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableConflictsPassesClassAndCacheFlag(t *testing.T) {
	mockSvc := &timetableWorkflowMock{cached: true}
	router := newTimetableRouter(&TimetableHandler{service: mockSvc}, models.RoleTeacher)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetables/conflicts?class_id=class-1", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-1", mockSvc.conflictID)
	body := decodeEnvelope(t, w)
	assert.Equal(t, true, body["meta"].(map[string]interface{})["cache_hit"])
}

func TestTimetableExport(t *testing.T) {
	exporter := &exporterMock{}
	router := newTimetableRouter(&TimetableHandler{service: &timetableWorkflowMock{}, exporter: exporter}, models.RoleTeacher)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/timetables/classes/class-1/export?format=csv", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ExportCSV, exporter.format)
	assert.Equal(t, `attachment; filename="timetable-x-a.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Time,Monday\n", w.Body.String())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/timetables/classes/class-1/export?format=xlsx", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableTemplateLifecycle(t *testing.T) {
	router := newTimetableRouter(&TimetableHandler{service: &timetableWorkflowMock{}}, models.RoleAdmin)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/timetables/templates", bytes.NewReader([]byte(`{"name":"Long week","settings":{"daysPerWeek":6}}`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Long week", data["name"])

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodDelete, "/timetables/templates/tmpl-1", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

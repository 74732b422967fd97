package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/handler"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
)

const testSecret = "router-secret"

func newTestEngine(t *testing.T, schedulerEnabled bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: config.EnvProduction, APIPrefix: "/api/v1"}
	cfg.Scheduler.Enabled = schedulerEnabled
	metrics := service.NewMetricsService()
	return New(Dependencies{
		Config:     cfg,
		Logger:     zap.NewNop(),
		Metrics:    metrics,
		Tokens:     service.NewTokenService(testSecret),
		Timetables: &handler.TimetableHandler{},
		Probes:     handler.NewMetricsHandler(metrics, nil),
	})
}

func signed(t *testing.T, role models.UserRole) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID: "user-1",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestRouterProbesArePublic(t *testing.T) {
	engine := newTestEngine(t, true)
	for _, path := range []string{"/health", "/ready", "/metrics"} {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	}
}

func TestRouterProtectsTimetableRoutes(t *testing.T) {
	engine := newTestEngine(t, true)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/timetables/templates", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/timetables/generate", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, models.RoleTeacher))
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/timetables/templates/tmpl-1", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, models.RoleStudent))
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	engine := newTestEngine(t, true)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouterSchedulerDisabled(t *testing.T) {
	engine := newTestEngine(t, false)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/timetables/templates", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

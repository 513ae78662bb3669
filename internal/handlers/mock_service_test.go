package handlers

import (
	"context"
	"net/http"

	"tilt_control/internal/models"
	"tilt_control/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	genTokenToken string
	genTokenErr   error
	parseSubject  string
	parseErr      error

	lastGenPassword string
	lastParseToken  string
}

func (m *mockAuth) GenerateToken(password string) (string, error) {
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (string, error) {
	m.lastParseToken = token
	return m.parseSubject, m.parseErr
}

type mockMonitoring struct {
	snap models.TiltSnapshot
}

func (m *mockMonitoring) GetTilt(ctx context.Context) models.TiltSnapshot {
	return m.snap
}

type mockTuning struct {
	params models.TiltParams
	// patchErr is returned by PatchParams; applyOnErr keeps the merge anyway,
	// as the real service does when only the event write fails.
	patchErr   error
	applyOnErr bool

	patchCalls int
	lastSet    models.TiltParams
}

func (m *mockTuning) GetParams(ctx context.Context) models.TiltParams { return m.params }
func (m *mockTuning) SetParams(ctx context.Context, p models.TiltParams) error {
	m.params = p
	return nil
}
func (m *mockTuning) PatchParams(ctx context.Context, patch service.ParamsPatch) (models.TiltParams, error) {
	m.patchCalls++
	next := m.params
	if patch.Baseline != nil {
		next.Baseline = *patch.Baseline
	}
	if patch.DeadZone != nil {
		next.DeadZone = *patch.DeadZone
	}
	if patch.ScaleFactor != nil {
		next.ScaleFactor = *patch.ScaleFactor
	}
	m.lastSet = next
	if m.patchErr == nil || m.applyOnErr {
		m.params = next
	}
	return m.params, m.patchErr
}

type mockEventLog struct {
	resp       []models.Event
	err        error
	lastFilter service.LogFilter
	calls      int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.Event, error) {
	m.calls++
	m.lastFilter = f
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

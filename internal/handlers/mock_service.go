package handlers

import (
	"context"
	"net/http"
	"time"

	bridge "tovala_bridge"
	"tovala_bridge/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockMonitoring struct {
	snap         bridge.OvenSnapshot
	ok           bool
	refreshCalls int
}

func (m *mockMonitoring) Snapshot() (bridge.OvenSnapshot, bool) {
	return m.snap, m.ok
}
func (m *mockMonitoring) RequestRefresh() { m.refreshCalls++ }

type mockOvenControl struct {
	startErr     error
	cancelErr    error
	recipes      []bridge.Recipe
	history      []bridge.CookRecord
	startCalls   []string
	recipeCalls  []string
	cancelCalled int
	lastLimit    int
}

func (m *mockOvenControl) StartCook(ctx context.Context, barcode string) error {
	m.startCalls = append(m.startCalls, barcode)
	return m.startErr
}
func (m *mockOvenControl) StartRecipe(ctx context.Context, title string) error {
	m.recipeCalls = append(m.recipeCalls, title)
	return m.startErr
}
func (m *mockOvenControl) CancelCook(ctx context.Context) error {
	m.cancelCalled++
	return m.cancelErr
}
func (m *mockOvenControl) History(ctx context.Context, limit int) []bridge.CookRecord {
	m.lastLimit = limit
	return m.history
}
func (m *mockOvenControl) Recipes() []bridge.Recipe {
	return m.recipes
}

type mockEventLog struct {
	resp     []bridge.OvenEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]bridge.OvenEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
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

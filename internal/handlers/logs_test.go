package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	bridge "tovala_bridge"
	"tovala_bridge/internal/service"
)

func TestLogsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: 99}
	now := time.Now().UTC().Truncate(time.Second)
	events := []bridge.OvenEvent{
		{EventID: "e1", OccurredAt: now, Type: "COOK_START", Description: "cook started"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: "TIMER_FINISHED", Description: "timer hit zero"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouter(s)

	// Invalid 'from' → 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/?from=notatime", nil)
	addAuth(req)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// Valid range and type (lowercase type should be normalized to upper in service call)
	w = httptest.NewRecorder()
	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=timer_finished"
	req = httptest.NewRequest(http.MethodGet, q, nil)
	addAuth(req)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int                `json:"count"`
		Events []bridge.OvenEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != "TIMER_FINISHED" {
		t.Fatalf("expected lastType TIMER_FINISHED, got %q", logs.lastType)
	}
}

func TestLogsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	auth := &mockAuth{parseID: 1}
	logs := &mockEventLog{}
	s := &service.Service{Authorization: auth, EventLog: logs}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/?to=2026-08-15", nil)
	addAuth(req)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	wantDay := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	if !logs.lastTo.After(wantDay.Add(23 * time.Hour)) {
		t.Fatalf("date-only 'to' should extend to end of day, got %v", logs.lastTo)
	}
}

func TestLogsHandler_FromAfterTo(t *testing.T) {
	auth := &mockAuth{parseID: 1}
	logs := &mockEventLog{}
	s := &service.Service{Authorization: auth, EventLog: logs}
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs/?from=2026-08-20&to=2026-08-10", nil)
	addAuth(req)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", w.Code)
	}
}

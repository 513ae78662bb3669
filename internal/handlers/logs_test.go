package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tilt_control/internal/models"
	"tilt_control/internal/service"
)

func getWithAuth(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	r.ServeHTTP(w, req)
	return w
}

func TestLogsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseSubject: "operator"}
	now := time.Now().UTC().Truncate(time.Second)
	events := []models.Event{
		{EventID: "e1", OccurredAt: now, Type: models.EventSignalAcquired, Description: "acquired"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Type: models.EventParamsChange, Description: "params"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouter(s)

	for _, q := range []string{
		"/api/v1/logs/?from=notatime",
		"/api/v1/logs/?to=yesterday",
		"/api/v1/logs/?limit=-3",
		"/api/v1/logs/?limit=ten",
		"/api/v1/logs/?from=2025-08-02&to=2025-08-01",
	} {
		if w := getWithAuth(r, q); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, w.Code)
		}
	}
	if logs.calls != 0 {
		t.Fatalf("service must not be called for invalid queries")
	}

	q := "/api/v1/logs/?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=params_change&limit=5"
	w := getWithAuth(r, q)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int            `json:"count"`
		Events []models.Event `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	f := logs.lastFilter
	if f.Type != models.EventParamsChange || f.Limit != 5 || !f.From.Equal(now) || !f.To.Equal(now.Add(2*time.Second)) {
		t.Fatalf("unexpected filter: %+v", f)
	}
}

func TestLogsHandler_DateOnlyToIsEndOfDay(t *testing.T) {
	logs := &mockEventLog{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, EventLog: logs})

	if w := getWithAuth(r, "/api/v1/logs/?to=2025-08-31"); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	want := time.Date(2025, 8, 31, 23, 59, 59, 999999999, time.UTC)
	if !logs.lastFilter.To.Equal(want) {
		t.Fatalf("to=%v, want %v", logs.lastFilter.To, want)
	}
}

func TestLogsHandler_RequiresTokenAndReportsFailure(t *testing.T) {
	logs := &mockEventLog{err: errors.New("db down")}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, EventLog: logs})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/logs/", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	if w := getWithAuth(r, "/api/v1/logs/"); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on service error, got %d", w.Code)
	}
}

package reusesocketd

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestAdminStatusHandler(t *testing.T) {
	a := NewAdminServer(newTestDaemon(), "127.0.0.1:0", testLogger())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/status", nil)
	a.statusHandler(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status code = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Fatalf("body = %q, want %q", rr.Body.String(), "ok")
	}
}

func TestAdminStatsHandler(t *testing.T) {
	d := newTestDaemon()
	a := NewAdminServer(d, "127.0.0.1:0", testLogger())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/stats", nil)
	a.statsHandler(rr, req)

	if rr.Code != 200 {
		t.Fatalf("status code = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var stats Stats
	if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshaling response body: %v", err)
	}
	want := d.Stats()
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}

package observability_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edwardmadi/eurodollar-protocol/internal/observability"
)

func readinessBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("readyz body is not JSON: %v", err)
	}
	return m
}

func TestReadinessRequiresEveryDependency(t *testing.T) {
	hc := observability.NewHealthChecker("postgres", "nats", "recovery")

	if hc.IsReady() {
		t.Fatal("fresh checker must not be ready")
	}

	hc.SetReady("postgres", true)
	hc.SetReady("nats", true)

	rec := httptest.NewRecorder()
	hc.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d with recovery pending, want 503", rec.Code)
	}

	body := readinessBody(t, rec)
	deps, ok := body["dependencies"].(map[string]interface{})
	if !ok {
		t.Fatalf("readyz body has no dependencies map: %v", body)
	}
	if deps["postgres"] != true || deps["nats"] != true || deps["recovery"] != false {
		t.Errorf("dependency breakdown wrong: %v", deps)
	}

	hc.SetReady("recovery", true)
	if !hc.IsReady() {
		t.Fatal("checker must be ready once every dependency is")
	}

	rec = httptest.NewRecorder()
	hc.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d with all dependencies ready, want 200", rec.Code)
	}
	if status := readinessBody(t, rec)["status"]; status != "ready" {
		t.Errorf("status = %v, want ready", status)
	}
}

func TestReadinessCanRegress(t *testing.T) {
	hc := observability.NewHealthChecker("postgres")
	hc.SetReady("postgres", true)
	if !hc.IsReady() {
		t.Fatal("expected ready")
	}

	hc.SetReady("postgres", false)
	if hc.IsReady() {
		t.Fatal("a dependency going away must flip readiness off")
	}
}

func TestLivenessAlwaysUp(t *testing.T) {
	hc := observability.NewHealthChecker("postgres", "nats")

	rec := httptest.NewRecorder()
	hc.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d, want 200 regardless of dependencies", rec.Code)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("healthz body is not JSON: %v", err)
	}
	if m["status"] != "alive" {
		t.Errorf("status = %v, want alive", m["status"])
	}
}

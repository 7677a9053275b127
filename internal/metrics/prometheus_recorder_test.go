package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncLoad(OutcomeLoaded)
	pr.IncLoad(OutcomeHit)
	pr.ObserveStageDuration("parse", 3*time.Millisecond)
	pr.SetInflight(2)
	pr.SetCacheSize(7)
	pr.IncUnsupportedNode("xml", "html")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 5 {
		t.Fatalf("metric families = %d, want 5", len(mfs))
	}
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncLoad(OutcomeShared)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `quire_loads_total{outcome="shared"} 1`) {
		t.Errorf("body missing load counter:\n%s", rec.Body.String())
	}
}

func TestNilPrometheusRecorder(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncLoad(OutcomeFailed)
	pr.SetCacheSize(1)
}

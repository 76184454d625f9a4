package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegistryCounters(t *testing.T) {
	r := New()
	r.Admission(false, "cooldown")
	r.Admission(false, "cooldown")
	r.Admission(true, "")
	r.BatchOp("fund", errors.New("boom"))

	if got := testutil.ToFloat64(r.Admissions.WithLabelValues("denied", "cooldown")); got != 2 {
		t.Fatalf("denied cooldown=%v want=2", got)
	}
	if got := testutil.ToFloat64(r.BatchOps.WithLabelValues("fund", "error")); got != 1 {
		t.Fatalf("fund errors=%v want=1", got)
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry
	r.Signal("new_listing", "pumpfun")
	r.SetTargets(3)
	r.LoopTick("scan", 0.1, nil)
	if r.Handler() == nil {
		t.Fatalf("nil registry should still serve a handler")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.SetOpenPositions(2)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "sniper_open_positions 2") {
		t.Fatalf("metrics output missing gauge:\n%s", rec.Body.String())
	}
}

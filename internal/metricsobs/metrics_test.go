package metricsobs

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	r, reg := New()
	r.NodesOnline.Set(3)
	r.HeartbeatsReceived.Inc()
	r.DeploymentsTotal.WithLabelValues("docker").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"fleet_nodes_online 3", "fleet_heartbeats_received_total 1", `deploy_operations_total{backend="docker"} 1`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics output to contain %q, got:\n%s", want, body)
		}
	}
}

package workerapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ushadow-io/ushadow/internal/appctx"
)

func newTestServer() *Server {
	return New(&appctx.Worker{NodeSecret: "s3cr3t", Hostname: "worker-1"})
}

func TestRequireNodeSecretRejectsMissingHeader(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/status/foo", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireNodeSecretRejectsWrongSecret(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/status/foo", nil)
	req.Header.Set(nodeSecretHeader, "wrong")
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestDeployRejectsMalformedBodyBeforeTouchingDocker(t *testing.T) {
	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/deploy", strings.NewReader("not json"))
	req.Header.Set(nodeSecretHeader, "s3cr3t")
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

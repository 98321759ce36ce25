package apiserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moolen/strato/internal/models"
)

type stubProcessor struct{}

func (s *stubProcessor) ProcessBatch(ctx context.Context, events []models.WireEvent) error {
	return nil
}

type stubQuerier struct{}

func (s *stubQuerier) GetAllByTimeRange(ctx context.Context, start, end time.Time, project string) ([]models.Resource, error) {
	return nil, nil
}

type notReady struct{}

func (n *notReady) IsReady() bool { return false }

func newTestServer(checker ReadinessChecker) *Server {
	return New(0, &stubProcessor{}, &stubQuerier{}, checker, nil)
}

func TestRoutesEnforceMethods(t *testing.T) {
	s := newTestServer(&NoOpReadinessChecker{})

	req := httptest.NewRequest(http.MethodGet, "/v1/event", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/resources", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(&NoOpReadinessChecker{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestReadyEndpoint(t *testing.T) {
	s := newTestServer(&NoOpReadinessChecker{})
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	s = newTestServer(&notReady{})
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&NoOpReadinessChecker{})

	req := httptest.NewRequest(http.MethodOptions, "/v1/event", nil)
	rec := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

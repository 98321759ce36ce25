package apiserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moolen/strato/internal/api"
)

// registerHandlers registers all HTTP handlers
func (s *Server) registerHandlers() {
	s.registerHTTPHandlers()
	s.registerHealthEndpoints()
	s.registerMetricsEndpoint()
}

// registerHTTPHandlers registers the event ingress and usage query handlers
func (s *Server) registerHTTPHandlers() {
	eventHandler := api.NewEventHandler(s.processor, s.logger, s.getTracer("strato.api.event"))
	s.router.HandleFunc("/v1/event", s.withMethod(http.MethodPost, eventHandler.Handle))

	usageHandler := api.NewUsageHandler(s.querier, s.logger, s.getTracer("strato.api.usage"))
	s.router.HandleFunc("/v1/resources", s.withMethod(http.MethodGet, usageHandler.Handle))
}

// registerHealthEndpoints registers health and readiness check endpoints
func (s *Server) registerHealthEndpoints() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.HandleFunc("/ready", s.handleReady)
}

// registerMetricsEndpoint exposes Prometheus metrics
func (s *Server) registerMetricsEndpoint() {
	s.router.Handle("/metrics", promhttp.Handler())
}

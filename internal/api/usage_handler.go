package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/strato/internal/logging"
	"github.com/moolen/strato/internal/models"
)

// UsageQuerier returns resources whose timelines intersect a window, with
// periods clamped to it. An empty project means all projects.
type UsageQuerier interface {
	GetAllByTimeRange(ctx context.Context, start, end time.Time, project string) ([]models.Resource, error)
}

// UsageHandler handles GET /v1/resources requests.
//
// The caller's identity comes from the X-Project-Id header. Callers with the
// admin role (X-Roles header) may query another project by supplying the
// project_id parameter, or every project by supplying it empty. Without the
// parameter admins see their own project, like everyone else.
type UsageHandler struct {
	querier UsageQuerier
	logger  *logging.Logger
	tracer  trace.Tracer
}

// NewUsageHandler creates a new usage query handler
func NewUsageHandler(querier UsageQuerier, logger *logging.Logger, tracer trace.Tracer) *UsageHandler {
	return &UsageHandler{
		querier: querier,
		logger:  logger,
		tracer:  tracer,
	}
}

// Handle handles usage queries
func (h *UsageHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "usage.Handle",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/v1/resources"),
		),
	)
	defer span.End()

	callerProject := r.Header.Get("X-Project-Id")
	if callerProject == "" {
		span.SetStatus(codes.Error, "Missing identity")
		WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "X-Project-Id header is required")
		return
	}

	project := callerProject
	if hasAdminRole(r.Header.Get("X-Roles")) && r.URL.Query().Has("project_id") {
		project = r.URL.Query().Get("project_id")
	}

	start, err := ParseTimeParam(r.URL.Query().Get("start"), "start")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request")
		WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	end, err := ParseTimeParam(r.URL.Query().Get("end"), "end")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid request")
		WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if start.After(end) {
		span.SetStatus(codes.Error, "Invalid request")
		WriteError(w, http.StatusBadRequest, "INVALID_REQUEST", "start must not be after end")
		return
	}

	span.SetAttributes(
		attribute.String("query.start", start.Format(time.RFC3339)),
		attribute.String("query.end", end.Format(time.RFC3339)),
		attribute.String("query.project", project),
	)

	resources, err := h.querier.GetAllByTimeRange(ctx, start, end, project)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Query execution failed")
		h.logger.Error("Usage query failed: %v", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to query resources")
		return
	}

	// resources whose periods all collapsed during clamping carry no usage
	views := make([]models.ResourceView, 0, len(resources))
	for i := range resources {
		if len(resources[i].Periods) == 0 {
			continue
		}
		views = append(views, models.NewResourceView(&resources[i]))
	}

	span.SetAttributes(attribute.Int("response.resource_count", len(views)))
	span.SetStatus(codes.Ok, "Request completed successfully")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = WriteJSON(w, views)
}

func hasAdminRole(roles string) bool {
	for _, role := range strings.Split(roles, ",") {
		if strings.TrimSpace(role) == "admin" {
			return true
		}
	}
	return false
}

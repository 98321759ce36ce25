package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/moolen/strato/internal/logging"
	"github.com/moolen/strato/internal/models"
)

// BatchProcessor applies an ordered batch of lifecycle events, stopping at
// the first event that does not apply cleanly.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, events []models.WireEvent) error
}

// EventHandler handles POST /v1/event requests.
type EventHandler struct {
	processor BatchProcessor
	logger    *logging.Logger
	tracer    trace.Tracer
}

// NewEventHandler creates a new event ingress handler
func NewEventHandler(processor BatchProcessor, logger *logging.Logger, tracer trace.Tracer) *EventHandler {
	return &EventHandler{
		processor: processor,
		logger:    logger,
		tracer:    tracer,
	}
}

// Handle decodes the batch and maps the pipeline outcome to a status code:
// 204 when every event applied, 202 with a reason body when the batch
// stopped on an ignored or stale event, 400 for malformed or unsupported
// input, 409 for a corrupted timeline and 500 for persistence failures.
func (h *EventHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "event.Handle",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/v1/event"),
		),
	)
	defer span.End()

	var events []models.WireEvent
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid body")
		h.logger.Warn("Invalid event batch: %v", err)
		WriteError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON array of events")
		return
	}
	// a JSON null decodes without error but carries no batch at all;
	// only a literal array is a valid ingress body
	if events == nil {
		span.SetStatus(codes.Error, "Invalid body")
		h.logger.Warn("Rejected event batch: body is null")
		WriteError(w, http.StatusBadRequest, "INVALID_BODY", "request body must be a JSON array of events")
		return
	}
	span.SetAttributes(attribute.Int("batch.size", len(events)))

	err := h.processor.ProcessBatch(ctx, events)
	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "Batch applied")
		w.WriteHeader(http.StatusNoContent)
	case models.IsIgnoredEvent(err):
		span.SetStatus(codes.Ok, "Batch stopped on ignored event")
		h.logger.Debug("Batch stopped: %v", err)
		writeAccepted(w, "Ignored")
	case models.IsEventTooOld(err):
		span.SetStatus(codes.Ok, "Batch stopped on stale event")
		h.logger.Debug("Batch stopped: %v", err)
		writeAccepted(w, "EventTooOld")
	case models.IsValidationError(err), models.IsUnsupportedEventType(err):
		span.RecordError(err)
		span.SetStatus(codes.Error, "Invalid event")
		h.logger.Warn("Rejected event batch: %v", err)
		WriteError(w, http.StatusBadRequest, "INVALID_EVENT", err.Error())
	case models.IsMultipleOpenPeriods(err):
		span.RecordError(err)
		span.SetStatus(codes.Error, "Corrupted timeline")
		h.logger.Error("Timeline corruption detected: %v", err)
		WriteError(w, http.StatusConflict, "CONFLICT", err.Error())
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "Persistence failure")
		h.logger.Error("Failed to persist events: %v", err)
		WriteError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to persist events")
	}
}

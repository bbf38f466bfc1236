/*
handlers.go - HTTP API handlers for the assignment engine

PURPOSE:
  Exposes the assignment lifecycle and pricing via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Assignments ({kind} is "requests" or "jobs"):
    GET    /api/{kind}/{id}/assignments          Assignment history, oldest first
    POST   /api/{kind}/{id}/assignments          Manual (admin) assignment
    POST   /api/{kind}/{id}/assignment/approve   Provider accepts the open offer
    POST   /api/{kind}/{id}/assignment/reject    Provider declines, auto-rematch

  Pricing:
    POST   /api/pricing/hours                    Hours for a home
    POST   /api/pricing/subscription             Quote a new subscription
    PATCH  /api/subscriptions/{id}/hours         Change hours of a subscription

  Scenarios:
    GET    /api/scenarios                        List demo scenarios
    GET    /api/scenarios/current                Currently loaded scenario
    POST   /api/scenarios/load                   Load a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: The engine, owns every state transition
  - Store: Record access for scenarios
  - Dispatcher: Delivers the notification intents the engine returns
  - Rates: Rate table for the pricing endpoints

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call the engine
  4. Hand notification intents to the dispatcher (not awaited)
  5. Serialize response

ERROR HANDLING:
  Engine errors carry a Kind which is returned as "code":
  - 400: Malformed body or invalid pricing input
  - 403: FORBIDDEN
  - 404: NOT_FOUND
  - 409: ALREADY_PROCESSED, INVALID_TRANSITION
  - 422: BELOW_MINIMUM
  - 502: DEPENDENCY_FAILURE
  - 504: TIMEOUT

SECURITY NOTE:
  Currently NO authentication. The acting provider is taken from the body.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/match-engine/engine"
	"github.com/warp/match-engine/notify"
	"github.com/warp/match-engine/pricing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service    *engine.Service
	Store      engine.RecordStore
	Dispatcher *notify.Dispatcher
	Rates      pricing.RateTable

	logger *slog.Logger

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string

	// Notification batches still being delivered
	inflight sync.WaitGroup
}

// NewHandler creates a new handler. A nil dispatcher drops notifications.
func NewHandler(svc *engine.Service, store engine.RecordStore, dispatcher *notify.Dispatcher, rates pricing.RateTable, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service:    svc,
		Store:      store,
		Dispatcher: dispatcher,
		Rates:      rates,
		logger:     logger,
	}
}

// WaitNotifications blocks until every dispatched batch has been delivered.
// Called on shutdown.
func (h *Handler) WaitNotifications() {
	h.inflight.Wait()
}

func (h *Handler) dispatch(r *http.Request, intents []engine.Intent) {
	if h.Dispatcher == nil || len(intents) == 0 {
		return
	}
	batch := h.Dispatcher.Dispatch(r.Context(), intents)
	reqID := middleware.GetReqID(r.Context())
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		report := batch.Wait()
		if report.Failed > 0 {
			h.logger.Warn("notifications partially delivered",
				"request_id", reqID,
				"sent", report.Sent,
				"failed", report.Failed,
			)
		}
	}()
}

// =============================================================================
// ASSIGNMENT HANDLERS
// =============================================================================

// ApproveAssignment accepts the open assignment on behalf of its provider.
func (h *Handler) ApproveAssignment(w http.ResponseWriter, r *http.Request) {
	ref := workRef(r)

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.ProviderID == "" {
		writeError(w, http.StatusBadRequest, "provider_id is required", nil)
		return
	}

	res, err := h.Service.ApproveAssignment(r.Context(), ref, engine.ProviderID(req.ProviderID))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.dispatch(r, res.Notifications)

	writeJSON(w, http.StatusOK, NewApproveResponse(res))
}

// RejectAssignment declines the open assignment and tries the next provider.
// Not finding one is a successful outcome with exhausted=true.
func (h *Handler) RejectAssignment(w http.ResponseWriter, r *http.Request) {
	ref := workRef(r)

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.ProviderID == "" {
		writeError(w, http.StatusBadRequest, "provider_id is required", nil)
		return
	}

	res, err := h.Service.RejectAssignment(r.Context(), ref, engine.ProviderID(req.ProviderID), req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.dispatch(r, res.Notifications)

	writeJSON(w, http.StatusOK, NewRejectResponse(res))
}

// AssignManually lets an admin offer the work to a chosen provider.
func (h *Handler) AssignManually(w http.ResponseWriter, r *http.Request) {
	ref := workRef(r)

	var req ManualAssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.ProviderID == "" {
		writeError(w, http.StatusBadRequest, "provider_id is required", nil)
		return
	}
	if req.PerformedBy == "" {
		req.PerformedBy = "admin"
	}

	res, err := h.Service.AssignManually(r.Context(), ref, engine.ProviderID(req.ProviderID), req.PerformedBy, req.AllowExcluded)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.dispatch(r, res.Notifications)

	writeJSON(w, http.StatusCreated, NewManualAssignResponse(res))
}

// ListAssignments returns the assignment history of a request or job.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	history, err := h.Service.ListAssignments(r.Context(), workRef(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToAssignmentDTOs(history))
}

// =============================================================================
// PRICING HANDLERS
// =============================================================================

// ComputeHours returns the cleaning hours for a home.
func (h *Handler) ComputeHours(w http.ResponseWriter, r *http.Request) {
	var req HoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	fixtures := make(pricing.FixtureCounts, len(req.Fixtures))
	for name, n := range req.Fixtures {
		fixtures[pricing.Fixture(name)] = n
	}
	hours, err := pricing.ComputeHours(req.AreaM2, fixtures, h.Rates)
	if err != nil {
		writePricingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, HoursDTO{Hours: hours, MinimumHours: h.Rates.MinHours})
}

// QuoteSubscription prices a new subscription. Hours below the minimum are
// raised to it.
func (h *Handler) QuoteSubscription(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	freq, err := pricing.ParseFrequency(req.Frequency)
	if err != nil {
		writePricingError(w, err)
		return
	}

	price, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{
		Hours:        req.Hours,
		Frequency:    freq,
		MinimumHours: req.MinimumHours,
		Mode:         pricing.RaiseToMinimum,
	}, h.Rates)
	if err != nil {
		writePricingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, QuoteDTO{
		Hours:                price.Hours,
		PricePerSessionCents: price.PricePerSessionCents,
		SessionsPerCycle:     price.SessionsPerCycle,
		BundleAmountCents:    price.BundleAmountCents,
		Currency:             h.Rates.Currency,
	})
}

// UpdateSubscriptionHours changes and reprices an existing subscription.
// Going below the minimum is refused.
func (h *Handler) UpdateSubscriptionHours(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateHoursRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if req.PerformedBy == "" {
		req.PerformedBy = "admin"
	}

	sub, err := h.Service.UpdateSubscriptionHours(r.Context(), id, req.Hours, req.PerformedBy)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionDTO(*sub))
}

// =============================================================================
// HELPERS
// =============================================================================

// workRef builds the ref from the {kind} and {id} URL params. An unknown
// kind yields an invalid ref, which the engine reports as NOT_FOUND.
func workRef(r *http.Request) engine.WorkRef {
	id := chi.URLParam(r, "id")
	switch chi.URLParam(r, "kind") {
	case "requests":
		return engine.RequestRef(id)
	case "jobs":
		return engine.JobRef(id)
	}
	return engine.WorkRef{ID: id}
}

var kindStatus = map[engine.Kind]int{
	engine.KindNotFound:          http.StatusNotFound,
	engine.KindForbidden:         http.StatusForbidden,
	engine.KindAlreadyProcessed:  http.StatusConflict,
	engine.KindInvalidTransition: http.StatusConflict,
	engine.KindBelowMinimum:      http.StatusUnprocessableEntity,
	engine.KindTimeout:           http.StatusGatewayTimeout,
	engine.KindDependencyFailure: http.StatusBadGateway,
}

// StatusFor maps an engine error to its HTTP status.
func StatusFor(err error) int {
	if status, ok := kindStatus[engine.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeEngineError(w http.ResponseWriter, err error) {
	kind := engine.KindOf(err)
	writeJSON(w, StatusFor(err), ErrorResponse{
		Error:   err.Error(),
		Code:    string(kind),
		Details: retryDetails(err),
	})
}

func retryDetails(err error) any {
	if engine.IsRetryable(err) {
		return map[string]bool{"retryable": true}
	}
	return nil
}

func writePricingError(w http.ResponseWriter, err error) {
	if errors.Is(err, pricing.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "Invalid pricing input", err)
		return
	}
	writeEngineError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

/*
handlers_test.go - HTTP tests for the assignment and pricing endpoints

Tests for:
- Approve, reject and manual assignment through the router
- Error codes and statuses per engine error kind
- Notification hand-off after a committed decision
- Pricing endpoints with the default rate table
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/match-engine/engine"
	"github.com/warp/match-engine/engine/store"
	"github.com/warp/match-engine/factory"
	"github.com/warp/match-engine/notify"
	"github.com/warp/match-engine/provider"
)

type capturedIntents struct {
	mu      sync.Mutex
	intents []engine.Intent
}

func (c *capturedIntents) Send(_ context.Context, intent engine.Intent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.intents = append(c.intents, intent)
	return nil
}

func (c *capturedIntents) all() []engine.Intent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]engine.Intent(nil), c.intents...)
}

type testServer struct {
	handler *Handler
	router  http.Handler
	store   *store.Memory
	sent    *capturedIntents
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	rates := factory.DefaultRates()
	svc := engine.NewService(mem, provider.NewDirectory(mem),
		engine.WithRates(rates),
		engine.WithLogger(logger),
	)
	sent := &capturedIntents{}
	h := NewHandler(svc, mem, notify.NewDispatcher(sent, logger), rates, logger)
	return &testServer{
		handler: h,
		router:  NewRouter(h, []string{"http://localhost:5173"}),
		store:   mem,
		sent:    sent,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) load(t *testing.T, scenario string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: scenario})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// =============================================================================
// ASSIGNMENTS
// =============================================================================

func TestRejectThenApprove_Replacement(t *testing.T) {
	// GIVEN: a request offered to p-anna with two more providers in town
	s := newTestServer(t)
	s.load(t, "rematch-available")

	// WHEN: p-anna rejects
	rec := s.do(t, http.MethodPost, "/api/requests/req-1001/assignment/reject",
		DecisionRequest{ProviderID: "p-anna", Reason: "fully booked"})

	// THEN: the best remaining provider gets a new offer
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rej := decode[RejectResponse](t, rec)
	assert.False(t, rej.Exhausted)
	require.NotNil(t, rej.NewAssignment)
	assert.Equal(t, "p-bram", rej.NewAssignment.ProviderID)
	assert.Equal(t, "open", rej.NewAssignment.Status)
	assert.Equal(t, "rejected", rej.RejectedAssignment.Status)
	assert.Equal(t, "fully booked", rej.RejectedAssignment.RejectionReason)
	assert.Equal(t, []string{"p-anna"}, rej.ExcludedProviders)

	// WHEN: p-bram approves
	rec = s.do(t, http.MethodPost, "/api/requests/req-1001/assignment/approve", DecisionRequest{ProviderID: "p-bram"})

	// THEN: the request is accepted and the history has both entries
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	app := decode[ApproveResponse](t, rec)
	assert.Equal(t, "accepted", app.Work.Status)
	assert.Equal(t, "p-bram", app.ProviderID)
	assert.Len(t, app.Notifications, 3)

	rec = s.do(t, http.MethodGet, "/api/requests/req-1001/assignments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]AssignmentDTO](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "p-anna", history[0].ProviderID)
	assert.Equal(t, "p-bram", history[1].ProviderID)
	assert.Equal(t, "accepted", history[1].Status)

	s.handler.WaitNotifications()
	kinds := map[engine.IntentKind]int{}
	for _, in := range s.sent.all() {
		kinds[in.Kind]++
	}
	assert.Equal(t, 1, kinds[engine.IntentAssignmentOffer])
	assert.Equal(t, 1, kinds[engine.IntentAdminRematch])
	assert.Equal(t, 1, kinds[engine.IntentCustomerConfirmation])
}

func TestReject_ExhaustedThenManual(t *testing.T) {
	// GIVEN: only p-anna serves Amsterdam
	s := newTestServer(t)
	s.load(t, "rematch-exhausted")

	// WHEN: p-anna rejects
	rec := s.do(t, http.MethodPost, "/api/requests/req-2001/assignment/reject", DecisionRequest{ProviderID: "p-anna"})

	// THEN: no replacement, the request waits for an admin
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rej := decode[RejectResponse](t, rec)
	assert.True(t, rej.Exhausted)
	assert.Nil(t, rej.NewAssignment)
	assert.Equal(t, "rejected", rej.Work.Status)
	assert.True(t, rej.Work.ManualActionRequired)

	s.handler.WaitNotifications()
	var urgent []engine.Intent
	for _, in := range s.sent.all() {
		if in.Urgent {
			urgent = append(urgent, in)
		}
	}
	require.Len(t, urgent, 1)
	assert.Equal(t, engine.IntentAdminManualAction, urgent[0].Kind)
	assert.Equal(t, engine.RoleAdmin, urgent[0].Recipient)

	// WHEN: an admin picks the provider who rejected
	rec = s.do(t, http.MethodPost, "/api/requests/req-2001/assignments", ManualAssignRequest{ProviderID: "p-anna"})

	// THEN: refused unless explicitly allowed
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/requests/req-2001/assignments",
		ManualAssignRequest{ProviderID: "p-anna", PerformedBy: "ops@example.com", AllowExcluded: true})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	manual := decode[ManualAssignResponse](t, rec)
	assert.Equal(t, "requested", manual.Work.Status)
	assert.False(t, manual.Work.ManualActionRequired)
	assert.Equal(t, "open", manual.Assignment.Status)
}

func TestManualRequired_AssignOther(t *testing.T) {
	s := newTestServer(t)
	s.load(t, "manual-required")

	rec := s.do(t, http.MethodPost, "/api/requests/req-3001/assignments", ManualAssignRequest{ProviderID: "p-femke"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/requests/req-3001/assignment/approve", DecisionRequest{ProviderID: "p-femke"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	history := decode[[]AssignmentDTO](t, s.do(t, http.MethodGet, "/api/requests/req-3001/assignments", nil))
	require.Len(t, history, 3)
	assert.Equal(t, "p-femke", history[2].ProviderID)
}

func TestJob_RejectThenApprove(t *testing.T) {
	s := newTestServer(t)
	s.load(t, "one-time-job")

	rec := s.do(t, http.MethodPost, "/api/jobs/job-4001/assignment/reject", DecisionRequest{ProviderID: "p-dirk"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rej := decode[RejectResponse](t, rec)
	require.NotNil(t, rej.NewAssignment)
	// p-anna rates higher but does not take jobs
	assert.Equal(t, "p-eva", rej.NewAssignment.ProviderID)

	rec = s.do(t, http.MethodPost, "/api/jobs/job-4001/assignment/approve", DecisionRequest{ProviderID: "p-eva"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	app := decode[ApproveResponse](t, rec)
	assert.Equal(t, "job", app.Work.Kind)
	assert.Equal(t, "accepted", app.Work.Status)
}

func TestDecision_ErrorCodes(t *testing.T) {
	s := newTestServer(t)
	s.load(t, "rematch-available")

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"wrong provider", "/api/requests/req-1001/assignment/approve", DecisionRequest{ProviderID: "p-bram"}, http.StatusForbidden, "FORBIDDEN"},
		{"unknown request", "/api/requests/req-9999/assignment/approve", DecisionRequest{ProviderID: "p-anna"}, http.StatusNotFound, "NOT_FOUND"},
		{"unknown job", "/api/jobs/req-1001/assignment/reject", DecisionRequest{ProviderID: "p-anna"}, http.StatusNotFound, "NOT_FOUND"},
		{"missing provider", "/api/requests/req-1001/assignment/approve", DecisionRequest{}, http.StatusBadRequest, ""},
		{"malformed body", "/api/requests/req-1001/assignment/reject", "{", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}

	// Approving twice reports the first decision
	rec := s.do(t, http.MethodPost, "/api/requests/req-1001/assignment/approve", DecisionRequest{ProviderID: "p-anna"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/requests/req-1001/assignment/approve", DecisionRequest{ProviderID: "p-anna"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_PROCESSED", decode[ErrorResponse](t, rec).Code)

	rec = s.do(t, http.MethodPost, "/api/requests/req-1001/assignment/reject", DecisionRequest{ProviderID: "p-anna"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_TRANSITION", decode[ErrorResponse](t, rec).Code)
}

func TestStatusFor(t *testing.T) {
	tests := map[string]struct {
		err    error
		status int
	}{
		"timeout":    {&engine.Error{Kind: engine.KindTimeout}, http.StatusGatewayTimeout},
		"dependency": {&engine.Error{Kind: engine.KindDependencyFailure}, http.StatusBadGateway},
		"below min":  {&engine.Error{Kind: engine.KindBelowMinimum}, http.StatusUnprocessableEntity},
		"wrapped":    {fmt.Errorf("call: %w", &engine.Error{Kind: engine.KindNotFound}), http.StatusNotFound},
		"foreign":    {errors.New("boom"), http.StatusBadGateway},
		"deadline":   {context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.status, StatusFor(tt.err))
		})
	}
}

// =============================================================================
// PRICING
// =============================================================================

func TestComputeHours(t *testing.T) {
	s := newTestServer(t)

	// 85 m² * 1.5 + 30 + 25 = 182.5 minutes, rounded up to 3.5 hours
	rec := s.do(t, http.MethodPost, "/api/pricing/hours", map[string]any{
		"area_m2":  85,
		"fixtures": map[string]int{"bathroom": 1, "kitchen": 1},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[HoursDTO](t, rec)
	assert.True(t, out.Hours.Equal(decimal.RequireFromString("3.5")), out.Hours.String())
	assert.True(t, out.MinimumHours.Equal(decimal.NewFromInt(3)))

	rec = s.do(t, http.MethodPost, "/api/pricing/hours", map[string]any{"area_m2": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuoteSubscription_RaisesToMinimum(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/pricing/subscription", map[string]any{
		"hours":     "2",
		"frequency": "weekly",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[QuoteDTO](t, rec)
	assert.True(t, q.Hours.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, int64(7350), q.PricePerSessionCents)
	assert.Equal(t, 4, q.SessionsPerCycle)
	assert.Equal(t, int64(29400), q.BundleAmountCents)
	assert.Equal(t, "EUR", q.Currency)

	rec = s.do(t, http.MethodPost, "/api/pricing/subscription", map[string]any{"hours": "4", "frequency": "daily"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateSubscriptionHours(t *testing.T) {
	// GIVEN: sub-1001 with a 3.5 hour minimum
	s := newTestServer(t)
	s.load(t, "rematch-available")

	// WHEN: asking for less than the minimum
	rec := s.do(t, http.MethodPatch, "/api/subscriptions/sub-1001/hours", map[string]any{"hours": "3"})

	// THEN: refused, never raised
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "BELOW_MINIMUM", decode[ErrorResponse](t, rec).Code)

	// WHEN: asking for more
	rec = s.do(t, http.MethodPatch, "/api/subscriptions/sub-1001/hours", map[string]any{"hours": "5", "performed_by": "ops"})

	// THEN: repriced at 24.50 per hour, four sessions per cycle
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub := decode[SubscriptionDTO](t, rec)
	assert.Equal(t, "5", sub.Hours)
	assert.Equal(t, int64(12250), sub.PricePerSessionCents)
	assert.Equal(t, int64(49000), sub.BundleAmountCents)

	rec = s.do(t, http.MethodPatch, "/api/subscriptions/sub-missing/hours", map[string]any{"hours": "5"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the record store with
	realistic data for testing and demos. Each scenario creates providers,
	a request or job, and the assignment history that sets up one path of
	the assignment lifecycle.

AVAILABLE SCENARIOS:

	rematch-available:  Weekly request in Amsterdam, two more providers can take over
	rematch-exhausted:  Only one provider serves the city, a rejection needs an admin
	manual-required:    Every provider already declined, the request waits for an admin
	one-time-job:       Single job in Utrecht with a replacement available

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Create providers
 3. Price the subscription with the configured rates (requests only)
 4. Create the request or job
 5. Add the assignment history

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "rematch-available"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, s)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. Only use in development/demo environments.
	Stores without Reset (the REST driver) cannot load scenarios.

SEE ALSO:
  - handlers.go: Engine handlers exercised by the scenarios
  - factory/rates.go: Rate table used for pricing
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/match-engine/engine"
	"github.com/warp/match-engine/pricing"
	"github.com/warp/match-engine/provider"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "rematch-available",
		Name:        "Rematch Available",
		Description: "Weekly request offered to p-anna; p-bram and p-chris can take over after a rejection",
		Category:    "requests",
	},
	{
		ID:          "rematch-exhausted",
		Name:        "Rematch Exhausted",
		Description: "Only p-anna serves the city; rejecting flags the request for manual action",
		Category:    "requests",
	},
	{
		ID:          "manual-required",
		Name:        "Manual Action Required",
		Description: "Every provider declined; an admin assigns p-femke by hand",
		Category:    "requests",
	},
	{
		ID:          "one-time-job",
		Name:        "One-Time Job",
		Description: "Job offered to p-dirk in Utrecht; p-eva is available as replacement",
		Category:    "jobs",
	},
}

// resetter is implemented by stores that can be wiped for demos.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          current,
		Name:        current,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context, *seeder) error
	switch req.ScenarioID {
	case "rematch-available":
		load = loadRematchAvailableScenario
	case "rematch-exhausted":
		load = loadRematchExhaustedScenario
	case "manual-required":
		load = loadManualRequiredScenario
	case "one-time-job":
		load = loadOneTimeJobScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	rs, ok := h.Store.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support scenarios", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()

	// Reset first
	if err := rs.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	s := &seeder{store: h.Store, rates: h.Rates, now: time.Now().UTC().Add(-time.Hour).Truncate(time.Second)}
	if err := load(ctx, s); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.logger.Info("scenario loaded", "scenario", req.ScenarioID)

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadRematchAvailableScenario(ctx context.Context, s *seeder) error {
	if err := s.providers(ctx,
		cleaner("p-anna", "Anna de Vries", 4.9, "Amsterdam"),
		cleaner("p-bram", "Bram Jansen", 4.7, "Amsterdam"),
		cleaner("p-chris", "Chris Bakker", 4.5, "Amsterdam", "Haarlem"),
		cleaner("p-gijs", "Gijs Visser", 5.0, "Rotterdam"),
	); err != nil {
		return err
	}
	if err := s.request(ctx, "req-1001", "sub-1001", customer("cust-1001", "Sanne Smit", "Amsterdam"),
		decimal.NewFromInt(85), pricing.FixtureCounts{pricing.FixtureBathroom: 1, pricing.FixtureKitchen: 1},
		decimal.NewFromInt(3), pricing.FrequencyWeekly); err != nil {
		return err
	}
	return s.assignment(ctx, "asg-1001", engine.RequestRef("req-1001"), "p-anna", engine.AssignmentOpen, "", 0)
}

func loadRematchExhaustedScenario(ctx context.Context, s *seeder) error {
	if err := s.providers(ctx,
		cleaner("p-anna", "Anna de Vries", 4.9, "Amsterdam"),
		cleaner("p-gijs", "Gijs Visser", 5.0, "Rotterdam"),
	); err != nil {
		return err
	}
	if err := s.request(ctx, "req-2001", "sub-2001", customer("cust-2001", "Lotte Mulder", "Amsterdam"),
		decimal.NewFromInt(60), pricing.FixtureCounts{pricing.FixtureToilet: 1},
		decimal.NewFromFloat(3.5), pricing.FrequencyBiweekly); err != nil {
		return err
	}
	return s.assignment(ctx, "asg-2001", engine.RequestRef("req-2001"), "p-anna", engine.AssignmentOpen, "", 0)
}

func loadManualRequiredScenario(ctx context.Context, s *seeder) error {
	if err := s.providers(ctx,
		cleaner("p-anna", "Anna de Vries", 4.9, "Amsterdam"),
		cleaner("p-bram", "Bram Jansen", 4.7, "Amsterdam"),
		cleaner("p-femke", "Femke de Boer", 4.2, "Rotterdam"),
	); err != nil {
		return err
	}
	if err := s.request(ctx, "req-3001", "sub-3001", customer("cust-3001", "Noor Hendriks", "Amsterdam"),
		decimal.NewFromInt(120), pricing.FixtureCounts{pricing.FixtureBathroom: 2, pricing.FixtureBedroom: 3},
		decimal.NewFromInt(4), pricing.FrequencyFourWeekly); err != nil {
		return err
	}
	ref := engine.RequestRef("req-3001")
	if err := s.assignment(ctx, "asg-3001", ref, "p-anna", engine.AssignmentRejected, "fully booked", -2*time.Minute); err != nil {
		return err
	}
	if err := s.assignment(ctx, "asg-3002", ref, "p-bram", engine.AssignmentRejected, "too far", -time.Minute); err != nil {
		return err
	}
	_, err := s.store.Update(ctx, engine.CollRequests, engine.Where(engine.Eq("id", ref.ID)), engine.Record{
		"status":                 string(engine.WorkRejected),
		"manual_action_required": true,
	})
	return err
}

func loadOneTimeJobScenario(ctx context.Context, s *seeder) error {
	dirk := cleaner("p-dirk", "Dirk Peters", 4.6, "Utrecht")
	eva := cleaner("p-eva", "Eva Koster", 4.4, "Utrecht")
	dirk.AcceptsJobs, eva.AcceptsJobs = true, true
	if err := s.providers(ctx, dirk, eva, cleaner("p-anna", "Anna de Vries", 4.9, "Utrecht")); err != nil {
		return err
	}

	scheduled := s.now.AddDate(0, 0, 7)
	job := engine.Work{
		Ref:            engine.JobRef("job-4001"),
		Status:         engine.WorkRequested,
		Customer:       customer("cust-4001", "Daan Vos", "Utrecht"),
		PlanningStatus: engine.PlanningUnplanned,
		ScheduledFor:   &scheduled,
		CreatedAt:      s.now,
		UpdatedAt:      s.now,
	}
	if _, err := s.store.Insert(ctx, engine.CollJobs, engine.WorkToRecord(job)); err != nil {
		return err
	}
	return s.assignment(ctx, "asg-4001", job.Ref, "p-dirk", engine.AssignmentOpen, "", 0)
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

type seeder struct {
	store engine.RecordStore
	rates pricing.RateTable
	now   time.Time
}

// cleaner returns an active provider that takes subscriptions but not jobs.
func cleaner(id, name string, rating float64, cities ...string) provider.Provider {
	return provider.Provider{
		ID:                   id,
		Name:                 name,
		Email:                id[2:] + "@cleaners.example.com",
		Status:               provider.StatusActive,
		Cities:               cities,
		AcceptsSubscriptions: true,
		Rating:               rating,
		MaxOpenOffers:        3,
	}
}

func customer(id, name, city string) engine.Customer {
	return engine.Customer{
		ID:       id,
		Name:     name,
		Email:    id + "@customers.example.com",
		Address:  "Prinsengracht 263",
		Postcode: "1016 GV",
		City:     city,
	}
}

func (s *seeder) providers(ctx context.Context, ps ...provider.Provider) error {
	for _, p := range ps {
		if _, err := s.store.Insert(ctx, engine.CollProviders, p.ToRecord()); err != nil {
			return fmt.Errorf("provider %s: %w", p.ID, err)
		}
	}
	return nil
}

// request creates a request with a pending subscription. The minimum hours
// come from the home, the price from the requested hours raised to it.
func (s *seeder) request(ctx context.Context, requestID, subID string, c engine.Customer, area decimal.Decimal, fixtures pricing.FixtureCounts, hours decimal.Decimal, freq pricing.Frequency) error {
	minimum, err := pricing.ComputeHours(area, fixtures, s.rates)
	if err != nil {
		return err
	}
	price, err := pricing.ComputeSubscriptionPrice(pricing.PriceRequest{
		Hours:        hours,
		Frequency:    freq,
		MinimumHours: minimum,
		Mode:         pricing.RaiseToMinimum,
	}, s.rates)
	if err != nil {
		return err
	}

	if _, err := s.store.Insert(ctx, engine.CollSubscriptions, engine.SubscriptionToRecord(engine.Subscription{
		ID:                   subID,
		RequestID:            requestID,
		Status:               engine.SubscriptionPending,
		Hours:                price.Hours.String(),
		MinimumHours:         minimum.String(),
		Frequency:            string(freq),
		PricePerSessionCents: price.PricePerSessionCents,
		SessionsPerCycle:     price.SessionsPerCycle,
		BundleAmountCents:    price.BundleAmountCents,
		UpdatedAt:            s.now,
	})); err != nil {
		return err
	}

	_, err = s.store.Insert(ctx, engine.CollRequests, engine.WorkToRecord(engine.Work{
		Ref:            engine.RequestRef(requestID),
		Status:         engine.WorkRequested,
		Customer:       c,
		PreferredDays:  []string{"tuesday", "friday"},
		PreferredTime:  "morning",
		SubscriptionID: subID,
		CreatedAt:      s.now,
		UpdatedAt:      s.now,
	}))
	return err
}

// assignment inserts one history entry, offset from now so that the
// history order is stable.
func (s *seeder) assignment(ctx context.Context, id string, ref engine.WorkRef, p engine.ProviderID, status engine.AssignmentStatus, reason string, offset time.Duration) error {
	at := s.now.Add(offset)
	_, err := s.store.Insert(ctx, engine.CollAssignments, engine.AssignmentToRecord(engine.Assignment{
		ID:              engine.AssignmentID(id),
		Work:            ref,
		ProviderID:      p,
		Status:          status,
		RejectionReason: reason,
		CreatedAt:       at,
		UpdatedAt:       at,
	}))
	return err
}

/*
service.go - Orchestrator wiring and shared steps

PURPOSE:
  Service is the entry point for every assignment decision. It owns no
  mutable state: each call reads from the RecordStore, validates with the
  state machine, writes conditionally and returns notification intents.

CALL FLOW (approve / reject):
  ┌──────────┐   ┌────────────┐   ┌──────────┐   ┌──────────┐   ┌───────┐
  │ load work│──▶│ load latest│──▶│  guard   │──▶│ CAS write│──▶│cascade│
  └──────────┘   │ assignment │   └──────────┘   └──────────┘   └───────┘
                 └────────────┘        ▲              │ lost
                                       └──────────────┘ reload

TIMEOUTS:
  Every call is bounded by Timeout (on top of whatever deadline the caller's
  context already has). The rematch search has its own, shorter bound.

SEE ALSO:
  - approve.go, reject.go, manual.go, subscription.go: Operations
  - work.go: Per-kind loading and patching
*/
package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/warp/match-engine/pricing"
)

const (
	DefaultTimeout        = 10 * time.Second
	DefaultRematchTimeout = 5 * time.Second

	// maxCASAttempts bounds reload-and-retry after a lost conditional update.
	maxCASAttempts = 3
)

type Service struct {
	store     RecordStore
	rematcher *Rematcher
	audit     AuditSink
	clock     Clock
	newID     IDGenerator
	logger    *slog.Logger
	timeout   time.Duration
	rates     *pricing.RateTable
}

type Option func(*Service)

func WithClock(c Clock) Option             { return func(s *Service) { s.clock = c } }
func WithIDGenerator(g IDGenerator) Option { return func(s *Service) { s.newID = g } }
func WithLogger(l *slog.Logger) Option     { return func(s *Service) { s.logger = l } }
func WithAuditSink(a AuditSink) Option     { return func(s *Service) { s.audit = a } }
func WithTimeout(d time.Duration) Option   { return func(s *Service) { s.timeout = d } }
func WithRates(r pricing.RateTable) Option { return func(s *Service) { s.rates = &r } }

func WithRematchTimeout(d time.Duration) Option {
	return func(s *Service) { s.rematcher.Timeout = d }
}

// NewService wires a Service. Audit entries go to the store's audit_log
// collection unless WithAuditSink says otherwise.
func NewService(store RecordStore, eligibility Eligibility, opts ...Option) *Service {
	s := &Service{
		store:     store,
		rematcher: &Rematcher{Eligibility: eligibility, Timeout: DefaultRematchTimeout},
		audit:     StoreAuditSink{Store: store},
		clock:     time.Now,
		newID:     uuid.NewString,
		logger:    slog.Default(),
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// =============================================================================
// LOADING
// =============================================================================

func (s *Service) loadWork(ctx context.Context, op string, ref WorkRef) (Work, error) {
	if err := ref.Validate(); err != nil {
		return Work{}, &Error{Kind: KindNotFound, Op: op, Message: "invalid work reference", Err: err}
	}
	adapter := adapterFor(ref.Kind)
	records, err := s.store.Find(ctx, adapter.collection(), Query{
		Filter: Where(Eq(fieldID, ref.ID)),
		Limit:  1,
	})
	if err != nil {
		return Work{}, wrapStore(op, err)
	}
	if len(records) == 0 {
		return Work{}, newError(KindNotFound, op, "%s not found", ref)
	}
	return workFromRecord(ref.Kind, records[0]), nil
}

// loadAssignments returns every assignment for ref, oldest first. The order
// is established here; stores are not trusted to keep one.
func (s *Service) loadAssignments(ctx context.Context, op string, ref WorkRef) ([]Assignment, error) {
	records, err := s.store.Find(ctx, CollAssignments, Query{
		Filter: Where(Eq(fieldWorkKind, string(ref.Kind)), Eq(fieldWorkID, ref.ID)),
	})
	if err != nil {
		return nil, wrapStore(op, err)
	}
	out := make([]Assignment, len(records))
	for i, r := range records {
		out[i] = assignmentFromRecord(r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// latest picks the current assignment: the most recently created one, and
// among equal timestamps the open one.
func latest(history []Assignment) (Assignment, bool) {
	if len(history) == 0 {
		return Assignment{}, false
	}
	best := history[0]
	for _, a := range history[1:] {
		switch {
		case a.CreatedAt.After(best.CreatedAt):
			best = a
		case a.CreatedAt.Equal(best.CreatedAt) && a.Status == AssignmentOpen:
			best = a
		}
	}
	return best, true
}

func openAssignments(history []Assignment) []Assignment {
	var out []Assignment
	for _, a := range history {
		if a.Status == AssignmentOpen {
			out = append(out, a)
		}
	}
	return out
}

// =============================================================================
// CONDITIONAL TRANSITION
// =============================================================================

type transitionResult struct {
	before  Assignment
	after   Assignment
	history []Assignment
}

// transition applies event to the current assignment of ref. The write is
// conditioned on the assignment still being open; when that condition
// fails the state is reloaded and the guards run again.
func (s *Service) transition(ctx context.Context, op string, ref WorkRef, event Event, actor ProviderID, reason string) (transitionResult, error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		history, err := s.loadAssignments(ctx, op, ref)
		if err != nil {
			return transitionResult{}, err
		}
		current, ok := latest(history)
		if !ok {
			return transitionResult{}, newError(KindNotFound, op, "no assignment for %s", ref)
		}
		if err := CheckTransition(current, event, actor); err != nil {
			return transitionResult{}, err
		}

		next := Apply(current, event, reason, s.clock)
		patch := Record{
			fieldStatus:    string(next.Status),
			fieldUpdatedAt: FormatTime(next.UpdatedAt),
		}
		if event == EventReject && reason != "" {
			patch[fieldReason] = reason
		}

		n, err := s.store.Update(ctx, CollAssignments,
			Where(Eq(fieldID, string(current.ID)), Eq(fieldStatus, string(AssignmentOpen))),
			patch,
		)
		if err != nil {
			return transitionResult{}, wrapStore(op, err)
		}
		if n > 0 {
			return transitionResult{before: current, after: next, history: history}, nil
		}

		s.logger.Warn("conditional assignment update lost, re-evaluating",
			"op", op,
			"work", ref.String(),
			"assignment_id", current.ID,
			"attempt", attempt,
		)
	}
	return transitionResult{}, newError(KindDependencyFailure, op, "assignment for %s kept changing concurrently", ref)
}

// reopen undoes a committed transition, conditioned on the assignment still
// holding the status the transition wrote. It runs on a context detached
// from the caller's deadline, which may be what failed the cascade.
func (s *Service) reopen(ctx context.Context, tr transitionResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTimeout)
	defer cancel()

	n, err := s.store.Update(ctx, CollAssignments,
		Where(Eq(fieldID, string(tr.after.ID)), Eq(fieldStatus, string(tr.after.Status))),
		Record{
			fieldStatus:    string(tr.before.Status),
			fieldUpdatedAt: FormatTime(tr.before.UpdatedAt),
		},
	)
	if err != nil || n == 0 {
		s.logger.Error("could not reopen assignment, manual repair needed",
			"work", tr.after.Work.String(),
			"assignment_id", tr.after.ID,
			"updated", n,
			"error", err,
		)
	}
}

/*
Package engine provides the assignment lifecycle and auto-rematch engine.

PURPOSE:
  A unit of cleaning work (a recurring request or a one-time job) is offered
  to exactly one provider at a time through an Assignment. The provider
  accepts or rejects it. On rejection the engine looks for a replacement
  provider, never offering the same work to a provider twice.

KEY CONCEPTS IN THIS FILE (types.go):
  - WorkRef: Tagged reference to either a request or a job, never both
  - Assignment: The offer of a unit of work to one provider
  - Work: The request/job record, as far as the engine cares
  - Subscription: Provider and price fields owned by a recurring request

DESIGN PRINCIPLES:
  1. All state lives in the RecordStore; the Service holds no mutable state
  2. Status transitions are compare-and-swap updates, never blind writes
  3. Side channels (notifications) are returned as intents, not executed
  4. Errors carry a closed Kind so callers can map them to stable codes

SEE ALSO:
  - assignment.go: State machine
  - approve.go / reject.go: Orchestrators
  - rematch.go: Replacement search
  - store.go: RecordStore contract
*/
package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// WORK REFERENCE - Request(id) | Job(id)
// =============================================================================

type WorkKind string

const (
	WorkRequest WorkKind = "request"
	WorkJob     WorkKind = "job"
)

// WorkRef points at exactly one unit of work.
type WorkRef struct {
	Kind WorkKind
	ID   string
}

func RequestRef(id string) WorkRef { return WorkRef{Kind: WorkRequest, ID: id} }
func JobRef(id string) WorkRef     { return WorkRef{Kind: WorkJob, ID: id} }

func (w WorkRef) String() string { return string(w.Kind) + ":" + w.ID }

// Validate rejects refs with an unknown kind or an empty id.
func (w WorkRef) Validate() error {
	if w.Kind != WorkRequest && w.Kind != WorkJob {
		return fmt.Errorf("unknown work kind %q", w.Kind)
	}
	if w.ID == "" {
		return fmt.Errorf("empty %s id", w.Kind)
	}
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ProviderID string
type AssignmentID string

// =============================================================================
// ASSIGNMENT
// =============================================================================

type AssignmentStatus string

const (
	AssignmentOpen     AssignmentStatus = "open"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentRejected AssignmentStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s AssignmentStatus) IsTerminal() bool {
	return s == AssignmentAccepted || s == AssignmentRejected
}

// Assignment is the offer of one unit of work to one provider.
// Once Accepted or Rejected it never changes again.
type Assignment struct {
	ID              AssignmentID
	Work            WorkRef
	ProviderID      ProviderID
	Status          AssignmentStatus
	RejectionReason string // only set on Rejected
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// =============================================================================
// WORK - Recurring request or one-time job
// =============================================================================

type WorkStatus string

const (
	WorkRequested WorkStatus = "requested"
	WorkAccepted  WorkStatus = "accepted"
	// WorkRejected means every eligible provider declined; an admin has to
	// assign someone by hand (ManualActionRequired is set alongside).
	WorkRejected  WorkStatus = "rejected"
	WorkCancelled WorkStatus = "cancelled"
)

type PlanningStatus string

const (
	PlanningUnplanned PlanningStatus = "unplanned"
	PlanningPlanned   PlanningStatus = "planned"
)

// Customer is the contact and location data of whoever asked for the work.
type Customer struct {
	ID       string
	Name     string
	Email    string
	Phone    string
	Address  string
	Postcode string
	City     string
}

// Work is the engine's view of a request or job record.
type Work struct {
	Ref                  WorkRef
	Status               WorkStatus
	Customer             Customer
	PreferredDays        []string
	PreferredTime        string
	ManualActionRequired bool

	// Requests only.
	SubscriptionID string

	// Jobs only; requests keep their provider on the subscription.
	ProviderID     ProviderID
	PlanningStatus PlanningStatus
	ScheduledFor   *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

type SubscriptionStatus string

const (
	SubscriptionPending SubscriptionStatus = "pending"
	SubscriptionActive  SubscriptionStatus = "active"
	SubscriptionPaused  SubscriptionStatus = "paused"
	SubscriptionStopped SubscriptionStatus = "stopped"
)

type Subscription struct {
	ID                   string
	RequestID            string
	ProviderID           ProviderID
	Status               SubscriptionStatus
	Hours                string // decimal string, e.g. "3.5"
	MinimumHours         string
	Frequency            string
	PricePerSessionCents int64
	SessionsPerCycle     int
	BundleAmountCents    int64
	UpdatedAt            time.Time
}

// =============================================================================
// INJECTED DEPENDENCIES
// =============================================================================

// Clock returns the current time. Tests inject a deterministic one.
type Clock func() time.Time

// IDGenerator returns a new unique id.
type IDGenerator func() string

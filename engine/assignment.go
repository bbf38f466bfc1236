/*
assignment.go - Assignment state machine

STATES:
  ┌──────┐  approve(p)  ┌──────────┐
  │ Open │ ───────────▶ │ Accepted │  (terminal)
  └──────┘              └──────────┘
      │    reject(p, reason)
      │                 ┌──────────┐
      └───────────────▶ │ Rejected │  (terminal)
                        └──────────┘

GUARDS (evaluated in this order):
  1. Acting provider must be the assigned provider   -> FORBIDDEN
  2. Same event on its own terminal state             -> ALREADY_PROCESSED
  3. Opposite event on a terminal state               -> INVALID_TRANSITION

The functions here are pure. Persisting a transition (conditionally on the
status that was read) is the orchestrator's job.
*/
package engine

type Event string

const (
	EventApprove Event = "approve"
	EventReject  Event = "reject"
)

// target is the status an event leads to from Open.
func (e Event) target() AssignmentStatus {
	if e == EventApprove {
		return AssignmentAccepted
	}
	return AssignmentRejected
}

// CheckTransition evaluates the guards for event on a.
func CheckTransition(a Assignment, event Event, actor ProviderID) error {
	op := string(event)
	if actor != a.ProviderID {
		return newError(KindForbidden, op, "provider %s is not assigned to %s", actor, a.ID)
	}

	switch a.Status {
	case AssignmentOpen:
		return nil
	case event.target():
		return newError(KindAlreadyProcessed, op, "assignment %s is already %s", a.ID, a.Status)
	case AssignmentAccepted:
		return newError(KindInvalidTransition, op, "cannot reject accepted assignment %s", a.ID)
	case AssignmentRejected:
		return newError(KindInvalidTransition, op, "cannot approve previously rejected assignment %s", a.ID)
	}
	return newError(KindInvalidTransition, op, "assignment %s has unknown status %q", a.ID, a.Status)
}

// Apply returns a copy of a after event. It assumes CheckTransition passed.
func Apply(a Assignment, event Event, reason string, at Clock) Assignment {
	next := a
	next.Status = event.target()
	next.UpdatedAt = at()
	if event == EventReject {
		next.RejectionReason = reason
	}
	return next
}

package engine

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Append-only, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditAssignmentApproved       AuditAction = "assignment_approved"
	AuditAssignmentRejected       AuditAction = "assignment_rejected"
	AuditAssignmentCreated        AuditAction = "assignment_created"
	AuditSubscriptionHoursUpdated AuditAction = "subscription_hours_updated"
)

// AuditEntry is written once per successful orchestrator run and never
// updated or deleted.
type AuditEntry struct {
	ID          string
	Module      string // "requests", "jobs", "subscriptions"
	EntityID    string
	Action      AuditAction
	PerformedBy string
	Details     map[string]any
	Timestamp   time.Time
}

// AuditSink receives audit entries. Failures are logged by the Service and
// never fail the operation that produced the entry.
type AuditSink interface {
	Append(ctx context.Context, entry AuditEntry) error
}

// StoreAuditSink appends entries to the audit_log collection.
type StoreAuditSink struct {
	Store RecordStore
}

func (s StoreAuditSink) Append(ctx context.Context, e AuditEntry) error {
	_, err := s.Store.Insert(ctx, CollAuditLog, Record{
		"id":           e.ID,
		"module":       e.Module,
		"entity_id":    e.EntityID,
		"action":       string(e.Action),
		"performed_by": e.PerformedBy,
		"details":      map[string]any(e.Details),
		"timestamp":    FormatTime(e.Timestamp),
	})
	return err
}

func (s *Service) recordAudit(ctx context.Context, entry AuditEntry) {
	entry.ID = s.newID()
	entry.Timestamp = s.clock()
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}

func moduleFor(kind WorkKind) string {
	if kind == WorkJob {
		return string(CollJobs)
	}
	return string(CollRequests)
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Assignments:
    AssignmentDTO, WorkDTO, NotificationDTO
    DecisionRequest, ManualAssignRequest
    ApproveResponse, RejectResponse, ManualAssignResponse

  Pricing:
    HoursRequest, HoursDTO, QuoteRequest, QuoteDTO
    UpdateHoursRequest, SubscriptionDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/warp/match-engine/engine"
)

// =============================================================================
// ASSIGNMENT TYPES
// =============================================================================

// AssignmentDTO represents one offer of work to a provider.
type AssignmentDTO struct {
	ID              string `json:"id"`
	WorkKind        string `json:"work_kind"`
	WorkID          string `json:"work_id"`
	ProviderID      string `json:"provider_id"`
	Status          string `json:"status"`
	RejectionReason string `json:"rejection_reason,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// WorkDTO represents a request or job.
type WorkDTO struct {
	Kind                 string `json:"kind"`
	ID                   string `json:"id"`
	Status               string `json:"status"`
	ManualActionRequired bool   `json:"manual_action_required"`
	CustomerID           string `json:"customer_id,omitempty"`
	CustomerName         string `json:"customer_name,omitempty"`
	City                 string `json:"city,omitempty"`
	SubscriptionID       string `json:"subscription_id,omitempty"`
	ProviderID           string `json:"provider_id,omitempty"`
	PlanningStatus       string `json:"planning_status,omitempty"`
}

// NotificationDTO summarises an intent handed to the dispatcher.
type NotificationDTO struct {
	Kind      string `json:"kind"`
	Recipient string `json:"recipient"`
	Urgent    bool   `json:"urgent,omitempty"`
}

// DecisionRequest is the body of approve and reject calls.
type DecisionRequest struct {
	ProviderID string `json:"provider_id"`
	Reason     string `json:"reason,omitempty"`
}

// ManualAssignRequest is the body of an admin assignment.
type ManualAssignRequest struct {
	ProviderID    string `json:"provider_id"`
	PerformedBy   string `json:"performed_by"`
	AllowExcluded bool   `json:"allow_excluded"`
}

type ApproveResponse struct {
	Work          WorkDTO           `json:"work"`
	Assignment    AssignmentDTO     `json:"assignment"`
	ProviderID    string            `json:"provider_id"`
	Notifications []NotificationDTO `json:"notifications"`
}

type RejectResponse struct {
	Work               WorkDTO           `json:"work"`
	RejectedAssignment AssignmentDTO     `json:"rejected_assignment"`
	NewAssignment      *AssignmentDTO    `json:"new_assignment"`
	Exhausted          bool              `json:"exhausted"`
	ExcludedProviders  []string          `json:"excluded_providers"`
	Notifications      []NotificationDTO `json:"notifications"`
}

type ManualAssignResponse struct {
	Work          WorkDTO           `json:"work"`
	Assignment    AssignmentDTO     `json:"assignment"`
	Notifications []NotificationDTO `json:"notifications"`
}

// =============================================================================
// PRICING TYPES
// =============================================================================

// HoursRequest asks how long a home takes to clean.
type HoursRequest struct {
	AreaM2   decimal.Decimal `json:"area_m2"`
	Fixtures map[string]int  `json:"fixtures,omitempty"`
}

type HoursDTO struct {
	Hours        decimal.Decimal `json:"hours"`
	MinimumHours decimal.Decimal `json:"minimum_hours"`
}

// QuoteRequest prices a new subscription. Hours below the minimum are
// raised to it.
type QuoteRequest struct {
	Hours        decimal.Decimal `json:"hours"`
	Frequency    string          `json:"frequency"`
	MinimumHours decimal.Decimal `json:"minimum_hours"`
}

type QuoteDTO struct {
	Hours                decimal.Decimal `json:"hours"`
	PricePerSessionCents int64           `json:"price_per_session_cents"`
	SessionsPerCycle     int             `json:"sessions_per_cycle"`
	BundleAmountCents    int64           `json:"bundle_amount_cents"`
	Currency             string          `json:"currency"`
}

// UpdateHoursRequest changes the hours of an existing subscription. It is
// never raised silently.
type UpdateHoursRequest struct {
	Hours       decimal.Decimal `json:"hours"`
	PerformedBy string          `json:"performed_by"`
}

type SubscriptionDTO struct {
	ID                   string `json:"id"`
	RequestID            string `json:"request_id"`
	ProviderID           string `json:"provider_id,omitempty"`
	Status               string `json:"status"`
	Hours                string `json:"hours"`
	MinimumHours         string `json:"minimum_hours,omitempty"`
	Frequency            string `json:"frequency"`
	PricePerSessionCents int64  `json:"price_per_session_cents"`
	SessionsPerCycle     int    `json:"sessions_per_cycle"`
	BundleAmountCents    int64  `json:"bundle_amount_cents"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // "requests" or "jobs"
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toAssignmentDTO(a engine.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:              string(a.ID),
		WorkKind:        string(a.Work.Kind),
		WorkID:          a.Work.ID,
		ProviderID:      string(a.ProviderID),
		Status:          string(a.Status),
		RejectionReason: a.RejectionReason,
		CreatedAt:       engine.FormatTime(a.CreatedAt),
		UpdatedAt:       engine.FormatTime(a.UpdatedAt),
	}
}

// ToAssignmentDTOs converts an assignment history.
func ToAssignmentDTOs(as []engine.Assignment) []AssignmentDTO {
	dtos := make([]AssignmentDTO, len(as))
	for i, a := range as {
		dtos[i] = toAssignmentDTO(a)
	}
	return dtos
}

func toWorkDTO(w engine.Work) WorkDTO {
	return WorkDTO{
		Kind:                 string(w.Ref.Kind),
		ID:                   w.Ref.ID,
		Status:               string(w.Status),
		ManualActionRequired: w.ManualActionRequired,
		CustomerID:           w.Customer.ID,
		CustomerName:         w.Customer.Name,
		City:                 w.Customer.City,
		SubscriptionID:       w.SubscriptionID,
		ProviderID:           string(w.ProviderID),
		PlanningStatus:       string(w.PlanningStatus),
	}
}

func toNotificationDTOs(intents []engine.Intent) []NotificationDTO {
	dtos := make([]NotificationDTO, len(intents))
	for i, in := range intents {
		dtos[i] = NotificationDTO{
			Kind:      string(in.Kind),
			Recipient: string(in.Recipient),
			Urgent:    in.Urgent,
		}
	}
	return dtos
}

func toSubscriptionDTO(s engine.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:                   s.ID,
		RequestID:            s.RequestID,
		ProviderID:           string(s.ProviderID),
		Status:               string(s.Status),
		Hours:                s.Hours,
		MinimumHours:         s.MinimumHours,
		Frequency:            s.Frequency,
		PricePerSessionCents: s.PricePerSessionCents,
		SessionsPerCycle:     s.SessionsPerCycle,
		BundleAmountCents:    s.BundleAmountCents,
	}
}

// NewApproveResponse, NewRejectResponse and NewManualAssignResponse are
// shared by the handlers and the command line.

func NewApproveResponse(res *engine.ApproveResult) ApproveResponse {
	return ApproveResponse{
		Work:          toWorkDTO(res.Work),
		Assignment:    toAssignmentDTO(res.Assignment),
		ProviderID:    string(res.ProviderID),
		Notifications: toNotificationDTOs(res.Notifications),
	}
}

func NewRejectResponse(res *engine.RejectResult) RejectResponse {
	resp := RejectResponse{
		Work:               toWorkDTO(res.Work),
		RejectedAssignment: toAssignmentDTO(res.RejectedAssignment),
		Exhausted:          res.Exhausted(),
		ExcludedProviders:  make([]string, len(res.Excluded)),
		Notifications:      toNotificationDTOs(res.Notifications),
	}
	for i, p := range res.Excluded {
		resp.ExcludedProviders[i] = string(p)
	}
	if res.NewAssignment != nil {
		next := toAssignmentDTO(*res.NewAssignment)
		resp.NewAssignment = &next
	}
	return resp
}

func NewManualAssignResponse(res *engine.ManualAssignResult) ManualAssignResponse {
	return ManualAssignResponse{
		Work:          toWorkDTO(res.Work),
		Assignment:    toAssignmentDTO(res.Assignment),
		Notifications: toNotificationDTOs(res.Notifications),
	}
}

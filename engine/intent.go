package engine

// =============================================================================
// NOTIFICATION INTENTS
// =============================================================================
//
// The engine decides that a notification belongs to someone; delivering it
// is the caller's concern (see notify.Dispatcher). Intents are returned only
// after the core writes committed.

type IntentKind string

const (
	IntentCustomerConfirmation IntentKind = "customer_confirmation"
	IntentProviderConfirmation IntentKind = "provider_confirmation"
	IntentAdminNotice          IntentKind = "admin_notice"
	IntentAssignmentOffer      IntentKind = "assignment_offer"
	IntentAdminRematch         IntentKind = "admin_rematch_notice"
	IntentAdminManualAction    IntentKind = "admin_manual_action"
	IntentCustomerReassurance  IntentKind = "customer_reassurance"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

type Intent struct {
	Kind      IntentKind
	Recipient Role
	Work      WorkRef
	Urgent    bool
	Payload   map[string]any
}

func customerPayload(w Work) map[string]any {
	return map[string]any{
		"customer_id":    w.Customer.ID,
		"customer_name":  w.Customer.Name,
		"customer_email": w.Customer.Email,
		"address":        w.Customer.Address,
		"city":           w.Customer.City,
	}
}

func approvalIntents(w Work, a Assignment) []Intent {
	customer := customerPayload(w)
	customer["provider_id"] = string(a.ProviderID)

	return []Intent{
		{Kind: IntentCustomerConfirmation, Recipient: RoleCustomer, Work: w.Ref, Payload: customer},
		{Kind: IntentProviderConfirmation, Recipient: RoleProvider, Work: w.Ref, Payload: map[string]any{
			"provider_id":   string(a.ProviderID),
			"assignment_id": string(a.ID),
			"address":       w.Customer.Address,
			"city":          w.Customer.City,
		}},
		{Kind: IntentAdminNotice, Recipient: RoleAdmin, Work: w.Ref, Payload: map[string]any{
			"event":         string(AuditAssignmentApproved),
			"provider_id":   string(a.ProviderID),
			"assignment_id": string(a.ID),
		}},
	}
}

func rematchIntents(w Work, rejected, next Assignment, excluded ExclusionSet) []Intent {
	return []Intent{
		offerIntent(w, next),
		{Kind: IntentAdminRematch, Recipient: RoleAdmin, Work: w.Ref, Payload: map[string]any{
			"rejected_by":        string(rejected.ProviderID),
			"rejection_reason":   rejected.RejectionReason,
			"new_provider_id":    string(next.ProviderID),
			"excluded_providers": excluded.Strings(),
		}},
	}
}

func exhaustedIntents(w Work, rejected Assignment, excluded ExclusionSet) []Intent {
	return []Intent{
		{Kind: IntentAdminManualAction, Recipient: RoleAdmin, Work: w.Ref, Urgent: true, Payload: map[string]any{
			"rejected_by":        string(rejected.ProviderID),
			"rejection_reason":   rejected.RejectionReason,
			"excluded_providers": excluded.Strings(),
		}},
		{Kind: IntentCustomerReassurance, Recipient: RoleCustomer, Work: w.Ref, Payload: customerPayload(w)},
	}
}

func offerIntent(w Work, a Assignment) Intent {
	return Intent{Kind: IntentAssignmentOffer, Recipient: RoleProvider, Work: w.Ref, Payload: map[string]any{
		"provider_id":    string(a.ProviderID),
		"assignment_id":  string(a.ID),
		"city":           w.Customer.City,
		"postcode":       w.Customer.Postcode,
		"preferred_days": w.PreferredDays,
		"preferred_time": w.PreferredTime,
	}}
}

package engine

// Field names shared by the engine and every store implementation.
const (
	fieldID        = "id"
	fieldStatus    = "status"
	fieldWorkKind  = "work_kind"
	fieldWorkID    = "work_id"
	fieldProvider  = "provider_id"
	fieldReason    = "rejection_reason"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
	fieldRequestID = "request_id"
	fieldHours     = "hours"
)

// =============================================================================
// ASSIGNMENT
// =============================================================================

// AssignmentToRecord is also used by seeders and tests.
func AssignmentToRecord(a Assignment) Record {
	r := Record{
		fieldID:        string(a.ID),
		fieldWorkKind:  string(a.Work.Kind),
		fieldWorkID:    a.Work.ID,
		fieldProvider:  string(a.ProviderID),
		fieldStatus:    string(a.Status),
		fieldCreatedAt: FormatTime(a.CreatedAt),
		fieldUpdatedAt: FormatTime(a.UpdatedAt),
	}
	if a.RejectionReason != "" {
		r[fieldReason] = a.RejectionReason
	}
	return r
}

func assignmentFromRecord(r Record) Assignment {
	return Assignment{
		ID:              AssignmentID(r.String(fieldID)),
		Work:            WorkRef{Kind: WorkKind(r.String(fieldWorkKind)), ID: r.String(fieldWorkID)},
		ProviderID:      ProviderID(r.String(fieldProvider)),
		Status:          AssignmentStatus(r.String(fieldStatus)),
		RejectionReason: r.String(fieldReason),
		CreatedAt:       r.Time(fieldCreatedAt),
		UpdatedAt:       r.Time(fieldUpdatedAt),
	}
}

// =============================================================================
// WORK
// =============================================================================

func workFromRecord(kind WorkKind, r Record) Work {
	w := Work{
		Ref:    WorkRef{Kind: kind, ID: r.String(fieldID)},
		Status: WorkStatus(r.String(fieldStatus)),
		Customer: Customer{
			ID:       r.String("customer_id"),
			Name:     r.String("customer_name"),
			Email:    r.String("customer_email"),
			Phone:    r.String("customer_phone"),
			Address:  r.String("address"),
			Postcode: r.String("postcode"),
			City:     r.String("city"),
		},
		PreferredDays:        r.Strings("preferred_days"),
		PreferredTime:        r.String("preferred_time"),
		ManualActionRequired: r.Bool("manual_action_required"),
		SubscriptionID:       r.String("subscription_id"),
		ProviderID:           ProviderID(r.String(fieldProvider)),
		PlanningStatus:       PlanningStatus(r.String("planning_status")),
		CreatedAt:            r.Time(fieldCreatedAt),
		UpdatedAt:            r.Time(fieldUpdatedAt),
	}
	if s := r.String("scheduled_for"); s != "" {
		t := ParseTime(s)
		w.ScheduledFor = &t
	}
	return w
}

// WorkToRecord is used by seeders and tests to create work records.
func WorkToRecord(w Work) Record {
	r := Record{
		fieldID:                  w.Ref.ID,
		fieldStatus:              string(w.Status),
		"customer_id":            w.Customer.ID,
		"customer_name":          w.Customer.Name,
		"customer_email":         w.Customer.Email,
		"customer_phone":         w.Customer.Phone,
		"address":                w.Customer.Address,
		"postcode":               w.Customer.Postcode,
		"city":                   w.Customer.City,
		"preferred_time":         w.PreferredTime,
		"manual_action_required": w.ManualActionRequired,
		fieldCreatedAt:           FormatTime(w.CreatedAt),
		fieldUpdatedAt:           FormatTime(w.UpdatedAt),
	}
	days := make([]any, len(w.PreferredDays))
	for i, d := range w.PreferredDays {
		days[i] = d
	}
	r["preferred_days"] = days

	switch w.Ref.Kind {
	case WorkRequest:
		r["subscription_id"] = w.SubscriptionID
	case WorkJob:
		r[fieldProvider] = string(w.ProviderID)
		r["planning_status"] = string(w.PlanningStatus)
		if w.ScheduledFor != nil {
			r["scheduled_for"] = FormatTime(*w.ScheduledFor)
		}
	}
	return r
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

func subscriptionFromRecord(r Record) Subscription {
	return Subscription{
		ID:                   r.String(fieldID),
		RequestID:            r.String(fieldRequestID),
		ProviderID:           ProviderID(r.String(fieldProvider)),
		Status:               SubscriptionStatus(r.String(fieldStatus)),
		Hours:                r.String(fieldHours),
		MinimumHours:         r.String("minimum_hours"),
		Frequency:            r.String("frequency"),
		PricePerSessionCents: r.Int("price_per_session_cents"),
		SessionsPerCycle:     int(r.Int("sessions_per_cycle")),
		BundleAmountCents:    r.Int("bundle_amount_cents"),
		UpdatedAt:            r.Time(fieldUpdatedAt),
	}
}

// SubscriptionToRecord is used by seeders and tests.
func SubscriptionToRecord(s Subscription) Record {
	return Record{
		fieldID:                   s.ID,
		fieldRequestID:            s.RequestID,
		fieldProvider:             string(s.ProviderID),
		fieldStatus:               string(s.Status),
		fieldHours:                s.Hours,
		"minimum_hours":           s.MinimumHours,
		"frequency":               s.Frequency,
		"price_per_session_cents": s.PricePerSessionCents,
		"sessions_per_cycle":      s.SessionsPerCycle,
		"bundle_amount_cents":     s.BundleAmountCents,
		fieldUpdatedAt:            FormatTime(s.UpdatedAt),
	}
}

/*
Package provider is the default eligibility collaborator of the engine.

PURPOSE:
  Directory answers "who could take this work?" from the providers
  collection of the record store. It is deliberately simple: status, city,
  work kind and a cap on outstanding offers. Smarter matching (travel time,
  calendars) plugs in behind the same engine.Eligibility interface.

SELECTION:
  1. status = active
  2. serves the customer's city (providers without cities serve everywhere)
  3. accepts the work kind (subscriptions for requests, jobs for jobs)
  4. fewer open assignments than max_open_offers (0 = unlimited)
  5. not in the exclusion set
  Ordered by rating (highest first), then id.
*/
package provider

import (
	"context"
	"sort"
	"strings"

	"github.com/warp/match-engine/engine"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Provider is a cleaner as stored in the providers collection.
type Provider struct {
	ID                   string
	Name                 string
	Email                string
	Status               Status
	Cities               []string
	AcceptsSubscriptions bool
	AcceptsJobs          bool
	Rating               float64
	MaxOpenOffers        int
}

func (p Provider) ToRecord() engine.Record {
	cities := make([]any, len(p.Cities))
	for i, c := range p.Cities {
		cities[i] = c
	}
	return engine.Record{
		"id":                    p.ID,
		"name":                  p.Name,
		"email":                 p.Email,
		"status":                string(p.Status),
		"cities":                cities,
		"accepts_subscriptions": p.AcceptsSubscriptions,
		"accepts_jobs":          p.AcceptsJobs,
		"rating":                p.Rating,
		"max_open_offers":       p.MaxOpenOffers,
	}
}

func FromRecord(r engine.Record) Provider {
	return Provider{
		ID:                   r.String("id"),
		Name:                 r.String("name"),
		Email:                r.String("email"),
		Status:               Status(r.String("status")),
		Cities:               r.Strings("cities"),
		AcceptsSubscriptions: r.Bool("accepts_subscriptions"),
		AcceptsJobs:          r.Bool("accepts_jobs"),
		Rating:               r.Float("rating"),
		MaxOpenOffers:        int(r.Int("max_open_offers")),
	}
}

func (p Provider) serves(city string) bool {
	if len(p.Cities) == 0 || city == "" {
		return true
	}
	for _, c := range p.Cities {
		if strings.EqualFold(c, city) {
			return true
		}
	}
	return false
}

func (p Provider) accepts(kind engine.WorkKind) bool {
	if kind == engine.WorkJob {
		return p.AcceptsJobs
	}
	return p.AcceptsSubscriptions
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Directory implements engine.Eligibility over a RecordStore.
type Directory struct {
	Store engine.RecordStore
}

func NewDirectory(store engine.RecordStore) *Directory {
	return &Directory{Store: store}
}

// Candidates returns eligible providers for work, best first.
func (d *Directory) Candidates(ctx context.Context, work engine.Work, excluded engine.ExclusionSet) ([]engine.ProviderMatch, error) {
	records, err := d.Store.Find(ctx, engine.CollProviders, engine.Query{
		Filter: engine.Where(engine.Eq("status", string(StatusActive))),
	})
	if err != nil {
		return nil, err
	}

	var eligible []Provider
	for _, r := range records {
		p := FromRecord(r)
		if p.ID == "" || excluded.Contains(engine.ProviderID(p.ID)) {
			continue
		}
		if !p.serves(work.Customer.City) || !p.accepts(work.Ref.Kind) {
			continue
		}
		if p.MaxOpenOffers > 0 {
			open, err := d.openOffers(ctx, p.ID)
			if err != nil {
				return nil, err
			}
			if open >= p.MaxOpenOffers {
				continue
			}
		}
		eligible = append(eligible, p)
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].Rating != eligible[j].Rating {
			return eligible[i].Rating > eligible[j].Rating
		}
		return eligible[i].ID < eligible[j].ID
	})

	out := make([]engine.ProviderMatch, len(eligible))
	for i, p := range eligible {
		out[i] = engine.ProviderMatch{
			ProviderID: engine.ProviderID(p.ID),
			Name:       p.Name,
			Email:      p.Email,
			Score:      p.Rating,
		}
	}
	return out, nil
}

func (d *Directory) openOffers(ctx context.Context, providerID string) (int, error) {
	records, err := d.Store.Find(ctx, engine.CollAssignments, engine.Query{
		Filter: engine.Where(
			engine.Eq("provider_id", providerID),
			engine.Eq("status", string(engine.AssignmentOpen)),
		),
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

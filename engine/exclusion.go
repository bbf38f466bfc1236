package engine

import "sort"

// ExclusionSet holds the providers that must not be offered a unit of work
// again. It is derived from the rejected assignments on every rejection and
// never stored.
type ExclusionSet map[ProviderID]struct{}

// ExclusionFor collects every provider with a rejected assignment in
// history, plus the extra providers (the one who just rejected, whose
// rejection may not be visible in history yet).
func ExclusionFor(history []Assignment, extra ...ProviderID) ExclusionSet {
	set := make(ExclusionSet)
	for _, a := range history {
		if a.Status == AssignmentRejected {
			set[a.ProviderID] = struct{}{}
		}
	}
	for _, p := range extra {
		set[p] = struct{}{}
	}
	return set
}

func (s ExclusionSet) Contains(p ProviderID) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the providers in a stable order for logs and audit details.
func (s ExclusionSet) Sorted() []ProviderID {
	out := make([]ProviderID, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s ExclusionSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = string(p)
	}
	return out
}

// Package store provides RecordStore implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/match-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	collections map[engine.Collection][]engine.Record
	ids         map[engine.Collection]map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[engine.Collection][]engine.Record),
		ids:         make(map[engine.Collection]map[string]bool),
	}
}

// Find returns copies of the matching records in insertion order, or
// ordered by q.OrderBy when set.
func (m *Memory) Find(ctx context.Context, coll engine.Collection, q engine.Query) ([]engine.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := q.Filter.Validate(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Record
	for _, r := range m.collections[coll] {
		if q.Filter.Match(r) {
			result = append(result, r.Clone())
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(result, func(i, j int) bool {
			c, _ := engine.CompareValues(result[i][q.OrderBy], result[j][q.OrderBy])
			if q.Desc {
				return c > 0
			}
			return c < 0
		})
	}
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// Insert appends a record. Ids are unique per collection.
func (m *Memory) Insert(ctx context.Context, coll engine.Collection, body engine.Record) (engine.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := body.String("id")
	if id == "" {
		return nil, fmt.Errorf("insert into %s: missing id", coll)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ids[coll] == nil {
		m.ids[coll] = make(map[string]bool)
	}
	if m.ids[coll][id] {
		return nil, fmt.Errorf("insert into %s: duplicate id %q", coll, id)
	}
	m.ids[coll][id] = true
	m.collections[coll] = append(m.collections[coll], body.Clone())
	return body.Clone(), nil
}

// Update merges patch into every matching record. The match and the write
// happen under one lock, so a filter on status behaves as compare-and-swap.
func (m *Memory) Update(ctx context.Context, coll engine.Collection, filter engine.Filter, patch engine.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	if _, ok := patch["id"]; ok {
		return 0, fmt.Errorf("update %s: id is immutable", coll)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for i, r := range m.collections[coll] {
		if !filter.Match(r) {
			continue
		}
		next := r.Clone()
		for k, v := range patch {
			next[k] = v
		}
		m.collections[coll][i] = next
		n++
	}
	return n, nil
}

// Len returns the number of records in a collection.
func (m *Memory) Len(coll engine.Collection) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[coll])
}

// Reset drops every collection.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = make(map[engine.Collection][]engine.Record)
	m.ids = make(map[engine.Collection]map[string]bool)
	return nil
}

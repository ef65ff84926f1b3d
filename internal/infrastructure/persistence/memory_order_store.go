package persistence

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/ordersync/backend/internal/domain/order"
)

// MemoryOrderStore is an in-process order store for dry runs and tests.
// It applies the same merge rules as the MongoDB store.
type MemoryOrderStore struct {
	mu         sync.RWMutex
	partitions map[order.Stage]*memoryPartition
}

type memoryPartition struct {
	ids     []string
	records map[string]order.Record
}

var _ order.Store = (*MemoryOrderStore)(nil)

// NewMemoryOrderStore creates an empty store with all three partitions
func NewMemoryOrderStore() *MemoryOrderStore {
	s := &MemoryOrderStore{partitions: make(map[order.Stage]*memoryPartition)}
	for _, st := range order.AllStages {
		s.partitions[st] = &memoryPartition{records: make(map[string]order.Record)}
	}
	return s
}

// Find implements order.Store. Unsorted results keep insertion order.
func (s *MemoryOrderStore) Find(_ context.Context, stage order.Stage, q order.Query) ([]order.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := s.partition(stage)
	if err != nil {
		return nil, err
	}
	var out []order.Record
	for _, id := range p.ids {
		if r := p.records[id]; q.Matches(r) {
			out = append(out, cloneRecord(r))
		}
	}
	order.SortRecords(out, q.Sort)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// BulkUpsert implements order.Store. The batch is validated before any
// record is written, so a rejected batch leaves the store untouched.
func (s *MemoryOrderStore) BulkUpsert(_ context.Context, stage order.Stage, records []order.Record) (order.BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.partition(stage)
	if err != nil {
		return order.BulkResult{}, fmt.Errorf("%w: %w", order.ErrStoreWriteFailure, err)
	}
	for i, r := range records {
		if r.ExternalOrderID == "" {
			return order.BulkResult{}, fmt.Errorf("%w: %w (record %d)", order.ErrStoreWriteFailure, order.ErrMissingExternalID, i)
		}
	}

	var res order.BulkResult
	for _, r := range records {
		existing, ok := p.records[r.ExternalOrderID]
		if !ok {
			p.ids = append(p.ids, r.ExternalOrderID)
			p.records[r.ExternalOrderID] = order.Merge(order.Record{}, cloneRecord(r))
			res.Upserted++
			continue
		}
		merged := order.Merge(existing, cloneRecord(r))
		res.Matched++
		if !reflect.DeepEqual(existing, merged) {
			res.Modified++
		}
		p.records[r.ExternalOrderID] = merged
	}
	return res, nil
}

// BulkDelete implements order.Store
func (s *MemoryOrderStore) BulkDelete(_ context.Context, stage order.Stage, externalIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.partition(stage)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", order.ErrStoreWriteFailure, err)
	}
	var removed int64
	for _, id := range externalIDs {
		if _, ok := p.records[id]; !ok {
			continue
		}
		delete(p.records, id)
		p.ids = slices.DeleteFunc(p.ids, func(x string) bool { return x == id })
		removed++
	}
	return removed, nil
}

// Ping implements order.Store
func (s *MemoryOrderStore) Ping(context.Context) error {
	return nil
}

// Count returns the number of records in stage
func (s *MemoryOrderStore) Count(stage order.Stage) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.partitions[stage]; ok {
		return len(p.records)
	}
	return 0
}

func (s *MemoryOrderStore) partition(stage order.Stage) (*memoryPartition, error) {
	p, ok := s.partitions[stage]
	if !ok {
		return nil, fmt.Errorf("%w: %q", order.ErrInvalidStage, stage)
	}
	return p, nil
}

func cloneRecord(r order.Record) order.Record {
	r.TrackingNumbers = slices.Clone(r.TrackingNumbers)
	r.LineItems = slices.Clone(r.LineItems)
	return r
}

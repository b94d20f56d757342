package events

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for demo and test use.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string][]*Event // clientID → events
	nextID int64
}

// NewMemoryStore creates an empty in-memory event store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]*Event),
	}
}

// Add records events. IDs are assigned when missing.
func (s *MemoryStore) Add(evts ...*Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range evts {
		cp := copyEvent(e)
		if cp.ID == 0 {
			s.nextID++
			cp.ID = s.nextID
		}
		cp.OccurredAt = cp.OccurredAt.UTC()
		s.events[cp.ClientID] = append(s.events[cp.ClientID], cp)
	}
}

func (s *MemoryStore) Query(ctx context.Context, clientID string, start, end time.Time) ([]*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Event
	for _, e := range s.events[clientID] {
		if e.OccurredAt.Before(start) || e.OccurredAt.After(end) {
			continue
		}
		result = append(result, copyEvent(e))
	}

	sort.SliceStable(result, func(i, j int) bool {
		ki, _ := result[i].IdentityKey()
		kj, _ := result[j].IdentityKey()
		if ki != kj {
			return ki < kj
		}
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})
	return result, nil
}

func copyEvent(e *Event) *Event {
	cp := *e
	if e.Quantity != nil {
		q := *e.Quantity
		cp.Quantity = &q
	}
	if e.Price != nil {
		p := *e.Price
		cp.Price = &p
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

package ledger

import (
	"context"
	"sync"
)

// Store persists ledger entries. Append-only: entries are never rewritten,
// only their lifecycle status advances.
type Store interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	Get(ctx context.Context, id string) (Entry, error)
	List(ctx context.Context, limit int, afterSeq uint64) ([]Entry, uint64, error)
	ListBySeller(ctx context.Context, sellerID string) ([]Entry, error)
	ListInvolving(ctx context.Context, accountID string) ([]Entry, error)
	UpdateStatus(ctx context.Context, id string, st Status) (Entry, error)
	FindByIdempotencyKey(ctx context.Context, key string) (Entry, bool, error)
}

// InMemory implements Store with in-process concurrency safety.
type InMemory struct {
	mu      sync.RWMutex
	seq     uint64
	entries []Entry
	byID    map[string]int
	idem    map[string]string // idempotency key -> entry id
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		byID: make(map[string]int),
		idem: make(map[string]string),
	}
}

func (s *InMemory) Append(ctx context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.Sequence = s.seq
	s.entries = append(s.entries, e)
	s.byID[e.ID] = len(s.entries) - 1
	if e.IdempotencyKey != "" {
		s.idem[e.IdempotencyKey] = e.ID
	}
	return e, nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return s.entries[idx], nil
}

func (s *InMemory) List(ctx context.Context, limit int, afterSeq uint64) ([]Entry, uint64, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	var last uint64
	for _, e := range s.entries {
		if e.Sequence <= afterSeq {
			continue
		}
		res = append(res, e)
		last = e.Sequence
		if len(res) >= limit {
			break
		}
	}
	return res, last, nil
}

func (s *InMemory) ListBySeller(ctx context.Context, sellerID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for _, e := range s.entries {
		if e.SellerID == sellerID {
			res = append(res, e)
		}
	}
	return res, nil
}

// ListInvolving returns entries where the account is the seller or one of
// the upline recipients in the frozen payout snapshot.
func (s *InMemory) ListInvolving(ctx context.Context, accountID string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []Entry
	for _, e := range s.entries {
		if e.SellerID == accountID {
			res = append(res, e)
			continue
		}
		for _, share := range e.Payout.Uplines {
			if share.AccountID == accountID {
				res = append(res, e)
				break
			}
		}
	}
	return res, nil
}

func (s *InMemory) UpdateStatus(ctx context.Context, id string, st Status) (Entry, error) {
	if !st.Valid() {
		return Entry{}, ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if s.entries[idx].Status.Terminal() {
		return Entry{}, ErrFinalStatus
	}
	s.entries[idx].Status = st
	return s.entries[idx], nil
}

func (s *InMemory) FindByIdempotencyKey(ctx context.Context, key string) (Entry, bool, error) {
	if key == "" {
		return Entry{}, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idem[key]
	if !ok {
		return Entry{}, false, nil
	}
	return s.entries[s.byID[id]], true, nil
}

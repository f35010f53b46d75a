// Package stream fans recorded-transaction events out to dashboard
// subscribers (SSE clients).
package stream

import (
	"context"
	"sync"
	"time"
)

// TransactionEvent describes one recorded sale for live dashboards.
type TransactionEvent struct {
	TransactionID string    `json:"transaction_id"`
	SellerID      string    `json:"seller_id"`
	Industry      string    `json:"industry"`
	Gross         int64     `json:"gross"`
	PlatformCut   int64     `json:"platform_cut"`
	UplineLevels  int       `json:"upline_levels"`
	Timestamp     time.Time `json:"timestamp"`
}

// Stream fan-outs events to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan TransactionEvent
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan TransactionEvent)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan TransactionEvent {
	ch := make(chan TransactionEvent, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the event to all subscribers.
func (s *Stream) Publish(evt TransactionEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

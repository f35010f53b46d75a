// Package audit keeps the append-only trail of administrative actions and
// mirrors every record as a structured log event.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"paradise.network/internal/auth"
	"paradise.network/internal/ids"
	"paradise.network/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Record is one administrative action. The trail is consumed only by admin
// reporting; core invariants never read it.
type Record struct {
	ID          string    `json:"id"`
	OccurredAt  time.Time `json:"occurred_at"`
	ActorID     string    `json:"actor_id,omitempty"`
	Event       string    `json:"event"`
	Description string    `json:"description,omitempty"`
	TargetID    string    `json:"target_id,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Trail is an append-only list of records.
type Trail interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
}

// InMemory implements Trail with in-process concurrency safety.
type InMemory struct {
	mu      sync.RWMutex
	records []Record
}

var _ Trail = (*InMemory)(nil)

// NewInMemory creates an empty trail.
func NewInMemory() *InMemory { return &InMemory{} }

func (t *InMemory) Append(ctx context.Context, rec Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, rec)
	return nil
}

func (t *InMemory) List(ctx context.Context) ([]Record, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out, nil
}

// LogEvent enriches the record with request and actor context, appends it
// to the trail and emits it as a structured JSON log line.
func LogEvent(ctx context.Context, trail Trail, event, description, targetID string) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	rec := Record{
		ID:          ids.New(),
		OccurredAt:  time.Now().UTC(),
		Event:       event,
		Description: description,
		TargetID:    targetID,
		RequestID:   requestIDFromContext(ctx),
	}
	if actorID, ok := auth.AccountIDFromContext(ctx); ok {
		rec.ActorID = actorID
	}
	if trail != nil {
		if err := trail.Append(ctx, rec); err != nil {
			return err
		}
	}

	entry := map[string]any{
		"ts":    rec.OccurredAt.Format(time.RFC3339Nano),
		"type":  "audit",
		"event": rec.Event,
	}
	if rec.RequestID != "" {
		entry["request_id"] = rec.RequestID
	}
	if rec.ActorID != "" {
		entry["actor_id"] = rec.ActorID
	}
	if rec.TargetID != "" {
		entry["target_id"] = rec.TargetID
	}
	if rec.Description != "" {
		entry["description"] = rec.Description
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}

// Package timeline holds the append-only journey history and its read-side
// projections.
package timeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type classifies a timeline event.
type Type string

const (
	Started       Type = "started"
	Paused        Type = "paused"
	Resumed       Type = "resumed"
	Completed     Type = "completed"
	Milestone     Type = "milestone"
	TaskCompleted Type = "task_completed"
)

func (t Type) IsValid() bool {
	switch t {
	case Started, Paused, Resumed, Completed, Milestone, TaskCompleted:
		return true
	}
	return false
}

// Event is one immutable entry in a journey's history.
type Event struct {
	ID         string            `json:"id"`
	JourneyID  string            `json:"journey_id"`
	UserID     string            `json:"user_id"`
	Type       Type              `json:"event_type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Title      string            `json:"event_title"`
	Data       map[string]string `json:"event_data,omitempty"`
	PrevHash   string            `json:"prev_hash,omitempty"`
	Hash       string            `json:"hash,omitempty"`
}

// NewEvent builds an event with a fresh id. Hashes are set by the store.
func NewEvent(journeyID, userID string, typ Type, at time.Time, title string, data map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		JourneyID:  journeyID,
		UserID:     userID,
		Type:       typ,
		OccurredAt: at,
		Title:      title,
		Data:       data,
	}
}

// CalculateHash returns a deterministic SHA256 over the event and PrevHash.
func (e *Event) CalculateHash() string {
	h := sha256.New()
	h.Write([]byte(e.PrevHash))
	h.Write([]byte(e.ID))
	h.Write([]byte(e.JourneyID))
	h.Write([]byte(e.UserID))
	h.Write([]byte(e.Type))
	h.Write([]byte(e.OccurredAt.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte(e.Title))
	h.Write([]byte(canonicalData(e.Data)))
	return hex.EncodeToString(h.Sum(nil))
}

func canonicalData(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m[k])
		b.WriteByte('\n')
	}
	return b.String()
}

// Repository is the append-only event store.
type Repository interface {
	AppendEvent(ctx context.Context, e *Event) error
	ListByJourney(ctx context.Context, journeyID string) ([]Event, error)
	ListByUser(ctx context.Context, userID string) ([]Event, error)
}

// NextOccurredAt returns now, or last when the clock has gone backwards, so
// that a journey's events never decrease in time.
func NextOccurredAt(last, now time.Time) time.Time {
	if now.Before(last) {
		return last
	}
	return now
}

// SortChronological orders events by occurredAt, keeping append order for
// equal instants.
func SortChronological(events []Event) {
	sort.SliceStable(events, func(i, k int) bool {
		return events[i].OccurredAt.Before(events[k].OccurredAt)
	})
}

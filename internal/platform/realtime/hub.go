// Package realtime delivers store change events to interested consumers.
// Postgres triggers announce row changes with pg_notify, the Listener turns
// them into Change values, and the Hub fans them out to subscriptions that
// select a table and an optional set of column equalities.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Tables that publish changes.
const (
	TableChatMessages   = "chat_messages"
	TableSymptomReports = "symptom_reports"
	TableDoctorPatients = "doctor_patients"
	TableAppointments   = "appointments"
)

// Change operations, as reported by TG_OP.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// Change is one row-level change. Record holds the new row for inserts and
// updates and the old row for deletes.
type Change struct {
	Table     string          `json:"table"`
	Op        string          `json:"op"`
	Record    json.RawMessage `json:"record"`
	Truncated bool            `json:"truncated,omitempty"`
	At        time.Time       `json:"at"`
}

// Filter restricts a subscription to records whose columns equal the given
// values. An empty filter matches every record of the table.
type Filter map[string]string

// Publisher accepts changes for delivery.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Subscription is a handle on a stream of changes. The owner must call Close
// once it stops reading Events.
type Subscription struct {
	ID     string
	Table  string
	Filter Filter

	events chan Change
	hub    *Hub
	once   sync.Once
}

// Events yields matching changes. The channel is closed by Close.
func (s *Subscription) Events() <-chan Change {
	return s.events
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.events)
	})
}

// Hub tracks subscriptions per table. All operations are safe for
// concurrent use.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]map[*Subscription]struct{}
	buffer  int
	dropped atomic.Int64
}

// NewHub creates a hub whose subscriptions buffer up to buffer events before
// dropping.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[string]map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe opens a subscription on table restricted by filter.
func (h *Hub) Subscribe(table string, filter Filter) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		Table:  table,
		Filter: filter,
		events: make(chan Change, h.buffer),
		hub:    h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[table] == nil {
		h.subs[table] = make(map[*Subscription]struct{})
	}
	h.subs[table][sub] = struct{}{}
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[sub.Table]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(h.subs, sub.Table)
		}
	}
}

// Publish delivers change to every matching subscription. A subscriber whose
// buffer is full misses the event; delivery never blocks the publisher.
func (h *Hub) Publish(_ context.Context, change Change) error {
	var fields map[string]interface{}
	if len(change.Record) > 0 {
		if err := json.Unmarshal(change.Record, &fields); err != nil {
			return fmt.Errorf("decode %s record: %w", change.Table, err)
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs[change.Table] {
		if !sub.Filter.matches(fields) {
			continue
		}
		select {
		case sub.events <- change:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// SubscriptionCount returns the number of open subscriptions on table.
func (h *Hub) SubscriptionCount(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

// Dropped returns how many events were discarded for slow subscribers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (f Filter) matches(fields map[string]interface{}) bool {
	for column, want := range f {
		got, ok := fields[column]
		if !ok || got == nil || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

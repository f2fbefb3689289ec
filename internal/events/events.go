package events

import (
	"context"
	"sync"
	"time"

	"stockledger/internal/domain"
)

const TypeRecordCreated = "inventory.record.created"

// Event announces one committed ledger line.
type Event struct {
	ID         string                 `json:"event_id"`
	Type       string                 `json:"event_type"`
	Record     domain.InventoryRecord `json:"payload"`
	OccurredAt time.Time              `json:"timestamp"`
}

func RecordCreated(id string, record domain.InventoryRecord) Event {
	return Event{
		ID:         id,
		Type:       TypeRecordCreated,
		Record:     record,
		OccurredAt: record.CreatedAt,
	}
}

// Publisher delivers events after the command that produced them committed.
// A failed Publish never undoes the command.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

func (Nop) Close() error { return nil }

// Memory keeps published events in order; tests read them back.
type Memory struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (m *Memory) Publish(_ context.Context, events ...Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, events...)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

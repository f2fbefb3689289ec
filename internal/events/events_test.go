package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"stockledger/internal/domain"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_KeysByProduct(t *testing.T) {
	writer := &fakeWriter{}
	publisher := &KafkaPublisher{writer: writer, logger: zap.NewNop()}
	at := time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

	err := publisher.Publish(context.Background(),
		RecordCreated("e1", domain.InventoryRecord{ID: "r1", ProductID: "p1", Type: domain.RecordIn, Quantity: 20, AfterStock: 20, CreatedAt: at}),
		RecordCreated("e2", domain.InventoryRecord{ID: "r2", ProductID: "p2", Type: domain.RecordOut, Quantity: -3, CreatedAt: at}),
	)
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(writer.msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(writer.msgs))
	}
	if string(writer.msgs[0].Key) != "p1" || string(writer.msgs[1].Key) != "p2" {
		t.Errorf("Unexpected keys %q, %q", writer.msgs[0].Key, writer.msgs[1].Key)
	}

	var decoded Event
	if err := json.Unmarshal(writer.msgs[0].Value, &decoded); err != nil {
		t.Fatalf("Failed to decode message: %v", err)
	}
	if decoded.Type != TypeRecordCreated || decoded.Record.Quantity != 20 || !decoded.OccurredAt.Equal(at) {
		t.Errorf("Unexpected event %+v", decoded)
	}
}

func TestMemory_PublishAndFail(t *testing.T) {
	m := &Memory{}
	_ = m.Publish(context.Background(), RecordCreated("e1", domain.InventoryRecord{ID: "r1"}))
	if got := m.Events(); len(got) != 1 || got[0].ID != "e1" {
		t.Fatalf("Unexpected events %+v", got)
	}

	m.Err = context.DeadlineExceeded
	if err := m.Publish(context.Background(), RecordCreated("e2", domain.InventoryRecord{})); err == nil {
		t.Errorf("Expected configured error")
	}
	if len(m.Events()) != 1 {
		t.Errorf("Expected failed publish to be dropped")
	}
}

// Package events publishes record lifecycle notifications on NATS subjects.
package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/records/internal/model"
)

// Subject prefix and topics. Subscribe to TopicAll for every record event.
const (
	TopicAll                  = "records.>"
	TopicRecordCreated        = "records.record.created"
	TopicRecordPayloadUpdated = "records.record.payload_updated"
	TopicRecordDeleted        = "records.record.deleted"
)

// RecordCreated is published after a record is inserted.
type RecordCreated[M any] struct {
	Record     *model.Record[M] `json:"record"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// RecordPayloadUpdated is published after a record's payload is replaced.
type RecordPayloadUpdated[M any] struct {
	Record     *model.Record[M] `json:"record"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// RecordDeleted is published after a record is removed. It carries the
// record as it was just before deletion.
type RecordDeleted[M any] struct {
	RecordID   string           `json:"record_id"`
	Record     *model.Record[M] `json:"record,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Message is one event received from the bus.
type Message struct {
	Topic string
	Data  []byte
}

// Subscriber receives events from the event bus.
type Subscriber interface {
	// Subscribe delivers messages on the returned channel.
	// Call the returned cancel function to unsubscribe and close the channel.
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// Package server exposes the record store over HTTP and gRPC.
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/records/internal/events"
	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/store"
)

// RecordsServer serves profile records from a store and announces every
// successful write on the event bus.
type RecordsServer struct {
	store     store.Store[model.Profile]
	publisher events.Publisher
	metrics   *Metrics
	now       func() time.Time
}

// NewRecordsServer returns a server backed by the given store and publisher.
// A nil metrics gets a private registry.
func NewRecordsServer(s store.Store[model.Profile], p events.Publisher, m *Metrics) *RecordsServer {
	if p == nil {
		p = events.NoopPublisher{}
	}
	if m == nil {
		m = NewMetrics()
	}
	return &RecordsServer{
		store:     s,
		publisher: p,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Metrics returns the server's metric set.
func (s *RecordsServer) Metrics() *Metrics { return s.metrics }

// publish sends an event to the bus. It is best-effort; failures are logged
// but do not fail the write that triggered them.
func (s *RecordsServer) publish(ctx context.Context, topic, recordID string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "record_id", recordID, "error", err)
		s.metrics.publishFailures.Inc()
	}
}

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

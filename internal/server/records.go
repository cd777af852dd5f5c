package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/records/internal/events"
	"github.com/alfredjeanlab/records/internal/idgen"
	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/page"
	"github.com/alfredjeanlab/records/internal/payload"
	"github.com/alfredjeanlab/records/internal/store"
)

// createRecordInput holds transport-agnostic parameters for creating a record.
type createRecordInput struct {
	Username string            `json:"username"`
	Meta     *model.Profile    `json:"meta,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// updatePayloadInput replaces a record's payload. Both fields are written
// as given; omitting one clears it.
type updatePayloadInput struct {
	Meta *model.Profile    `json:"meta,omitempty"`
	Data map[string]string `json:"data,omitempty"`
}

// createRecord validates input, persists a new record, and publishes a
// RecordCreated event. Validation failures are *model.ValidationError.
func (s *RecordsServer) createRecord(ctx context.Context, in createRecordInput) (*model.Record[model.Profile], error) {
	rec := &model.Record[model.Profile]{
		Username: strings.TrimSpace(in.Username),
		Payload:  payload.Payload[model.Profile]{Meta: in.Meta, Data: in.Data},
	}
	if err := model.ValidateRecord(rec); err != nil {
		return nil, err
	}

	if err := s.store.CreateRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}
	s.metrics.recordsCreated.Inc()

	s.publish(ctx, events.TopicRecordCreated, rec.ID, events.RecordCreated[model.Profile]{
		Record:     rec,
		OccurredAt: s.now(),
	})
	return rec, nil
}

// getRecord returns the record with the given id. IDs that idgen could not
// have produced are reported as not found without a query.
func (s *RecordsServer) getRecord(ctx context.Context, id string) (*model.Record[model.Profile], error) {
	if !idgen.Valid(id) {
		return nil, store.ErrNotFound
	}
	return s.store.GetRecord(ctx, id)
}

// listRecords returns one page of records matching filter.
func (s *RecordsServer) listRecords(ctx context.Context, filter model.RecordFilter, params page.Params) (*page.Result[model.Record[model.Profile]], error) {
	start := time.Now()
	res, err := s.store.ListRecords(ctx, filter, params)
	s.metrics.observeList(time.Since(start), err)
	return res, err
}

// updatePayload validates and stores a new payload for id, then publishes a
// RecordPayloadUpdated event.
func (s *RecordsServer) updatePayload(ctx context.Context, id string, in updatePayloadInput) (*model.Record[model.Profile], error) {
	if !idgen.Valid(id) {
		return nil, store.ErrNotFound
	}
	p := payload.Payload[model.Profile]{Meta: in.Meta, Data: in.Data}
	if err := model.ValidatePayload(p); err != nil {
		return nil, err
	}

	rec, err := s.store.UpdatePayload(ctx, id, p)
	if err != nil {
		return nil, err
	}
	s.metrics.payloadUpdates.Inc()

	s.publish(ctx, events.TopicRecordPayloadUpdated, rec.ID, events.RecordPayloadUpdated[model.Profile]{
		Record:     rec,
		OccurredAt: s.now(),
	})
	return rec, nil
}

// deleteRecord removes id and publishes a RecordDeleted event carrying the
// record as it was.
func (s *RecordsServer) deleteRecord(ctx context.Context, id string) (*model.Record[model.Profile], error) {
	if !idgen.Valid(id) {
		return nil, store.ErrNotFound
	}
	rec, err := s.store.DeleteRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	s.metrics.recordsDeleted.Inc()

	s.publish(ctx, events.TopicRecordDeleted, rec.ID, events.RecordDeleted[model.Profile]{
		RecordID:   rec.ID,
		Record:     rec,
		OccurredAt: s.now(),
	})
	return rec, nil
}

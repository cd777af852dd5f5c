// Package store defines the persistence interface for records.
package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/page"
	"github.com/alfredjeanlab/records/internal/payload"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
)

// Store persists records whose payload meta is of type M. Stores for
// different meta types may share one database.
type Store[M any] interface {
	// Records
	CreateRecord(ctx context.Context, rec *model.Record[M]) error
	GetRecord(ctx context.Context, id string) (*model.Record[M], error)
	ListRecords(ctx context.Context, filter model.RecordFilter, params page.Params) (*page.Result[model.Record[M]], error)
	UpdatePayload(ctx context.Context, id string, p payload.Payload[M]) (*model.Record[M], error)
	DeleteRecord(ctx context.Context, id string) (*model.Record[M], error)

	// Transaction support. fn's store runs every call in the transaction.
	RunInTransaction(ctx context.Context, fn func(tx Store[M]) error) error
	// RunInSnapshot is RunInTransaction with a read-only transaction whose
	// reads all observe the snapshot taken by the first one.
	RunInSnapshot(ctx context.Context, fn func(tx Store[M]) error) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}

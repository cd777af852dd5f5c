// Package client provides a transport-agnostic interface for the records
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/records/internal/model"
)

// Record is a record with a profile payload, as the service returns it.
type Record = model.Record[model.Profile]

// RecordsClient is the interface the rd CLI commands use to communicate with
// the records server. It is implemented by HTTPClient.
type RecordsClient interface {
	CreateRecord(ctx context.Context, req *CreateRecordRequest) (*Record, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	ListRecords(ctx context.Context, req *ListRecordsRequest) (*ListRecordsResponse, error)
	UpdatePayload(ctx context.Context, id string, req *UpdatePayloadRequest) (*Record, error)
	DeleteRecord(ctx context.Context, id string) (*Record, error)

	// Health returns the server's status string.
	Health(ctx context.Context) (string, error)

	Close() error
}

// CreateRecordRequest holds parameters for creating a record.
type CreateRecordRequest struct {
	Username string            `json:"username"`
	Meta     *model.Profile    `json:"meta,omitempty"`
	Data     map[string]string `json:"data,omitempty"`
}

// UpdatePayloadRequest replaces a record's payload. Omitted parts are cleared.
type UpdatePayloadRequest struct {
	Meta *model.Profile    `json:"meta,omitempty"`
	Data map[string]string `json:"data,omitempty"`
}

// ListRecordsRequest holds filter and paging parameters for listing records.
// Zero values are left to the server's defaults.
type ListRecordsRequest struct {
	Page          int
	PageSize      int
	Username      string
	Search        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Data          map[string]string
	Sort          string
}

// ListRecordsResponse is one page of records plus totals.
type ListRecordsResponse struct {
	Records    []*Record `json:"records"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalCount int64     `json:"total_count"`
	TotalPages int64     `json:"total_pages"`
}

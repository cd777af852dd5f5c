package model

import "time"

// RecordFilter holds criteria for listing records. Zero fields match everything.
type RecordFilter struct {
	Username      string            `json:"username,omitempty"`       // exact match
	Search        string            `json:"search,omitempty"`         // case-insensitive substring of username
	CreatedAfter  *time.Time        `json:"created_after,omitempty"`  // inclusive
	CreatedBefore *time.Time        `json:"created_before,omitempty"` // exclusive
	Data          map[string]string `json:"data,omitempty"`           // payload data key=value, all must match
	Sort          string            `json:"sort,omitempty"`           // e.g. "-created_at", "username"; prefix "-" = descending
}

// Package model defines the record types shared by the store, the server and
// the CLI.
package model

import (
	"time"

	"github.com/alfredjeanlab/records/internal/payload"
)

// Record is one row of the records table. M is the meta type its payload
// is read as; rows whose payload does not decode as M fail to load.
type Record[M any] struct {
	ID        string             `db:"id" json:"id"`
	Username  string             `db:"username" json:"username" validate:"required,max=64"`
	Payload   payload.Payload[M] `db:"payload" json:"payload"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt time.Time          `db:"updated_at" json:"updated_at"`
}

// Profile is the meta type the service stores on user records.
type Profile struct {
	First  string `json:"first" validate:"max=128"`
	Remark string `json:"remark" validate:"max=1024"`
}

// PayloadKind tags stored profile payloads.
func (Profile) PayloadKind() string { return "profile" }

// Limits on the free-form data map of a payload.
const (
	MaxDataEntries = 64
	MaxDataKeyLen  = 128
)

package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/payload"
	"github.com/alfredjeanlab/records/internal/store/memstore"
)

// newSeededStore returns an in-memory store holding n profile records.
func newSeededStore(t *testing.T, n int) *memstore.Store[model.Profile] {
	t.Helper()
	ms := memstore.New[model.Profile]()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ms.SetClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	for i := 0; i < n; i++ {
		rec := &model.Record[model.Profile]{
			ID:       fmt.Sprintf("rec-%03d", i),
			Username: fmt.Sprintf("user%03d", i),
			Payload:  payload.New(model.Profile{First: "F"}, nil),
		}
		if err := ms.CreateRecord(context.Background(), rec); err != nil {
			t.Fatalf("CreateRecord: %v", err)
		}
	}
	return ms
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func TestExportJSONL_Empty(t *testing.T) {
	ms := memstore.New[model.Profile]()
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (header only), got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Version != "1" || h.Type != "header" || h.RecordCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}
}

func TestExportJSONL_SpansPages(t *testing.T) {
	const n = 2*ExportPageSize + 7
	ms := newSeededStore(t, n)

	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, &buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != n+1 {
		t.Fatalf("expected %d lines, got %d", n+1, len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.RecordCount != n {
		t.Fatalf("header record_count = %d, want %d", h.RecordCount, n)
	}

	// Oldest first, each record once.
	for i, l := range lines[1:] {
		var got struct {
			Type string                      `json:"type"`
			Data model.Record[model.Profile] `json:"data"`
		}
		if err := json.Unmarshal([]byte(l), &got); err != nil {
			t.Fatalf("unmarshal line %d: %v", i+1, err)
		}
		if want := fmt.Sprintf("rec-%03d", i); got.Type != "record" || got.Data.ID != want {
			t.Fatalf("line %d = %s/%s, want record/%s", i+1, got.Type, got.Data.ID, want)
		}
	}
}

func TestExportJSONL_ForeignRowFails(t *testing.T) {
	ms := newSeededStore(t, 3)
	ms.PutRaw("rec-x", "x", []byte(`{"meta":{"unknown":true},"data":null}`), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	err := ExportJSONL(context.Background(), ms, &buf)
	if !errors.Is(err, payload.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}

	// An untagged reader exports every row.
	buf.Reset()
	if err := ExportJSONL(context.Background(), memstore.As[map[string]any](ms), &buf); err != nil {
		t.Fatalf("untagged export: %v", err)
	}
	if got := len(nonEmptyLines(buf.String())); got != 5 {
		t.Fatalf("expected 5 lines, got %d", got)
	}
}

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alfredjeanlab/records/internal/payload"
)

func TestProfile_PayloadKind(t *testing.T) {
	if got := payload.Kind[Profile](); got != "profile" {
		t.Errorf("payload.Kind[Profile]() = %q, want %q", got, "profile")
	}
}

func TestRecord_JSON(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := Record[Profile]{
		ID:        "rec-1",
		Username:  "ada",
		Payload:   payload.New(Profile{First: "Ada", Remark: "hi"}, map[string]string{"k": "v"}),
		CreatedAt: now,
		UpdatedAt: now,
	}
	raw, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"id", "username", "payload", "created_at", "updated_at"} {
		if _, ok := m[key]; !ok {
			t.Errorf("JSON missing key %q: %s", key, raw)
		}
	}
	p, _ := m["payload"].(map[string]any)
	meta, _ := p["meta"].(map[string]any)
	if meta["first"] != "Ada" || meta["remark"] != "hi" {
		t.Errorf("payload.meta = %v, want first=Ada remark=hi", meta)
	}
}

func TestRecordFilter_JSONOmitsEmpty(t *testing.T) {
	raw, err := json.Marshal(RecordFilter{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("Marshal(RecordFilter{}) = %s, want {}", raw)
	}
}

package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/records/internal/model"
	"github.com/alfredjeanlab/records/internal/page"
	"github.com/alfredjeanlab/records/internal/store"
)

// ExportPageSize is the number of records read per page while exporting.
const ExportPageSize = 100

// header is the first JSONL line written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RecordCount int64     `json:"record_count"`
}

// line wraps a single JSONL line with a type discriminator.
type line struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every record as JSONL to w, oldest first. All pages are
// read inside one snapshot, so the header count matches the lines written
// even while other clients insert or delete records.
func ExportJSONL[M any](ctx context.Context, s store.Store[M], w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	return s.RunInSnapshot(ctx, func(tx store.Store[M]) error {
		filter := model.RecordFilter{Sort: "created_at"}
		for pageNum := 1; ; pageNum++ {
			res, err := tx.ListRecords(ctx, filter, page.Of(pageNum, ExportPageSize))
			if err != nil {
				return fmt.Errorf("list records page %d: %w", pageNum, err)
			}

			if pageNum == 1 {
				if err := enc.Encode(header{
					Version:     "1",
					Type:        "header",
					Timestamp:   time.Now().UTC(),
					RecordCount: res.TotalCount,
				}); err != nil {
					return fmt.Errorf("encode header: %w", err)
				}
			}

			for _, rec := range res.Items {
				if err := enc.Encode(line{Type: "record", Data: rec}); err != nil {
					return fmt.Errorf("encode record %s: %w", rec.ID, err)
				}
			}

			if int64(pageNum) >= res.TotalPages {
				return nil
			}
		}
	})
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/records/internal/client"
	"github.com/alfredjeanlab/records/internal/events"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print records as they are created or changed",
	Long: `Print records as they are created or changed.

With a NATS URL (--nats, RECORDS_NATS_URL or the active remote) every record
event triggers a re-query; otherwise the server is polled every --interval.`,
	GroupID: "records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		once, _ := cmd.Flags().GetBool("once")
		natsURL, _ := cmd.Flags().GetString("nats")
		size, _ := cmd.Flags().GetInt("page-size")
		username, _ := cmd.Flags().GetString("username")

		req := &client.ListRecordsRequest{
			Page:     1,
			PageSize: size,
			Username: username,
			Sort:     "-updated_at",
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		w := &watcher{out: cmd.OutOrStdout(), req: req, seen: make(map[string]time.Time)}
		if err := w.queryAndPrint(ctx); err != nil {
			return err
		}
		if once {
			return nil
		}

		if natsURL == "" {
			natsURL = os.Getenv("RECORDS_NATS_URL")
		}
		if natsURL == "" {
			natsURL = currentRemote().NATSURL
		}
		if natsURL != "" {
			return w.watchNATS(ctx, natsURL)
		}
		return w.watchPoll(ctx, interval)
	},
}

// watcher prints records that are new or changed since it last saw them.
type watcher struct {
	out  io.Writer
	req  *client.ListRecordsRequest
	seen map[string]time.Time
}

// watchNATS re-queries after record events, debounced, and prints deletions
// as they arrive.
func (w *watcher) watchNATS(ctx context.Context, natsURL string) error {
	// reconnectCh receives a signal when the NATS client reconnects after
	// a disconnect, so we can immediately re-query for missed events.
	reconnectCh := make(chan struct{}, 1)

	sub, err := events.NewNATSSubscriber(natsURL,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats: disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			slog.Info("nats: reconnected")
			select {
			case reconnectCh <- struct{}{}:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe(events.TopicAll)
	if err != nil {
		return fmt.Errorf("subscribing to events: %w", err)
	}
	defer cancel()

	debounce := time.NewTimer(0)
	debounce.Stop()
	select {
	case <-debounce.C:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if msg.Topic == events.TopicRecordDeleted {
				w.printDeleted(msg.Data)
				continue
			}
			debounce.Reset(200 * time.Millisecond)
		case <-reconnectCh:
			debounce.Reset(0)
		case <-debounce.C:
			if err := w.queryAndPrint(ctx); err != nil {
				return err
			}
		}
	}
}

// watchPoll re-queries every interval.
func (w *watcher) watchPoll(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := w.queryAndPrint(ctx); err != nil {
			return err
		}
	}
}

func (w *watcher) queryAndPrint(ctx context.Context) error {
	resp, err := recordsClient.ListRecords(ctx, w.req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("listing records: %w", err)
	}
	changed := diffRecords(resp.Records, w.seen)
	if len(changed) == 0 {
		return nil
	}
	if jsonOutput {
		return printJSON(w.out, changed)
	}
	resp.Records = changed
	printRecordList(w.out, resp)
	return nil
}

func (w *watcher) printDeleted(data []byte) {
	var ev struct {
		RecordID string         `json:"record_id"`
		Record   *client.Record `json:"record"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		slog.Warn("undecodable delete event", "error", err)
		return
	}
	if w.req.Username != "" && (ev.Record == nil || ev.Record.Username != w.req.Username) {
		return
	}
	delete(w.seen, ev.RecordID)
	if jsonOutput {
		_ = printJSON(w.out, map[string]string{"deleted": ev.RecordID})
		return
	}
	fmt.Fprintf(w.out, "Deleted %s\n", ev.RecordID)
}

// diffRecords returns the records that are new or have a different
// updated_at than last seen. It updates seen in place.
func diffRecords(recs []*client.Record, seen map[string]time.Time) []*client.Record {
	var changed []*client.Record
	for _, r := range recs {
		prev, ok := seen[r.ID]
		if !ok || !r.UpdatedAt.Equal(prev) {
			changed = append(changed, r)
		}
		seen[r.ID] = r.UpdatedAt
	}
	return changed
}

func init() {
	watchCmd.Flags().Duration("interval", 5*time.Second, "polling interval")
	watchCmd.Flags().Bool("once", false, "exit after the first query")
	watchCmd.Flags().String("nats", "", "NATS URL for event-driven updates")
	watchCmd.Flags().Int("page-size", 50, "most recently updated records to compare on each query")
	watchCmd.Flags().String("username", "", "only records of this username")
}

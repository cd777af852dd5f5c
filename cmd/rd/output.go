package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/alfredjeanlab/records/internal/client"
	"github.com/alfredjeanlab/records/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printRecord(w io.Writer, rec *client.Record) {
	fmt.Fprintf(w, "ID:          %s\n", ui.RenderAccent(rec.ID))
	fmt.Fprintf(w, "Username:    %s\n", rec.Username)
	if m := rec.Payload.Meta; m != nil {
		fmt.Fprintf(w, "First:       %s\n", m.First)
		if m.Remark != "" {
			fmt.Fprintf(w, "Remark:      %s\n", m.Remark)
		}
	}
	if len(rec.Payload.Data) > 0 {
		fmt.Fprintf(w, "Data:        %s\n", formatData(rec.Payload.Data))
	}
	fmt.Fprintf(w, "Created At:  %s\n", rec.CreatedAt.Local().Format(timeLayout))
	fmt.Fprintf(w, "Updated At:  %s\n", rec.UpdatedAt.Local().Format(timeLayout))
}

func printRecordList(w io.Writer, resp *client.ListRecordsResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tFIRST\tDATA\tCREATED")
	for _, r := range resp.Records {
		first := ""
		if r.Payload.Meta != nil {
			first = truncate(r.Payload.Meta.First, 30)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Username,
			first,
			truncate(formatData(r.Payload.Data), 40),
			r.CreatedAt.Local().Format(timeLayout),
		)
	}
	tw.Flush()
	fmt.Fprintln(w, ui.RenderMuted(fmt.Sprintf("\npage %d of %d, %d records (%d total)",
		resp.Page, resp.TotalPages, len(resp.Records), resp.TotalCount)))
}

// formatData renders a data map as sorted k=v pairs.
func formatData(data map[string]string) string {
	parts := make([]string, 0, len(data))
	for _, k := range slices.Sorted(maps.Keys(data)) {
		parts = append(parts, k+"="+data[k])
	}
	return strings.Join(parts, ",")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/records/internal/client"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List records one page at a time",
	GroupID: "records",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := listRequestFromFlags(cmd, time.Now())
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")

		out := cmd.OutOrStdout()
		if !all {
			resp, err := recordsClient.ListRecords(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("listing records: %w", err)
			}
			if jsonOutput {
				return printJSON(out, resp)
			}
			printRecordList(out, resp)
			return nil
		}

		// Walk every page from the first. Pages are read independently, so
		// concurrent writes can shift rows between them.
		var records []*client.Record
		req.Page = 1
		for {
			resp, err := recordsClient.ListRecords(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("listing records page %d: %w", req.Page, err)
			}
			records = append(records, resp.Records...)
			if int64(req.Page) >= resp.TotalPages {
				if jsonOutput {
					return printJSON(out, records)
				}
				resp.Records = records
				resp.Page = 1
				printRecordList(out, resp)
				return nil
			}
			req.Page++
		}
	},
}

// listRequestFromFlags builds a list request. --since and --before take an
// RFC 3339 time or a duration counted back from now.
func listRequestFromFlags(cmd *cobra.Command, now time.Time) (*client.ListRecordsRequest, error) {
	f := cmd.Flags()
	req := &client.ListRecordsRequest{}
	req.Page, _ = f.GetInt("page")
	req.PageSize, _ = f.GetInt("page-size")
	if !f.Changed("page-size") {
		req.PageSize = currentRemote().PageSize
	}
	req.Username, _ = f.GetString("username")
	req.Search, _ = f.GetString("search")
	req.Sort, _ = f.GetString("sort")
	req.Data, _ = f.GetStringToString("data")

	for _, name := range []string{"since", "before"} {
		v, _ := f.GetString(name)
		if v == "" {
			continue
		}
		t, err := parseTimeFlag(v, now)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", name, err)
		}
		if name == "since" {
			req.CreatedAfter = &t
		} else {
			req.CreatedBefore = &t
		}
	}
	return req, nil
}

func parseTimeFlag(v string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return now.Add(-d).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("want a duration like 24h or an RFC 3339 time, got %q", v)
	}
	return t, nil
}

func init() {
	f := listCmd.Flags()
	f.Int("page", 0, "page number, starting at 1")
	f.Int("page-size", 0, "records per page (active remote's page size, then the server default)")
	f.String("username", "", "only records of this username")
	f.String("search", "", "case-insensitive username substring")
	f.String("since", "", "only records created at or after this time")
	f.String("before", "", "only records created before this time")
	f.StringToString("data", nil, "only records whose data has key=value (repeatable)")
	f.String("sort", "", "sort column: created_at, updated_at or username; prefix - for descending")
	f.Bool("all", false, "fetch every page")
}

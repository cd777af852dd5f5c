package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/records/internal/client"
)

var showCmd = &cobra.Command{
	Use:     "show <id>...",
	Short:   "Show one or more records",
	GroupID: "records",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		var recs []*client.Record
		for i, id := range args {
			rec, err := recordsClient.GetRecord(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("getting %s: %w", id, err)
			}
			if jsonOutput {
				recs = append(recs, rec)
				continue
			}
			if i > 0 {
				fmt.Fprintln(out)
			}
			printRecord(out, rec)
		}
		if !jsonOutput {
			return nil
		}
		if len(recs) == 1 {
			return printJSON(out, recs[0])
		}
		return printJSON(out, recs)
	},
}

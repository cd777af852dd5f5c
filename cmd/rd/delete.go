package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <id>...",
	Short:   "Delete one or more records",
	GroupID: "records",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, id := range args {
			rec, err := recordsClient.DeleteRecord(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("deleting %s: %w", id, err)
			}
			if jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), rec); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", rec.ID, rec.Username)
		}
		return nil
	},
}

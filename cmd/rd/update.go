package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/records/internal/client"
)

var updateCmd = &cobra.Command{
	Use:     "update <id>",
	Short:   "Update a record's payload",
	Long: `Update a record's payload.

By default the flags are applied on top of the stored payload. With --replace
the payload is built from the flags alone.`,
	GroupID: "records",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]
		replace, _ := cmd.Flags().GetBool("replace")

		req := &client.UpdatePayloadRequest{}
		if replace {
			req.Meta, req.Data = payloadFromFlags(cmd, nil, nil)
		} else {
			cur, err := recordsClient.GetRecord(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("getting %s: %w", id, err)
			}
			req.Meta, req.Data = payloadFromFlags(cmd, cur.Payload.Meta, cur.Payload.Data)
		}

		rec, err := recordsClient.UpdatePayload(cmd.Context(), id, req)
		if err != nil {
			return fmt.Errorf("updating %s: %w", id, err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rec)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", rec.ID)
		return nil
	},
}

func init() {
	addPayloadFlags(updateCmd)
	updateCmd.Flags().Bool("replace", false, "replace the payload instead of merging into it")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/records/internal/client"
	"github.com/alfredjeanlab/records/internal/model"
)

var createCmd = &cobra.Command{
	Use:     "create <username>",
	Short:   "Create a record",
	GroupID: "records",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.CreateRecordRequest{Username: args[0]}
		req.Meta, req.Data = payloadFromFlags(cmd, nil, nil)

		rec, err := recordsClient.CreateRecord(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("creating record: %w", err)
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), rec)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", rec.ID)
		return nil
	},
}

// addPayloadFlags registers the flags that set a profile payload.
func addPayloadFlags(cmd *cobra.Command) {
	cmd.Flags().String("first", "", "profile first name")
	cmd.Flags().String("remark", "", "profile remark")
	cmd.Flags().StringToString("data", nil, "data entries as key=value (repeatable)")
	cmd.Flags().StringSlice("unset", nil, "data keys to remove")
}

// payloadFromFlags overlays the payload flags that were set on meta and
// data. Inputs are not modified. The returned meta is nil when neither the
// input nor the flags carry profile fields.
func payloadFromFlags(cmd *cobra.Command, meta *model.Profile, data map[string]string) (*model.Profile, map[string]string) {
	var out *model.Profile
	if meta != nil {
		m := *meta
		out = &m
	}
	for _, name := range []string{"first", "remark"} {
		if !cmd.Flags().Changed(name) {
			continue
		}
		if out == nil {
			out = &model.Profile{}
		}
		v, _ := cmd.Flags().GetString(name)
		if name == "first" {
			out.First = v
		} else {
			out.Remark = v
		}
	}

	merged := make(map[string]string, len(data))
	for k, v := range data {
		merged[k] = v
	}
	set, _ := cmd.Flags().GetStringToString("data")
	for k, v := range set {
		merged[k] = v
	}
	unset, _ := cmd.Flags().GetStringSlice("unset")
	for _, k := range unset {
		delete(merged, k)
	}
	if len(merged) == 0 {
		merged = nil
	}
	return out, merged
}

func init() {
	addPayloadFlags(createCmd)
}

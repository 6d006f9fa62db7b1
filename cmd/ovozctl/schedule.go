package main

import (
	"fmt"
	"time"

	"github.com/ovoz/admin/internal/schedule"
	"github.com/spf13/cobra"
)

func newScheduleCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Finish instant helpers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <RFC3339 instant>",
		Short: "Report whether a finish instant would be accepted now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := time.Parse(time.RFC3339, args[0])
			if err != nil {
				return fmt.Errorf("parse instant: %w", err)
			}

			now := opts.now()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "minimum allowed: %s\n", schedule.MinimumAllowedInstant(now).UTC().Format(time.RFC3339))
			if schedule.IsValidFuture(t, now) {
				fmt.Fprintln(out, "verdict: accepted")
				return nil
			}

			fmt.Fprintln(out, "verdict: too soon")
			return fmt.Errorf("%s is not after the minimum allowed instant", t.Format(time.RFC3339))
		},
	})

	return cmd
}

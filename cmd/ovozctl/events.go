package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/ovoz/admin/internal/domain/event"
	"github.com/spf13/cobra"
)

func newEventsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events and trigger notification sends",
	}

	cmd.AddCommand(newEventsListCommand(opts))
	cmd.AddCommand(newEventsNotifyCommand(opts))

	return cmd
}

func newEventsListCommand(opts *options) *cobra.Command {
	var keyword string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events, optionally filtered by keyword",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/events"
			if keyword != "" {
				path += "?keyword=" + url.QueryEscape(keyword)
			}

			var resp struct {
				Items []event.View `json:"items"`
				Count int          `json:"count"`
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			if err := call(ctx, opts, http.MethodGet, path, &resp); err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFINISH\tSTATUS")
			for _, ev := range resp.Items {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ev.ID, ev.Name, ev.FinishDate.Format(time.RFC3339), ev.Status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d event(s)\n", resp.Count)
			return nil
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "filter by name keyword")

	return cmd
}

func newEventsNotifyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <event-id>",
		Short: "Send the event notification to its channels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}

			var resp struct {
				Message         string `json:"message"`
				JobID           string `json:"jobId"`
				Status          string `json:"status"`
				AlreadyEnqueued bool   `json:"alreadyEnqueued"`
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			if err := call(ctx, opts, http.MethodPost, fmt.Sprintf("/events/%d/send", id), &resp); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case resp.JobID == "":
				fmt.Fprintln(out, resp.Message)
			case resp.AlreadyEnqueued:
				fmt.Fprintf(out, "already queued as job %s (%s)\n", resp.JobID, resp.Status)
			default:
				fmt.Fprintf(out, "queued as job %s (%s)\n", resp.JobID, resp.Status)
			}
			return nil
		},
	}
}

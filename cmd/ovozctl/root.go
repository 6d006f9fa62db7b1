package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

type options struct {
	server  string
	token   string
	timeout time.Duration
	now     func() time.Time
}

func newRootCommand() *cobra.Command {
	return newRootCommandWith(&options{now: time.Now})
}

func newRootCommandWith(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "ovozctl",
		Short: "ovozctl - operator tool for the Ovoz admin dashboard",
		Long: `ovozctl talks to a running Ovoz admin API.

It lists events, triggers notification sends and checks whether a finish
instant would be accepted right now.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("OVOZ_SERVER", "http://localhost:8080"), "admin API base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("OVOZ_TOKEN"), "dashboard access token")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 15*time.Second, "request timeout")

	root.AddCommand(newEventsCommand(opts))
	root.AddCommand(newScheduleCommand(opts))
	root.AddCommand(newVersionCommand())

	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

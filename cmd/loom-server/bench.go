package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/searchktools/loom-server/bench"
)

func newBenchCmd() *cobra.Command {
	cfg := bench.Config{}
	cmd := &cobra.Command{
		Use:   "bench [url]",
		Short: "Fire concurrent requests at a server and report timings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.URL = args[0]
			}
			res, err := bench.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			res.Report(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.URL, "url", "http://localhost:8080/", "target URL")
	cmd.Flags().IntVarP(&cfg.Requests, "requests", "n", 200, "total requests")
	cmd.Flags().IntVarP(&cfg.Concurrency, "concurrency", "p", 200, "requests in flight")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "per-request timeout")
	return cmd
}

package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "loom-server",
		Short: "Thread-per-request HTTP server with platform or lightweight threads",
		Long: `loom-server serves every request on its own thread. With
--virtual-threads the threads are lightweight and share a fixed pool of
carriers, giving up their carrier while they sleep or wait on the database.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config file (default is ./loom.yaml if present)")

	root.AddCommand(newServeCmd(), newBenchCmd())
	return root
}

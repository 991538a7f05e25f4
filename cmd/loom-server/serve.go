package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/searchktools/loom-server/app"
	"github.com/searchktools/loom-server/config"
	"github.com/searchktools/loom-server/logging"
)

func newServeCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			file, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, file)
			if err != nil {
				return err
			}

			logger := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

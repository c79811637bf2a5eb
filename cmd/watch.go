package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll all enabled sources continuously",
	Long: `Start the adaptive polling loop. Each source is polled on its own
interval, read from the watermark before every tick so interval adjustments
take effect immediately. Stops cleanly on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		zap.L().Info("watch started", zap.Strings("sources", env.Service.Sources()))
		return env.Scheduler.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanupKeepDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete signals older than the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		keepDays := cleanupKeepDays
		if keepDays == 0 {
			keepDays = cfg.Retention.KeepDays
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -keepDays)

		deleted, err := st.DeleteSignalsBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		zap.L().Info("cleanup complete",
			zap.Int("deleted", deleted),
			zap.Int("keep_days", keepDays),
		)
		fmt.Printf("deleted %d signals older than %d days\n", deleted, keepDays)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupKeepDays, "keep-days", 0, "retention window in days (default from config)")
	rootCmd.AddCommand(cleanupCmd)
}

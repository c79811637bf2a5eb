package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Amsmoox/tradebot/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-source watermark and activity",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		for _, name := range env.Service.Sources() {
			st, err := env.Service.Status(ctx, name)
			if err != nil {
				return err
			}
			printStatus(st)
		}
		return nil
	},
}

func printStatus(st *model.SourceStatus) {
	fmt.Printf("source: %s\n", st.Source)
	wm := st.Watermark
	if wm.LastSuccessAt != nil {
		fmt.Printf("  last success:     %s (%s ago)\n",
			wm.LastSuccessAt.Format(time.RFC3339),
			time.Since(*wm.LastSuccessAt).Round(time.Second))
	} else {
		fmt.Println("  last success:     never")
	}
	fmt.Printf("  poll interval:    %ds\n", wm.PollInterval)
	fmt.Printf("  no-change streak: %d\n", wm.ConsecutiveNoChange)
	if wm.Validators.ETag != "" {
		fmt.Printf("  etag:             %s\n", wm.Validators.ETag)
	}
	if wm.Validators.LastModified != "" {
		fmt.Printf("  last-modified:    %s\n", wm.Validators.LastModified)
	}
	fmt.Printf("  signals (24h):    %d\n", st.SignalsLast24)
	fmt.Printf("  signals (total):  %d\n", st.SignalsTotal)
	if st.LastFailure != "" {
		fmt.Printf("  last failure:     %s", st.LastFailure)
		if st.LastFailureAt != nil {
			fmt.Printf(" (%s)", st.LastFailureAt.Format(time.RFC3339))
		}
		fmt.Println()
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

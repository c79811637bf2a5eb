package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Amsmoox/tradebot/internal/model"
)

var scrapeSource string

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one scrape cycle and exit",
	Long: `Run a single delta-scrape cycle for one source (or every enabled
source) and print the result. The watermark advances exactly as it would
under the periodic scheduler, so a cron-driven deployment can use this
instead of watch.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		sources := env.Service.Sources()
		if scrapeSource != "" {
			sources = []string{scrapeSource}
		}

		failed := 0
		for _, name := range sources {
			res := env.Service.RunCycle(ctx, name)
			printResult(res)
			if !res.Success() {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d cycles failed", failed, len(sources))
		}
		return nil
	},
}

func printResult(res model.CycleResult) {
	switch res.Outcome {
	case model.OutcomeUnchanged:
		fmt.Printf("%s: unchanged (%.2fs)\n", res.Source, res.Elapsed.Seconds())
	case model.OutcomeFailed:
		fmt.Printf("%s: FAILED: %s\n", res.Source, res.Err)
	default:
		fmt.Printf("%s: %d extracted, %d new, %d duplicates (%.2fs)\n",
			res.Source, res.Extracted, res.New, res.Duplicates, res.Elapsed.Seconds())
	}
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeSource, "source", "", "scrape only this source")
	rootCmd.AddCommand(scrapeCmd)
}

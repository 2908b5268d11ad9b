package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/firmographics-cli/internal/enrich"
	"github.com/sells-group/firmographics-cli/internal/snapshot"
)

var (
	enrichSnapshot    string
	enrichResume      bool
	enrichInteractive bool
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Re-run the enrichment pass over an existing snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("enrich"); err != nil {
			return err
		}
		if !cmd.Flags().Changed("snapshot") {
			enrichSnapshot = cfg.Paths.Snapshot
		}

		records, err := snapshot.LoadRecords(enrichSnapshot)
		if err != nil {
			return eris.Wrap(err, "load snapshot")
		}
		zap.L().Info("snapshot loaded",
			zap.String("path", enrichSnapshot), zap.Int("records", len(records)))

		enricher := enrich.New(newPerplexityClient(), enrich.Options{
			EmployeeThreshold: cfg.Enrich.EmployeeUpdateThreshold,
			RevenueThreshold:  cfg.Enrich.RevenueUpdateThreshold,
			SnapshotPath:      enrichSnapshot,
			LedgerPath:        cfg.Paths.Progress,
			Interactive:       enrichInteractive,
			Resolver:          consoleResolver(enrichInteractive),
			Retry:             enrichRetry(),
		})
		return enricher.Run(ctx, records, enrichResume)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichSnapshot, "snapshot", "firmographics.json", "snapshot to enrich in place")
	enrichCmd.Flags().BoolVar(&enrichResume, "resume", false, "honor the ledger from an interrupted pass")
	enrichCmd.Flags().BoolVar(&enrichInteractive, "interactive", false, "prompt before replacing existing values")
	rootCmd.AddCommand(enrichCmd)
}

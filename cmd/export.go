package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/firmographics-cli/internal/export"
	"github.com/sells-group/firmographics-cli/internal/snapshot"
)

var (
	exportSnapshot string
	exportOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Project a snapshot into an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}
		if !cmd.Flags().Changed("snapshot") {
			exportSnapshot = cfg.Paths.Snapshot
		}
		if !cmd.Flags().Changed("output") {
			exportOutput = cfg.Paths.Export
		}

		records, err := snapshot.LoadRecords(exportSnapshot)
		if err != nil {
			return eris.Wrap(err, "load snapshot")
		}

		if err := export.WriteXLSX(records, exportOutput); err != nil {
			return err
		}
		zap.L().Info("workbook written",
			zap.String("path", exportOutput), zap.Int("records", len(records)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSnapshot, "snapshot", "firmographics.json", "snapshot to project")
	exportCmd.Flags().StringVar(&exportOutput, "output", "firmographics.xlsx", "workbook output path")
	rootCmd.AddCommand(exportCmd)
}

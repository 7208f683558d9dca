package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opencivic/roster/internal/cmd/output"
	"github.com/opencivic/roster/pkg/pipeline"
	"github.com/opencivic/roster/pkg/records"
)

var statsInput string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Report field fill rates for a record file",
	Long: `Compute how many records fill each field in an exported record
set. Useful for judging how much the detail and enrichment stages
actually added.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsInput, "input", "", "record file to analyze (required)")
	_ = statsCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(statsCmd)
}

func runStats(_ *cobra.Command, _ []string) error {
	recs, err := loadRecordsFile(statsInput)
	if err != nil {
		return err
	}

	normalized := records.NormalizeAll(recs)
	report := pipeline.FieldCoverage(normalized)
	if err := output.FormatAny(report.Fields, output.Format(cfg.Output)); err != nil {
		return err
	}

	validation := pipeline.ValidateFields(normalized)
	if len(validation) == 0 {
		return nil
	}
	return output.FormatAny(validation, output.Format(cfg.Output))
}

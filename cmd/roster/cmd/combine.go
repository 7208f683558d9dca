package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opencivic/roster/internal/cmd/output"
	"github.com/opencivic/roster/pkg/reconcile"
	"github.com/opencivic/roster/pkg/records"
)

var (
	combineRegistry string
	combineDetail   string
	combinePriority string
	combineOut      string
	combineFormats  []string
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Combine registry and detail exports into one record set",
	Long: `Match registry and detail records by canonical identifier, merge
each matched pair field by field, and pass everything unmatched through
unchanged. Match statistics print to stdout.`,
	RunE: runCombine,
}

func init() {
	combineCmd.Flags().StringVar(&combineRegistry, "registry", "", "registry export file (required)")
	combineCmd.Flags().StringVar(&combineDetail, "detail", "", "detail export file (required)")
	combineCmd.Flags().StringVar(&combinePriority, "priority", "", "conflict winner: registry or detail (default from config)")
	combineCmd.Flags().StringVar(&combineOut, "out", "combined", "output base name")
	combineCmd.Flags().StringSliceVar(&combineFormats, "format", nil, "export formats (json, csv, xlsx)")
	_ = combineCmd.MarkFlagRequired("registry")
	_ = combineCmd.MarkFlagRequired("detail")
	rootCmd.AddCommand(combineCmd)
}

func runCombine(_ *cobra.Command, _ []string) error {
	registryRecs, err := loadRecordsFile(combineRegistry)
	if err != nil {
		return err
	}
	detailRecs, err := loadRecordsFile(combineDetail)
	if err != nil {
		return err
	}

	priority := combinePriority
	if priority == "" {
		priority = cfg.Pipeline.Priority
	}

	combined, stats, err := reconcile.Combine(registryRecs, detailRecs,
		reconcile.WithPriority(records.SourceTag(priority)))
	if err != nil {
		return err
	}

	if err := writeRecords(combined, combineOut, combineFormats); err != nil {
		return err
	}
	return output.FormatAny(stats, output.Format(cfg.Output))
}

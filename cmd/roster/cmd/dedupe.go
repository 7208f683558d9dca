package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opencivic/roster/internal/cmd/output"
	"github.com/opencivic/roster/internal/export"
	"github.com/opencivic/roster/pkg/dedupe"
	"github.com/opencivic/roster/pkg/records"
)

var (
	dedupeInput     string
	dedupeStrategy  string
	dedupeThreshold float64
	dedupeMerge     bool
	dedupeOut       string
	dedupeFormats   []string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Remove duplicate records from a combined export",
	Long: `Partition a record set into duplicate groups under the chosen
strategy and keep one record per group. The identifier strategy groups
on the canonical taxpayer identifier, exact groups on identical
normalized content, and fuzzy groups on weighted field similarity.`,
	RunE: runDedupe,
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeInput, "input", "", "record file to deduplicate (required)")
	dedupeCmd.Flags().StringVar(&dedupeStrategy, "strategy", "", "identifier, exact, or fuzzy (default from config)")
	dedupeCmd.Flags().Float64Var(&dedupeThreshold, "threshold", 0, "fuzzy similarity threshold (default from config)")
	dedupeCmd.Flags().BoolVar(&dedupeMerge, "merge", false, "merge duplicate groups into single records")
	dedupeCmd.Flags().StringVar(&dedupeOut, "out", "deduplicated", "output base name")
	dedupeCmd.Flags().StringSliceVar(&dedupeFormats, "format", nil, "export formats (json, csv, xlsx)")
	_ = dedupeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(dedupeCmd)
}

func runDedupe(cmd *cobra.Command, _ []string) error {
	recs, err := loadRecordsFile(dedupeInput)
	if err != nil {
		return err
	}

	strategyName := dedupeStrategy
	if strategyName == "" {
		strategyName = cfg.Pipeline.DedupeStrategy
	}
	strategy, err := dedupe.ParseStrategy(strategyName)
	if err != nil {
		return err
	}

	threshold := dedupeThreshold
	if threshold == 0 {
		threshold = cfg.Pipeline.FuzzyThreshold
	}
	merge := dedupeMerge || cfg.Pipeline.MergeDuplicates

	unique, groups, err := dedupe.Deduplicate(recs, strategy,
		dedupe.WithThreshold(threshold),
		dedupe.WithMerge(merge),
	)
	if err != nil {
		return err
	}

	report := dedupe.Summarize(strategy, groups)
	if err := writeDeduped(unique, groups, report, dedupeOut, dedupeFormats); err != nil {
		return err
	}
	return output.FormatAny(report, output.Format(cfg.Output))
}

// writeDeduped exports survivors in the requested formats. The XLSX
// export becomes a workbook that also carries the discarded duplicates
// and the run statistics on their own sheets.
func writeDeduped(unique []records.Record, groups []dedupe.Group, report dedupe.Report, name string, formatNames []string) error {
	if len(formatNames) == 0 {
		formatNames = cfg.Export.Formats
	}
	formats, err := exportFormats(formatNames)
	if err != nil {
		return err
	}

	exporter, err := export.New(cfg.Export.Dir, export.WithChecksums(cfg.Export.Checksums))
	if err != nil {
		return err
	}

	flat := make([]export.Format, 0, len(formats))
	for _, f := range formats {
		if f == export.FormatXLSX {
			var dups []records.Record
			for _, g := range groups {
				dups = append(dups, g.Duplicates...)
			}
			if _, err := exporter.ExportWorkbook(name,
				export.Sheet{Name: "Records", Records: unique},
				export.Sheet{Name: "Duplicates", Records: dups},
				export.Sheet{Name: "Stats", Records: []records.Record{statsRecord(report)}},
			); err != nil {
				return err
			}
			continue
		}
		flat = append(flat, f)
	}
	if len(flat) == 0 {
		return nil
	}
	_, err = exporter.Export(unique, name, flat...)
	return err
}

func statsRecord(report dedupe.Report) records.Record {
	var r records.Record
	r.Set("strategy", string(report.Strategy))
	r.Set("input", report.Input)
	r.Set("unique", report.Unique)
	r.Set("removed", report.Removed)
	r.Set("duplicate_groups", report.Groups)
	r.Set("reduction_rate", report.ReductionRate())
	return r
}

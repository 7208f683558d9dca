package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opencivic/roster/internal/checkpoint"
	"github.com/opencivic/roster/internal/cmd/output"
	"github.com/opencivic/roster/internal/export"
	"github.com/opencivic/roster/internal/sources/detail"
	"github.com/opencivic/roster/internal/sources/places"
	"github.com/opencivic/roster/internal/sources/registry"
	"github.com/opencivic/roster/internal/transport"
	"github.com/opencivic/roster/pkg/dedupe"
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/pipeline"
	"github.com/opencivic/roster/pkg/records"
)

var (
	runWhere        string
	runOut          string
	runFormats      []string
	runNoCheckpoint bool
	runNoDetail     bool
	runEnrichFlag   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full acquisition pipeline",
	Long: `Fetch the registry roll, fetch detail records for every identifier,
combine and deduplicate the sets, optionally enrich them, and export
the result. Progress is checkpointed so an interrupted run resumes
where it left off.`,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runWhere, "where", "", "SoQL $where clause to restrict the roll")
	runCmd.Flags().StringVar(&runOut, "out", "businesses", "output base name")
	runCmd.Flags().StringSliceVar(&runFormats, "format", nil, "export formats (json, csv, xlsx)")
	runCmd.Flags().BoolVar(&runNoCheckpoint, "no-checkpoint", false, "disable run checkpointing")
	runCmd.Flags().BoolVar(&runNoDetail, "no-detail", false, "skip the detail API stage")
	runCmd.Flags().BoolVar(&runEnrichFlag, "enrich", false, "enable place enrichment (requires API key)")
	rootCmd.AddCommand(runCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	registryTransport, err := newTransport(&transport.HeaderAuth{Header: "X-App-Token"}, cfg.Registry.AppToken, cfg.Registry.RateLimit)
	if err != nil {
		return err
	}
	registryClient, err := registry.New(registryTransport, cfg.Registry.BaseURL, cfg.Registry.DatasetID,
		registry.WithPageSize(cfg.Registry.PageSize),
		registry.WithWhere(runWhere),
	)
	if err != nil {
		return err
	}

	strategy, err := dedupe.ParseStrategy(cfg.Pipeline.DedupeStrategy)
	if err != nil {
		return err
	}

	formatNames := runFormats
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

	opts := []pipeline.Option{
		pipeline.WithRegistry(registryClient),
		pipeline.WithExporter(exporter, runOut, formats...),
		pipeline.WithPriority(records.SourceTag(cfg.Pipeline.Priority)),
		pipeline.WithStrategy(strategy),
		pipeline.WithThreshold(cfg.Pipeline.FuzzyThreshold),
		pipeline.WithMergeDuplicates(cfg.Pipeline.MergeDuplicates),
	}

	if !runNoDetail {
		detailTransport, err := newTransport(&transport.BearerAuth{}, cfg.Detail.APIKey, cfg.Detail.RateLimit)
		if err != nil {
			return err
		}
		detailClient, err := detail.New(detailTransport, cfg.Detail.BaseURL, detail.WithWorkers(cfg.Detail.Workers))
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithDetail(detailClient))
	}

	if runEnrichFlag || cfg.Places.Enabled {
		if cfg.Places.APIKey == "" {
			return errors.NewConfigError("places", "api_key is required for enrichment", errors.ErrAPIKeyRequired)
		}
		placesTransport, err := newTransport(&transport.HeaderAuth{Header: "X-Goog-Api-Key"}, cfg.Places.APIKey, cfg.Places.RateLimit)
		if err != nil {
			return err
		}
		placesClient, err := places.New(placesTransport, cfg.Places.BaseURL)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithEnricher(placesClient))
	}

	if !runNoCheckpoint {
		store, err := checkpoint.NewStore(cfg.Checkpoint)
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithCheckpoints(store))
	}

	p, err := pipeline.New(opts...)
	if err != nil {
		return err
	}

	result, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	return output.FormatAny(result, output.Format(cfg.Output))
}

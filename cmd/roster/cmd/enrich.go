package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opencivic/roster/internal/sources/places"
	"github.com/opencivic/roster/internal/transport"
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/logging"
	"github.com/opencivic/roster/pkg/records"
)

var (
	enrichInput   string
	enrichOut     string
	enrichFormats []string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill missing phone and address fields via place search",
	Long: `Look each business up in the Places text search API and fill empty
phone and address fields from the first match. Existing values are
never overwritten. Requires a Places API key.`,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().StringVar(&enrichInput, "input", "", "record file to enrich (required)")
	enrichCmd.Flags().StringVar(&enrichOut, "out", "enriched", "output base name")
	enrichCmd.Flags().StringSliceVar(&enrichFormats, "format", nil, "export formats (json, csv, xlsx)")
	_ = enrichCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, _ []string) error {
	if cfg.Places.APIKey == "" {
		return errors.NewConfigError("places", "api_key is required for enrichment", errors.ErrAPIKeyRequired)
	}

	recs, err := loadRecordsFile(enrichInput)
	if err != nil {
		return err
	}

	t, err := newTransport(&transport.HeaderAuth{Header: "X-Goog-Api-Key"}, cfg.Places.APIKey, cfg.Places.RateLimit)
	if err != nil {
		return err
	}
	client, err := places.New(t, cfg.Places.BaseURL)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := make([]records.Record, len(recs))
	enriched := 0
	for i, r := range records.NormalizeAll(recs) {
		result, found, err := client.Enrich(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logging.Warn().Err(err).Str("business", r.GetString("business_name")).Msg("enrichment failed")
			out[i] = r
			continue
		}
		out[i] = result
		if found {
			enriched++
		}
	}
	logging.Info().Int("enriched", enriched).Int("total", len(recs)).Msg("enrichment complete")

	return writeRecords(out, enrichOut, enrichFormats)
}

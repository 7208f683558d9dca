package cmd

import (
	"github.com/spf13/cobra"

	"github.com/opencivic/roster/internal/sources/detail"
	"github.com/opencivic/roster/internal/sources/registry"
	"github.com/opencivic/roster/internal/transport"
	"github.com/opencivic/roster/pkg/logging"
	"github.com/opencivic/roster/pkg/records"
)

var (
	fetchWhere    string
	fetchOut      string
	fetchFormats  []string
	fetchInput    string
	fetchPageSize int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch records from an upstream source",
}

var fetchRegistryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Fetch the business registry roll",
	Long: `Fetch the full business registry roll from the Socrata dataset,
paging through it with SoQL queries, and write the raw records to the
output directory.`,
	RunE: runFetchRegistry,
}

var fetchDetailCmd = &cobra.Command{
	Use:   "detail",
	Short: "Fetch detail records for previously fetched identifiers",
	Long: `Read a registry export, extract every canonical identifier, and
fetch the matching detail records from the comptroller API.`,
	RunE: runFetchDetail,
}

func init() {
	fetchRegistryCmd.Flags().StringVar(&fetchWhere, "where", "", "SoQL $where clause to restrict the roll")
	fetchRegistryCmd.Flags().IntVar(&fetchPageSize, "page-size", 0, "rows per page (default from config)")

	fetchDetailCmd.Flags().StringVar(&fetchInput, "input", "", "registry export to read identifiers from (required)")
	_ = fetchDetailCmd.MarkFlagRequired("input")

	for _, c := range []*cobra.Command{fetchRegistryCmd, fetchDetailCmd} {
		c.Flags().StringVar(&fetchOut, "out", "", "output base name (default source name)")
		c.Flags().StringSliceVar(&fetchFormats, "format", nil, "export formats (json, csv, xlsx)")
	}

	fetchCmd.AddCommand(fetchRegistryCmd)
	fetchCmd.AddCommand(fetchDetailCmd)
	rootCmd.AddCommand(fetchCmd)
}

func runFetchRegistry(cmd *cobra.Command, _ []string) error {
	t, err := newTransport(&transport.HeaderAuth{Header: "X-App-Token"}, cfg.Registry.AppToken, cfg.Registry.RateLimit)
	if err != nil {
		return err
	}

	pageSize := cfg.Registry.PageSize
	if fetchPageSize > 0 {
		pageSize = fetchPageSize
	}

	client, err := registry.New(t, cfg.Registry.BaseURL, cfg.Registry.DatasetID,
		registry.WithPageSize(pageSize),
		registry.WithWhere(fetchWhere),
	)
	if err != nil {
		return err
	}

	recs, err := client.Fetch(cmd.Context())
	if err != nil {
		return err
	}

	return writeFetched(recs, "registry")
}

func runFetchDetail(cmd *cobra.Command, _ []string) error {
	recs, err := loadRecordsFile(fetchInput)
	if err != nil {
		return err
	}

	var ids []records.Identifier
	seen := make(map[records.Identifier]bool)
	for _, r := range records.NormalizeAll(recs) {
		if id, ok := records.ExtractIdentifier(r); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	logging.Info().Int("identifiers", len(ids)).Str("input", fetchInput).Msg("extracted identifiers")

	t, err := newTransport(&transport.BearerAuth{}, cfg.Detail.APIKey, cfg.Detail.RateLimit)
	if err != nil {
		return err
	}
	client, err := detail.New(t, cfg.Detail.BaseURL, detail.WithWorkers(cfg.Detail.Workers))
	if err != nil {
		return err
	}

	fetched, failures, err := client.FetchBatch(cmd.Context(), ids)
	if err != nil {
		return err
	}
	for id, ferr := range failures {
		logging.Warn().Str("identifier", id.String()).Err(ferr).Msg("detail fetch failed")
	}

	return writeFetched(fetched, "detail")
}

func writeFetched(recs []records.Record, defaultName string) error {
	name := fetchOut
	if name == "" {
		name = defaultName
	}
	return writeRecords(recs, name, fetchFormats)
}

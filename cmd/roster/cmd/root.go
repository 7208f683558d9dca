// Package cmd implements the roster command line interface.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/opencivic/roster/internal/cmd/output"
	"github.com/opencivic/roster/internal/config"
	"github.com/opencivic/roster/internal/export"
	"github.com/opencivic/roster/internal/transport"
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/logging"
	"github.com/opencivic/roster/pkg/records"
)

var (
	cfg        *config.Config
	configFile string

	flagVerbose bool
	flagQuiet   bool
	flagNoColor bool
	flagOutput  string

	// Version information set by main.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// Date is the build date.
	Date = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "Business registration data pipeline",
	Long: `Roster acquires business registration data from the state registry
roll and the comptroller detail API, reconciles the two sets into one
canonical record per business, removes duplicates, and exports the
results as JSON, CSV, or XLSX.`,
	PersistentPreRunE: setupCommand,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal-aware context.
func Execute(version, commit, date string) {
	Version = version
	Commit = commit
	Date = date

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.roster.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "output format (table, json, yaml, wide)")
}

// setupCommand loads configuration and wires logging before any command
// runs.
func setupCommand(_ *cobra.Command, _ []string) error {
	if configFile != "" {
		os.Setenv("ROSTER_CONFIG", configFile)
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}
	cfg.UpdateFromFlags(flagVerbose, flagQuiet, flagNoColor, flagOutput)

	configureLogging()

	if cfg.Output == "" {
		cfg.Output = string(output.DetectFormat(""))
	}
	if _, err := output.ParseFormat(cfg.Output); err != nil {
		return errors.NewConfigError("output", err.Error(), nil)
	}
	return nil
}

// configureLogging sets the log level from flags and environment.
func configureLogging() {
	level := zerolog.InfoLevel
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}
	if cfg.Quiet {
		level = zerolog.WarnLevel
	}
	if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "info" {
		level = parsed
	}
	logging.SetLevel(level)
}

// newTransport builds an HTTP client for one upstream source.
func newTransport(auth transport.Authenticator, key string, rateLimit float64) (*transport.Client, error) {
	opts := []transport.Option{
		transport.WithTimeout(cfg.HTTPTimeout),
		transport.WithRateLimit(rateLimit),
	}
	if key != "" {
		opts = append(opts, transport.WithAuth(auth, key))
	}
	return transport.New(opts...)
}

// loadRecordsFile reads records from a JSON or CSV file by extension.
func loadRecordsFile(path string) ([]records.Record, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return export.LoadJSON(path)
	case ".csv":
		return export.LoadCSV(path)
	default:
		return nil, errors.NewConfigError("input", "unsupported file type "+filepath.Ext(path)+" (want .json or .csv)", nil)
	}
}

// writeRecords exports records under the configured output directory.
// Empty formatNames falls back to the configured formats.
func writeRecords(recs []records.Record, name string, formatNames []string) error {
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
	_, err = exporter.Export(recs, name, formats...)
	return err
}

// exportFormats parses the configured or flag-provided format names.
func exportFormats(names []string) ([]export.Format, error) {
	formats := make([]export.Format, 0, len(names))
	for _, n := range names {
		f, err := export.ParseFormat(n)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

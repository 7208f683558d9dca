// Package pipeline orchestrates the full acquisition run: fetch the
// registry roll, fetch per-identifier detail records, combine the two
// sets, deduplicate, optionally enrich, and export.
package pipeline

import (
	"context"

	"github.com/opencivic/roster/internal/checkpoint"
	"github.com/opencivic/roster/internal/export"
	"github.com/opencivic/roster/internal/sources"
	"github.com/opencivic/roster/pkg/dedupe"
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/logging"
	"github.com/opencivic/roster/pkg/reconcile"
	"github.com/opencivic/roster/pkg/records"
)

// Pipeline runs the acquisition stages in order.
type Pipeline struct {
	registry sources.Registry
	detail   sources.Detail
	enricher sources.Enricher

	exporter   *export.Exporter
	formats    []export.Format
	exportName string

	store *checkpoint.Store

	priority      records.SourceTag
	strategy      dedupe.Strategy
	threshold     float64
	mergeDupes    bool
	enrichWorkers int
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithRegistry sets the registry roll source. Required.
func WithRegistry(src sources.Registry) Option {
	return func(p *Pipeline) error {
		p.registry = src
		return nil
	}
}

// WithDetail sets the per-identifier detail source. Optional; without it
// the run produces registry records only.
func WithDetail(src sources.Detail) Option {
	return func(p *Pipeline) error {
		p.detail = src
		return nil
	}
}

// WithEnricher enables place enrichment after deduplication.
func WithEnricher(e sources.Enricher) Option {
	return func(p *Pipeline) error {
		p.enricher = e
		return nil
	}
}

// WithEnrichWorkers bounds enrichment concurrency.
func WithEnrichWorkers(n int) Option {
	return func(p *Pipeline) error {
		if n <= 0 {
			return errors.NewConfigError("pipeline", "enrich workers must be positive", nil)
		}
		p.enrichWorkers = n
		return nil
	}
}

// WithExporter writes final records under the given base name.
func WithExporter(e *export.Exporter, name string, formats ...export.Format) Option {
	return func(p *Pipeline) error {
		p.exporter = e
		p.exportName = name
		p.formats = formats
		return nil
	}
}

// WithCheckpoints persists progress so interrupted runs can resume.
func WithCheckpoints(store *checkpoint.Store) Option {
	return func(p *Pipeline) error {
		p.store = store
		return nil
	}
}

// WithPriority sets which source wins merge conflicts.
func WithPriority(tag records.SourceTag) Option {
	return func(p *Pipeline) error {
		if tag != records.SourceRegistry && tag != records.SourceDetail {
			return errors.NewConfigError("pipeline", "priority must be registry or detail", nil)
		}
		p.priority = tag
		return nil
	}
}

// WithStrategy sets the deduplication strategy.
func WithStrategy(s dedupe.Strategy) Option {
	return func(p *Pipeline) error {
		p.strategy = s
		return nil
	}
}

// WithThreshold sets the fuzzy deduplication threshold.
func WithThreshold(threshold float64) Option {
	return func(p *Pipeline) error {
		p.threshold = threshold
		return nil
	}
}

// WithMergeDuplicates folds duplicate groups into single merged records.
func WithMergeDuplicates(merge bool) Option {
	return func(p *Pipeline) error {
		p.mergeDupes = merge
		return nil
	}
}

// New creates a pipeline. A registry source is required; everything else
// is optional.
func New(opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		priority:      records.SourceDetail,
		strategy:      dedupe.StrategyIdentifier,
		threshold:     dedupe.DefaultFuzzyThreshold,
		enrichWorkers: 4,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	if p.registry == nil {
		return nil, errors.NewConfigError("pipeline", "registry source is required", nil)
	}
	return p, nil
}

// Run executes the pipeline end to end.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	state, store := p.beginRun()
	ctx = logging.WithRunID(ctx, state.RunID)
	log := logging.Ctx(ctx)

	result := &Result{RunID: state.RunID}

	// Registry roll.
	registryRecs, err := p.registry.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	result.RegistryCount = len(registryRecs)
	state.RegistryCount = len(registryRecs)
	p.saveState(store, state, checkpoint.StageDetail)

	// Detail lookups for every identifier the roll carries.
	var detailRecs []records.Record
	if p.detail != nil {
		ids := collectIdentifiers(registryRecs)
		log.Info().Int("identifiers", len(ids)).Msg("fetching detail records")

		detailRecs, result.DetailFailures, err = p.fetchDetails(ctx, state, store, ids)
		if err != nil {
			return nil, err
		}
		result.DetailCount = len(detailRecs)
	}
	p.saveState(store, state, checkpoint.StageCombine)

	// Combine.
	combined, stats, err := reconcile.Combine(registryRecs, detailRecs, reconcile.WithPriority(p.priority))
	if err != nil {
		return nil, err
	}
	result.CombineStats = stats
	p.saveState(store, state, checkpoint.StageDedupe)

	// Deduplicate.
	deduped, groups, err := dedupe.Deduplicate(combined, p.strategy,
		dedupe.WithThreshold(p.threshold), dedupe.WithMerge(p.mergeDupes))
	if err != nil {
		return nil, err
	}
	result.DedupeReport = dedupe.Summarize(p.strategy, groups)

	// Enrich.
	if p.enricher != nil {
		p.saveState(store, state, checkpoint.StageEnrich)
		deduped, result.Enriched = p.enrichAll(ctx, deduped)
	}

	result.Records = deduped
	result.Quality = FieldCoverage(deduped)
	result.Quality.Validation = ValidateFields(deduped)

	// Export.
	if p.exporter != nil {
		p.saveState(store, state, checkpoint.StageExport)
		result.ExportPaths, err = p.exporter.Export(deduped, p.exportName, p.formats...)
		if err != nil {
			return nil, err
		}
	}

	state.OutputCount = len(deduped)
	p.saveState(store, state, checkpoint.StageDone)
	if store != nil {
		if err := store.Clear(); err != nil {
			log.Warn().Err(err).Msg("failed to clear checkpoint")
		}
	}

	log.Info().
		Int("registry", result.RegistryCount).
		Int("detail", result.DetailCount).
		Int("output", len(result.Records)).
		Msg("pipeline run complete")
	return result, nil
}

// beginRun resumes the latest interrupted run when checkpoints are
// enabled, otherwise starts fresh.
func (p *Pipeline) beginRun() (*checkpoint.State, *checkpoint.Store) {
	if p.store == nil {
		return &checkpoint.State{RunID: checkpoint.NewRunID()}, nil
	}
	if prev, err := p.store.Latest(); err == nil && prev.Stage != checkpoint.StageDone {
		logging.Default().Info().Str("run_id", prev.RunID).Str("stage", prev.Stage).Msg("resuming run")
		return prev, p.store
	}
	return p.store.Begin(), p.store
}

func (p *Pipeline) saveState(store *checkpoint.Store, state *checkpoint.State, stage string) {
	if store == nil {
		return
	}
	state.Stage = stage
	if err := store.Save(state); err != nil {
		logging.Default().Warn().Err(err).Msg("failed to save checkpoint")
	}
}

// fetchDetails fetches detail records, skipping identifiers a resumed
// run already completed. Fetched records are persisted alongside the
// completed identifiers, so skipping a fetch never drops its data.
func (p *Pipeline) fetchDetails(ctx context.Context, state *checkpoint.State, store *checkpoint.Store, ids []records.Identifier) ([]records.Record, int, error) {
	pending := state.Remaining(ids)
	if len(state.DetailRecords) > 0 {
		logging.Ctx(ctx).Info().Int("records", len(state.DetailRecords)).Msg("restored detail records from checkpoint")
	}

	recs, failures, err := p.detail.FetchBatch(ctx, pending)
	if err != nil {
		return nil, 0, err
	}

	for _, id := range pending {
		if _, failed := failures[id]; !failed {
			state.DetailDone = append(state.DetailDone, id)
		}
	}
	state.DetailRecords = append(state.DetailRecords, recs...)
	state.DetailCount = len(state.DetailDone)
	p.saveState(store, state, checkpoint.StageDetail)

	for id, ferr := range failures {
		logging.Ctx(ctx).Warn().Str("identifier", id.String()).Err(ferr).Msg("detail fetch failed")
	}
	return state.DetailRecords, len(failures), nil
}

// collectIdentifiers returns the unique canonical identifiers of the
// given records, in first appearance order.
func collectIdentifiers(recs []records.Record) []records.Identifier {
	seen := make(map[records.Identifier]bool)
	var ids []records.Identifier
	for _, r := range records.NormalizeAll(recs) {
		id, ok := records.ExtractIdentifier(r)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

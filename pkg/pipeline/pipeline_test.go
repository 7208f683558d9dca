package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencivic/roster/internal/checkpoint"
	"github.com/opencivic/roster/internal/export"
	"github.com/opencivic/roster/pkg/dedupe"
	"github.com/opencivic/roster/pkg/errors"
	"github.com/opencivic/roster/pkg/records"
)

func rec(pairs ...any) records.Record {
	var r records.Record
	for i := 0; i+1 < len(pairs); i += 2 {
		r.Set(pairs[i].(string), pairs[i+1])
	}
	return r
}

type fakeRegistry struct {
	recs []records.Record
	err  error
}

func (f *fakeRegistry) Tag() records.SourceTag { return records.SourceRegistry }

func (f *fakeRegistry) Fetch(_ context.Context) ([]records.Record, error) {
	return f.recs, f.err
}

type fakeDetail struct {
	mu        sync.Mutex
	byID      map[records.Identifier]records.Record
	requested []records.Identifier
}

func (f *fakeDetail) Tag() records.SourceTag { return records.SourceDetail }

func (f *fakeDetail) Fetch(_ context.Context, id records.Identifier) (records.Record, error) {
	r, ok := f.byID[id]
	if !ok {
		return records.Record{}, errors.ErrNotFound
	}
	return r, nil
}

func (f *fakeDetail) FetchBatch(ctx context.Context, ids []records.Identifier) ([]records.Record, map[records.Identifier]error, error) {
	f.mu.Lock()
	f.requested = append(f.requested, ids...)
	f.mu.Unlock()

	var out []records.Record
	failures := make(map[records.Identifier]error)
	for _, id := range ids {
		r, err := f.Fetch(ctx, id)
		if err != nil {
			failures[id] = err
			continue
		}
		out = append(out, r)
	}
	return out, failures, nil
}

type fakeEnricher struct {
	phone string
}

func (f *fakeEnricher) Tag() records.SourceTag { return records.SourcePlaces }

func (f *fakeEnricher) Enrich(_ context.Context, r records.Record) (records.Record, bool, error) {
	if r.GetString("phone") != "" {
		return r, false, nil
	}
	out := r.Clone()
	out.Set("phone", f.phone)
	return out, true, nil
}

func TestRunEndToEnd(t *testing.T) {
	registry := &fakeRegistry{recs: []records.Record{
		rec("taxpayer_number", "111", "taxpayer_name", "Acme", "taxpayer_city", "Austin"),
		rec("taxpayer_number", "222", "taxpayer_name", "Beta"),
		rec("taxpayer_number", "111", "taxpayer_name", "Acme Dup"),
	}}
	detail := &fakeDetail{byID: map[records.Identifier]records.Record{
		"111": rec("taxpayer_number", "111", "phone", "(512) 555-0100"),
	}}

	dir := t.TempDir()
	exporter, err := export.New(dir)
	require.NoError(t, err)

	p, err := New(
		WithRegistry(registry),
		WithDetail(detail),
		WithExporter(exporter, "businesses", export.FormatJSON),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.RegistryCount)
	assert.Equal(t, 1, result.DetailCount)
	assert.Equal(t, 1, result.DetailFailures, "id 222 has no detail record")

	assert.Equal(t, 1, result.CombineStats.Matched)
	assert.Equal(t, 1, result.DedupeReport.Removed, "duplicate 111 collapsed")

	// Matched record carries the detail phone.
	require.Len(t, result.Records, 2)
	assert.Equal(t, "(512) 555-0100", result.Records[0].GetString("phone"))

	require.Len(t, result.ExportPaths, 1)
	loaded, err := export.LoadJSON(result.ExportPaths[0])
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestRunRegistryRequired(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRunRegistryError(t *testing.T) {
	p, err := New(WithRegistry(&fakeRegistry{err: errors.ErrSourceUnavailable}))
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, errors.ErrSourceUnavailable)
}

func TestRunRegistryOnly(t *testing.T) {
	p, err := New(WithRegistry(&fakeRegistry{recs: []records.Record{
		rec("taxpayer_number", "111", "taxpayer_name", "Acme"),
	}}))
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.DetailCount)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Acme", result.Records[0].GetString("business_name"))
}

func TestRunEnrichment(t *testing.T) {
	p, err := New(
		WithRegistry(&fakeRegistry{recs: []records.Record{
			rec("taxpayer_number", "1", "taxpayer_name", "Acme"),
			rec("taxpayer_number", "2", "taxpayer_name", "Beta", "phone", "already"),
		}}),
		WithEnricher(&fakeEnricher{phone: "(512) 555-0199"}),
		WithEnrichWorkers(2),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Enriched)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "(512) 555-0199", result.Records[0].GetString("phone"))
	assert.Equal(t, "already", result.Records[1].GetString("phone"))
}

func TestRunResumeSkipsCompletedDetail(t *testing.T) {
	store, err := checkpoint.NewStore(t.TempDir())
	require.NoError(t, err)

	// A prior run already fetched detail for 111, record included.
	prev := store.Begin()
	prev.Stage = checkpoint.StageDetail
	prev.DetailDone = []records.Identifier{"111"}
	prev.DetailRecords = []records.Record{
		rec("taxpayer_number", "111", "phone", "(512) 555-0100"),
	}
	require.NoError(t, store.Save(prev))

	detail := &fakeDetail{byID: map[records.Identifier]records.Record{
		"111": rec("taxpayer_number", "111", "phone", "(512) 555-0100"),
		"222": rec("taxpayer_number", "222"),
	}}

	p, err := New(
		WithRegistry(&fakeRegistry{recs: []records.Record{
			rec("taxpayer_number", "111", "taxpayer_name", "Acme"),
			rec("taxpayer_number", "222", "taxpayer_name", "Beta"),
		}}),
		WithDetail(detail),
		WithCheckpoints(store),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, prev.RunID, result.RunID)
	assert.Equal(t, []records.Identifier{"222"}, detail.requested)
	assert.Equal(t, 2, result.DetailCount)

	// The skipped fetch still contributes its detail fields.
	require.Len(t, result.Records, 2)
	assert.Equal(t, "Acme", result.Records[0].GetString("business_name"))
	assert.Equal(t, "(512) 555-0100", result.Records[0].GetString("phone"))

	// Completed run clears the resume marker.
	_, err = store.Latest()
	assert.True(t, errors.IsNotFound(err))
}

func TestRunFuzzyStrategyOptions(t *testing.T) {
	p, err := New(
		WithRegistry(&fakeRegistry{recs: []records.Record{
			rec("taxpayer_name", "Acme Corporation", "taxpayer_city", "Austin"),
			rec("taxpayer_name", "ACME CORPORATION", "taxpayer_city", "Austin"),
		}}),
		WithStrategy(dedupe.StrategyFuzzy),
		WithThreshold(0.9),
		WithMergeDuplicates(true),
	)
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, result.Records, 1)
	assert.Equal(t, dedupe.StrategyFuzzy, result.DedupeReport.Strategy)
}

func TestRunLargeFixture(t *testing.T) {
	gofakeit.Seed(42)

	var recs []records.Record
	for i := 0; i < 60; i++ {
		recs = append(recs, rec(
			"taxpayer_number", fmt.Sprintf("%05d", i%40), // 20 duplicate ids
			"taxpayer_name", gofakeit.Company(),
			"taxpayer_city", gofakeit.City(),
			"taxpayer_zip", gofakeit.Zip(),
		))
	}

	p, err := New(WithRegistry(&fakeRegistry{recs: recs}))
	require.NoError(t, err)

	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Records, 40)
	assert.Equal(t, 20, result.DedupeReport.Removed)

	require.NotEmpty(t, result.Quality.Fields)
	assert.Equal(t, 40, result.Quality.Total)
	for _, f := range result.Quality.Fields {
		if f.Name == "business_name" {
			assert.Equal(t, 100.0, f.Rate)
		}
	}
}

func TestFieldCoverage(t *testing.T) {
	report := FieldCoverage([]records.Record{
		rec("business_name", "Acme", "phone", ""),
		rec("business_name", "Beta", "phone", "(512) 555-0100"),
	})

	assert.Equal(t, 2, report.Total)
	require.Len(t, report.Fields, 2)
	assert.Equal(t, FieldStat{Name: "business_name", Filled: 2, Rate: 100}, report.Fields[0])
	assert.Equal(t, FieldStat{Name: "phone", Filled: 1, Rate: 50}, report.Fields[1])

	assert.Empty(t, FieldCoverage(nil).Fields)
}

func TestValidateFields(t *testing.T) {
	stats := ValidateFields([]records.Record{
		rec("taxpayer_id", "32012345678", "zip_code", "78701", "phone", "(512) 555-0100"),
		rec("taxpayer_id", "42", "zip_code", "787", "phone", ""),
		rec("taxpayer_id", "", "zip_code", "78701-4321"),
	})

	require.Len(t, stats, 3)
	assert.Equal(t, ValidationStat{Name: "taxpayer_id", Checked: 2, Valid: 1, Invalid: 1}, stats[0])
	assert.Equal(t, ValidationStat{Name: "zip_code", Checked: 3, Valid: 2, Invalid: 1}, stats[1])
	assert.Equal(t, ValidationStat{Name: "phone", Checked: 1, Valid: 1, Invalid: 0}, stats[2])

	// Fields never filled are omitted entirely.
	assert.Empty(t, ValidateFields([]records.Record{rec("business_name", "Acme")}))
}

func TestWithPriorityValidation(t *testing.T) {
	_, err := New(
		WithRegistry(&fakeRegistry{}),
		WithPriority(records.SourcePlaces),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

package pipeline

import (
	"context"
	"sync"

	"github.com/opencivic/roster/pkg/logging"
	"github.com/opencivic/roster/pkg/records"
)

// enrichAll runs place enrichment over recs with bounded concurrency.
// Output order matches input order. Enrichment is best-effort: a record
// whose lookup fails passes through unchanged.
func (p *Pipeline) enrichAll(ctx context.Context, recs []records.Record) ([]records.Record, int) {
	log := logging.Ctx(ctx)

	out := make([]records.Record, len(recs))
	var enriched int

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.enrichWorkers)

	for i, r := range recs {
		if ctx.Err() != nil {
			out[i] = r
			continue
		}
		wg.Add(1)
		go func(i int, r records.Record) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, found, err := p.enricher.Enrich(ctx, r)
			if err != nil {
				log.Warn().Err(err).Str("business", r.GetString("business_name")).Msg("enrichment failed")
				out[i] = r
				return
			}
			out[i] = result
			if found {
				mu.Lock()
				enriched++
				mu.Unlock()
			}
		}(i, r)
	}
	wg.Wait()

	log.Info().Int("enriched", enriched).Int("total", len(recs)).Msg("enrichment complete")
	return out, enriched
}

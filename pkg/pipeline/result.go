package pipeline

import (
	"github.com/opencivic/roster/pkg/dedupe"
	"github.com/opencivic/roster/pkg/reconcile"
	"github.com/opencivic/roster/pkg/records"
)

// Result is the outcome of one pipeline run.
type Result struct {
	RunID string `json:"run_id"`

	Records []records.Record `json:"-"`

	RegistryCount  int `json:"registry_count"`
	DetailCount    int `json:"detail_count"`
	DetailFailures int `json:"detail_failures"`
	Enriched       int `json:"enriched"`

	CombineStats reconcile.Stats `json:"combine"`
	DedupeReport dedupe.Report   `json:"dedupe"`
	Quality      QualityReport   `json:"quality"`

	ExportPaths []string `json:"export_paths,omitempty"`
}

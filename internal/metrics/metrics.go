package metrics

import (
	"context"
	"fmt"

	"contrib.go.opencensus.io/exporter/stackdriver"
	"github.com/chorizite/plugin-index/internal/config"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	CounterReleases     = stats.Int64("releases", "Number of materialized releases", "1")
	CounterRepositories = stats.Int64("repositories", "Number of reconciled repositories", "1")
	CounterPublishes    = stats.Int64("publishes", "Number of package mirror publish attempts", "1")

	TagOutcome = tag.MustNewKey("outcome")
)

const (
	OutcomeFresh         = "fresh"
	OutcomeReused        = "reused"
	OutcomeFailed        = "failed"
	OutcomeIncluded      = "included"
	OutcomeExcluded      = "excluded"
	OutcomePublished     = "published"
	OutcomeAlreadyExists = "already-exists"
)

var Views = []*view.View{
	{
		Name:        "releases",
		Measure:     CounterReleases,
		Description: "Number of materialized releases",
		TagKeys:     []tag.Key{TagOutcome},
		Aggregation: view.Count(),
	},
	{
		Name:        "repositories",
		Measure:     CounterRepositories,
		Description: "Number of reconciled repositories",
		TagKeys:     []tag.Key{TagOutcome},
		Aggregation: view.Count(),
	},
	{
		Name:        "publishes",
		Measure:     CounterPublishes,
		Description: "Number of package mirror publish attempts",
		TagKeys:     []tag.Key{TagOutcome},
		Aggregation: view.Count(),
	},
}

// Record increments m tagged with outcome.
func Record(ctx context.Context, m *stats.Int64Measure, outcome string) {
	_ = stats.RecordWithTags(ctx, []tag.Mutator{tag.Upsert(TagOutcome, outcome)}, m.M(1))
}

// NewExporter registers the views and starts exporting them to Stackdriver.
func NewExporter(cfg *config.BuilderConfig) (*stackdriver.Exporter, error) {
	err := view.Register(Views...)
	if err != nil {
		return nil, err
	}
	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:    cfg.ProjectID,
		MetricPrefix: fmt.Sprintf("plugin-index/%s", cfg.Version),
	})
	if err != nil {
		return nil, err
	}
	err = exporter.StartMetricsExporter()
	if err != nil {
		return nil, err
	}
	return exporter, nil
}

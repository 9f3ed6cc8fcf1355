// Package factors turns sparse stored factor series into complete, gap-filled
// bundles for a requested year span.
package factors

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bugetar/internal/core"
)

// Series names as stored in the factor_series reference table.
const (
	SeriesCPI        = "cpi"
	SeriesEUR        = "eur"
	SeriesUSD        = "usd"
	SeriesGDP        = "gdp"
	SeriesPopulation = "population"
)

// SeriesRepository loads one sparse factor series, split by the granularity
// its entries were published at.
type SeriesRepository interface {
	FactorSeries(ctx context.Context, name string) (core.FactorDataset, error)
}

// Provider implements the pipeline's factor port. The five series are
// independent, so they are fetched concurrently; each is then gap-filled over
// the requested span with the carry-forward policy.
type Provider struct {
	series SeriesRepository
}

func NewProvider(series SeriesRepository) *Provider {
	return &Provider{series: series}
}

func (p *Provider) Factors(ctx context.Context, freq core.Frequency, startYear, endYear int) (core.FactorBundle, error) {
	if !freq.IsValid() {
		return core.FactorBundle{}, fmt.Errorf("unsupported frequency %q", freq)
	}
	if startYear > endYear {
		return core.FactorBundle{}, fmt.Errorf("inverted year span %d-%d", startYear, endYear)
	}

	var bundle core.FactorBundle
	targets := map[string]*core.PeriodFactorMap{
		SeriesCPI:        &bundle.CPI,
		SeriesEUR:        &bundle.EUR,
		SeriesUSD:        &bundle.USD,
		SeriesGDP:        &bundle.GDP,
		SeriesPopulation: &bundle.Population,
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, target := range targets {
		name, target := name, target
		g.Go(func() error {
			ds, err := p.series.FactorSeries(ctx, name)
			if err != nil {
				return fmt.Errorf("load %s series: %w", name, err)
			}
			*target = core.GenerateFactorMap(freq, startYear, endYear, ds)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.FactorBundle{}, err
	}
	return bundle, nil
}

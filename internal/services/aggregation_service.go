// Package services orchestrates the normalize-aggregate pipeline over the
// storage, factor and population collaborators.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
	applog "bugetar/internal/log"
)

// Strategy selects where normalization and aggregation execute. The choice is
// made explicitly by the composition root; the service never probes its
// collaborators for capabilities.
type Strategy string

const (
	// StrategyInApplication fetches every classification-year row and runs
	// the whole pipeline in process.
	StrategyInApplication Strategy = "app"
	// StrategyStoreDelegated precomputes the multiplier table, then lets the
	// store join, aggregate, sort and paginate. Only correct because the
	// table is computed before any sort or limit is applied.
	StrategyStoreDelegated Strategy = "store"
)

func (s Strategy) IsValid() bool {
	return s == StrategyInApplication || s == StrategyStoreDelegated
}

// RowRepository fetches pre-grouped classification rows for a filter.
// Filtering, joins and defaulting of NULL economic codes are its
// responsibility.
type RowRepository interface {
	ClassificationRows(ctx context.Context, filter core.ReportFilter) ([]core.ClassificationPeriodRow, error)
	// YearSpan reports the [min, max] year actually present in storage for
	// the filter. ok is false when no rows match.
	YearSpan(ctx context.Context, filter core.ReportFilter) (minYear, maxYear int, ok bool, err error)
}

// StoreAggregator executes the store-delegated strategy: join rows against
// the multiplier table, aggregate, apply thresholds, sort and paginate inside
// the store. A nil multiplier table means no transform applies.
type StoreAggregator interface {
	NormalizedAggregate(ctx context.Context, filter core.ReportFilter, multipliers core.PeriodFactorMap, page core.Pagination) ([]core.AggregatedClassification, int, error)
}

// FactorProvider produces the gap-filled factor bundle for a year span. It
// may fail for spans outside its source coverage, which is why the pipeline
// never calls it when no transform is needed.
type FactorProvider interface {
	Factors(ctx context.Context, freq core.Frequency, startYear, endYear int) (core.FactorBundle, error)
}

// DenominatorResolver resolves the filter-dependent per-capita denominator.
type DenominatorResolver interface {
	Denominator(ctx context.Context, filter core.ReportFilter) (decimal.Decimal, error)
}

var ErrInvalidStrategy = errors.New("invalid aggregation strategy")

// AggregationService is the normalize-aggregate pipeline. It is stateless and
// request-scoped: every invocation works only on its own data.
type AggregationService struct {
	rows        RowRepository
	store       StoreAggregator
	factors     FactorProvider
	populations DenominatorResolver
	strategy    Strategy
}

func NewAggregationService(rows RowRepository, store StoreAggregator, factors FactorProvider, populations DenominatorResolver, strategy Strategy) (*AggregationService, error) {
	if !strategy.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}
	if strategy == StrategyStoreDelegated && store == nil {
		return nil, fmt.Errorf("%w: store-delegated strategy requires a store aggregator", ErrInvalidStrategy)
	}
	return &AggregationService{
		rows:        rows,
		store:       store,
		factors:     factors,
		populations: populations,
		strategy:    strategy,
	}, nil
}

// AggregateClassifications runs the pipeline: fetch, normalize per period,
// aggregate per classification, threshold-filter, sort, paginate. Both
// strategies must return identical pages for identical inputs. Any
// collaborator failure aborts the request; partial pages are never returned.
func (s *AggregationService) AggregateClassifications(ctx context.Context, filter core.ReportFilter, norm core.NormalizationConfig, page core.Pagination) (core.ClassificationConnection, error) {
	if err := norm.Validate(); err != nil {
		return core.ClassificationConnection{}, err
	}
	page = page.Clamp()

	switch s.strategy {
	case StrategyStoreDelegated:
		return s.runStoreDelegated(ctx, filter, norm, page)
	default:
		return s.runInApplication(ctx, filter, norm, page)
	}
}

func (s *AggregationService) runInApplication(ctx context.Context, filter core.ReportFilter, norm core.NormalizationConfig, page core.Pagination) (core.ClassificationConnection, error) {
	rows, err := s.rows.ClassificationRows(ctx, filter)
	if err != nil {
		return core.ClassificationConnection{}, storeFailure("fetch classification rows", err)
	}
	if len(rows) == 0 {
		return emptyConnection(page), nil
	}

	needsTransform := norm.NeedsTransform()

	var (
		bundle      core.FactorBundle
		denominator decimal.Decimal
	)
	if needsTransform {
		minYear, maxYear := yearBounds(rows)
		bundle, denominator, err = s.normalizationInputs(ctx, filter, norm, minYear, maxYear)
		if err != nil {
			return core.ClassificationConnection{}, err
		}
	}

	// Normalize each row with its own period multiplier before anything is
	// summed. Aggregation is cross-year per classification, so this pipeline
	// always keys factors by yearly labels.
	acc := make(map[core.ClassificationKey]*core.AggregatedClassification, len(rows))
	for _, row := range rows {
		amount := row.Amount
		if needsTransform {
			amount = core.NormalizeAmount(norm, bundle, core.YearLabel(row.Year), row.Amount, denominator)
		}

		key := core.ClassificationKey{FunctionalCode: row.FunctionalCode, EconomicCode: row.EconomicCode}
		agg, ok := acc[key]
		if !ok {
			agg = &core.AggregatedClassification{
				FunctionalCode: row.FunctionalCode,
				FunctionalName: row.FunctionalName,
				EconomicCode:   row.EconomicCode,
				EconomicName:   row.EconomicName,
			}
			acc[key] = agg
		}
		agg.Amount = agg.Amount.Add(amount)
		agg.Count += row.Count
	}

	items := make([]core.AggregatedClassification, 0, len(acc))
	for _, agg := range acc {
		if !passesThresholds(agg.Amount, filter) {
			continue
		}
		items = append(items, *agg)
	}

	// Collect in key order, then stable-sort by amount. Map iteration order
	// must never leak into the output; ties keep ascending key order, which
	// matches the store-delegated ORDER BY.
	sort.Slice(items, func(i, j int) bool {
		if items[i].FunctionalCode != items[j].FunctionalCode {
			return items[i].FunctionalCode < items[j].FunctionalCode
		}
		return items[i].EconomicCode < items[j].EconomicCode
	})
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Amount.GreaterThan(items[j].Amount)
	})

	total := len(items)
	start := page.Offset
	if start > total {
		start = total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}

	slog.DebugContext(ctx, "Aggregation completed in application",
		"rows", len(rows), applog.FieldGroupCount, total, "normalized", needsTransform)

	return buildConnection(items[start:end], total, page), nil
}

func (s *AggregationService) runStoreDelegated(ctx context.Context, filter core.ReportFilter, norm core.NormalizationConfig, page core.Pagination) (core.ClassificationConnection, error) {
	var multipliers core.PeriodFactorMap

	if norm.NeedsTransform() {
		minYear, maxYear, ok, err := s.rows.YearSpan(ctx, filter)
		if err != nil {
			return core.ClassificationConnection{}, storeFailure("resolve year span", err)
		}
		if !ok {
			return emptyConnection(page), nil
		}

		bundle, denominator, err := s.normalizationInputs(ctx, filter, norm, minYear, maxYear)
		if err != nil {
			return core.ClassificationConnection{}, err
		}

		labels := core.EnumeratePeriods(core.FrequencyYear, minYear, maxYear)
		multipliers = core.ComposeMultipliers(norm, bundle, labels, denominator)
	}

	items, total, err := s.store.NormalizedAggregate(ctx, filter, multipliers, page)
	if err != nil {
		return core.ClassificationConnection{}, storeFailure("store-delegated aggregate", err)
	}

	slog.DebugContext(ctx, "Aggregation delegated to store",
		applog.FieldGroupCount, total, "multipliers", len(multipliers))

	return buildConnection(items, total, page), nil
}

// normalizationInputs gathers the factor bundle and, for per-capita, the
// population denominator. This is the single point where provider failures
// convert into typed normalization errors.
func (s *AggregationService) normalizationInputs(ctx context.Context, filter core.ReportFilter, norm core.NormalizationConfig, minYear, maxYear int) (core.FactorBundle, decimal.Decimal, error) {
	bundle, err := s.factors.Factors(ctx, core.FrequencyYear, minYear, maxYear)
	if err != nil {
		return core.FactorBundle{}, decimal.Zero, &core.NormalizationDataError{Err: err}
	}

	denominator := decimal.Zero
	if norm.Mode == core.ModePerCapita && s.populations != nil {
		denominator, err = s.populations.Denominator(ctx, filter)
		if err != nil {
			return core.FactorBundle{}, decimal.Zero, &core.NormalizationDataError{Err: err}
		}
	}
	return bundle, denominator, nil
}

func yearBounds(rows []core.ClassificationPeriodRow) (minYear, maxYear int) {
	minYear, maxYear = rows[0].Year, rows[0].Year
	for _, row := range rows[1:] {
		if row.Year < minYear {
			minYear = row.Year
		}
		if row.Year > maxYear {
			maxYear = row.Year
		}
	}
	return minYear, maxYear
}

func passesThresholds(amount decimal.Decimal, filter core.ReportFilter) bool {
	if filter.AggregateMinAmount != nil && amount.LessThan(*filter.AggregateMinAmount) {
		return false
	}
	if filter.AggregateMaxAmount != nil && amount.GreaterThan(*filter.AggregateMaxAmount) {
		return false
	}
	return true
}

func storeFailure(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.TimeoutError{Op: op, Err: err}
	}
	return &core.DatabaseError{Op: op, Err: err}
}

func emptyConnection(page core.Pagination) core.ClassificationConnection {
	return core.ClassificationConnection{
		Nodes:           []core.ClassificationNode{},
		HasPreviousPage: page.Offset > 0,
	}
}

func buildConnection(items []core.AggregatedClassification, total int, page core.Pagination) core.ClassificationConnection {
	nodes := make([]core.ClassificationNode, len(items))
	for i, item := range items {
		nodes[i] = core.ClassificationNode{
			FunctionalCode: item.FunctionalCode,
			FunctionalName: item.FunctionalName,
			EconomicCode:   item.EconomicCode,
			EconomicName:   item.EconomicName,
			Amount:         item.Amount.InexactFloat64(),
			Count:          item.Count,
		}
	}
	return core.ClassificationConnection{
		Nodes:           nodes,
		TotalCount:      total,
		HasNextPage:     page.Offset+page.Limit < total,
		HasPreviousPage: page.Offset > 0,
	}
}

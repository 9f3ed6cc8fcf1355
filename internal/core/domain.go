package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Economic classification is nullable in the source data. Rows without one are
// reported under this sentinel code so they still aggregate into a stable key.
const (
	UnknownEconomicCode = "00"
	UnknownEconomicName = "Necunoscut"
)

// MaxPageLimit bounds how many aggregated classifications a single page may
// return. Requests asking for more are clamped, not rejected.
const MaxPageLimit = 100

// NormalizationMode selects how aggregated amounts are scaled.
type NormalizationMode string

const (
	ModeTotal      NormalizationMode = "total"
	ModePerCapita  NormalizationMode = "per_capita"
	ModePercentGDP NormalizationMode = "percent_gdp"
)

// Currency is the currency amounts are reported in. Source data is RON.
type Currency string

const (
	CurrencyRON Currency = "RON"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
)

// NormalizationConfig describes the transforms applied to raw amounts.
// percent_gdp is exclusive: currency and inflation flags are ignored on that
// path because a share of GDP is already a dimensionless quantity.
type NormalizationConfig struct {
	Mode              NormalizationMode
	Currency          Currency
	InflationAdjusted bool
}

var (
	ErrInvalidMode     = errors.New("invalid normalization mode")
	ErrInvalidCurrency = errors.New("invalid currency")
)

func (c NormalizationConfig) Validate() error {
	switch c.Mode {
	case ModeTotal, ModePerCapita, ModePercentGDP:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Mode)
	}
	switch c.Currency {
	case CurrencyRON, CurrencyEUR, CurrencyUSD:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, c.Currency)
	}
	return nil
}

// NeedsTransform reports whether any normalization applies. When it returns
// false the pipeline must not ask the factor provider for data at all.
func (c NormalizationConfig) NeedsTransform() bool {
	return c.InflationAdjusted ||
		(c.Currency != "" && c.Currency != CurrencyRON) ||
		c.Mode == ModePerCapita || c.Mode == ModePercentGDP
}

// ClassificationPeriodRow is one pre-grouped row per functional code,
// economic code and year, as returned by the row repository. Immutable once
// fetched.
type ClassificationPeriodRow struct {
	FunctionalCode string
	FunctionalName string
	EconomicCode   string
	EconomicName   string
	Year           int
	Amount         decimal.Decimal
	Count          int64
}

// PeriodFactorMap maps a period label to a decimal factor. Depending on
// context it holds either a raw series value or a combined multiplier.
type PeriodFactorMap map[string]decimal.Decimal

// FactorBundle carries the five period-indexed factor series. Each map may be
// sparse; a missing period means no value is known for it.
type FactorBundle struct {
	CPI        PeriodFactorMap
	EUR        PeriodFactorMap
	USD        PeriodFactorMap
	GDP        PeriodFactorMap
	Population PeriodFactorMap
}

// ClassificationKey identifies one aggregation bucket. A struct key keeps
// equality explicit instead of concatenating codes into a string.
type ClassificationKey struct {
	FunctionalCode string
	EconomicCode   string
}

// AggregatedClassification accumulates normalized amounts and line-item
// counts for one classification key across all years in the query.
type AggregatedClassification struct {
	FunctionalCode string
	FunctionalName string
	EconomicCode   string
	EconomicName   string
	Amount         decimal.Decimal
	Count          int64
}

func (a AggregatedClassification) Key() ClassificationKey {
	return ClassificationKey{FunctionalCode: a.FunctionalCode, EconomicCode: a.EconomicCode}
}

// ReportFilter narrows which budget line items take part in the aggregation.
// The threshold bounds apply to the aggregated, normalized amount, never to
// raw line amounts.
type ReportFilter struct {
	StartYear int
	EndYear   int

	EntityCIFs     []string
	CountyCodes    []string
	UATSirutaCodes []int64
	FundingSources []string

	AggregateMinAmount *decimal.Decimal
	AggregateMaxAmount *decimal.Decimal
}

// HasUnitSelection reports whether the filter narrows the query to specific
// administrative units or entities. It decides which population denominator
// the per-capita mode divides by.
func (f ReportFilter) HasUnitSelection() bool {
	return len(f.EntityCIFs) > 0 || len(f.CountyCodes) > 0 || len(f.UATSirutaCodes) > 0
}

// Pagination bounds one page of results.
type Pagination struct {
	Limit  int
	Offset int
}

// Clamp forces the bounds into their valid ranges: limit into [0, MaxPageLimit],
// offset to at least 0.
func (p Pagination) Clamp() Pagination {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// ClassificationNode is the boundary representation of one aggregated
// classification. Amounts leave the arbitrary-precision domain here and
// nowhere else.
type ClassificationNode struct {
	FunctionalCode string  `json:"functionalCode"`
	FunctionalName string  `json:"functionalName"`
	EconomicCode   string  `json:"economicCode"`
	EconomicName   string  `json:"economicName"`
	Amount         float64 `json:"amount"`
	Count          int64   `json:"count"`
}

// ClassificationConnection is one page of aggregated classifications.
type ClassificationConnection struct {
	Nodes           []ClassificationNode `json:"nodes"`
	TotalCount      int                  `json:"totalCount"`
	HasNextPage     bool                 `json:"hasNextPage"`
	HasPreviousPage bool                 `json:"hasPreviousPage"`
}

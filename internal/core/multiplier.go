package core

import "github.com/shopspring/decimal"

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// PeriodMultiplier computes the single combined multiplier for one period
// label under the given configuration.
//
// percent_gdp is an exclusive path: the multiplier is 100/gdp, and an absent
// or zero GDP yields a zero multiplier so that division by zero can never
// leak out as NaN or infinity. Amounts in such periods are zeroed, not
// skipped.
//
// On the standard path transforms compose in a fixed order: CPI adjustment,
// then currency conversion, then per-capita scaling. The first two are
// expressed in nominal-RON-equivalent terms, so per-capita must come last;
// reordering changes results. A missing or zero CPI or FX factor leaves the
// multiplier unchanged for that period (no adjustment, not an error).
//
// Per-capita divides by popDenominator when it is positive, falls back to the
// bundle's per-year population series otherwise, and leaves the multiplier
// unchanged when neither is usable.
func PeriodMultiplier(cfg NormalizationConfig, bundle FactorBundle, label string, popDenominator decimal.Decimal) decimal.Decimal {
	if cfg.Mode == ModePercentGDP {
		gdp, ok := bundle.GDP[label]
		if !ok || gdp.IsZero() {
			return decimal.Zero
		}
		return hundred.Div(gdp)
	}

	m := one

	if cfg.InflationAdjusted {
		if cpi, ok := bundle.CPI[label]; ok && !cpi.IsZero() {
			m = m.Mul(cpi)
		}
	}

	switch cfg.Currency {
	case CurrencyEUR:
		if rate, ok := bundle.EUR[label]; ok && !rate.IsZero() {
			m = m.Div(rate)
		}
	case CurrencyUSD:
		if rate, ok := bundle.USD[label]; ok && !rate.IsZero() {
			m = m.Div(rate)
		}
	}

	if cfg.Mode == ModePerCapita {
		switch {
		case popDenominator.IsPositive():
			m = m.Div(popDenominator)
		default:
			if pop, ok := bundle.Population[label]; ok && !pop.IsZero() {
				m = m.Div(pop)
			}
		}
	}

	return m
}

// ComposeMultipliers builds the combined multiplier table for a set of period
// labels. This is the table the store-delegated strategy hands to the
// repository before any sorting or limiting happens.
func ComposeMultipliers(cfg NormalizationConfig, bundle FactorBundle, labels []string, popDenominator decimal.Decimal) PeriodFactorMap {
	out := make(PeriodFactorMap, len(labels))
	for _, label := range labels {
		out[label] = PeriodMultiplier(cfg, bundle, label, popDenominator)
	}
	return out
}

// NormalizeAmount applies the per-period multiplier to a single amount. The
// in-application strategy uses this row by row; it must stay equivalent to
// joining against the table ComposeMultipliers produces.
func NormalizeAmount(cfg NormalizationConfig, bundle FactorBundle, label string, amount decimal.Decimal, popDenominator decimal.Decimal) decimal.Decimal {
	return amount.Mul(PeriodMultiplier(cfg, bundle, label, popDenominator))
}

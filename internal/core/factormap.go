package core

import "github.com/shopspring/decimal"

// FactorDataset is one sparse factor series split by source granularity.
// Keys are period labels of the matching shape.
type FactorDataset struct {
	Yearly    PeriodFactorMap
	Quarterly PeriodFactorMap
	Monthly   PeriodFactorMap
}

// GenerateFactorMap produces a complete per-period factor map for the target
// frequency over [startYear, endYear], resolving each period in order by:
// exact match at the target frequency, exact yearly match for that period's
// year, then carry-forward of the most recently resolved value. Financial
// indices do not reset, so carrying a stale value forward is closer to ground
// truth than defaulting to 1 or failing.
//
// Periods that resolve to nothing (no value exists at or before them) are
// omitted from the result. Callers must treat a missing period as "no
// transform applied", never as zero.
func GenerateFactorMap(freq Frequency, startYear, endYear int, ds FactorDataset) PeriodFactorMap {
	out := make(PeriodFactorMap)

	last, haveLast := preRangeSeed(ds, startYear)

	for _, label := range EnumeratePeriods(freq, startYear, endYear) {
		value, ok := resolvePeriod(freq, label, ds)
		if ok {
			last, haveLast = value, true
		}
		if haveLast {
			out[label] = last
		}
	}
	return out
}

func resolvePeriod(freq Frequency, label string, ds FactorDataset) (decimal.Decimal, bool) {
	var exact PeriodFactorMap
	switch freq {
	case FrequencyMonth:
		exact = ds.Monthly
	case FrequencyQuarter:
		exact = ds.Quarterly
	default:
		exact = ds.Yearly
	}

	if v, ok := exact[label]; ok {
		return v, true
	}
	if freq != FrequencyYear {
		if year, err := PeriodYear(label); err == nil {
			if v, ok := ds.Yearly[YearLabel(year)]; ok {
				return v, true
			}
		}
	}
	return decimal.Decimal{}, false
}

// preRangeSeed finds the latest dataset entry strictly before startYear so
// the first requested periods can carry it forward. Each sub-dataset is
// scanned on its own chronological index (labels are unordered map keys and
// must not be compared as strings); candidates are then compared on a common
// month-granular position, with the finer frequency winning a tie.
func preRangeSeed(ds FactorDataset, startYear int) (decimal.Decimal, bool) {
	var (
		best    decimal.Decimal
		bestPos int
		found   bool
	)

	consider := func(value decimal.Decimal, pos int) {
		if !found || pos >= bestPos {
			best, bestPos, found = value, pos, true
		}
	}

	for label, v := range ds.Yearly {
		freq, idx, err := ParsePeriodLabel(label)
		if err != nil || freq != FrequencyYear || idx >= startYear {
			continue
		}
		if !found || idx*12+12 > bestPos {
			best, bestPos, found = v, idx*12+12, true
		}
	}
	for label, v := range ds.Quarterly {
		freq, idx, err := ParsePeriodLabel(label)
		if err != nil || freq != FrequencyQuarter {
			continue
		}
		year := (idx - 1) / 4
		if year >= startYear {
			continue
		}
		quarter := idx - year*4
		consider(v, year*12+quarter*3)
	}
	for label, v := range ds.Monthly {
		freq, idx, err := ParsePeriodLabel(label)
		if err != nil || freq != FrequencyMonth {
			continue
		}
		year := (idx - 1) / 12
		if year >= startYear {
			continue
		}
		consider(v, idx)
	}
	return best, found
}

// Package core holds the domain model for budget classification aggregation:
// calendar periods, classification rows, normalization factors and the
// arithmetic that combines them.
package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Frequency is the granularity at which budget periods are reported.
type Frequency string

const (
	FrequencyYear    Frequency = "YEAR"
	FrequencyQuarter Frequency = "QUARTER"
	FrequencyMonth   Frequency = "MONTH"
)

// IsValid returns true if the frequency is one of the supported values.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyYear, FrequencyQuarter, FrequencyMonth:
		return true
	default:
		return false
	}
}

var ErrInvalidPeriodLabel = errors.New("invalid period label")

// YearLabel formats a yearly period label, e.g. "2023".
func YearLabel(year int) string {
	return strconv.Itoa(year)
}

// QuarterLabel formats a quarterly period label, e.g. "2023-Q2".
func QuarterLabel(year, quarter int) string {
	return fmt.Sprintf("%d-Q%d", year, quarter)
}

// MonthLabel formats a monthly period label, e.g. "2023-07".
func MonthLabel(year, month int) string {
	return fmt.Sprintf("%d-%02d", year, month)
}

// ParsePeriodLabel parses a label of the form "YYYY", "YYYY-QN" or "YYYY-MM"
// and reports the frequency it belongs to together with its chronological
// index within that frequency (year, year*4+quarter or year*12+month).
// Labels are string keys; they must never be compared lexicographically.
func ParsePeriodLabel(label string) (Frequency, int, error) {
	yearPart, rest, hasRest := strings.Cut(label, "-")
	year, err := strconv.Atoi(yearPart)
	if err != nil || len(yearPart) != 4 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPeriodLabel, label)
	}

	if !hasRest {
		return FrequencyYear, year, nil
	}

	if q, ok := strings.CutPrefix(rest, "Q"); ok {
		quarter, err := strconv.Atoi(q)
		if err != nil || quarter < 1 || quarter > 4 {
			return "", 0, fmt.Errorf("%w: %q", ErrInvalidPeriodLabel, label)
		}
		return FrequencyQuarter, year*4 + quarter, nil
	}

	month, err := strconv.Atoi(rest)
	if err != nil || len(rest) != 2 || month < 1 || month > 12 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPeriodLabel, label)
	}
	return FrequencyMonth, year*12 + month, nil
}

// PeriodYear extracts the calendar year from any period label.
func PeriodYear(label string) (int, error) {
	yearPart, _, _ := strings.Cut(label, "-")
	year, err := strconv.Atoi(yearPart)
	if err != nil || len(yearPart) != 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriodLabel, label)
	}
	return year, nil
}

// EnumeratePeriods lists every period label in [startYear, endYear] at the
// given frequency, in chronological order.
func EnumeratePeriods(freq Frequency, startYear, endYear int) []string {
	if startYear > endYear {
		return nil
	}

	var labels []string
	for year := startYear; year <= endYear; year++ {
		switch freq {
		case FrequencyQuarter:
			for q := 1; q <= 4; q++ {
				labels = append(labels, QuarterLabel(year, q))
			}
		case FrequencyMonth:
			for m := 1; m <= 12; m++ {
				labels = append(labels, MonthLabel(year, m))
			}
		default:
			labels = append(labels, YearLabel(year))
		}
	}
	return labels
}

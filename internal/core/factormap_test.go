package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestGenerateFactorMap_YearlyDatasetAtMonthlyFrequency(t *testing.T) {
	ds := FactorDataset{
		Yearly: PeriodFactorMap{"2023": dec("1.10"), "2024": dec("1.15")},
	}

	got := GenerateFactorMap(FrequencyMonth, 2023, 2024, ds)

	if len(got) != 24 {
		t.Fatalf("expected 24 entries, got %d", len(got))
	}
	for m := 1; m <= 12; m++ {
		if !got[MonthLabel(2023, m)].Equal(dec("1.10")) {
			t.Errorf("month %d of 2023 = %s, want 1.10", m, got[MonthLabel(2023, m)])
		}
		if !got[MonthLabel(2024, m)].Equal(dec("1.15")) {
			t.Errorf("month %d of 2024 = %s, want 1.15", m, got[MonthLabel(2024, m)])
		}
	}
}

func TestGenerateFactorMap_MonthlyOverrideBeatsYearly(t *testing.T) {
	ds := FactorDataset{
		Yearly:  PeriodFactorMap{"2023": dec("1.10")},
		Monthly: PeriodFactorMap{"2023-06": dec("1.20")},
	}

	got := GenerateFactorMap(FrequencyMonth, 2023, 2023, ds)

	if !got["2023-05"].Equal(dec("1.10")) {
		t.Errorf("2023-05 = %s, want yearly 1.10", got["2023-05"])
	}
	if !got["2023-06"].Equal(dec("1.20")) {
		t.Errorf("2023-06 = %s, want monthly override 1.20", got["2023-06"])
	}
	// Yearly value still matches for 2023-07, so the override does not carry.
	if !got["2023-07"].Equal(dec("1.10")) {
		t.Errorf("2023-07 = %s, want 1.10", got["2023-07"])
	}
}

func TestGenerateFactorMap_CarryForwardAcrossGap(t *testing.T) {
	ds := FactorDataset{
		Yearly: PeriodFactorMap{"2021": dec("5.0")},
	}

	got := GenerateFactorMap(FrequencyYear, 2021, 2024, ds)

	for _, label := range []string{"2021", "2022", "2023", "2024"} {
		v, ok := got[label]
		if !ok || !v.Equal(dec("5.0")) {
			t.Errorf("%s = %s (present=%v), want carried-forward 5.0", label, v, ok)
		}
	}
}

func TestGenerateFactorMap_PreRangeSeed(t *testing.T) {
	ds := FactorDataset{
		Yearly:  PeriodFactorMap{"2019": dec("4.0")},
		Monthly: PeriodFactorMap{"2019-06": dec("4.5")},
	}

	// 2019 yearly sits at end of year, after 2019-06; the yearly value seeds.
	got := GenerateFactorMap(FrequencyMonth, 2021, 2021, ds)
	if len(got) != 12 {
		t.Fatalf("expected 12 entries, got %d", len(got))
	}
	if !got["2021-01"].Equal(dec("4.0")) {
		t.Errorf("seed = %s, want latest pre-range value 4.0", got["2021-01"])
	}
}

func TestGenerateFactorMap_SeedTiePrefersFinerFrequency(t *testing.T) {
	ds := FactorDataset{
		Yearly:  PeriodFactorMap{"2019": dec("4.0")},
		Monthly: PeriodFactorMap{"2019-12": dec("4.9")},
	}

	got := GenerateFactorMap(FrequencyYear, 2021, 2021, ds)
	if !got["2021"].Equal(dec("4.9")) {
		t.Errorf("seed = %s, want monthly 4.9 on position tie", got["2021"])
	}
}

func TestGenerateFactorMap_NoResolvableValueOmitsPeriods(t *testing.T) {
	ds := FactorDataset{
		Yearly: PeriodFactorMap{"2023": dec("1.10")},
	}

	got := GenerateFactorMap(FrequencyYear, 2021, 2024, ds)

	for _, label := range []string{"2021", "2022"} {
		if v, ok := got[label]; ok {
			t.Errorf("%s should be omitted (no prior value), got %s", label, v)
		}
	}
	if !got["2023"].Equal(dec("1.10")) || !got["2024"].Equal(dec("1.10")) {
		t.Errorf("2023/2024 wrong: %v", got)
	}
}

func TestGenerateFactorMap_EmptyDataset(t *testing.T) {
	got := GenerateFactorMap(FrequencyQuarter, 2023, 2023, FactorDataset{})
	if len(got) != 0 {
		t.Errorf("empty dataset must produce an empty map, got %v", got)
	}
}

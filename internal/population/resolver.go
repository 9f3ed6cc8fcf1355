// Package population resolves the single population value used as the
// per-capita denominator. The value depends on the dimensional filter, not on
// the reporting year; it is computed once per query and reused for every
// period.
package population

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

// CapitalCountyCode marks Bucharest. Its population lives on the municipal
// unit, not on a county-level row, and its sectors must never be added on top
// of it.
const CapitalCountyCode = "B"

// UnitLevel classifies an administrative unit.
type UnitLevel string

const (
	LevelCounty       UnitLevel = "county"
	LevelMunicipality UnitLevel = "municipality"
	LevelCity         UnitLevel = "city"
	LevelCommune      UnitLevel = "commune"
	LevelSector       UnitLevel = "sector"
)

// Unit is one administrative territorial unit (UAT) with its census
// population.
type Unit struct {
	Siruta     int64
	Name       string
	CountyCode string
	Level      UnitLevel
	Population int64
}

// UnitRepository supplies administrative units from reference data.
type UnitRepository interface {
	AllUnits(ctx context.Context) ([]Unit, error)
	UnitsByCounty(ctx context.Context, countyCodes []string) ([]Unit, error)
	UnitsBySiruta(ctx context.Context, sirutaCodes []int64) ([]Unit, error)
	// UnitsByEntityCIF resolves the home units of reporting entities.
	UnitsByEntityCIF(ctx context.Context, cifs []string) ([]Unit, error)
}

// Resolver computes population denominators from reference data.
type Resolver struct {
	units UnitRepository
}

func NewResolver(units UnitRepository) *Resolver {
	return &Resolver{units: units}
}

// Denominator resolves the per-capita denominator for the given filter.
//
// Without a unit selection it returns the country total: the sum of
// county-level populations, with the capital read from its municipal unit.
// With a selection it returns the population of the matching units,
// de-duplicated so a sub-unit is not counted again when its county is
// already selected.
func (r *Resolver) Denominator(ctx context.Context, filter core.ReportFilter) (decimal.Decimal, error) {
	if !filter.HasUnitSelection() {
		return r.countryPopulation(ctx)
	}
	return r.selectionPopulation(ctx, filter)
}

func (r *Resolver) countryPopulation(ctx context.Context) (decimal.Decimal, error) {
	units, err := r.units.AllUnits(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("list administrative units: %w", err)
	}

	var total int64
	for _, u := range units {
		switch {
		case u.CountyCode == CapitalCountyCode:
			if u.Level == LevelMunicipality {
				total += u.Population
			}
		case u.Level == LevelCounty:
			total += u.Population
		}
	}
	return decimal.NewFromInt(total), nil
}

func (r *Resolver) selectionPopulation(ctx context.Context, filter core.ReportFilter) (decimal.Decimal, error) {
	selectedCounties := make(map[string]bool, len(filter.CountyCodes))
	for _, code := range filter.CountyCodes {
		selectedCounties[code] = true
	}

	var total int64
	counted := make(map[int64]bool)

	if len(filter.CountyCodes) > 0 {
		units, err := r.units.UnitsByCounty(ctx, filter.CountyCodes)
		if err != nil {
			return decimal.Zero, fmt.Errorf("units by county: %w", err)
		}
		for _, u := range units {
			countyWide := u.Level == LevelCounty ||
				(u.CountyCode == CapitalCountyCode && u.Level == LevelMunicipality)
			if !countyWide || counted[u.Siruta] {
				continue
			}
			counted[u.Siruta] = true
			total += u.Population
		}
	}

	addUnits := func(units []Unit) {
		for _, u := range units {
			// Already covered by a selected county.
			if selectedCounties[u.CountyCode] || counted[u.Siruta] {
				continue
			}
			counted[u.Siruta] = true
			total += u.Population
		}
	}

	if len(filter.UATSirutaCodes) > 0 {
		units, err := r.units.UnitsBySiruta(ctx, filter.UATSirutaCodes)
		if err != nil {
			return decimal.Zero, fmt.Errorf("units by siruta: %w", err)
		}
		addUnits(units)
	}

	if len(filter.EntityCIFs) > 0 {
		units, err := r.units.UnitsByEntityCIF(ctx, filter.EntityCIFs)
		if err != nil {
			return decimal.Zero, fmt.Errorf("units by entity: %w", err)
		}
		addUnits(units)
	}

	return decimal.NewFromInt(total), nil
}

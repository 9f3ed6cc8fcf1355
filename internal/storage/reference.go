package storage

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
	"bugetar/internal/population"
)

// FactorSeries loads one sparse factor series, splitting entries by the
// granularity of their period label. Unparseable labels are skipped rather
// than failing the whole series.
func (r *SQLiteRepository) FactorSeries(ctx context.Context, name string) (core.FactorDataset, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT period_label, value FROM factor_series WHERE series = ?", name)
	if err != nil {
		return core.FactorDataset{}, fmt.Errorf("query factor series %s: %w", name, err)
	}
	defer rows.Close()

	ds := core.FactorDataset{
		Yearly:    make(core.PeriodFactorMap),
		Quarterly: make(core.PeriodFactorMap),
		Monthly:   make(core.PeriodFactorMap),
	}
	for rows.Next() {
		var label, raw string
		if err := rows.Scan(&label, &raw); err != nil {
			return core.FactorDataset{}, fmt.Errorf("scan factor entry: %w", err)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return core.FactorDataset{}, fmt.Errorf("parse factor value %q: %w", raw, err)
		}
		freq, _, err := core.ParsePeriodLabel(label)
		if err != nil {
			continue
		}
		switch freq {
		case core.FrequencyMonth:
			ds.Monthly[label] = value
		case core.FrequencyQuarter:
			ds.Quarterly[label] = value
		default:
			ds.Yearly[label] = value
		}
	}
	if err := rows.Err(); err != nil {
		return core.FactorDataset{}, fmt.Errorf("iterate factor series %s: %w", name, err)
	}
	return ds, nil
}

const unitColumns = "siruta, name, county_code, level, population"

func (r *SQLiteRepository) scanUnits(ctx context.Context, query string, args ...any) ([]population.Unit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query administrative units: %w", err)
	}
	defer rows.Close()

	var units []population.Unit
	for rows.Next() {
		var u population.Unit
		if err := rows.Scan(&u.Siruta, &u.Name, &u.CountyCode, &u.Level, &u.Population); err != nil {
			return nil, fmt.Errorf("scan administrative unit: %w", err)
		}
		units = append(units, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate administrative units: %w", err)
	}
	return units, nil
}

func (r *SQLiteRepository) AllUnits(ctx context.Context) ([]population.Unit, error) {
	return r.scanUnits(ctx,
		"SELECT "+unitColumns+" FROM administrative_units ORDER BY siruta")
}

func (r *SQLiteRepository) UnitsByCounty(ctx context.Context, countyCodes []string) ([]population.Unit, error) {
	if len(countyCodes) == 0 {
		return nil, nil
	}
	args := make([]any, len(countyCodes))
	for i, code := range countyCodes {
		args[i] = code
	}
	return r.scanUnits(ctx,
		"SELECT "+unitColumns+" FROM administrative_units WHERE county_code IN ("+
			placeholders(len(countyCodes))+") ORDER BY siruta", args...)
}

func (r *SQLiteRepository) UnitsBySiruta(ctx context.Context, sirutaCodes []int64) ([]population.Unit, error) {
	if len(sirutaCodes) == 0 {
		return nil, nil
	}
	args := make([]any, len(sirutaCodes))
	for i, code := range sirutaCodes {
		args[i] = code
	}
	return r.scanUnits(ctx,
		"SELECT "+unitColumns+" FROM administrative_units WHERE siruta IN ("+
			placeholders(len(sirutaCodes))+") ORDER BY siruta", args...)
}

// UnitsByEntityCIF resolves the home units of reporting entities through the
// line items they published.
func (r *SQLiteRepository) UnitsByEntityCIF(ctx context.Context, cifs []string) ([]population.Unit, error) {
	if len(cifs) == 0 {
		return nil, nil
	}
	args := make([]any, len(cifs))
	for i, cif := range cifs {
		args[i] = cif
	}
	return r.scanUnits(ctx, `
		SELECT DISTINCT u.siruta, u.name, u.county_code, u.level, u.population
		FROM administrative_units u
		JOIN budget_line_items b ON b.uat_siruta = u.siruta
		WHERE b.entity_cif IN (`+placeholders(len(cifs))+`)
		ORDER BY u.siruta`, args...)
}

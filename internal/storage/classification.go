package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

// lineItemFilter renders the WHERE clause for a report filter. Defaulting of
// NULL economic codes happens in the SELECT list, not here.
func lineItemFilter(filter core.ReportFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if filter.StartYear > 0 {
		conds = append(conds, "b.year >= ?")
		args = append(args, filter.StartYear)
	}
	if filter.EndYear > 0 {
		conds = append(conds, "b.year <= ?")
		args = append(args, filter.EndYear)
	}
	if len(filter.EntityCIFs) > 0 {
		conds = append(conds, "b.entity_cif IN ("+placeholders(len(filter.EntityCIFs))+")")
		for _, cif := range filter.EntityCIFs {
			args = append(args, cif)
		}
	}
	if len(filter.CountyCodes) > 0 {
		conds = append(conds, "b.county_code IN ("+placeholders(len(filter.CountyCodes))+")")
		for _, code := range filter.CountyCodes {
			args = append(args, code)
		}
	}
	if len(filter.UATSirutaCodes) > 0 {
		conds = append(conds, "b.uat_siruta IN ("+placeholders(len(filter.UATSirutaCodes))+")")
		for _, code := range filter.UATSirutaCodes {
			args = append(args, code)
		}
	}
	if len(filter.FundingSources) > 0 {
		conds = append(conds, "b.funding_source IN ("+placeholders(len(filter.FundingSources))+")")
		for _, src := range filter.FundingSources {
			args = append(args, src)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// ClassificationRows fetches per classification-and-year sums for the filter,
// ordered deterministically. Rows without an economic classification are
// reported under the sentinel unknown code. Summation happens here, not in
// SQL: SQLite SUM runs in float arithmetic regardless of the declared column
// type, while the amounts are stored as exact decimal text.
func (r *SQLiteRepository) ClassificationRows(ctx context.Context, filter core.ReportFilter) ([]core.ClassificationPeriodRow, error) {
	where, args := lineItemFilter(filter)

	query := fmt.Sprintf(`
		SELECT b.functional_code,
		       b.functional_name,
		       COALESCE(b.economic_code, ?) AS econ_code,
		       COALESCE(b.economic_name, ?) AS econ_name,
		       b.year,
		       b.amount
		FROM budget_line_items b
		%s`, where)

	queryArgs := append([]any{core.UnknownEconomicCode, core.UnknownEconomicName}, args...)

	dbRows, err := r.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("query classification rows: %w", err)
	}
	defer dbRows.Close()

	type rowKey struct {
		functional string
		economic   string
		year       int
	}
	acc := make(map[rowKey]*core.ClassificationPeriodRow)
	for dbRows.Next() {
		var (
			funcCode, funcName, econCode, econName, amount string
			year                                           int
		)
		if err := dbRows.Scan(&funcCode, &funcName, &econCode, &econName, &year, &amount); err != nil {
			return nil, fmt.Errorf("scan classification row: %w", err)
		}
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}

		key := rowKey{functional: funcCode, economic: econCode, year: year}
		row, ok := acc[key]
		if !ok {
			row = &core.ClassificationPeriodRow{
				FunctionalCode: funcCode,
				FunctionalName: funcName,
				EconomicCode:   econCode,
				EconomicName:   econName,
				Year:           year,
			}
			acc[key] = row
		}
		row.Amount = row.Amount.Add(value)
		row.Count++
	}
	if err := dbRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classification rows: %w", err)
	}

	rows := make([]core.ClassificationPeriodRow, 0, len(acc))
	for _, row := range acc {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].FunctionalCode != rows[j].FunctionalCode {
			return rows[i].FunctionalCode < rows[j].FunctionalCode
		}
		if rows[i].EconomicCode != rows[j].EconomicCode {
			return rows[i].EconomicCode < rows[j].EconomicCode
		}
		return rows[i].Year < rows[j].Year
	})
	return rows, nil
}

// YearSpan reports the [min, max] year present for the filter; ok is false
// when no line items match.
func (r *SQLiteRepository) YearSpan(ctx context.Context, filter core.ReportFilter) (int, int, bool, error) {
	where, args := lineItemFilter(filter)

	query := fmt.Sprintf("SELECT MIN(b.year), MAX(b.year) FROM budget_line_items b %s", where)

	var minYear, maxYear sql.NullInt64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&minYear, &maxYear); err != nil {
		return 0, 0, false, fmt.Errorf("query year span: %w", err)
	}
	if !minYear.Valid || !maxYear.Valid {
		return 0, 0, false, nil
	}
	return int(minYear.Int64), int(maxYear.Int64), true, nil
}

// NormalizedAggregate runs the whole normalize-aggregate-sort-paginate
// pipeline inside SQLite. The multiplier table must be precomputed by the
// caller: sorting or limiting on raw amounts would pick the wrong top groups
// whenever normalization changes relative order. A year missing from the
// table multiplies by 1, matching the identity policy for missing factors.
func (r *SQLiteRepository) NormalizedAggregate(ctx context.Context, filter core.ReportFilter, multipliers core.PeriodFactorMap, page core.Pagination) ([]core.AggregatedClassification, int, error) {
	where, whereArgs := lineItemFilter(filter)

	var (
		prefix     string
		prefixArgs []any
		join       string
		amountExpr = "SUM(b.amount)"
	)
	if len(multipliers) > 0 {
		values, valueArgs, err := multiplierValues(multipliers)
		if err != nil {
			return nil, 0, err
		}
		prefix = "WITH multipliers(year, factor) AS (VALUES " + values + ") "
		prefixArgs = valueArgs
		join = "LEFT JOIN multipliers m ON m.year = b.year"
		amountExpr = "SUM(b.amount * COALESCE(m.factor, 1))"
	}

	having, havingArgs := thresholdClause(filter)

	grouped := fmt.Sprintf(`
		SELECT b.functional_code AS func_code,
		       MAX(b.functional_name) AS func_name,
		       COALESCE(b.economic_code, ?) AS econ_code,
		       COALESCE(MAX(b.economic_name), ?) AS econ_name,
		       %s AS total,
		       COUNT(*) AS items
		FROM budget_line_items b
		%s
		%s
		GROUP BY func_code, econ_code
		%s`, amountExpr, join, where, having)

	groupedArgs := append(append([]any{}, prefixArgs...), core.UnknownEconomicCode, core.UnknownEconomicName)
	groupedArgs = append(groupedArgs, whereArgs...)
	groupedArgs = append(groupedArgs, havingArgs...)

	countQuery := prefix + "SELECT COUNT(*) FROM (" + grouped + ")"
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, groupedArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count aggregated classifications: %w", err)
	}

	pageQuery := prefix + grouped +
		" ORDER BY total DESC, func_code ASC, econ_code ASC LIMIT ? OFFSET ?"
	pageArgs := append(append([]any{}, groupedArgs...), page.Limit, page.Offset)

	dbRows, err := r.db.QueryContext(ctx, pageQuery, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query aggregated classifications: %w", err)
	}
	defer dbRows.Close()

	var items []core.AggregatedClassification
	for dbRows.Next() {
		var (
			item   core.AggregatedClassification
			amount string
		)
		if err := dbRows.Scan(&item.FunctionalCode, &item.FunctionalName,
			&item.EconomicCode, &item.EconomicName, &amount, &item.Count); err != nil {
			return nil, 0, fmt.Errorf("scan aggregated classification: %w", err)
		}
		item.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, 0, fmt.Errorf("parse aggregated amount %q: %w", amount, err)
		}
		items = append(items, item)
	}
	if err := dbRows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate aggregated classifications: %w", err)
	}
	return items, total, nil
}

// multiplierValues renders the VALUES list backing the CTE, in year order so
// the generated SQL is stable for identical inputs.
func multiplierValues(multipliers core.PeriodFactorMap) (string, []any, error) {
	labels := make([]string, 0, len(multipliers))
	for label := range multipliers {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var (
		parts []string
		args  []any
	)
	for _, label := range labels {
		year, err := core.PeriodYear(label)
		if err != nil {
			return "", nil, fmt.Errorf("multiplier table key: %w", err)
		}
		parts = append(parts, "(?, ?)")
		// Bind factors as float so SQLite compares and multiplies them with
		// numeric affinity.
		args = append(args, year, multipliers[label].InexactFloat64())
	}
	return strings.Join(parts, ", "), args, nil
}

func thresholdClause(filter core.ReportFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.AggregateMinAmount != nil {
		conds = append(conds, "total >= ?")
		args = append(args, filter.AggregateMinAmount.InexactFloat64())
	}
	if filter.AggregateMaxAmount != nil {
		conds = append(conds, "total <= ?")
		args = append(args, filter.AggregateMaxAmount.InexactFloat64())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "HAVING " + strings.Join(conds, " AND "), args
}

// Request parsing for the classifications endpoint. Query parameters map
// one-to-one onto the report filter, the normalization config and the page.
package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
)

// ParseReportFilter extracts the dimensional filter from query parameters.
// List parameters accept comma-separated values and may repeat.
func ParseReportFilter(query url.Values) (core.ReportFilter, error) {
	var filter core.ReportFilter

	if v := strings.TrimSpace(query.Get("start_year")); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return core.ReportFilter{}, fmt.Errorf("invalid start_year %q", v)
		}
		filter.StartYear = year
	}
	if v := strings.TrimSpace(query.Get("end_year")); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			return core.ReportFilter{}, fmt.Errorf("invalid end_year %q", v)
		}
		filter.EndYear = year
	}
	if filter.StartYear > 0 && filter.EndYear > 0 && filter.StartYear > filter.EndYear {
		return core.ReportFilter{}, fmt.Errorf("start_year %d after end_year %d", filter.StartYear, filter.EndYear)
	}

	filter.EntityCIFs = listParam(query, "entity_cif")
	filter.CountyCodes = listParam(query, "county")
	filter.FundingSources = listParam(query, "funding_source")

	for _, raw := range listParam(query, "uat_siruta") {
		code, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.ReportFilter{}, fmt.Errorf("invalid uat_siruta %q", raw)
		}
		filter.UATSirutaCodes = append(filter.UATSirutaCodes, code)
	}

	var err error
	filter.AggregateMinAmount, err = amountParam(query, "min_amount")
	if err != nil {
		return core.ReportFilter{}, err
	}
	filter.AggregateMaxAmount, err = amountParam(query, "max_amount")
	if err != nil {
		return core.ReportFilter{}, err
	}

	return filter, nil
}

// ParseNormalization extracts the normalization config. Absent parameters
// fall back to raw RON totals.
func ParseNormalization(query url.Values) (core.NormalizationConfig, error) {
	norm := core.NormalizationConfig{
		Mode:     core.ModeTotal,
		Currency: core.CurrencyRON,
	}

	if v := strings.TrimSpace(query.Get("mode")); v != "" {
		norm.Mode = core.NormalizationMode(v)
	}
	if v := strings.TrimSpace(query.Get("currency")); v != "" {
		norm.Currency = core.Currency(strings.ToUpper(v))
	}
	if v := strings.TrimSpace(query.Get("inflation_adjusted")); v != "" {
		adjusted, err := strconv.ParseBool(v)
		if err != nil {
			return core.NormalizationConfig{}, fmt.Errorf("invalid inflation_adjusted %q", v)
		}
		norm.InflationAdjusted = adjusted
	}

	if err := norm.Validate(); err != nil {
		return core.NormalizationConfig{}, err
	}
	return norm, nil
}

// ParsePagination extracts limit and offset. Values are clamped later by the
// service, so only syntax is rejected here.
func ParsePagination(query url.Values) (core.Pagination, error) {
	page := core.Pagination{Limit: core.MaxPageLimit}

	if v := strings.TrimSpace(query.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return core.Pagination{}, fmt.Errorf("invalid limit %q", v)
		}
		page.Limit = limit
	}
	if v := strings.TrimSpace(query.Get("offset")); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return core.Pagination{}, fmt.Errorf("invalid offset %q", v)
		}
		page.Offset = offset
	}

	return page, nil
}

func listParam(query url.Values, key string) []string {
	var values []string
	for _, raw := range query[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				values = append(values, part)
			}
		}
	}
	return values
}

func amountParam(query url.Values, key string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return nil, nil
	}
	amount, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, v)
	}
	return &amount, nil
}

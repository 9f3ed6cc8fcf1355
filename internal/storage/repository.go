// Package storage is the SQLite persistence layer: budget line items, factor
// series and administrative reference data, plus the store-delegated
// aggregation query.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LineItem is one raw budget execution line as ingested from upstream
// publications. The economic classification may be absent; it is defaulted at
// read time, not at write time, so the raw data stays faithful.
type LineItem struct {
	EntityCIF      string
	EntityName     string
	CountyCode     string
	UATSiruta      *int64
	FundingSource  string
	FunctionalCode string
	FunctionalName string
	EconomicCode   *string
	EconomicName   *string
	Year           int
	Amount         decimal.Decimal
}

// InsertLineItems writes a batch of raw line items in one transaction.
func (r *SQLiteRepository) InsertLineItems(ctx context.Context, items []LineItem) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO budget_line_items
			(entity_cif, entity_name, county_code, uat_siruta, funding_source,
			 functional_code, functional_name, economic_code, economic_name, year, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		_, err := stmt.ExecContext(ctx,
			item.EntityCIF, item.EntityName, item.CountyCode, item.UATSiruta,
			item.FundingSource, item.FunctionalCode, item.FunctionalName,
			item.EconomicCode, item.EconomicName, item.Year, item.Amount.String())
		if err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit line items: %w", err)
	}

	slog.InfoContext(ctx, "Line items inserted", "count", len(items))
	return nil
}

// UpsertFactorEntry stores one factor series observation.
func (r *SQLiteRepository) UpsertFactorEntry(ctx context.Context, series, periodLabel string, value decimal.Decimal) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO factor_series (series, period_label, value) VALUES (?, ?, ?)
		ON CONFLICT (series, period_label) DO UPDATE SET value = excluded.value`,
		series, periodLabel, value.String())
	if err != nil {
		return fmt.Errorf("upsert factor entry: %w", err)
	}
	return nil
}

// UpsertUnit stores one administrative unit reference row.
func (r *SQLiteRepository) UpsertUnit(ctx context.Context, siruta int64, name, countyCode, level string, pop int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO administrative_units (siruta, name, county_code, level, population)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (siruta) DO UPDATE SET
			name = excluded.name, county_code = excluded.county_code,
			level = excluded.level, population = excluded.population`,
		siruta, name, countyCode, level, pop)
	if err != nil {
		return fmt.Errorf("upsert administrative unit: %w", err)
	}
	return nil
}

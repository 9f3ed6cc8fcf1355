// Package worker turns ingestion messages into storage writes. It validates
// and converts records here so malformed payloads are rejected before any
// transaction starts.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"bugetar/internal/amqp"
	"bugetar/internal/core"
	applog "bugetar/internal/log"
	"bugetar/internal/storage"
)

// IngestStore is the storage surface the worker writes to.
type IngestStore interface {
	InsertLineItems(ctx context.Context, items []storage.LineItem) error
	UpsertFactorEntry(ctx context.Context, series, periodLabel string, value decimal.Decimal) error
	UpsertUnit(ctx context.Context, siruta int64, name, countyCode, level string, population int64) error
}

type IngestWorker struct {
	store IngestStore
	// chunkSize bounds how many line items one insert transaction carries.
	chunkSize int
}

func NewIngestWorker(store IngestStore, chunkSize int) *IngestWorker {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &IngestWorker{store: store, chunkSize: chunkSize}
}

// HandleLineItemBatch converts and stores one batch. The whole batch is
// rejected when any record is invalid; partial writes would be invisible to
// the publisher. Valid batches are inserted in chunks to keep transactions
// bounded.
func (w *IngestWorker) HandleLineItemBatch(ctx context.Context, msg *amqp.LineItemBatchMessage) error {
	items := make([]storage.LineItem, 0, len(msg.Items))
	for i, rec := range msg.Items {
		item, err := convertLineItem(rec)
		if err != nil {
			return fmt.Errorf("batch %s item %d: %w", msg.Source, i, err)
		}
		items = append(items, item)
	}

	for start := 0; start < len(items); start += w.chunkSize {
		end := start + w.chunkSize
		if end > len(items) {
			end = len(items)
		}
		if err := w.store.InsertLineItems(ctx, items[start:end]); err != nil {
			return fmt.Errorf("store batch %s: %w", msg.Source, err)
		}
	}

	slog.InfoContext(ctx, "Line item batch ingested",
		applog.FieldSource, msg.Source, applog.FieldItemCount, len(items))
	return nil
}

// HandleReferenceUpdate stores factor series observations and administrative
// unit rows.
func (w *IngestWorker) HandleReferenceUpdate(ctx context.Context, msg *amqp.ReferenceUpdateMessage) error {
	for _, rec := range msg.Factors {
		value, err := decimal.NewFromString(rec.Value)
		if err != nil {
			return fmt.Errorf("factor %s/%s: parse value %q: %w", rec.Series, rec.PeriodLabel, rec.Value, err)
		}
		if _, _, err := core.ParsePeriodLabel(rec.PeriodLabel); err != nil {
			return fmt.Errorf("factor %s: %w", rec.Series, err)
		}
		if err := w.store.UpsertFactorEntry(ctx, rec.Series, rec.PeriodLabel, value); err != nil {
			return fmt.Errorf("store factor %s/%s: %w", rec.Series, rec.PeriodLabel, err)
		}
	}

	for _, rec := range msg.Units {
		if rec.Siruta <= 0 {
			return fmt.Errorf("unit %q: invalid siruta %d", rec.Name, rec.Siruta)
		}
		if err := w.store.UpsertUnit(ctx, rec.Siruta, rec.Name, rec.CountyCode, rec.Level, rec.Population); err != nil {
			return fmt.Errorf("store unit %d: %w", rec.Siruta, err)
		}
	}

	slog.InfoContext(ctx, "Reference update ingested",
		"factors", len(msg.Factors), "units", len(msg.Units))
	return nil
}

func convertLineItem(rec amqp.LineItemRecord) (storage.LineItem, error) {
	if rec.EntityCIF == "" {
		return storage.LineItem{}, fmt.Errorf("missing entity CIF")
	}
	if rec.FunctionalCode == "" {
		return storage.LineItem{}, fmt.Errorf("missing functional code")
	}
	if rec.Year <= 0 {
		return storage.LineItem{}, fmt.Errorf("invalid year %d", rec.Year)
	}
	amount, err := decimal.NewFromString(rec.Amount)
	if err != nil {
		return storage.LineItem{}, fmt.Errorf("parse amount %q: %w", rec.Amount, err)
	}

	return storage.LineItem{
		EntityCIF:      rec.EntityCIF,
		EntityName:     rec.EntityName,
		CountyCode:     rec.CountyCode,
		UATSiruta:      rec.UATSiruta,
		FundingSource:  rec.FundingSource,
		FunctionalCode: rec.FunctionalCode,
		FunctionalName: rec.FunctionalName,
		EconomicCode:   rec.EconomicCode,
		EconomicName:   rec.EconomicName,
		Year:           rec.Year,
		Amount:         amount,
	}, nil
}

package worker

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"bugetar/internal/amqp"
	"bugetar/internal/storage"
)

type fakeIngestStore struct {
	items   []storage.LineItem
	inserts int
	factors map[string]decimal.Decimal
	units   map[int64]int64
	fail    error
}

func newFakeIngestStore() *fakeIngestStore {
	return &fakeIngestStore{
		factors: make(map[string]decimal.Decimal),
		units:   make(map[int64]int64),
	}
}

func (s *fakeIngestStore) InsertLineItems(_ context.Context, items []storage.LineItem) error {
	if s.fail != nil {
		return s.fail
	}
	s.inserts++
	s.items = append(s.items, items...)
	return nil
}

func (s *fakeIngestStore) UpsertFactorEntry(_ context.Context, series, periodLabel string, value decimal.Decimal) error {
	if s.fail != nil {
		return s.fail
	}
	s.factors[series+"/"+periodLabel] = value
	return nil
}

func (s *fakeIngestStore) UpsertUnit(_ context.Context, siruta int64, _, _, _ string, population int64) error {
	if s.fail != nil {
		return s.fail
	}
	s.units[siruta] = population
	return nil
}

func TestHandleLineItemBatch(t *testing.T) {
	store := newFakeIngestStore()
	w := NewIngestWorker(store, 500)

	econ := "10"
	msg := &amqp.LineItemBatchMessage{
		Source: "mfinante-2024",
		Items: []amqp.LineItemRecord{
			{EntityCIF: "4305857", FunctionalCode: "65", EconomicCode: &econ, Year: 2024, Amount: "1234.56"},
			{EntityCIF: "2864518", FunctionalCode: "67", Year: 2024, Amount: "-40"},
		},
	}

	if err := w.HandleLineItemBatch(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.items) != 2 {
		t.Fatalf("stored %d items, want 2", len(store.items))
	}
	if !store.items[0].Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("amount = %s", store.items[0].Amount)
	}
	if store.items[1].EconomicCode != nil {
		t.Errorf("absent economic code must stay nil")
	}
}

func TestHandleLineItemBatch_RejectsBadRecords(t *testing.T) {
	tests := []struct {
		name string
		rec  amqp.LineItemRecord
		want string
	}{
		{"missing cif", amqp.LineItemRecord{FunctionalCode: "65", Year: 2024, Amount: "1"}, "entity CIF"},
		{"missing functional code", amqp.LineItemRecord{EntityCIF: "1", Year: 2024, Amount: "1"}, "functional code"},
		{"bad year", amqp.LineItemRecord{EntityCIF: "1", FunctionalCode: "65", Amount: "1"}, "invalid year"},
		{"bad amount", amqp.LineItemRecord{EntityCIF: "1", FunctionalCode: "65", Year: 2024, Amount: "12,5"}, "parse amount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeIngestStore()
			w := NewIngestWorker(store, 500)

			err := w.HandleLineItemBatch(context.Background(),
				&amqp.LineItemBatchMessage{Source: "test", Items: []amqp.LineItemRecord{tt.rec}})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want mention of %q", err, tt.want)
			}
			if len(store.items) != 0 {
				t.Errorf("invalid batch must not reach storage")
			}
		})
	}
}

func TestHandleLineItemBatch_ChunksLargeBatches(t *testing.T) {
	store := newFakeIngestStore()
	w := NewIngestWorker(store, 2)

	items := make([]amqp.LineItemRecord, 5)
	for i := range items {
		items[i] = amqp.LineItemRecord{EntityCIF: "1", FunctionalCode: "65", Year: 2024, Amount: "10"}
	}

	err := w.HandleLineItemBatch(context.Background(),
		&amqp.LineItemBatchMessage{Source: "bulk", Items: items})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.items) != 5 {
		t.Errorf("stored %d items, want 5", len(store.items))
	}
	if store.inserts != 3 {
		t.Errorf("insert calls = %d, want 3 chunks of at most 2", store.inserts)
	}
}

func TestHandleReferenceUpdate(t *testing.T) {
	store := newFakeIngestStore()
	w := NewIngestWorker(store, 500)

	msg := &amqp.ReferenceUpdateMessage{
		Factors: []amqp.FactorEntryRecord{
			{Series: "eur", PeriodLabel: "2024-Q1", Value: "4.97"},
			{Series: "cpi", PeriodLabel: "2024", Value: "1.05"},
		},
		Units: []amqp.UnitRecord{
			{Siruta: 54975, Name: "Cluj-Napoca", CountyCode: "CJ", Level: "municipality", Population: 286598},
		},
	}

	if err := w.HandleReferenceUpdate(context.Background(), msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.factors) != 2 || len(store.units) != 1 {
		t.Fatalf("stored factors=%d units=%d", len(store.factors), len(store.units))
	}
	if store.units[54975] != 286598 {
		t.Errorf("unit population = %d", store.units[54975])
	}
}

func TestHandleReferenceUpdate_RejectsBadData(t *testing.T) {
	store := newFakeIngestStore()
	w := NewIngestWorker(store, 500)
	ctx := context.Background()

	err := w.HandleReferenceUpdate(ctx, &amqp.ReferenceUpdateMessage{
		Factors: []amqp.FactorEntryRecord{{Series: "eur", PeriodLabel: "Q1-2024", Value: "4.97"}},
	})
	if err == nil {
		t.Error("expected error for malformed period label")
	}

	err = w.HandleReferenceUpdate(ctx, &amqp.ReferenceUpdateMessage{
		Units: []amqp.UnitRecord{{Siruta: 0, Name: "nowhere"}},
	})
	if err == nil {
		t.Error("expected error for invalid siruta")
	}
}

package amqp

import (
	"errors"
	"testing"
	"time"
)

func TestLineItemBatchMessage_JSON(t *testing.T) {
	siruta := int64(54975)
	econ := "10"
	msg := &LineItemBatchMessage{
		Source: "mfinante-2024-q4",
		Items: []LineItemRecord{
			{
				EntityCIF:      "4305857",
				CountyCode:     "CJ",
				UATSiruta:      &siruta,
				FunctionalCode: "65",
				EconomicCode:   &econ,
				Year:           2024,
				Amount:         "1234.56",
			},
			{
				EntityCIF:      "2864518",
				FunctionalCode: "67",
				Year:           2024,
				Amount:         "-40",
			},
		},
		Timestamp: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := LineItemBatchMessageFromJSON(body)
	if err != nil {
		t.Fatalf("LineItemBatchMessageFromJSON() error = %v", err)
	}

	if parsed.Source != msg.Source || len(parsed.Items) != 2 {
		t.Fatalf("round trip lost data: %+v", parsed)
	}
	first := parsed.Items[0]
	if first.Amount != "1234.56" || first.UATSiruta == nil || *first.UATSiruta != siruta {
		t.Errorf("first item wrong: %+v", first)
	}
	second := parsed.Items[1]
	if second.EconomicCode != nil {
		t.Errorf("absent economic code must stay nil, got %q", *second.EconomicCode)
	}
	if second.Amount != "-40" {
		t.Errorf("negative amount wrong: %q", second.Amount)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestLineItemBatchMessage_InvalidJSON(t *testing.T) {
	if _, err := LineItemBatchMessageFromJSON([]byte(`{"items": "nope"}`)); err == nil {
		t.Error("expected decode failure for malformed items")
	}
}

func TestNewLineItemBatchMessage(t *testing.T) {
	msg := NewLineItemBatchMessage("manual-upload", nil)
	if msg.Source != "manual-upload" {
		t.Errorf("source = %q", msg.Source)
	}
	if msg.Timestamp.IsZero() || time.Since(msg.Timestamp) > time.Second {
		t.Errorf("timestamp not recent: %v", msg.Timestamp)
	}
}

func TestReferenceUpdateMessage_JSON(t *testing.T) {
	msg := NewReferenceUpdateMessage(
		[]FactorEntryRecord{{Series: "eur", PeriodLabel: "2024-Q1", Value: "4.97"}},
		[]UnitRecord{{Siruta: 54975, Name: "Cluj-Napoca", CountyCode: "CJ", Level: "municipality", Population: 286598}},
	)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := ReferenceUpdateMessageFromJSON(body)
	if err != nil {
		t.Fatalf("ReferenceUpdateMessageFromJSON() error = %v", err)
	}

	if len(parsed.Factors) != 1 || parsed.Factors[0].PeriodLabel != "2024-Q1" {
		t.Errorf("factors wrong: %+v", parsed.Factors)
	}
	if len(parsed.Units) != 1 || parsed.Units[0].Siruta != 54975 {
		t.Errorf("units wrong: %+v", parsed.Units)
	}
}

func TestDecodeErrorUnwraps(t *testing.T) {
	inner := errors.New("bad payload")
	err := &decodeError{inner}
	if !errors.Is(err, inner) {
		t.Error("decodeError must unwrap to its cause")
	}
}

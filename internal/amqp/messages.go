package amqp

import (
	"encoding/json"
	"time"
)

// LineItemRecord is one budget execution line as published upstream. Amounts
// travel as decimal strings so no precision is lost in transit.
type LineItemRecord struct {
	EntityCIF      string  `json:"entity_cif"`
	EntityName     string  `json:"entity_name,omitempty"`
	CountyCode     string  `json:"county_code,omitempty"`
	UATSiruta      *int64  `json:"uat_siruta,omitempty"`
	FundingSource  string  `json:"funding_source,omitempty"`
	FunctionalCode string  `json:"functional_code"`
	FunctionalName string  `json:"functional_name,omitempty"`
	EconomicCode   *string `json:"economic_code,omitempty"`
	EconomicName   *string `json:"economic_name,omitempty"`
	Year           int     `json:"year"`
	Amount         string  `json:"amount"`
}

// LineItemBatchMessage carries one batch of raw line items from an upstream
// publication run.
type LineItemBatchMessage struct {
	Source    string           `json:"source"`
	Items     []LineItemRecord `json:"items"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewLineItemBatchMessage(source string, items []LineItemRecord) *LineItemBatchMessage {
	return &LineItemBatchMessage{
		Source:    source,
		Items:     items,
		Timestamp: time.Now(),
	}
}

func (m *LineItemBatchMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LineItemBatchMessageFromJSON(data []byte) (*LineItemBatchMessage, error) {
	var msg LineItemBatchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// FactorEntryRecord is one observation of a normalization factor series.
type FactorEntryRecord struct {
	Series      string `json:"series"`
	PeriodLabel string `json:"period_label"`
	Value       string `json:"value"`
}

// UnitRecord is one administrative unit reference row.
type UnitRecord struct {
	Siruta     int64  `json:"siruta"`
	Name       string `json:"name"`
	CountyCode string `json:"county_code"`
	Level      string `json:"level"`
	Population int64  `json:"population"`
}

// ReferenceUpdateMessage carries factor series observations and administrative
// unit rows. Either list may be empty.
type ReferenceUpdateMessage struct {
	Factors   []FactorEntryRecord `json:"factors,omitempty"`
	Units     []UnitRecord        `json:"units,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

func NewReferenceUpdateMessage(factors []FactorEntryRecord, units []UnitRecord) *ReferenceUpdateMessage {
	return &ReferenceUpdateMessage{
		Factors:   factors,
		Units:     units,
		Timestamp: time.Now(),
	}
}

func (m *ReferenceUpdateMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReferenceUpdateMessageFromJSON(data []byte) (*ReferenceUpdateMessage, error) {
	var msg ReferenceUpdateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

package model

import "time"

// OrderRecord is one row of the exchange order book snapshot for a
// processing window. SourceFile names the order-book file the row came
// from; duplicate exchange ids across files are resolved at ingest.
type OrderRecord struct {
	ExchangeOrderID string    `json:"exchange_order_id"`
	ClientID        string    `json:"client_id"`
	DealerID        string    `json:"dealer_id"`
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Symbol          string    `json:"symbol,omitempty"`
	Quantity        string    `json:"quantity,omitempty"`
	Price           string    `json:"price,omitempty"`
	Side            string    `json:"side,omitempty"`
	SourceFile      string    `json:"source_file"`
}

// CallMeta is the per-recording metadata extracted from the telephony
// export: resolved phone number, registry status, and call timing.
type CallMeta struct {
	Filename    string    `json:"filename"`
	PhoneNumber string    `json:"phone_number"`
	Registered  bool      `json:"registered"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	DurationSec int       `json:"duration_sec"`
	ClientIDs   []string  `json:"client_ids,omitempty"`
}

package model

import "time"

// Unknown is the explicit marker written into a ResolvedRecord field when
// the joining side had no value. The aggregator never errors on a missing
// side; it degrades to this marker.
const Unknown = ""

// ResolvedRecord is the denormalized audit row merging order, match,
// classification, extraction, and call-metadata data. It is a reporting
// view, not a source of truth; it is rebuilt from scratch every run.
type ResolvedRecord struct {
	OrderID      string    `json:"order_id,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	DealerID     string    `json:"dealer_id,omitempty"`
	OrderStatus  string    `json:"order_status,omitempty"`
	OrderTime    time.Time `json:"order_time,omitzero"`
	Symbol       string    `json:"symbol,omitempty"`
	Quantity     string    `json:"quantity,omitempty"`
	Price        string    `json:"price,omitempty"`
	Side         string    `json:"side,omitempty"`
	SourceFile   string    `json:"source_file,omitempty"`

	CommID      string  `json:"comm_id,omitempty"`
	Channel     Channel `json:"channel,omitempty"`
	Subject     string  `json:"subject,omitempty"`
	PhoneNumber string  `json:"phone_number,omitempty"`
	Registered  string  `json:"registered,omitempty"` // "Y", "N", or empty
	Excerpt     string  `json:"excerpt,omitempty"`    // transcript or body excerpt

	Intent     Intent         `json:"intent,omitempty"`
	Rationale  string         `json:"rationale,omitempty"`
	MatchBasis MatchBasis     `json:"match_basis,omitempty"`
	MatchTier  ConfidenceTier `json:"match_tier,omitempty"`
	TimeDelta  string         `json:"time_delta,omitempty"`
}

// RunSummary is the user-visible outcome of one batch run.
type RunSummary struct {
	RunDate    string `json:"run_date"`
	Processed  int    `json:"processed"`
	Matched    int    `json:"matched"`
	Failed     int    `json:"failed"`
	Instructed int    `json:"instructions"`
}

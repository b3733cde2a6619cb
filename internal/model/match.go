package model

import "time"

// MatchBasis states how a communication was associated with an order.
type MatchBasis string

const (
	MatchExactID    MatchBasis = "exact_id"
	MatchTimeWindow MatchBasis = "time_window"
	MatchNone       MatchBasis = "none"
)

// ConfidenceTier is the discrete reliability ranking of a match.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierNone   ConfidenceTier = "none"
)

// MatchResult associates a communication with at most one order.
// TimeDelta is zero for exact-id matches and for non-matches.
type MatchResult struct {
	CommID    string         `json:"comm_id"`
	OrderID   string         `json:"order_id,omitempty"`
	Basis     MatchBasis     `json:"basis"`
	TimeDelta time.Duration  `json:"time_delta,omitempty"`
	Tier      ConfidenceTier `json:"tier"`
}

// Matched reports whether the communication resolved to an order.
func (m MatchResult) Matched() bool {
	return m.Basis != MatchNone && m.OrderID != ""
}

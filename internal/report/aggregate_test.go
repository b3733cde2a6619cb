package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northquay/surveil-cli/internal/model"
)

var runDate = time.Date(2025, 8, 7, 0, 0, 0, 0, time.UTC)

func classified(id string, ch model.Channel, intent model.Intent) model.ClassifiedCommunication {
	return model.ClassifiedCommunication{
		Comm: model.CommunicationRecord{
			ID:      id,
			Channel: ch,
			Subject: "subject " + id,
			Body:    "body of " + id,
		},
		Classification: model.ClassificationResult{
			CommID:    id,
			Intent:    intent,
			Rationale: "because",
		},
	}
}

func TestAggregateJoinsAllSides(t *testing.T) {
	comms := []model.ClassifiedCommunication{
		classified("call-1", model.ChannelCall, model.IntentInstruction),
	}
	matches := []model.MatchResult{{
		CommID:    "call-1",
		OrderID:   "ORD1",
		Basis:     model.MatchTimeWindow,
		TimeDelta: 90 * time.Second,
		Tier:      model.TierMedium,
	}}
	orders := []model.OrderRecord{{
		ExchangeOrderID: "ORD1",
		ClientID:        "C001",
		DealerID:        "KL01",
		Status:          "Executed",
		Timestamp:       runDate.Add(10 * time.Hour),
		SourceFile:      "OrderBook.csv",
	}}
	callMeta := []model.CallMeta{{
		Filename:    "call-1.wav",
		PhoneNumber: "9876543210",
		Registered:  true,
	}}

	rows := Aggregate(comms, matches, orders, callMeta)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "ORD1", r.OrderID)
	assert.Equal(t, "KL01", r.DealerID)
	assert.Equal(t, "call-1", r.CommID)
	assert.Equal(t, "9876543210", r.PhoneNumber)
	assert.Equal(t, "Y", r.Registered)
	assert.Equal(t, model.IntentInstruction, r.Intent)
	assert.Equal(t, model.MatchTimeWindow, r.MatchBasis)
	assert.Equal(t, "1m30s", r.TimeDelta)
	assert.Contains(t, r.Excerpt, "body of call-1")
}

func TestAggregateOrderWithoutEvidence(t *testing.T) {
	orders := []model.OrderRecord{{
		ExchangeOrderID: "ORD9",
		ClientID:        "C009",
	}}

	rows := Aggregate(nil, nil, orders, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "ORD9", rows[0].OrderID)
	// Missing sides degrade to empty markers, never an error.
	assert.Equal(t, model.Unknown, rows[0].CommID)
	assert.Equal(t, model.Unknown, rows[0].PhoneNumber)
	assert.Equal(t, model.Unknown, string(rows[0].Intent))
}

func TestAggregateUnmatchedCommunication(t *testing.T) {
	comms := []model.ClassifiedCommunication{
		classified("email-1", model.ChannelEmail, model.IntentOther),
	}
	matches := []model.MatchResult{{CommID: "email-1", Basis: model.MatchNone, Tier: model.TierNone}}

	rows := Aggregate(comms, matches, nil, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, model.Unknown, rows[0].OrderID)
	assert.Equal(t, "email-1", rows[0].CommID)
	assert.Equal(t, model.MatchNone, rows[0].MatchBasis)
}

func TestAggregateUnregisteredCall(t *testing.T) {
	comms := []model.ClassifiedCommunication{
		classified("call-2", model.ChannelCall, model.IntentOther),
	}
	callMeta := []model.CallMeta{{Filename: "call-2.wav", PhoneNumber: "9999999999", Registered: false}}

	rows := Aggregate(comms, nil, nil, callMeta)
	require.Len(t, rows, 1)
	assert.Equal(t, "N", rows[0].Registered)
}

func TestAggregateCallWithoutMetadata(t *testing.T) {
	cc := classified("call-9", model.ChannelCall, model.IntentOther)
	cc.Comm.Sender = "9888877776"

	rows := Aggregate([]model.ClassifiedCommunication{cc}, nil, nil, nil)
	require.Len(t, rows, 1)
	assert.Equal(t, "9888877776", rows[0].PhoneNumber)
	assert.Equal(t, model.Unknown, rows[0].Registered)
}

func TestAggregateTwoCommsOneOrder(t *testing.T) {
	comms := []model.ClassifiedCommunication{
		classified("call-1", model.ChannelCall, model.IntentInstruction),
		classified("email-1", model.ChannelEmail, model.IntentConfirmation),
	}
	matches := []model.MatchResult{
		{CommID: "call-1", OrderID: "ORD1", Basis: model.MatchTimeWindow, TimeDelta: time.Minute, Tier: model.TierHigh},
		{CommID: "email-1", OrderID: "ORD1", Basis: model.MatchExactID, Tier: model.TierHigh},
	}
	orders := []model.OrderRecord{{ExchangeOrderID: "ORD1", ClientID: "C001"}}

	rows := Aggregate(comms, matches, orders, nil)
	require.Len(t, rows, 2)
	assert.Equal(t, "call-1", rows[0].CommID)
	assert.Equal(t, "email-1", rows[1].CommID)
	for _, r := range rows {
		assert.Equal(t, "ORD1", r.OrderID)
	}
}

func TestAggregateExcerptTruncated(t *testing.T) {
	cc := classified("call-3", model.ChannelCall, model.IntentOther)
	cc.Comm.Body = strings.Repeat("x", 500)

	rows := Aggregate([]model.ClassifiedCommunication{cc}, nil, nil, nil)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Excerpt, excerptLen)
}

func TestSummarize(t *testing.T) {
	comms := []model.ClassifiedCommunication{
		classified("c1", model.ChannelEmail, model.IntentInstruction),
		classified("c2", model.ChannelEmail, model.IntentOther),
		classified("c3", model.ChannelCall, model.IntentInstruction),
	}
	matches := []model.MatchResult{
		{CommID: "c1", OrderID: "O1", Basis: model.MatchExactID, Tier: model.TierHigh},
		{CommID: "c2", Basis: model.MatchNone, Tier: model.TierNone},
		{CommID: "c3", OrderID: "O2", Basis: model.MatchTimeWindow, Tier: model.TierMedium},
	}

	s := Summarize(runDate, comms, matches, 2)
	assert.Equal(t, "07082025", s.RunDate)
	assert.Equal(t, 5, s.Processed)
	assert.Equal(t, 2, s.Matched)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 2, s.Instructed)
}

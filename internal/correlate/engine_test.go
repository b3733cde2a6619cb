package correlate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/northquay/surveil-cli/internal/model"
)

var base = time.Date(2025, 8, 7, 10, 0, 0, 0, time.UTC)

func callComm(id, clientID string, at time.Time, refs ...string) model.ClassifiedCommunication {
	return model.ClassifiedCommunication{
		Comm: model.CommunicationRecord{
			ID:        id,
			Channel:   model.ChannelCall,
			ClientID:  clientID,
			Timestamp: at,
			OrderRefs: refs,
		},
	}
}

func emailComm(id string, refs ...string) model.ClassifiedCommunication {
	return model.ClassifiedCommunication{
		Comm: model.CommunicationRecord{
			ID:        id,
			Channel:   model.ChannelEmail,
			Timestamp: base,
			OrderRefs: refs,
		},
	}
}

func order(id, clientID string, at time.Time) model.OrderRecord {
	return model.OrderRecord{ExchangeOrderID: id, ClientID: clientID, Timestamp: at}
}

func TestMatchExactID(t *testing.T) {
	comms := []model.ClassifiedCommunication{emailComm("e1", "1100000000000001")}
	orders := []model.OrderRecord{order("1100000000000001", "C001", base)}

	results := Match(comms, orders, DefaultOptions())
	require.Len(t, results, 1)
	assert.Equal(t, model.MatchExactID, results[0].Basis)
	assert.Equal(t, "1100000000000001", results[0].OrderID)
	assert.Equal(t, model.TierHigh, results[0].Tier)
	assert.Equal(t, time.Duration(0), results[0].TimeDelta)
}

func TestMatchExactOutranksTimeWindow(t *testing.T) {
	// A same-client order sits 30s away, but the transcript carries the id
	// of a different order. Exact id must win.
	comms := []model.ClassifiedCommunication{
		callComm("call1", "C001", base, "1100000000000007"),
	}
	orders := []model.OrderRecord{
		order("1100000000000007", "C009", base.Add(4*time.Hour)),
		order("1100000000000002", "C001", base.Add(30*time.Second)),
	}

	results := Match(comms, orders, DefaultOptions())
	assert.Equal(t, model.MatchExactID, results[0].Basis)
	assert.Equal(t, "1100000000000007", results[0].OrderID)
}

func TestMatchTimeWindow(t *testing.T) {
	comms := []model.ClassifiedCommunication{callComm("call1", "C001", base)}
	orders := []model.OrderRecord{
		order("A", "C001", base.Add(3*time.Minute)),
		order("B", "C001", base.Add(20*time.Minute)),
		order("C", "C002", base.Add(10*time.Second)),
	}

	results := Match(comms, orders, DefaultOptions())
	require.Len(t, results, 1)
	assert.Equal(t, model.MatchTimeWindow, results[0].Basis)
	assert.Equal(t, "A", results[0].OrderID)
	assert.Equal(t, 3*time.Minute, results[0].TimeDelta)
	assert.Equal(t, model.TierMedium, results[0].Tier)
}

func TestMatchTierBands(t *testing.T) {
	comms := []model.ClassifiedCommunication{
		callComm("near", "C001", base),
		callComm("far", "C002", base),
	}
	orders := []model.OrderRecord{
		order("A", "C001", base.Add(45*time.Second)),
		order("B", "C002", base.Add(4*time.Minute)),
	}

	results := Match(comms, orders, DefaultOptions())
	assert.Equal(t, model.TierHigh, results[0].Tier)
	assert.Equal(t, model.TierMedium, results[1].Tier)
}

func TestMatchToleranceBoundaryInclusive(t *testing.T) {
	opts := Options{Tolerance: 5 * time.Minute, HighBand: time.Minute}

	atBoundary := []model.ClassifiedCommunication{callComm("call1", "C001", base)}
	orders := []model.OrderRecord{order("A", "C001", base.Add(5*time.Minute))}
	results := Match(atBoundary, orders, opts)
	assert.Equal(t, model.MatchTimeWindow, results[0].Basis)

	// One second past tolerance: no match.
	orders = []model.OrderRecord{order("A", "C001", base.Add(5*time.Minute+time.Second))}
	results = Match(atBoundary, orders, opts)
	assert.Equal(t, model.MatchNone, results[0].Basis)
	assert.Empty(t, results[0].OrderID)
}

func TestMatchEqualDeltasPickEarlierOrder(t *testing.T) {
	// Two candidates exactly 3 minutes away on either side: the earlier
	// order timestamp wins, every run.
	comms := []model.ClassifiedCommunication{callComm("call1", "C001", base)}
	orders := []model.OrderRecord{
		order("LATER", "C001", base.Add(3*time.Minute)),
		order("EARLIER", "C001", base.Add(-3*time.Minute)),
	}

	for i := 0; i < 10; i++ {
		results := Match(comms, orders, DefaultOptions())
		assert.Equal(t, "EARLIER", results[0].OrderID)
	}
}

func TestMatchEqualDeltaAndTimestampPickSmallerID(t *testing.T) {
	ts := base.Add(2 * time.Minute)
	comms := []model.ClassifiedCommunication{callComm("call1", "C001", base)}
	orders := []model.OrderRecord{
		order("B2", "C001", ts),
		order("A1", "C001", ts),
	}

	results := Match(comms, orders, DefaultOptions())
	assert.Equal(t, "A1", results[0].OrderID)
}

func TestMatchEmailNeverTimeWindow(t *testing.T) {
	comms := []model.ClassifiedCommunication{
		{Comm: model.CommunicationRecord{
			ID: "e1", Channel: model.ChannelEmail, ClientID: "C001", Timestamp: base,
		}},
	}
	orders := []model.OrderRecord{order("A", "C001", base.Add(time.Minute))}

	results := Match(comms, orders, DefaultOptions())
	assert.Equal(t, model.MatchNone, results[0].Basis)
}

func TestMatchCallWithoutClientOrTimestamp(t *testing.T) {
	comms := []model.ClassifiedCommunication{
		callComm("noclient", "", base),
		callComm("notime", "C001", time.Time{}),
	}
	orders := []model.OrderRecord{order("A", "C001", base)}

	results := Match(comms, orders, DefaultOptions())
	assert.Equal(t, model.MatchNone, results[0].Basis)
	assert.Equal(t, model.MatchNone, results[1].Basis)
}

func TestMatchUsesAllClientCandidates(t *testing.T) {
	comm := callComm("call1", "C001", base)
	comm.Comm.ClientCandidates = []string{"C001", "C002"}
	orders := []model.OrderRecord{
		order("A", "C002", base.Add(time.Minute)),
		order("B", "C001", base.Add(4*time.Minute)),
	}

	results := Match([]model.ClassifiedCommunication{comm}, orders, DefaultOptions())
	assert.Equal(t, "A", results[0].OrderID)
	assert.Equal(t, model.TierHigh, results[0].Tier)
}

func TestMatchPureAndNonMutating(t *testing.T) {
	comms := []model.ClassifiedCommunication{callComm("call1", "C001", base)}
	orders := []model.OrderRecord{
		order("A", "C001", base.Add(3*time.Minute)),
		order("B", "C001", base.Add(2*time.Minute)),
	}

	first := Match(comms, orders, DefaultOptions())
	second := Match(comms, orders, DefaultOptions())
	assert.Equal(t, first, second)
	assert.Equal(t, "B", second[0].OrderID)
	// Inputs untouched.
	assert.Equal(t, "A", orders[0].ExchangeOrderID)
}

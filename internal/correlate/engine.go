// Package correlate joins classified communications to the order snapshot
// by exact order id and, for calls, by time-window proximity.
package correlate

import (
	"time"

	"go.uber.org/zap"

	"github.com/northquay/surveil-cli/internal/model"
)

// Options carries the correlation tunables. The window tolerance is
// deliberately a parameter: five minutes is known to be tight for real
// execution delay and desks adjust it per venue.
type Options struct {
	// Tolerance is the maximum |delta| for a time-window match. A delta
	// exactly equal to the tolerance still matches.
	Tolerance time.Duration
	// HighBand is the |delta| at or below which a time-window match gets
	// the high confidence tier; beyond it (up to Tolerance) it is medium.
	HighBand time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Tolerance: 5 * time.Minute,
		HighBand:  1 * time.Minute,
	}
}

// Match correlates every classified communication against the order
// snapshot. It is a pure function of its two inputs: no mutation, and
// identical snapshots always produce identical results, in input order.
//
// An exact-id match always outranks any time-window candidate. The time
// window is only attempted for call-channel communications with a known
// client and timestamp.
func Match(comms []model.ClassifiedCommunication, orders []model.OrderRecord, opts Options) []model.MatchResult {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultOptions().Tolerance
	}
	if opts.HighBand <= 0 || opts.HighBand > opts.Tolerance {
		opts.HighBand = DefaultOptions().HighBand
	}

	byID := make(map[string]model.OrderRecord, len(orders))
	byClient := make(map[string][]model.OrderRecord)
	for _, o := range orders {
		byID[o.ExchangeOrderID] = o
		if o.ClientID != "" {
			byClient[o.ClientID] = append(byClient[o.ClientID], o)
		}
	}

	results := make([]model.MatchResult, 0, len(comms))
	matched := 0
	for _, cc := range comms {
		r := matchOne(cc.Comm, byID, byClient, opts)
		if r.Matched() {
			matched++
		}
		results = append(results, r)
	}

	zap.L().Info("correlation complete",
		zap.Int("communications", len(comms)),
		zap.Int("orders", len(orders)),
		zap.Int("matched", matched))
	return results
}

func matchOne(comm model.CommunicationRecord, byID map[string]model.OrderRecord, byClient map[string][]model.OrderRecord, opts Options) model.MatchResult {
	// Exact id first. The first harvested reference that resolves wins;
	// refs keep their order of appearance in the text.
	for _, ref := range comm.OrderRefs {
		if order, ok := byID[ref]; ok {
			return model.MatchResult{
				CommID:  comm.ID,
				OrderID: order.ExchangeOrderID,
				Basis:   model.MatchExactID,
				Tier:    model.TierHigh,
			}
		}
	}

	none := model.MatchResult{CommID: comm.ID, Basis: model.MatchNone, Tier: model.TierNone}

	if comm.Channel != model.ChannelCall || comm.Timestamp.IsZero() {
		return none
	}
	clients := comm.ClientCandidates
	if len(clients) == 0 {
		if comm.ClientID == "" {
			return none
		}
		clients = []string{comm.ClientID}
	}

	best, found := nearestOrder(comm.Timestamp, clients, byClient)
	if !found {
		return none
	}
	delta := absDelta(comm.Timestamp, best.Timestamp)
	if delta > opts.Tolerance {
		return none
	}

	tier := model.TierMedium
	if delta <= opts.HighBand {
		tier = model.TierHigh
	}
	return model.MatchResult{
		CommID:    comm.ID,
		OrderID:   best.ExchangeOrderID,
		Basis:     model.MatchTimeWindow,
		TimeDelta: delta,
		Tier:      tier,
	}
}

// nearestOrder picks the same-client order with the smallest |delta|.
// Ties break to the earlier order timestamp, then the smaller order id, so
// a rerun over the same snapshots reproduces the same pick.
func nearestOrder(at time.Time, clients []string, byClient map[string][]model.OrderRecord) (model.OrderRecord, bool) {
	var best model.OrderRecord
	found := false
	for _, client := range clients {
		for _, o := range byClient[client] {
			if o.Timestamp.IsZero() {
				continue
			}
			if !found || closer(at, o, best) {
				best = o
				found = true
			}
		}
	}
	return best, found
}

func closer(at time.Time, candidate, best model.OrderRecord) bool {
	cd, bd := absDelta(at, candidate.Timestamp), absDelta(at, best.Timestamp)
	if cd != bd {
		return cd < bd
	}
	if !candidate.Timestamp.Equal(best.Timestamp) {
		return candidate.Timestamp.Before(best.Timestamp)
	}
	return candidate.ExchangeOrderID < best.ExchangeOrderID
}

func absDelta(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

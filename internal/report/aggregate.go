// Package report merges pipeline, correlation, and order data into the
// run outputs: resolved audit rows, the enriched XLSX workbook, and the
// JSON evidence artifact.
package report

import (
	"time"

	"github.com/northquay/surveil-cli/internal/model"
)

const excerptLen = 200

// Aggregate left-joins orders, classified communications, matches, and
// call metadata into ResolvedRecord rows. Every order appears; every
// communication appears. A missing side never errors, it degrades to the
// empty marker.
//
// Row layout: one row per matched (communication, order) pair, one row per
// order without evidence, one row per communication that matched nothing.
func Aggregate(comms []model.ClassifiedCommunication, matches []model.MatchResult, orders []model.OrderRecord, callMeta []model.CallMeta) []model.ResolvedRecord {
	matchByComm := make(map[string]model.MatchResult, len(matches))
	for _, m := range matches {
		matchByComm[m.CommID] = m
	}
	metaByComm := make(map[string]model.CallMeta, len(callMeta))
	for _, meta := range callMeta {
		metaByComm[commKey(meta.Filename)] = meta
	}

	// Communications per matched order, in input order.
	commsByOrder := make(map[string][]model.ClassifiedCommunication)
	for _, cc := range comms {
		if m, ok := matchByComm[cc.Comm.ID]; ok && m.Matched() {
			commsByOrder[m.OrderID] = append(commsByOrder[m.OrderID], cc)
		}
	}

	var rows []model.ResolvedRecord

	for _, order := range orders {
		matchedComms := commsByOrder[order.ExchangeOrderID]
		if len(matchedComms) == 0 {
			rows = append(rows, orderRow(order))
			continue
		}
		for _, cc := range matchedComms {
			row := orderRow(order)
			fillComm(&row, cc, matchByComm[cc.Comm.ID], metaByComm)
			rows = append(rows, row)
		}
	}

	for _, cc := range comms {
		if m, ok := matchByComm[cc.Comm.ID]; ok && m.Matched() {
			continue
		}
		var row model.ResolvedRecord
		fillComm(&row, cc, matchByComm[cc.Comm.ID], metaByComm)
		rows = append(rows, row)
	}

	return rows
}

func orderRow(order model.OrderRecord) model.ResolvedRecord {
	return model.ResolvedRecord{
		OrderID:     order.ExchangeOrderID,
		ClientID:    order.ClientID,
		DealerID:    order.DealerID,
		OrderStatus: order.Status,
		OrderTime:   order.Timestamp,
		Symbol:      order.Symbol,
		Quantity:    order.Quantity,
		Price:       order.Price,
		Side:        order.Side,
		SourceFile:  order.SourceFile,
	}
}

func fillComm(row *model.ResolvedRecord, cc model.ClassifiedCommunication, match model.MatchResult, metaByComm map[string]model.CallMeta) {
	row.CommID = cc.Comm.ID
	row.Channel = cc.Comm.Channel
	row.Subject = cc.Comm.Subject
	row.Excerpt = excerpt(cc.Comm.Body)
	row.Intent = cc.Classification.Intent
	row.Rationale = cc.Classification.Rationale

	if meta, ok := metaByComm[cc.Comm.ID]; ok {
		row.PhoneNumber = meta.PhoneNumber
		if meta.Registered {
			row.Registered = "Y"
		} else {
			row.Registered = "N"
		}
	} else if cc.Comm.Channel == model.ChannelCall {
		// Call with no metadata row. Registration cannot be determined.
		row.PhoneNumber = cc.Comm.Sender
		row.Registered = model.Unknown
	}

	if match.Basis != "" {
		row.MatchBasis = match.Basis
		row.MatchTier = match.Tier
		if match.Basis == model.MatchTimeWindow {
			row.TimeDelta = match.TimeDelta.String()
		}
	} else {
		row.MatchBasis = model.MatchNone
		row.MatchTier = model.TierNone
	}
}

func excerpt(body string) string {
	if len(body) <= excerptLen {
		return body
	}
	return body[:excerptLen]
}

// commKey strips the audio extension so call metadata lines up with the
// communication ids built at ingest.
func commKey(filename string) string {
	for _, ext := range []string{".wav", ".mp3"} {
		if len(filename) > len(ext) && filename[len(filename)-len(ext):] == ext {
			return filename[:len(filename)-len(ext)]
		}
	}
	return filename
}

// Summarize computes the user-visible counts for a run.
func Summarize(runDate time.Time, comms []model.ClassifiedCommunication, matches []model.MatchResult, failed int) model.RunSummary {
	s := model.RunSummary{
		RunDate:   runDate.Format("02012006"),
		Processed: len(comms) + failed,
		Failed:    failed,
	}
	for _, m := range matches {
		if m.Matched() {
			s.Matched++
		}
	}
	for _, cc := range comms {
		if cc.Classification.Intent == model.IntentInstruction {
			s.Instructed++
		}
	}
	return s
}

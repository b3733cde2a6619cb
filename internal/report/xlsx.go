package report

import (
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/northquay/surveil-cli/internal/model"
)

var resolvedHeader = []string{
	"Order ID", "Client ID", "Dealer ID", "Order Status", "Order Time",
	"Symbol", "Qty", "Price", "Buy/Sell", "Source File",
	"Comm ID", "Channel", "Subject", "Mobile No.", "Registered Y/N",
	"Intent", "Rationale", "Match Basis", "Match Tier", "Time Delta",
	"Call/Email Extract",
}

// WriteWorkbook writes the enriched report: a Resolved sheet with one row
// per resolved record and a Summary sheet with the run counts.
func WriteWorkbook(path string, rows []model.ResolvedRecord, summary model.RunSummary) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Resolved")
	if err != nil {
		return eris.Wrap(err, "report: add resolved sheet")
	}
	writeRow(sheet, resolvedHeader...)
	for _, r := range rows {
		orderTime := ""
		if !r.OrderTime.IsZero() {
			orderTime = r.OrderTime.Format("02-01-2006 15:04:05")
		}
		writeRow(sheet,
			r.OrderID, r.ClientID, r.DealerID, r.OrderStatus, orderTime,
			r.Symbol, r.Quantity, r.Price, r.Side, r.SourceFile,
			r.CommID, string(r.Channel), r.Subject, r.PhoneNumber, r.Registered,
			string(r.Intent), r.Rationale, string(r.MatchBasis), string(r.MatchTier), r.TimeDelta,
			r.Excerpt,
		)
	}

	sum, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "report: add summary sheet")
	}
	writeRow(sum, "Run Date", summary.RunDate)
	writeRow(sum, "Processed", strconv.Itoa(summary.Processed))
	writeRow(sum, "Matched", strconv.Itoa(summary.Matched))
	writeRow(sum, "Failed", strconv.Itoa(summary.Failed))
	writeRow(sum, "Instructions", strconv.Itoa(summary.Instructed))

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}

	zap.L().Info("report workbook written",
		zap.String("path", path),
		zap.Int("rows", len(rows)))
	return nil
}

func writeRow(sheet *xlsx.Sheet, cells ...string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}

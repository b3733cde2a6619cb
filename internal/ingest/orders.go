package ingest

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/northquay/surveil-cli/internal/fetcher"
	"github.com/northquay/surveil-cli/internal/model"
)

// orderColumns maps normalized header names to OrderRecord fields. The desks
// export order books with slightly different headings depending on the
// terminal version, so each field accepts several spellings.
var orderColumns = map[string]string{
	"exchangeorderno": "order_id",
	"exchangeorderid": "order_id",
	"orderno":         "order_id",
	"ordernumber":     "order_id",
	"orderid":         "order_id",
	"clientcode":      "client_id",
	"clientid":        "client_id",
	"client":          "client_id",
	"dealerid":        "dealer_id",
	"userid":          "dealer_id",
	"dealer":          "dealer_id",
	"user":            "dealer_id",
	"orderstatus":     "status",
	"status":          "status",
	"ordertime":       "timestamp",
	"orderdatetime":   "timestamp",
	"timestamp":       "timestamp",
	"time":            "timestamp",
	"symbol":          "symbol",
	"scrip":           "symbol",
	"scripname":       "symbol",
	"instrument":      "symbol",
	"qty":             "quantity",
	"quantity":        "quantity",
	"orderqty":        "quantity",
	"price":           "price",
	"rate":            "price",
	"orderprice":      "price",
	"buysell":         "side",
	"side":            "side",
	"transactiontype": "side",
	"bs":              "side",
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeHeader(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// orderTimeLayouts are tried in order; time-only values are anchored to the
// run date.
var orderTimeLayouts = []string{
	"02-01-2006 15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	time.RFC3339,
}

func parseOrderTime(s string, runDate time.Time) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range orderTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse("15:04:05", s); err == nil {
		return time.Date(runDate.Year(), runDate.Month(), runDate.Day(),
			t.Hour(), t.Minute(), t.Second(), 0, runDate.Location()), true
	}
	return time.Time{}, false
}

// LoadOrders reads every order-book file in dir, concatenates the rows,
// optionally keeps only orders whose dealer id carries the given prefix,
// and resolves duplicate exchange order ids. Files are processed in
// lexicographic name order and the latest file wins a duplicate id, so the
// snapshot is deterministic regardless of readdir order.
func LoadOrders(ctx context.Context, dir, dealerPrefix string, runDate time.Time) ([]model.OrderRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ConfigError{Source: "order source dir " + dir, Err: err}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx":
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, &ConfigError{Source: "no order-book files in " + dir}
	}
	sort.Strings(files)

	byID := make(map[string]model.OrderRecord)
	for _, name := range files {
		path := filepath.Join(dir, name)
		rows, err := readOrderFile(ctx, path)
		if err != nil {
			return nil, &ConfigError{Source: "order file " + name, Err: err}
		}
		kept := 0
		for _, rec := range parseOrderRows(rows, name, runDate) {
			if dealerPrefix != "" && !strings.HasPrefix(rec.DealerID, dealerPrefix) {
				continue
			}
			byID[rec.ExchangeOrderID] = rec
			kept++
		}
		zap.L().Debug("order file loaded",
			zap.String("file", name),
			zap.Int("kept", kept))
	}

	orders := make([]model.OrderRecord, 0, len(byID))
	for _, rec := range byID {
		orders = append(orders, rec)
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].Timestamp.Equal(orders[j].Timestamp) {
			return orders[i].Timestamp.Before(orders[j].Timestamp)
		}
		return orders[i].ExchangeOrderID < orders[j].ExchangeOrderID
	})

	zap.L().Info("order snapshot loaded",
		zap.Int("files", len(files)),
		zap.Int("orders", len(orders)))
	return orders, nil
}

func readOrderFile(ctx context.Context, path string) ([][]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open")
	}
	defer f.Close()
	return fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{TrimSpace: true})
}

// parseOrderRows maps a header row plus data rows into OrderRecords. Rows
// without an exchange order id are dropped.
func parseOrderRows(rows [][]string, sourceFile string, runDate time.Time) []model.OrderRecord {
	if len(rows) < 2 {
		return nil
	}

	idx := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := orderColumns[normalizeHeader(h)]; ok {
			if _, seen := idx[field]; !seen {
				idx[field] = i
			}
		}
	}

	cell := func(row []string, field string) string {
		i, ok := idx[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []model.OrderRecord
	for _, row := range rows[1:] {
		id := cell(row, "order_id")
		if id == "" {
			continue
		}
		rec := model.OrderRecord{
			ExchangeOrderID: id,
			ClientID:        cell(row, "client_id"),
			DealerID:        cell(row, "dealer_id"),
			Status:          cell(row, "status"),
			Symbol:          cell(row, "symbol"),
			Quantity:        cell(row, "quantity"),
			Price:           cell(row, "price"),
			Side:            cell(row, "side"),
			SourceFile:      sourceFile,
		}
		if ts, ok := parseOrderTime(cell(row, "timestamp"), runDate); ok {
			rec.Timestamp = ts
		}
		out = append(out, rec)
	}
	return out
}

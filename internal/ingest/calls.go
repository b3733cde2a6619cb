package ingest

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/northquay/surveil-cli/internal/fetcher"
	"github.com/northquay/surveil-cli/internal/model"
)

// recordingName matches telephony recording filenames of the form
// <phone>_<yyyymmddhhmmss>.wav (directory prefixes and extension vary).
var recordingName = regexp.MustCompile(`(\d{10,12})_(\d{14})`)

var digitsOnly = regexp.MustCompile(`\D`)

// NormalizePhone strips non-digits and keeps the last 10 digits, dropping
// country codes and trunk prefixes so registry lookups line up.
func NormalizePhone(s string) string {
	d := digitsOnly.ReplaceAllString(s, "")
	if len(d) > 10 {
		d = d[len(d)-10:]
	}
	return d
}

// ParseRecordingFilename extracts the phone number and call start time
// embedded in a recording filename.
func ParseRecordingFilename(name string) (phone string, start time.Time, ok bool) {
	m := recordingName.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, false
	}
	start, err := time.Parse("20060102150405", m[2])
	if err != nil {
		return "", time.Time{}, false
	}
	return NormalizePhone(m[1]), start, true
}

// registry column headings, normalized.
var registryClientCols = []string{"clientcode", "clientid", "ucc"}
var registryPhoneCols = []string{"mobileno", "mobile", "phoneno", "phone", "contactno", "telno"}

// LoadClientRegistry reads the client-master workbook and returns a map
// from normalized phone number to the client ids registered against it.
// One number can legitimately map to several clients (family accounts).
func LoadClientRegistry(path string) (map[string][]string, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, &ConfigError{Source: "client registry " + path, Err: err}
	}
	if len(rows) < 2 {
		return nil, &ConfigError{Source: "client registry " + path + " has no data rows"}
	}

	clientIdx := -1
	var phoneIdx []int
	for i, h := range rows[0] {
		n := normalizeHeader(h)
		if clientIdx < 0 && contains(registryClientCols, n) {
			clientIdx = i
		}
		if contains(registryPhoneCols, n) {
			phoneIdx = append(phoneIdx, i)
		}
	}
	if clientIdx < 0 || len(phoneIdx) == 0 {
		return nil, &ConfigError{Source: "client registry " + path + " missing client or phone columns"}
	}

	registry := make(map[string][]string)
	for _, row := range rows[1:] {
		if clientIdx >= len(row) {
			continue
		}
		client := strings.TrimSpace(row[clientIdx])
		if client == "" {
			continue
		}
		for _, pi := range phoneIdx {
			if pi >= len(row) {
				continue
			}
			phone := NormalizePhone(row[pi])
			if len(phone) != 10 {
				continue
			}
			if !contains(registry[phone], client) {
				registry[phone] = append(registry[phone], client)
			}
		}
	}

	for _, clients := range registry {
		sort.Strings(clients)
	}
	return registry, nil
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

var callInfoCols = map[string]string{
	"filename":  "filename",
	"file":      "filename",
	"mobileno":  "phone",
	"mobile":    "phone",
	"phoneno":   "phone",
	"phone":     "phone",
	"starttime": "start",
	"start":     "start",
	"endtime":   "end",
	"end":       "end",
	"duration":  "duration",
}

// LoadCallMeta reads the call-info workbook keyed by recording filename and
// resolves each phone number against the client registry. Rows lacking both
// a phone column and a parseable filename are skipped.
func LoadCallMeta(path string, registry map[string][]string, runDate time.Time) ([]model.CallMeta, error) {
	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, &ConfigError{Source: "call info " + path, Err: err}
	}
	if len(rows) < 2 {
		return nil, nil
	}

	idx := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := callInfoCols[normalizeHeader(h)]; ok {
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

	var metas []model.CallMeta
	for _, row := range rows[1:] {
		filename := cell(row, "filename")
		if filename == "" {
			continue
		}

		phone := NormalizePhone(cell(row, "phone"))
		namePhone, nameStart, nameOK := ParseRecordingFilename(filename)
		if phone == "" && nameOK {
			phone = namePhone
		}
		if phone == "" {
			zap.L().Warn("call row has no resolvable phone number",
				zap.String("filename", filename))
			continue
		}

		meta := model.CallMeta{
			Filename:    filename,
			PhoneNumber: phone,
			ClientIDs:   registry[phone],
		}
		meta.Registered = len(meta.ClientIDs) > 0

		if ts, ok := parseOrderTime(cell(row, "start"), runDate); ok {
			meta.Start = ts
		} else if nameOK {
			meta.Start = nameStart
		}
		if ts, ok := parseOrderTime(cell(row, "end"), runDate); ok {
			meta.End = ts
		}
		if d, err := strconv.Atoi(cell(row, "duration")); err == nil {
			meta.DurationSec = d
		} else if !meta.End.IsZero() && !meta.Start.IsZero() {
			meta.DurationSec = int(meta.End.Sub(meta.Start).Seconds())
		}

		metas = append(metas, meta)
	}

	zap.L().Info("call metadata loaded",
		zap.Int("calls", len(metas)))
	return metas, nil
}

// BuildCallComms turns call metadata plus transcripts into communication
// records. A call without a transcript still becomes a record with an empty
// body; its correlation can only come from the time window.
func BuildCallComms(metas []model.CallMeta, transcripts map[string]string) []model.CommunicationRecord {
	comms := make([]model.CommunicationRecord, 0, len(metas))
	for _, meta := range metas {
		key := strings.TrimSuffix(meta.Filename, ".wav")
		key = strings.TrimSuffix(key, ".mp3")
		body := transcripts[key]

		comm := model.CommunicationRecord{
			ID:               key,
			Channel:          model.ChannelCall,
			Sender:           meta.PhoneNumber,
			Body:             body,
			Timestamp:        meta.Start,
			ClientCandidates: meta.ClientIDs,
			OrderRefs:        HarvestOrderRefs(body),
		}
		if len(meta.ClientIDs) > 0 {
			comm.ClientID = meta.ClientIDs[0]
		}
		comms = append(comms, comm)
	}
	return comms
}

package ingest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/northquay/surveil-cli/internal/model"
)

func writeXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, c := range rowData {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "sheet.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "9876543210", NormalizePhone("9876543210"))
	assert.Equal(t, "9876543210", NormalizePhone("+91 98765 43210"))
	assert.Equal(t, "9876543210", NormalizePhone("919876543210"))
	assert.Equal(t, "43210", NormalizePhone("43210"))
	assert.Equal(t, "", NormalizePhone("n/a"))
}

func TestParseRecordingFilename(t *testing.T) {
	phone, start, ok := ParseRecordingFilename("9876543210_20250807093015.wav")
	require.True(t, ok)
	assert.Equal(t, "9876543210", phone)
	assert.Equal(t, time.Date(2025, 8, 7, 9, 30, 15, 0, time.UTC), start)

	// Country-code prefixed numbers normalize to the last 10 digits.
	phone, _, ok = ParseRecordingFilename("919876543210_20250807093015.wav")
	require.True(t, ok)
	assert.Equal(t, "9876543210", phone)

	_, _, ok = ParseRecordingFilename("notes.wav")
	assert.False(t, ok)
}

func TestLoadClientRegistry(t *testing.T) {
	path := writeXLSX(t, [][]string{
		{"Client Code", "Mobile No", "Phone No"},
		{"C001", "+91 98765 43210", ""},
		{"C002", "9876543210", "9123456780"},
		{"C003", "", ""},
	})

	registry, err := LoadClientRegistry(path)
	require.NoError(t, err)

	// One phone number can map to several clients.
	assert.Equal(t, []string{"C001", "C002"}, registry["9876543210"])
	assert.Equal(t, []string{"C002"}, registry["9123456780"])
	assert.NotContains(t, registry, "")
}

func TestLoadClientRegistryMissingColumns(t *testing.T) {
	path := writeXLSX(t, [][]string{
		{"Name", "City"},
		{"x", "y"},
	})
	_, err := LoadClientRegistry(path)
	assert.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestLoadCallMeta(t *testing.T) {
	registry := map[string][]string{"9876543210": {"C001"}}
	path := writeXLSX(t, [][]string{
		{"File Name", "Mobile No", "Start Time", "End Time", "Duration"},
		{"9876543210_20250807093015.wav", "9876543210", "07-08-2025 09:30:15", "07-08-2025 09:31:20", "65"},
		{"9999999999_20250807101500.wav", "", "", "", ""},
	})

	metas, err := LoadCallMeta(path, registry, testRunDate)
	require.NoError(t, err)
	require.Len(t, metas, 2)

	assert.Equal(t, "9876543210", metas[0].PhoneNumber)
	assert.True(t, metas[0].Registered)
	assert.Equal(t, []string{"C001"}, metas[0].ClientIDs)
	assert.Equal(t, 65, metas[0].DurationSec)
	assert.Equal(t, time.Date(2025, 8, 7, 9, 30, 15, 0, time.UTC), metas[0].Start)

	// Second row: phone and start time recovered from the filename.
	assert.Equal(t, "9999999999", metas[1].PhoneNumber)
	assert.False(t, metas[1].Registered)
	assert.Equal(t, time.Date(2025, 8, 7, 10, 15, 0, 0, time.UTC), metas[1].Start)
}

func TestBuildCallComms(t *testing.T) {
	metas := []model.CallMeta{
		{
			Filename:    "9876543210_20250807093015.wav",
			PhoneNumber: "9876543210",
			Registered:  true,
			Start:       time.Date(2025, 8, 7, 9, 30, 15, 0, time.UTC),
			ClientIDs:   []string{"C001", "C002"},
		},
		{
			Filename:    "9999999999_20250807101500.wav",
			PhoneNumber: "9999999999",
			Start:       time.Date(2025, 8, 7, 10, 15, 0, 0, time.UTC),
		},
	}
	transcripts := map[string]string{
		"9876543210_20250807093015": "please buy 100 reliance at market, order number 1100000000000001",
	}

	comms := BuildCallComms(metas, transcripts)
	require.Len(t, comms, 2)

	assert.Equal(t, "9876543210_20250807093015", comms[0].ID)
	assert.Equal(t, model.ChannelCall, comms[0].Channel)
	assert.Equal(t, "C001", comms[0].ClientID)
	assert.Equal(t, []string{"C001", "C002"}, comms[0].ClientCandidates)
	assert.Contains(t, comms[0].Body, "reliance")
	assert.Equal(t, []string{"1100000000000001"}, comms[0].OrderRefs)

	// No transcript: empty body, no refs, still a record.
	assert.Empty(t, comms[1].Body)
	assert.Empty(t, comms[1].OrderRefs)
	assert.Empty(t, comms[1].ClientID)
}

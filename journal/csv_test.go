package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCSV(t *testing.T) (*CSVJournal, string, string) {
	t.Helper()

	dir := t.TempDir()
	positionsPath := filepath.Join(dir, "positions.csv")
	equityPath := filepath.Join(dir, "equity.csv")

	j, err := NewCSV(positionsPath, equityPath)
	assert.NoError(t, err)

	return j, positionsPath, equityPath
}

func TestCSVJournalHeaders(t *testing.T) {
	t.Parallel()

	j, positionsPath, equityPath := newTestCSV(t)
	assert.NoError(t, j.Close())

	positionsData, err := os.ReadFile(positionsPath)
	assert.NoError(t, err)
	equityData, err := os.ReadFile(equityPath)
	assert.NoError(t, err)

	positionsHeader, err := csv.NewReader(strings.NewReader(string(positionsData))).Read()
	assert.NoError(t, err)
	equityHeader, err := csv.NewReader(strings.NewReader(string(equityData))).Read()
	assert.NoError(t, err)

	wantPositions := []string{"position_id", "symbol", "side", "confidence", "size_opened", "entry_price", "target_price", "stop_price", "final_stop", "open_time", "close_time", "partial_pnl", "realized_pnl", "reason"}
	assert.Equal(t, wantPositions, positionsHeader)

	wantEquity := []string{"time", "equity", "available_margin", "open_positions"}
	assert.Equal(t, wantEquity, equityHeader)
}

func TestCSVJournalRecordPosition(t *testing.T) {
	t.Parallel()

	j, positionsPath, _ := newTestCSV(t)

	rec := sampleRecord("P1")
	assert.NoError(t, j.RecordPosition(rec))
	assert.NoError(t, j.Close())

	data, err := os.ReadFile(positionsPath)
	assert.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(string(data)))
	_, err = reader.Read() // header
	assert.NoError(t, err)
	row, err := reader.Read()
	assert.NoError(t, err)

	want := []string{
		"P1",
		"DOGEUSDT",
		"long",
		"High",
		"6000.000000",
		"0.170000",
		"0.180000",
		"0.160000",
		"0.170000",
		rec.OpenTime.Format(time.RFC3339),
		rec.CloseTime.Format(time.RFC3339),
		"15.000000",
		"45.000000",
		"target",
	}
	assert.Equal(t, want, row)
}

func TestCSVJournalRecordEquity(t *testing.T) {
	t.Parallel()

	j, _, equityPath := newTestCSV(t)

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, j.RecordEquity(EquitySnapshot{
		Time:            ts,
		Equity:          300.5,
		AvailableMargin: 250.25,
		OpenPositions:   2,
	}))
	assert.NoError(t, j.Close())

	data, err := os.ReadFile(equityPath)
	assert.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(string(data)))
	_, err = reader.Read() // header
	assert.NoError(t, err)
	row, err := reader.Read()
	assert.NoError(t, err)

	want := []string{
		ts.Format(time.RFC3339),
		"300.500000",
		"250.250000",
		"2",
	}
	assert.Equal(t, want, row)
}

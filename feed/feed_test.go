package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		record  []string
		wantOk  bool
		wantErr bool
		check   func(t *testing.T, r Row)
	}{
		{
			name:   "valid row",
			record: []string{"2025-06-01T12:00:00Z", "DOGEUSDT", "0.171"},
			wantOk: true,
			check: func(t *testing.T, r Row) {
				if r.Symbol != "DOGEUSDT" {
					t.Errorf("symbol = %v, want DOGEUSDT", r.Symbol)
				}
				if r.Price != 0.171 {
					t.Errorf("price = %v, want 0.171", r.Price)
				}
			},
		},
		{
			name:   "nano timestamp",
			record: []string{"2025-06-01T12:00:00.123456789Z", "XRPUSDT", "0.5"},
			wantOk: true,
			check: func(t *testing.T, r Row) {
				if r.Symbol != "XRPUSDT" {
					t.Errorf("symbol = %v, want XRPUSDT", r.Symbol)
				}
			},
		},
		{
			name:   "whitespace tolerated",
			record: []string{" 2025-06-01T12:00:00Z ", " DOGEUSDT ", " 0.171 "},
			wantOk: true,
			check: func(t *testing.T, r Row) {
				if r.Symbol != "DOGEUSDT" {
					t.Errorf("symbol = %v, want DOGEUSDT", r.Symbol)
				}
			},
		},
		{
			name:   "short row skipped",
			record: []string{"2025-06-01T12:00:00Z", "DOGEUSDT"},
			wantOk: false,
		},
		{
			name:   "blank symbol skipped",
			record: []string{"2025-06-01T12:00:00Z", "", "0.171"},
			wantOk: false,
		},
		{
			name:    "bad time",
			record:  []string{"yesterday", "DOGEUSDT", "0.171"},
			wantErr: true,
		},
		{
			name:    "bad price",
			record:  []string{"2025-06-01T12:00:00Z", "DOGEUSDT", "cheap"},
			wantErr: true,
		},
		{
			name:    "non-positive price",
			record:  []string{"2025-06-01T12:00:00Z", "DOGEUSDT", "0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok, err := parseRow(tt.record)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestCSVStreamsRowsInOrder(t *testing.T) {
	t.Parallel()

	path := writeTempCSV(t, `time,symbol,price
2025-06-01T12:00:00Z,DOGEUSDT,0.170
2025-06-01T12:00:30Z,DOGEUSDT,0.175

2025-06-01T12:01:00Z,DOGEUSDT,0.180
`)
	f, err := OpenCSV(path, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var got []float64
	for {
		row, ok, err := f.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, row.Price)
	}
	want := []float64{0.170, 0.175, 0.180}
	if len(got) != len(want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCSVWindowFiltersRows(t *testing.T) {
	t.Parallel()

	path := writeTempCSV(t, `2025-06-01T11:59:00Z,DOGEUSDT,0.160
2025-06-01T12:00:00Z,DOGEUSDT,0.170
2025-06-01T12:05:00Z,DOGEUSDT,0.175
2025-06-01T12:10:00Z,DOGEUSDT,0.180
`)
	from := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 1, 12, 10, 0, 0, time.UTC)

	f, err := OpenCSV(path, from, to)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var got []float64
	for {
		row, ok, err := f.Next()
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		got = append(got, row.Price)
	}
	// [from, to): 12:00 in, 12:10 out.
	if len(got) != 2 || got[0] != 0.170 || got[1] != 0.175 {
		t.Fatalf("rows = %v, want [0.170 0.175]", got)
	}
}

func TestCSVBadRowFailsLoudly(t *testing.T) {
	t.Parallel()

	path := writeTempCSV(t, "2025-06-01T12:00:00Z,DOGEUSDT,not-a-price\n")
	f, err := OpenCSV(path, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	if _, _, err := f.Next(); err == nil {
		t.Fatal("expected parse error")
	}
}

type mapSink map[string]float64

func (m mapSink) SetPrice(symbol string, px float64) { m[symbol] = px }

func TestReplayStepsOneTimestampAtATime(t *testing.T) {
	t.Parallel()

	path := writeTempCSV(t, `2025-06-01T12:00:00Z,DOGEUSDT,0.170
2025-06-01T12:00:00Z,XRPUSDT,0.50
2025-06-01T12:00:30Z,DOGEUSDT,0.175
`)
	f, err := OpenCSV(path, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	r := NewReplay(f)
	sink := mapSink{}

	at, ok, err := r.Step(sink)
	if err != nil || !ok {
		t.Fatalf("step 1: ok=%v err=%v", ok, err)
	}
	if want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC); !at.Equal(want) {
		t.Errorf("step 1 time = %v, want %v", at, want)
	}
	if sink["DOGEUSDT"] != 0.170 || sink["XRPUSDT"] != 0.50 {
		t.Errorf("step 1 prices = %v", sink)
	}

	at, ok, err = r.Step(sink)
	if err != nil || !ok {
		t.Fatalf("step 2: ok=%v err=%v", ok, err)
	}
	if want := time.Date(2025, 6, 1, 12, 0, 30, 0, time.UTC); !at.Equal(want) {
		t.Errorf("step 2 time = %v, want %v", at, want)
	}
	if sink["DOGEUSDT"] != 0.175 {
		t.Errorf("step 2 price = %v, want 0.175", sink["DOGEUSDT"])
	}

	if _, ok, err := r.Step(sink); err != nil || ok {
		t.Fatalf("step 3 should report exhaustion, got ok=%v err=%v", ok, err)
	}
}

// Package feed replays recorded prices for paper sessions.
package feed

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Row is one recorded price observation.
type Row struct {
	Time   time.Time
	Symbol string
	Price  float64
}

// CSV streams canonical price rows:
//
//	time,symbol,price
//
// where time is RFC3339 or RFC3339Nano. A header row is allowed.
// Empty/short rows are skipped, and rows outside [From, To) are dropped
// when the bounds are set.
type CSV struct {
	f    *os.File
	r    *csv.Reader
	from time.Time
	to   time.Time

	sawFirst bool
}

func OpenCSV(path string, from, to time.Time) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	return &CSV{f: f, r: r, from: from, to: to}, nil
}

func (f *CSV) Close() error {
	if f.f != nil {
		return f.f.Close()
	}
	return nil
}

func (f *CSV) Next() (Row, bool, error) {
	for {
		record, err := f.r.Read()
		if err == io.EOF {
			return Row{}, false, nil
		}
		if err != nil {
			return Row{}, false, err
		}
		if len(record) == 0 {
			continue
		}

		// Allow a single header row.
		if !f.sawFirst {
			f.sawFirst = true
			if strings.EqualFold(strings.TrimSpace(record[0]), "time") {
				continue
			}
		}

		row, ok, err := parseRow(record)
		if err != nil {
			return Row{}, false, err
		}
		if !ok {
			continue
		}
		if !inRange(row.Time, f.from, f.to) {
			continue
		}
		return row, true, nil
	}
}

func parseRow(record []string) (Row, bool, error) {
	// Need at least: time,symbol,price
	if len(record) < 3 {
		return Row{}, false, nil
	}

	ts := strings.TrimSpace(record[0])
	if ts == "" {
		return Row{}, false, nil
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t2, err2 := time.Parse(time.RFC3339Nano, ts)
		if err2 != nil {
			return Row{}, false, fmt.Errorf("bad time %q: %w", ts, err)
		}
		t = t2
	}

	symbol := strings.TrimSpace(record[1])
	if symbol == "" {
		return Row{}, false, nil
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil {
		return Row{}, false, fmt.Errorf("bad price %q: %w", record[2], err)
	}
	if price <= 0 {
		return Row{}, false, fmt.Errorf("bad price %v: must be positive", price)
	}

	return Row{Time: t, Symbol: symbol, Price: price}, true, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// PriceSink receives replayed prices. *paper.Exchange satisfies it.
type PriceSink interface {
	SetPrice(symbol string, px float64)
}

// Replay feeds a sink one timestamp at a time: each Step applies every row
// sharing the next timestamp and reports it. ok is false once the feed is
// exhausted.
type Replay struct {
	src  *CSV
	held *Row
}

func NewReplay(src *CSV) *Replay {
	return &Replay{src: src}
}

func (r *Replay) Step(sink PriceSink) (time.Time, bool, error) {
	if r.held == nil {
		row, ok, err := r.src.Next()
		if err != nil || !ok {
			return time.Time{}, false, err
		}
		r.held = &row
	}

	at := r.held.Time
	sink.SetPrice(r.held.Symbol, r.held.Price)
	r.held = nil

	for {
		row, ok, err := r.src.Next()
		if err != nil {
			return time.Time{}, false, err
		}
		if !ok {
			return at, true, nil
		}
		if !row.Time.Equal(at) {
			r.held = &row
			return at, true, nil
		}
		sink.SetPrice(row.Symbol, row.Price)
	}
}

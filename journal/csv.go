// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	positions *csv.Writer
	equity    *csv.Writer
	pf, ef    *os.File
}

func NewCSV(positionsPath, equityPath string) (*CSVJournal, error) {
	pf, err := os.Create(positionsPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		pf.Close()
		return nil, err
	}

	pw := csv.NewWriter(pf)
	ew := csv.NewWriter(ef)

	if err := pw.Write([]string{"position_id", "symbol", "side", "confidence", "size_opened", "entry_price", "target_price", "stop_price", "final_stop", "open_time", "close_time", "partial_pnl", "realized_pnl", "reason"}); err != nil {
		return nil, err
	}
	if err := ew.Write([]string{"time", "equity", "available_margin", "open_positions"}); err != nil {
		return nil, err
	}

	pw.Flush()
	if err := pw.Error(); err != nil {
		return nil, err
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{pw, ew, pf, ef}, nil
}

func (j *CSVJournal) RecordPosition(r PositionRecord) error {
	err := j.positions.Write([]string{
		r.PositionID,
		r.Symbol,
		r.Side,
		r.Confidence,
		f(r.SizeOpened),
		f(r.EntryPrice),
		f(r.TargetPrice),
		f(r.StopPrice),
		f(r.FinalStop),
		r.OpenTime.Format(time.RFC3339),
		r.CloseTime.Format(time.RFC3339),
		f(r.PartialPnL),
		f(r.RealizedPnL),
		r.Reason,
	})
	if err != nil {
		return err
	}

	j.positions.Flush()
	return j.positions.Error()
}

func (j *CSVJournal) RecordEquity(e EquitySnapshot) error {
	err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		f(e.Equity),
		f(e.AvailableMargin),
		strconv.Itoa(e.OpenPositions),
	})
	if err != nil {
		return err
	}

	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.positions.Flush()
	if err := j.positions.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.pf.Close(); err != nil {
		return err
	}
	if err := j.ef.Close(); err != nil {
		return err
	}
	return nil
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

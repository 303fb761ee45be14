// journal/sqlite.go
package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordPosition(r PositionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO positions
		(position_id, symbol, side, confidence, size_opened, entry_price, target_price, stop_price, final_stop, open_time, close_time, partial_pnl, realized_pnl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PositionID, r.Symbol, r.Side, r.Confidence, r.SizeOpened,
		r.EntryPrice, r.TargetPrice, r.StopPrice, r.FinalStop,
		r.OpenTime, r.CloseTime, r.PartialPnL, r.RealizedPnL, r.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, equity, available_margin, open_positions)
		VALUES (?, ?, ?, ?)`,
		e.Time, e.Equity, e.AvailableMargin, e.OpenPositions,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

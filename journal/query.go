package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// GetPosition returns a single archived position by ID.
func (j *SQLiteJournal) GetPosition(positionID string) (PositionRecord, error) {
	var rec PositionRecord

	row := j.db.QueryRow(`
		SELECT position_id, symbol, side, confidence, size_opened, entry_price, target_price, stop_price, final_stop, open_time, close_time, partial_pnl, realized_pnl, reason
		FROM positions
		WHERE position_id = ?`, positionID)

	err := row.Scan(
		&rec.PositionID,
		&rec.Symbol,
		&rec.Side,
		&rec.Confidence,
		&rec.SizeOpened,
		&rec.EntryPrice,
		&rec.TargetPrice,
		&rec.StopPrice,
		&rec.FinalStop,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.PartialPnL,
		&rec.RealizedPnL,
		&rec.Reason,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return PositionRecord{}, fmt.Errorf("position %q not found", positionID)
		}
		return PositionRecord{}, err
	}
	return rec, nil
}

// ListClosedBetween returns positions whose close_time is within [start, end).
func (j *SQLiteJournal) ListClosedBetween(start, end time.Time) ([]PositionRecord, error) {
	rows, err := j.db.Query(`
		SELECT position_id, symbol, side, confidence, size_opened, entry_price, target_price, stop_price, final_stop, open_time, close_time, partial_pnl, realized_pnl, reason
		FROM positions
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		var rec PositionRecord
		if err := rows.Scan(
			&rec.PositionID,
			&rec.Symbol,
			&rec.Side,
			&rec.Confidence,
			&rec.SizeOpened,
			&rec.EntryPrice,
			&rec.TargetPrice,
			&rec.StopPrice,
			&rec.FinalStop,
			&rec.OpenTime,
			&rec.CloseTime,
			&rec.PartialPnL,
			&rec.RealizedPnL,
			&rec.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListEquityBetween returns equity snapshots within [start, end).
func (j *SQLiteJournal) ListEquityBetween(start, end time.Time) ([]EquitySnapshot, error) {
	rows, err := j.db.Query(`
		SELECT time, equity, available_margin, open_positions
		FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySnapshot
	for rows.Next() {
		var rec EquitySnapshot
		if err := rows.Scan(
			&rec.Time,
			&rec.Equity,
			&rec.AvailableMargin,
			&rec.OpenPositions,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

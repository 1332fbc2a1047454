package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"goldwatcher/internal/engine"
)

const (
	insertAlertSQL = `INSERT INTO alerts (ts, symbol, created_by, alert_type, base_type, node_level, price, ref_price, change_percent, status, error)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    RETURNING id;`

	countAlertsSinceSQL = `SELECT COUNT(*) FROM alerts
    WHERE symbol = $1 AND created_by = $2 AND alert_type = $3 AND base_type = $4
      AND node_level = $5 AND ts >= $6;`

	listRecentAlertsSQL = `SELECT id, ts, symbol, created_by, alert_type, base_type, node_level, price, ref_price, change_percent, status, error
    FROM alerts
    WHERE symbol = $1
    ORDER BY ts DESC
    LIMIT $2;`

	listAlertsBetweenSQL = `SELECT id, ts, symbol, created_by, alert_type, base_type, node_level, price, ref_price, change_percent, status, error
    FROM alerts
    WHERE symbol = $1 AND ts >= $2 AND ts <= $3
    ORDER BY ts DESC;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE ts < $1;`
)

// AlertStore defines operations for the append-only alert audit log.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (int64, error)
	CountAlertsSince(ctx context.Context, symbol, createdBy string, kind engine.Kind, baseline engine.Baseline, level int, since time.Time) (int, error)
	ListRecentAlerts(ctx context.Context, symbol string, limit int) ([]AlertRecord, error)
	ListAlertsBetween(ctx context.Context, symbol string, from, to time.Time) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// InsertAlert appends one audit row and returns its id.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	if scanErr := pool.QueryRow(ctx, insertAlertSQL, alertArgs(alert)...).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("insert alert: %w", scanErr)
	}
	return id, nil
}

// CountAlertsSince counts audit rows for one exact node tuple since a cutoff.
// 当日零点起算，用来实现“发送次数 = 节点等级”的去重。
func (s *Store) CountAlertsSince(ctx context.Context, symbol, createdBy string, kind engine.Kind, baseline engine.Baseline, level int, since time.Time) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var count int
	if scanErr := pool.QueryRow(ctx, countAlertsSinceSQL,
		symbol, createdBy, string(kind), string(baseline), level, since,
	).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count alerts since: %w", scanErr)
	}
	return count, nil
}

// ListRecentAlerts lists the newest audit rows.
func (s *Store) ListRecentAlerts(ctx context.Context, symbol string, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, symbol, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// ListAlertsBetween lists audit rows inside a time range, newest first.
func (s *Store) ListAlertsBetween(ctx context.Context, symbol string, from, to time.Time) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsBetweenSQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts between: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore removes audit rows older than the retention cutoff.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete alerts before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

func alertArgs(alert AlertRecord) []interface{} {
	var changePercent interface{}
	if alert.ChangePercent != nil {
		changePercent = alert.ChangePercent.String()
	}
	var errMsg interface{}
	if alert.Error != nil {
		errMsg = *alert.Error
	}
	return []interface{}{
		alert.TS,
		alert.Symbol,
		alert.CreatedBy,
		string(alert.Kind),
		string(alert.Baseline),
		alert.Level,
		alert.Price.String(),
		alert.RefPrice.String(),
		changePercent,
		alert.Status,
		errMsg,
	}
}

func scanAlert(row pgx.Row) (AlertRecord, error) {
	var (
		rec       AlertRecord
		kind      string
		baseline  string
		priceStr  string
		refStr    string
		changeStr sql.NullString
		errMsg    sql.NullString
	)
	if err := row.Scan(&rec.ID, &rec.TS, &rec.Symbol, &rec.CreatedBy, &kind, &baseline,
		&rec.Level, &priceStr, &refStr, &changeStr, &rec.Status, &errMsg); err != nil {
		return AlertRecord{}, err
	}

	rec.Kind = engine.Kind(kind)
	rec.Baseline = engine.Baseline(baseline)

	var convErr error
	rec.Price, convErr = parseDecimal(priceStr, "price")
	if convErr != nil {
		return AlertRecord{}, convErr
	}
	rec.RefPrice, convErr = parseDecimal(refStr, "ref price")
	if convErr != nil {
		return AlertRecord{}, convErr
	}
	rec.ChangePercent, convErr = decimalPtr(changeStr)
	if convErr != nil {
		return AlertRecord{}, fmt.Errorf("parse change percent: %w", convErr)
	}
	if errMsg.Valid {
		msg := errMsg.String
		rec.Error = &msg
	}
	return rec, nil
}

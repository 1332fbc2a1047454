package storage

import (
	"context"
	"fmt"
	"time"
)

const (
	insertReportSQL = `INSERT INTO reports (symbol, ts, model, report_md, trigger_type, trigger_value)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id;`

	listRecentReportsSQL = `SELECT id, symbol, ts, model, report_md, trigger_type, trigger_value
    FROM reports
    WHERE symbol = $1
    ORDER BY ts DESC
    LIMIT $2;`

	deleteReportsBeforeSQL = `DELETE FROM reports WHERE ts < $1;`
)

// ReportStore defines operations on persisted AI reports.
type ReportStore interface {
	InsertReport(ctx context.Context, report Report) (int64, error)
	ListRecentReports(ctx context.Context, symbol string, limit int) ([]Report, error)
	DeleteReportsBefore(ctx context.Context, olderThan time.Time) (int64, error)
}

// InsertReport persists a generated report.
func (s *Store) InsertReport(ctx context.Context, report Report) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var id int64
	if scanErr := pool.QueryRow(ctx, insertReportSQL,
		report.Symbol, report.TS, report.Model, report.ReportMD, report.TriggerType, report.TriggerValue,
	).Scan(&id); scanErr != nil {
		return 0, fmt.Errorf("insert report: %w", scanErr)
	}
	return id, nil
}

// ListRecentReports lists the newest reports.
func (s *Store) ListRecentReports(ctx context.Context, symbol string, limit int) ([]Report, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentReportsSQL, symbol, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent reports: %w", queryErr)
	}
	defer rows.Close()

	reports := make([]Report, 0, limit)
	for rows.Next() {
		var report Report
		if scanErr := rows.Scan(&report.ID, &report.Symbol, &report.TS, &report.Model,
			&report.ReportMD, &report.TriggerType, &report.TriggerValue); scanErr != nil {
			return nil, scanErr
		}
		reports = append(reports, report)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return reports, nil
}

// DeleteReportsBefore removes reports older than the retention cutoff.
func (s *Store) DeleteReportsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, execErr := pool.Exec(ctx, deleteReportsBeforeSQL, olderThan)
	if execErr != nil {
		return 0, fmt.Errorf("delete reports before: %w", execErr)
	}
	return tag.RowsAffected(), nil
}

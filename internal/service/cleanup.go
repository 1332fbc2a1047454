package service

import (
	"context"
	"fmt"
	"time"

	"goldwatcher/internal/timeutil"
)

// runCleanupIfDue 在本地零点后的五分钟窗口内每天执行一次数据清理,
// 用日期标记去重。标记在执行前写入; 失败的清理当天不再重试。
func (s *Service) runCleanupIfDue(ctx context.Context, bucket time.Time) error {
	if !timeutil.InDailyWindow(bucket, s.tzOffset, s.cleanupHour) {
		return nil
	}

	today := timeutil.LocalDate(bucket, s.tzOffset)
	last, err := s.store.GetMarker(ctx, markerLastCleanup)
	if err != nil {
		return fmt.Errorf("read cleanup marker: %w", err)
	}
	if last == today {
		return nil
	}
	if err := s.store.SetMarker(ctx, markerLastCleanup, today); err != nil {
		return fmt.Errorf("write cleanup marker: %w", err)
	}

	return s.cleanupOldData(ctx)
}

// cleanupOldData 删除保留期之前的历史数据。
func (s *Service) cleanupOldData(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.retention)
	s.logger.Info().Time("cutoff", cutoff).Msg("starting daily data cleanup")

	steps := []struct {
		name   string
		delete func(context.Context, time.Time) (int64, error)
	}{
		{"prices", s.store.DeletePricesBefore},
		{"daily_prices", s.store.DeleteDailyBefore},
		{"alerts", s.store.DeleteAlertsBefore},
		{"reports", s.store.DeleteReportsBefore},
		{"trades", s.store.DeleteTradesBefore},
	}

	for _, step := range steps {
		deleted, err := step.delete(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("cleanup %s: %w", step.name, err)
		}
		s.logger.Info().Str("table", step.name).Int64("deleted", deleted).Msg("cleanup step done")
	}
	return nil
}

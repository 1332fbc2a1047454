package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"goldwatcher/internal/alerting"
	"goldwatcher/internal/engine"
	"goldwatcher/internal/storage"
)

// targetOwner 记在目标价告警审计行的 created_by 字段上。
const targetOwner = "user"

// checkTargets 对所有仍处于武装状态的目标价配置求值。
//
// 命中的目标在单个事务里写入审计行并解除武装, 保证至多触发一次;
// 事务失败时配置保持武装, 下个周期重试。
func (s *Service) checkTargets(ctx context.Context, priceNow decimal.Decimal, ts time.Time) error {
	targets, err := s.store.ListArmedTargets(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("list armed targets: %w", err)
	}

	for _, target := range targets {
		if !engine.CheckTarget(priceNow, target.TargetPrice, target.Cmp) {
			continue
		}

		status := storage.StatusSent
		var sendErr *string
		msg := alerting.BuildTargetMessage(s.symbol, target.TargetPrice, target.Cmp, priceNow, targetOwner)
		if err := s.notifier.Notify(ctx, msg); err != nil {
			status = storage.StatusFailed
			text := err.Error()
			sendErr = &text
		}

		record := storage.AlertRecord{
			TS:        ts,
			Symbol:    s.symbol,
			CreatedBy: targetOwner,
			Kind:      engine.KindTarget,
			Baseline:  engine.BaselineTarget,
			Level:     0,
			Price:     priceNow,
			RefPrice:  target.TargetPrice,
			Status:    status,
			Error:     sendErr,
		}
		if err := s.store.FireTarget(ctx, target.ID, record); err != nil {
			s.logger.Error().Err(err).Int64("target_id", target.ID).Msg("failed to fire target")
			continue
		}

		s.logger.Info().
			Int64("target_id", target.ID).
			Str("target_price", target.TargetPrice.StringFixed(2)).
			Str("cmp", target.Cmp).
			Str("price", priceNow.StringFixed(2)).
			Str("status", status).
			Msg("target alert processed")
	}
	return nil
}

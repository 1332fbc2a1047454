package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"goldwatcher/internal/alerting"
	"goldwatcher/internal/engine"
	"goldwatcher/internal/storage"
	"goldwatcher/internal/timeutil"
)

// runAlertEngine 对每个订阅者的涨跌幅节点配置求值并派发告警。
//
// 两个基准价（昨日收盘 / 未平仓买入价）为所有订阅者共享, 并发查询。
// 每个触发节点受当日发送上限约束: N 级节点每日最多发送 N 次,
// 失败的发送同样计入审计表并占用配额。
func (s *Service) runAlertEngine(ctx context.Context, priceNow decimal.Decimal, ts time.Time) error {
	configs, err := s.store.ListRuleConfigs(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("list rule configs: %w", err)
	}
	if len(configs) == 0 {
		return nil
	}

	prevClose, buyPrice, err := s.referencePrices(ctx, ts)
	if err != nil {
		return err
	}
	if prevClose == nil && buyPrice == nil {
		s.logger.Debug().Msg("no reference prices available, skipping node checks")
		return nil
	}

	dayStart := timeutil.DayStart(ts, s.tzOffset)

	for _, cfg := range configs {
		var triggered []engine.Node
		if prevClose != nil {
			triggered = append(triggered, engine.CheckNodes(priceNow, *prevClose, engine.BaselinePrevClose, cfg.Rise, cfg.Fall)...)
		}
		if buyPrice != nil {
			triggered = append(triggered, engine.CheckNodes(priceNow, *buyPrice, engine.BaselineOpenPosition, cfg.Rise, cfg.Fall)...)
		}

		for _, node := range triggered {
			if err := s.dispatchNode(ctx, cfg, node, priceNow, ts, dayStart); err != nil {
				s.logger.Error().Err(err).
					Str("created_by", cfg.CreatedBy).
					Str("kind", string(node.Kind)).
					Int("level", node.Level).
					Msg("failed to dispatch node alert")
			}
		}
	}
	return nil
}

// referencePrices 并发加载昨日收盘价与未平仓买入价。
func (s *Service) referencePrices(ctx context.Context, ts time.Time) (*decimal.Decimal, *decimal.Decimal, error) {
	dayStart := timeutil.DayStart(ts, s.tzOffset)
	prevStart := timeutil.PrevDayStart(ts, s.tzOffset)

	var (
		wg        sync.WaitGroup
		prevClose *decimal.Decimal
		buyPrice  *decimal.Decimal
		closeErr  error
		buyErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		sample, err := s.store.LastPriceInRange(ctx, s.symbol, prevStart, dayStart)
		if err != nil {
			closeErr = err
			return
		}
		if sample != nil {
			prevClose = &sample.Price
		}
	}()
	go func() {
		defer wg.Done()
		buyPrice, buyErr = s.store.ActiveBuyPrice(ctx, s.symbol)
	}()
	wg.Wait()

	if closeErr != nil {
		return nil, nil, fmt.Errorf("load previous close: %w", closeErr)
	}
	if buyErr != nil {
		return nil, nil, fmt.Errorf("load active buy price: %w", buyErr)
	}
	return prevClose, buyPrice, nil
}

func (s *Service) dispatchNode(ctx context.Context, cfg storage.RuleConfig, node engine.Node, priceNow decimal.Decimal, ts, dayStart time.Time) error {
	sent, err := s.store.CountAlertsSince(ctx, s.symbol, cfg.CreatedBy, node.Kind, node.Baseline, node.Level, dayStart)
	if err != nil {
		return fmt.Errorf("count today's alerts: %w", err)
	}
	if sent >= engine.MaxDailySends(node.Level) {
		return nil
	}

	status := storage.StatusSent
	var sendErr *string
	msg := alerting.BuildNodeAlertMessage(s.symbol, node, priceNow, cfg.CreatedBy)
	if err := s.notifier.Notify(ctx, msg); err != nil {
		status = storage.StatusFailed
		text := err.Error()
		sendErr = &text
	}

	changePercent := node.ChangePercent
	record := storage.AlertRecord{
		TS:            ts,
		Symbol:        s.symbol,
		CreatedBy:     cfg.CreatedBy,
		Kind:          node.Kind,
		Baseline:      node.Baseline,
		Level:         node.Level,
		Price:         priceNow,
		RefPrice:      node.RefPrice,
		ChangePercent: &changePercent,
		Status:        status,
		Error:         sendErr,
	}
	if _, err := s.store.InsertAlert(ctx, record); err != nil {
		return fmt.Errorf("persist alert record: %w", err)
	}

	s.logger.Info().
		Str("created_by", cfg.CreatedBy).
		Str("kind", string(node.Kind)).
		Str("baseline", string(node.Baseline)).
		Int("level", node.Level).
		Str("change_percent", node.ChangePercent.StringFixed(2)).
		Str("status", status).
		Msg("node alert processed")
	return nil
}

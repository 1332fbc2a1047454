package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"goldwatcher/internal/report"
	"goldwatcher/internal/storage"
	"goldwatcher/internal/timeutil"
)

const reportTriggerDaily = "DAILY"

var dec100 = decimal.NewFromInt(100)

// sendDailyReportIfDue 在本地早报时刻的五分钟窗口内每天发送一次 AI 分析,
// 用日期标记去重。
func (s *Service) sendDailyReportIfDue(ctx context.Context, bucket time.Time) error {
	if s.reporter == nil {
		return nil
	}
	if !timeutil.InDailyWindow(bucket, s.tzOffset, s.reportHour) {
		return nil
	}

	today := timeutil.LocalDate(bucket, s.tzOffset)
	last, err := s.store.GetMarker(ctx, markerLastReport)
	if err != nil {
		return fmt.Errorf("read report marker: %w", err)
	}
	if last == today {
		return nil
	}
	if err := s.store.SetMarker(ctx, markerLastReport, today); err != nil {
		return fmt.Errorf("write report marker: %w", err)
	}

	return s.sendDailyReport(ctx, bucket)
}

// SendDailyReportNow 绕过日期门控立即生成并发送早报, 供测试接口与
// 手动触发使用。
func (s *Service) SendDailyReportNow(ctx context.Context) error {
	return s.sendDailyReport(ctx, s.now().UTC())
}

// sendDailyReport 生成并发送每日早报。
func (s *Service) sendDailyReport(ctx context.Context, ts time.Time) error {
	if s.reporter == nil {
		return fmt.Errorf("report generator not configured")
	}

	latest, err := s.store.LatestPrice(ctx, s.symbol)
	if err != nil {
		return fmt.Errorf("load latest price: %w", err)
	}
	if latest == nil {
		s.logger.Warn().Msg("no price data, skipping daily report")
		return nil
	}
	priceNow := latest.Price

	yesterdayClose, err := s.store.LastPriceAtOrBefore(ctx, s.symbol, ts.Add(-24*time.Hour))
	if err != nil {
		return fmt.Errorf("load yesterday close: %w", err)
	}
	var change24h *decimal.Decimal
	if yesterdayClose != nil && yesterdayClose.Price.Sign() > 0 {
		c := priceNow.Sub(yesterdayClose.Price).Div(yesterdayClose.Price).Mul(dec100)
		change24h = &c
	}

	recent, err := s.store.ListPricesBetween(ctx, s.symbol, ts.Add(-30*time.Minute), ts)
	if err != nil {
		return fmt.Errorf("load recent prices: %w", err)
	}

	var change5m *decimal.Decimal
	for _, p := range recent {
		if !p.TS.After(ts.Add(-5 * time.Minute)) {
			if p.Price.Sign() > 0 {
				c := priceNow.Sub(p.Price).Div(p.Price).Mul(dec100)
				change5m = &c
			}
			break
		}
	}

	daily, err := s.store.ListRecentDaily(ctx, s.symbol, 3)
	if err != nil {
		return fmt.Errorf("load daily lines: %w", err)
	}

	input := report.AnalysisInput{
		Symbol:   s.symbol,
		PriceNow: priceNow,
		Change5m: change5m,
	}
	for _, p := range recent {
		input.RecentPrices = append(input.RecentPrices, report.PricePoint{TS: p.TS, Price: p.Price})
	}
	for _, d := range daily {
		input.DailyLines = append(input.DailyLines, report.DailyLine{
			Date:     timeutil.LocalDate(d.DayTS, s.tzOffset),
			High:     d.MaxPrice,
			Low:      d.MinPrice,
			HighTime: timeutil.FormatLocal(d.MaxTS, s.tzOffset),
			LowTime:  timeutil.FormatLocal(d.MinTS, s.tzOffset),
		})
	}

	result, err := s.reporter.Generate(ctx, input)
	if err != nil {
		return fmt.Errorf("generate report: %w", err)
	}

	msg := s.buildDailyReportMessage(ts, priceNow, yesterdayClose, change24h, result)
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Error().Err(err).Msg("failed to send daily report")
	}

	triggerValue := "0"
	if change24h != nil {
		triggerValue = change24h.StringFixed(2)
	}
	record := storage.Report{
		Symbol:       s.symbol,
		TS:           ts,
		Model:        result.Model,
		ReportMD:     result.ReportMD,
		TriggerType:  reportTriggerDaily,
		TriggerValue: triggerValue,
	}
	if _, err := s.store.InsertReport(ctx, record); err != nil {
		return fmt.Errorf("persist report: %w", err)
	}

	s.logger.Info().Str("model", result.Model).Msg("daily report sent")
	return nil
}

func (s *Service) buildDailyReportMessage(ts time.Time, priceNow decimal.Decimal, yesterdayClose *storage.PriceSample, change24h *decimal.Decimal, result report.Result) string {
	lines := []string{
		fmt.Sprintf("📊 [%s 金价早报]", s.symbol),
		fmt.Sprintf("时间: %s", timeutil.FormatLocal(ts, s.tzOffset)),
		fmt.Sprintf("当前价: %s 元/克", priceNow.StringFixed(2)),
	}
	if yesterdayClose != nil && change24h != nil {
		icon := "📈"
		if change24h.Sign() < 0 {
			icon = "📉"
		}
		lines = append(lines,
			fmt.Sprintf("昨日收盘: %s 元/克", yesterdayClose.Price.StringFixed(2)),
			fmt.Sprintf("24h涨跌: %s %s%%", icon, change24h.StringFixed(2)),
		)
	}
	lines = append(lines, "", "═══════════════════", "")
	lines = append(lines, result.ReportMD)
	lines = append(lines, "", "═══════════════════")
	lines = append(lines, fmt.Sprintf("模型: %s", result.Model))
	return strings.Join(lines, "\n")
}

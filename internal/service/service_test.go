package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldwatcher/internal/aggregate"
	"goldwatcher/internal/config"
	"goldwatcher/internal/engine"
	"goldwatcher/internal/fetcher"
	"goldwatcher/internal/report"
	"goldwatcher/internal/storage"
)

// ─── 测试替身 ────────────────────────────────────────────────

type fakeStore struct {
	mu      sync.Mutex
	prices  []storage.PriceSample
	daily   map[int64]aggregate.Daily
	configs []storage.RuleConfig
	targets []storage.TargetConfig
	alerts  []storage.AlertRecord
	reports []storage.Report
	markers map[string]string
	global  *storage.GlobalConfig

	buyPrice *decimal.Decimal
	deletes  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		daily:   make(map[int64]aggregate.Daily),
		markers: make(map[string]string),
	}
}

func (f *fakeStore) InsertPrice(ctx context.Context, sample storage.PriceSample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sample.ID = int64(len(f.prices) + 1)
	f.prices = append(f.prices, sample)
	return nil
}

func (f *fakeStore) ListPricesBetween(ctx context.Context, symbol string, from, to time.Time) ([]storage.PriceSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.PriceSample
	for i := len(f.prices) - 1; i >= 0; i-- {
		p := f.prices[i]
		if p.Symbol == symbol && !p.TS.Before(from) && !p.TS.After(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) ListRecentPrices(ctx context.Context, symbol string, limit int) ([]storage.PriceSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.PriceSample
	for i := len(f.prices) - 1; i >= 0 && len(out) < limit; i-- {
		if f.prices[i].Symbol == symbol {
			out = append(out, f.prices[i])
		}
	}
	return out, nil
}

func (f *fakeStore) LatestPrice(ctx context.Context, symbol string) (*storage.PriceSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.prices) - 1; i >= 0; i-- {
		if f.prices[i].Symbol == symbol {
			p := f.prices[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) LastPriceInRange(ctx context.Context, symbol string, from, before time.Time) (*storage.PriceSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *storage.PriceSample
	for i := range f.prices {
		p := f.prices[i]
		if p.Symbol == symbol && !p.TS.Before(from) && p.TS.Before(before) {
			if found == nil || p.TS.After(found.TS) {
				found = &p
			}
		}
	}
	return found, nil
}

func (f *fakeStore) LastPriceAtOrBefore(ctx context.Context, symbol string, at time.Time) (*storage.PriceSample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *storage.PriceSample
	for i := range f.prices {
		p := f.prices[i]
		if p.Symbol == symbol && !p.TS.After(at) {
			if found == nil || p.TS.After(found.TS) {
				found = &p
			}
		}
	}
	return found, nil
}

func (f *fakeStore) DeletePricesBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes++
	return 0, nil
}

func (f *fakeStore) GetDaily(ctx context.Context, symbol string, dayTS time.Time) (*aggregate.Daily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.daily[dayTS.Unix()]; ok {
		return &row, nil
	}
	return nil, nil
}

func (f *fakeStore) InsertDaily(ctx context.Context, row aggregate.Daily) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.daily[row.DayTS.Unix()] = row
	return nil
}

func (f *fakeStore) ApplyDailyChange(ctx context.Context, symbol string, dayTS time.Time, change aggregate.Change, updated time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.daily[dayTS.Unix()]
	if !ok {
		return errors.New("daily row missing")
	}
	f.daily[dayTS.Unix()] = aggregate.Apply(row, change, updated)
	return nil
}

func (f *fakeStore) ListRecentDaily(ctx context.Context, symbol string, limit int) ([]aggregate.Daily, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []aggregate.Daily
	for _, row := range f.daily {
		out = append(out, row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) ListDailyBetween(ctx context.Context, symbol string, from, to time.Time) ([]aggregate.Daily, error) {
	return f.ListRecentDaily(ctx, symbol, len(f.daily))
}

func (f *fakeStore) DeleteDailyBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) ListRuleConfigs(ctx context.Context, symbol string) ([]storage.RuleConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage.RuleConfig(nil), f.configs...), nil
}

func (f *fakeStore) UpsertRuleConfig(ctx context.Context, cfg storage.RuleConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	return nil
}

func (f *fakeStore) ListArmedTargets(ctx context.Context, symbol string) ([]storage.TargetConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.TargetConfig
	for _, t := range f.targets {
		if t.Armed {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) ListTargets(ctx context.Context, symbol string) ([]storage.TargetConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage.TargetConfig(nil), f.targets...), nil
}

func (f *fakeStore) InsertTarget(ctx context.Context, target storage.TargetConfig) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target.ID = int64(len(f.targets) + 1)
	target.Armed = true
	f.targets = append(f.targets, target)
	return target.ID, nil
}

func (f *fakeStore) UpdateTarget(ctx context.Context, target storage.TargetConfig) error {
	return nil
}

func (f *fakeStore) DeleteTarget(ctx context.Context, id int64) error {
	return nil
}

func (f *fakeStore) FireTarget(ctx context.Context, targetID int64, alert storage.AlertRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert.ID = int64(len(f.alerts) + 1)
	f.alerts = append(f.alerts, alert)
	for i := range f.targets {
		if f.targets[i].ID == targetID {
			f.targets[i].Armed = false
		}
	}
	return nil
}

func (f *fakeStore) InsertAlert(ctx context.Context, alert storage.AlertRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	alert.ID = int64(len(f.alerts) + 1)
	f.alerts = append(f.alerts, alert)
	return alert.ID, nil
}

func (f *fakeStore) CountAlertsSince(ctx context.Context, symbol, createdBy string, kind engine.Kind, baseline engine.Baseline, level int, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.alerts {
		if a.Symbol == symbol && a.CreatedBy == createdBy && a.Kind == kind &&
			a.Baseline == baseline && a.Level == level && !a.TS.Before(since) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) ListRecentAlerts(ctx context.Context, symbol string, limit int) ([]storage.AlertRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage.AlertRecord(nil), f.alerts...), nil
}

func (f *fakeStore) ListAlertsBetween(ctx context.Context, symbol string, from, to time.Time) ([]storage.AlertRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.AlertRecord
	for _, a := range f.alerts {
		if a.Symbol == symbol && !a.TS.Before(from) && !a.TS.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) RecordTrade(ctx context.Context, trade storage.Trade) (int64, error) {
	return 0, nil
}

func (f *fakeStore) ListTradesBetween(ctx context.Context, symbol string, from, to time.Time) ([]storage.Trade, error) {
	return nil, nil
}

func (f *fakeStore) ActiveBuyPrice(ctx context.Context, symbol string) (*decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buyPrice, nil
}

func (f *fakeStore) GetHolding(ctx context.Context, symbol string) (*storage.Holding, error) {
	return nil, nil
}

func (f *fakeStore) DeleteTradesBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) InsertReport(ctx context.Context, r storage.Report) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = int64(len(f.reports) + 1)
	f.reports = append(f.reports, r)
	return r.ID, nil
}

func (f *fakeStore) ListRecentReports(ctx context.Context, symbol string, limit int) ([]storage.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage.Report(nil), f.reports...), nil
}

func (f *fakeStore) DeleteReportsBefore(ctx context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeStore) GetMarker(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.markers[key], nil
}

func (f *fakeStore) SetMarker(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markers[key] = value
	return nil
}

func (f *fakeStore) GetGlobalConfig(ctx context.Context, symbol string) (*storage.GlobalConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.global, nil
}

func (f *fakeStore) UpsertGlobalConfig(ctx context.Context, cfg storage.GlobalConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global = &cfg
	return nil
}

var _ Store = (*fakeStore)(nil)

type fakeFetcher struct {
	quote fetcher.Quote
	err   error
	calls int
}

func (f *fakeFetcher) FetchPrice(ctx context.Context) (fetcher.Quote, error) {
	f.calls++
	if f.err != nil {
		return fetcher.Quote{}, f.err
	}
	return f.quote, nil
}

type fakeNotifier struct {
	texts []string
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, text string) error {
	f.texts = append(f.texts, text)
	return f.err
}

type fakeReporter struct {
	result report.Result
	err    error
	calls  int
}

func (f *fakeReporter) Generate(ctx context.Context, input report.AnalysisInput) (report.Result, error) {
	f.calls++
	if f.err != nil {
		return report.Result{}, f.err
	}
	return f.result, nil
}

// ─── 组装辅助 ────────────────────────────────────────────────

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Market.Symbol = "AU"
	cfg.Market.TZOffsetHours = 8
	cfg.Maintenance.RetentionDays = 360
	cfg.Maintenance.CleanupHour = 0
	cfg.Maintenance.ReportHour = 9
	return cfg
}

func newTestService(store *fakeStore, fetch *fakeFetcher, notifier *fakeNotifier, reporter report.Generator, now time.Time) *Service {
	svc := New(testConfig(), Options{
		Store:    store,
		Fetcher:  fetch,
		Notifier: notifier,
		Reporter: reporter,
	}, zerolog.Nop())
	svc.now = func() time.Time { return now }
	return svc
}

func openMarket(store *fakeStore) {
	store.global = &storage.GlobalConfig{Symbol: "AU", MarketStatus: storage.MarketOpen}
}

// midMorning 是北京时间 2025-06-02 10:30 对应的 UTC 时刻,
// 避开清理与早报窗口。
var midMorning = time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// ─── 用例 ────────────────────────────────────────────────────

func TestTickMarketClosedSkipsFetch(t *testing.T) {
	store := newFakeStore()
	fetch := &fakeFetcher{quote: fetcher.Quote{Price: dec("583.5"), Source: "panjia"}}
	notifier := &fakeNotifier{}
	svc := newTestService(store, fetch, notifier, nil, midMorning)

	if err := svc.ProcessTick(context.Background(), midMorning); err != nil {
		t.Fatalf("停盘周期不应报错: %v", err)
	}
	if fetch.calls != 0 {
		t.Fatalf("停盘时不应抓取价格, 实际调用 %d 次", fetch.calls)
	}
	if len(store.prices) != 0 {
		t.Fatalf("停盘时不应写入价格, 实际 %d 条", len(store.prices))
	}
}

func TestTickIngestsAndAggregates(t *testing.T) {
	store := newFakeStore()
	openMarket(store)
	fetch := &fakeFetcher{quote: fetcher.Quote{Price: dec("583.50"), XAU: dec("2412.3"), Source: "panjia"}}
	notifier := &fakeNotifier{}
	svc := newTestService(store, fetch, notifier, nil, midMorning)

	if err := svc.ProcessTick(context.Background(), midMorning); err != nil {
		t.Fatalf("采样周期不应报错: %v", err)
	}
	if len(store.prices) != 1 {
		t.Fatalf("应写入一条价格, 实际 %d 条", len(store.prices))
	}
	if len(store.daily) != 1 {
		t.Fatalf("应创建日线行, 实际 %d 行", len(store.daily))
	}

	// 第二个样本创出新高, 日线最大值应更新。
	fetch.quote.Price = dec("584.20")
	later := midMorning.Add(time.Minute)
	svc.now = func() time.Time { return later }
	if err := svc.ProcessTick(context.Background(), later); err != nil {
		t.Fatalf("第二个采样周期不应报错: %v", err)
	}
	for _, row := range store.daily {
		if !row.MaxPrice.Equal(dec("584.20")) {
			t.Fatalf("日线最大值应为 584.20, 实际 %s", row.MaxPrice.String())
		}
		if !row.MinPrice.Equal(dec("583.50")) {
			t.Fatalf("日线最小值应为 583.50, 实际 %s", row.MinPrice.String())
		}
	}
}

func TestNodeAlertRespectsDailyCap(t *testing.T) {
	store := newFakeStore()
	openMarket(store)
	// 昨日收盘价样本: 北京时间 2025-06-01 23:59。
	store.prices = append(store.prices, storage.PriceSample{
		Symbol: "AU",
		TS:     time.Date(2025, 6, 1, 15, 59, 0, 0, time.UTC),
		Price:  dec("575"),
	})
	store.configs = []storage.RuleConfig{{
		Symbol:    "AU",
		CreatedBy: "alice",
		Rise:      [3]*decimal.Decimal{decPtr("1.0"), nil, nil},
	}}

	fetch := &fakeFetcher{quote: fetcher.Quote{Price: dec("583"), Source: "panjia"}}
	notifier := &fakeNotifier{}
	svc := newTestService(store, fetch, notifier, nil, midMorning)

	if err := svc.ProcessTick(context.Background(), midMorning); err != nil {
		t.Fatalf("采样周期不应报错: %v", err)
	}

	var nodeAlerts []storage.AlertRecord
	for _, a := range store.alerts {
		if a.Kind == engine.KindRise {
			nodeAlerts = append(nodeAlerts, a)
		}
	}
	if len(nodeAlerts) != 1 {
		t.Fatalf("应触发一条一级涨幅告警, 实际 %d 条", len(nodeAlerts))
	}
	alert := nodeAlerts[0]
	if alert.Baseline != engine.BaselinePrevClose || alert.Level != 1 || alert.Status != storage.StatusSent {
		t.Fatalf("告警字段不正确: %+v", alert)
	}
	if len(notifier.texts) != 1 {
		t.Fatalf("应发送一条飞书消息, 实际 %d 条", len(notifier.texts))
	}

	// 一级节点每日上限一次: 同日再次触发应被抑制。
	later := midMorning.Add(time.Minute)
	svc.now = func() time.Time { return later }
	if err := svc.ProcessTick(context.Background(), later); err != nil {
		t.Fatalf("第二个采样周期不应报错: %v", err)
	}
	count := 0
	for _, a := range store.alerts {
		if a.Kind == engine.KindRise {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("当日上限后不应再发送, 实际 %d 条", count)
	}
}

func TestNodeAlertFailureRecordedAndCounted(t *testing.T) {
	store := newFakeStore()
	openMarket(store)
	store.prices = append(store.prices, storage.PriceSample{
		Symbol: "AU",
		TS:     time.Date(2025, 6, 1, 15, 59, 0, 0, time.UTC),
		Price:  dec("575"),
	})
	store.configs = []storage.RuleConfig{{
		Symbol:    "AU",
		CreatedBy: "alice",
		Rise:      [3]*decimal.Decimal{decPtr("1.0"), nil, nil},
	}}

	fetch := &fakeFetcher{quote: fetcher.Quote{Price: dec("583"), Source: "panjia"}}
	notifier := &fakeNotifier{err: errors.New("webhook down")}
	svc := newTestService(store, fetch, notifier, nil, midMorning)

	if err := svc.ProcessTick(context.Background(), midMorning); err != nil {
		t.Fatalf("采样周期不应报错: %v", err)
	}

	var failed *storage.AlertRecord
	for i := range store.alerts {
		if store.alerts[i].Kind == engine.KindRise {
			failed = &store.alerts[i]
		}
	}
	if failed == nil || failed.Status != storage.StatusFailed || failed.Error == nil {
		t.Fatalf("发送失败仍应写入 FAILED 审计行: %+v", failed)
	}

	// 失败同样占用当日配额。
	later := midMorning.Add(time.Minute)
	svc.now = func() time.Time { return later }
	if err := svc.ProcessTick(context.Background(), later); err != nil {
		t.Fatalf("第二个采样周期不应报错: %v", err)
	}
	count := 0
	for _, a := range store.alerts {
		if a.Kind == engine.KindRise {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("失败的发送应计入上限, 实际 %d 条", count)
	}
}

func TestTargetFiresOnceAndDisarms(t *testing.T) {
	store := newFakeStore()
	openMarket(store)
	store.targets = []storage.TargetConfig{{
		ID:          1,
		Symbol:      "AU",
		TargetPrice: dec("580"),
		Cmp:         engine.CmpGTE,
		Armed:       true,
	}}

	fetch := &fakeFetcher{quote: fetcher.Quote{Price: dec("581.2"), Source: "panjia"}}
	notifier := &fakeNotifier{}
	svc := newTestService(store, fetch, notifier, nil, midMorning)

	if err := svc.ProcessTick(context.Background(), midMorning); err != nil {
		t.Fatalf("采样周期不应报错: %v", err)
	}

	var targetAlerts int
	for _, a := range store.alerts {
		if a.Kind == engine.KindTarget {
			targetAlerts++
			if a.Level != 0 || a.Baseline != engine.BaselineTarget {
				t.Fatalf("目标价审计行字段不正确: %+v", a)
			}
		}
	}
	if targetAlerts != 1 {
		t.Fatalf("应触发一条目标价告警, 实际 %d 条", targetAlerts)
	}
	if store.targets[0].Armed {
		t.Fatal("触发后目标应解除武装")
	}

	// 解除武装后不再触发。
	later := midMorning.Add(time.Minute)
	svc.now = func() time.Time { return later }
	if err := svc.ProcessTick(context.Background(), later); err != nil {
		t.Fatalf("第二个采样周期不应报错: %v", err)
	}
	count := 0
	for _, a := range store.alerts {
		if a.Kind == engine.KindTarget {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("目标价至多触发一次, 实际 %d 条", count)
	}
}

func TestFetchFailureAbortsCycle(t *testing.T) {
	store := newFakeStore()
	openMarket(store)
	fetch := &fakeFetcher{err: errors.New("feed unreachable")}
	notifier := &fakeNotifier{}
	svc := newTestService(store, fetch, notifier, nil, midMorning)

	if err := svc.ProcessTick(context.Background(), midMorning); err == nil {
		t.Fatal("抓取失败应返回错误")
	}
	if len(store.prices) != 0 || len(store.alerts) != 0 {
		t.Fatal("抓取失败后不应写入价格或告警")
	}
}

func TestCleanupGateRunsOncePerDay(t *testing.T) {
	store := newFakeStore()
	// 北京时间 2025-06-02 00:01 = UTC 2025-06-01 16:01。
	bucket := time.Date(2025, 6, 1, 16, 1, 0, 0, time.UTC)
	fetch := &fakeFetcher{quote: fetcher.Quote{Price: dec("583.5"), Source: "panjia"}}
	svc := newTestService(store, fetch, &fakeNotifier{}, nil, bucket)

	if err := svc.ProcessTick(context.Background(), bucket); err != nil {
		t.Fatalf("清理周期不应报错: %v", err)
	}
	if store.deletes != 1 {
		t.Fatalf("清理应执行一次, 实际 %d 次", store.deletes)
	}
	if store.markers[markerLastCleanup] != "2025-06-02" {
		t.Fatalf("清理标记不正确: %q", store.markers[markerLastCleanup])
	}

	// 同窗口内第二个周期应被标记去重。
	next := bucket.Add(time.Minute)
	svc.now = func() time.Time { return next }
	if err := svc.ProcessTick(context.Background(), next); err != nil {
		t.Fatalf("第二个清理周期不应报错: %v", err)
	}
	if store.deletes != 1 {
		t.Fatalf("清理不应重复执行, 实际 %d 次", store.deletes)
	}
}

func TestCleanupSkippedOutsideWindow(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeFetcher{}, &fakeNotifier{}, nil, midMorning)

	if err := svc.ProcessTick(context.Background(), midMorning); err != nil {
		t.Fatalf("周期不应报错: %v", err)
	}
	if store.deletes != 0 {
		t.Fatal("窗口之外不应执行清理")
	}
}

func TestDailyReportGate(t *testing.T) {
	store := newFakeStore()
	// 历史价格提供昨收与最近序列。
	store.prices = append(store.prices,
		storage.PriceSample{Symbol: "AU", TS: time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC), Price: dec("575")},
		storage.PriceSample{Symbol: "AU", TS: time.Date(2025, 6, 1, 0, 58, 0, 0, time.UTC), Price: dec("583.4")},
		storage.PriceSample{Symbol: "AU", TS: time.Date(2025, 6, 1, 1, 0, 0, 0, time.UTC), Price: dec("583.5")},
	)
	// 北京时间 2025-06-01 09:01 = UTC 01:01。
	bucket := time.Date(2025, 6, 1, 1, 1, 0, 0, time.UTC)
	reporter := &fakeReporter{result: report.Result{Model: "deepseek-chat", ReportMD: "## 市场回顾\n平稳"}}
	notifier := &fakeNotifier{}
	svc := newTestService(store, &fakeFetcher{}, notifier, reporter, bucket)

	if err := svc.ProcessTick(context.Background(), bucket); err != nil {
		t.Fatalf("早报周期不应报错: %v", err)
	}
	if reporter.calls != 1 {
		t.Fatalf("应生成一次报告, 实际 %d 次", reporter.calls)
	}
	if len(store.reports) != 1 {
		t.Fatalf("报告应持久化, 实际 %d 条", len(store.reports))
	}
	if store.reports[0].TriggerType != reportTriggerDaily {
		t.Fatalf("报告触发类型不正确: %s", store.reports[0].TriggerType)
	}
	if len(notifier.texts) != 1 {
		t.Fatalf("早报应发送一条消息, 实际 %d 条", len(notifier.texts))
	}
	if store.markers[markerLastReport] != "2025-06-01" {
		t.Fatalf("早报标记不正确: %q", store.markers[markerLastReport])
	}

	// 同日第二个周期去重。
	next := bucket.Add(time.Minute)
	svc.now = func() time.Time { return next }
	if err := svc.ProcessTick(context.Background(), next); err != nil {
		t.Fatalf("第二个早报周期不应报错: %v", err)
	}
	if reporter.calls != 1 {
		t.Fatalf("早报不应重复生成, 实际 %d 次", reporter.calls)
	}
}

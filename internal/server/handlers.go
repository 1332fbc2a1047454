package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"goldwatcher/internal/alerting"
	"goldwatcher/internal/engine"
	"goldwatcher/internal/report"
	"goldwatcher/internal/storage"
)

// 查询参数缺省范围。
const (
	defaultPriceRange = 24 * time.Hour
	defaultListRange  = 7 * 24 * time.Hour
)

func (s *Server) symbolParam(c *gin.Context) string {
	if symbol := c.Query("symbol"); symbol != "" {
		return symbol
	}
	return s.cfg.Market.Symbol
}

// timeRange 解析 from/to unix 秒参数, 并把起点钳制在保留期之内。
func (s *Server) timeRange(c *gin.Context, span time.Duration) (time.Time, time.Time) {
	now := s.now().UTC()
	from := now.Add(-span)
	to := now

	if raw := c.Query("from"); raw != "" {
		if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
			from = time.Unix(sec, 0).UTC()
		}
	}
	if raw := c.Query("to"); raw != "" {
		if sec, err := strconv.ParseInt(raw, 10, 64); err == nil {
			to = time.Unix(sec, 0).UTC()
		}
	}

	if oldest := now.Add(-s.cfg.Maintenance.Retention()); from.Before(oldest) {
		from = oldest
	}
	return from, to
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// GET /api/prices?from=&to=
func (s *Server) handleGetPrices(c *gin.Context) {
	from, to := s.timeRange(c, defaultPriceRange)
	prices, err := s.store.ListPricesBetween(c.Request.Context(), s.symbolParam(c), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list prices")
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch prices")
		return
	}

	// 存储层按时间倒序返回, 前端按时间正序绘图。
	out := make([]gin.H, 0, len(prices))
	for i := len(prices) - 1; i >= 0; i-- {
		out = append(out, gin.H{"ts": prices[i].TS.Unix(), "price": prices[i].Price})
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/daily-prices?from=&to=
func (s *Server) handleGetDailyPrices(c *gin.Context) {
	from, to := s.timeRange(c, defaultListRange)
	rows, err := s.store.ListDailyBetween(c.Request.Context(), s.symbolParam(c), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list daily prices")
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch daily prices")
		return
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"symbol":       row.Symbol,
			"day_ts":       row.DayTS.Unix(),
			"max_price":    row.MaxPrice,
			"min_price":    row.MinPrice,
			"max_ts":       row.MaxTS.Unix(),
			"min_ts":       row.MinTS.Unix(),
			"last_updated": row.LastUpdated.Unix(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/trades?from=&to=
func (s *Server) handleGetTrades(c *gin.Context) {
	from, to := s.timeRange(c, defaultListRange)
	trades, err := s.store.ListTradesBetween(c.Request.Context(), s.symbolParam(c), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list trades")
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch trades")
		return
	}

	out := make([]gin.H, 0, len(trades))
	for _, t := range trades {
		row := gin.H{
			"id":     t.ID,
			"ts":     t.TS.Unix(),
			"symbol": t.Symbol,
			"side":   t.Side,
			"price":  t.Price,
			"qty":    t.Qty,
		}
		if t.Note != nil {
			row["note"] = *t.Note
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, out)
}

type tradeRequest struct {
	TS    int64       `json:"ts" binding:"required"`
	Side  string      `json:"side" binding:"required"`
	Price json.Number `json:"price" binding:"required"`
	Qty   json.Number `json:"qty"`
	Note  string      `json:"note"`
}

// POST /api/trades
func (s *Server) handlePostTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Missing required fields: ts, side, price")
		return
	}

	side, ok := normalizeSide(req.Side)
	if !ok {
		errorJSON(c, http.StatusBadRequest, "side must be BUY or SELL")
		return
	}

	price, err := decimal.NewFromString(req.Price.String())
	if err != nil || price.Sign() <= 0 {
		errorJSON(c, http.StatusBadRequest, "price must be a positive number")
		return
	}

	qty := decimal.NewFromInt(1)
	if req.Qty != "" {
		qty, err = decimal.NewFromString(req.Qty.String())
		if err != nil || qty.Sign() <= 0 {
			errorJSON(c, http.StatusBadRequest, "qty must be a positive number")
			return
		}
	}

	trade := storage.Trade{
		TS:     time.Unix(req.TS, 0).UTC(),
		Symbol: s.symbolParam(c),
		Side:   side,
		Price:  price,
		Qty:    qty,
	}
	if req.Note != "" {
		trade.Note = &req.Note
	}

	if _, err := s.store.RecordTrade(c.Request.Context(), trade); err != nil {
		if errors.Is(err, storage.ErrInsufficientHolding) {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("failed to record trade")
		errorJSON(c, http.StatusInternalServerError, "Failed to record trade")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true})
}

// 前端历史上同时用过中文和英文的方向值。
func normalizeSide(side string) (string, bool) {
	switch side {
	case storage.SideBuy, "买":
		return storage.SideBuy, true
	case storage.SideSell, "卖":
		return storage.SideSell, true
	default:
		return "", false
	}
}

// GET /api/holdings?symbol=
func (s *Server) handleGetHoldings(c *gin.Context) {
	symbol := s.symbolParam(c)
	holding, err := s.store.GetHolding(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load holding")
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch holdings")
		return
	}

	if holding == nil {
		c.JSON(http.StatusOK, gin.H{
			"symbol":          symbol,
			"total_qty":       decimal.Zero,
			"total_cost":      decimal.Zero,
			"avg_price":       decimal.Zero,
			"realized_profit": decimal.Zero,
			"updated_ts":      s.now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":          holding.Symbol,
		"total_qty":       holding.TotalQty,
		"total_cost":      holding.TotalCost,
		"avg_price":       holding.AvgPrice,
		"realized_profit": holding.RealizedProfit,
		"updated_ts":      holding.UpdatedTS.Unix(),
	})
}

// GET /api/alerts?from=&to=
func (s *Server) handleGetAlerts(c *gin.Context) {
	from, to := s.timeRange(c, defaultListRange)
	alerts, err := s.store.ListAlertsBetween(c.Request.Context(), s.symbolParam(c), from, to)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list alerts")
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch alerts")
		return
	}

	out := make([]gin.H, 0, len(alerts))
	for _, a := range alerts {
		row := gin.H{
			"id":         a.ID,
			"ts":         a.TS.Unix(),
			"symbol":     a.Symbol,
			"created_by": a.CreatedBy,
			"alert_type": a.Kind,
			"base_type":  a.Baseline,
			"node_level": a.Level,
			"price":      a.Price,
			"ref_price":  a.RefPrice,
			"status":     a.Status,
		}
		if a.ChangePercent != nil {
			row["change_percent"] = *a.ChangePercent
		}
		if a.Error != nil {
			row["error"] = *a.Error
		}
		out = append(out, row)
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/reports?limit=
func (s *Server) handleGetReports(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	reports, err := s.store.ListRecentReports(c.Request.Context(), s.symbolParam(c), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list reports")
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch reports")
		return
	}

	out := make([]gin.H, 0, len(reports))
	for _, r := range reports {
		out = append(out, gin.H{
			"id":            r.ID,
			"symbol":        r.Symbol,
			"ts":            r.TS.Unix(),
			"model":         r.Model,
			"report_md":     r.ReportMD,
			"trigger_type":  r.TriggerType,
			"trigger_value": r.TriggerValue,
		})
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/user-targets?symbol=
func (s *Server) handleGetUserTargets(c *gin.Context) {
	targets, err := s.store.ListTargets(c.Request.Context(), s.symbolParam(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list targets")
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch targets")
		return
	}

	out := make([]gin.H, 0, len(targets))
	for _, t := range targets {
		out = append(out, gin.H{
			"id":           t.ID,
			"symbol":       t.Symbol,
			"target_price": t.TargetPrice,
			"target_cmp":   t.Cmp,
			"target_alert": t.Armed,
			"created_ts":   t.CreatedTS.Unix(),
			"updated_ts":   t.UpdatedTS.Unix(),
		})
	}
	c.JSON(http.StatusOK, out)
}

type targetRequest struct {
	Symbol      string      `json:"symbol"`
	TargetPrice json.Number `json:"target_price" binding:"required"`
	TargetCmp   string      `json:"target_cmp"`
	TargetAlert *bool       `json:"target_alert"`
}

func (r targetRequest) cmp() (string, bool) {
	switch r.TargetCmp {
	case "", engine.CmpGTE:
		return engine.CmpGTE, true
	case engine.CmpLTE, engine.CmpEQ:
		return r.TargetCmp, true
	default:
		return "", false
	}
}

// POST /api/user-targets
func (s *Server) handlePostUserTarget(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Missing required field: target_price")
		return
	}

	cmp, ok := req.cmp()
	if !ok {
		errorJSON(c, http.StatusBadRequest, "target_cmp must be EQ, GTE or LTE")
		return
	}
	price, err := decimal.NewFromString(req.TargetPrice.String())
	if err != nil || price.Sign() <= 0 {
		errorJSON(c, http.StatusBadRequest, "target_price must be a positive number")
		return
	}

	symbol := req.Symbol
	if symbol == "" {
		symbol = s.cfg.Market.Symbol
	}

	now := s.now().UTC()
	target := storage.TargetConfig{
		Symbol:      symbol,
		TargetPrice: price,
		Cmp:         cmp,
		Armed:       true,
		CreatedTS:   now,
		UpdatedTS:   now,
	}
	if _, err := s.store.InsertTarget(c.Request.Context(), target); err != nil {
		s.logger.Error().Err(err).Msg("failed to insert target")
		errorJSON(c, http.StatusInternalServerError, "Failed to create target")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PUT /api/user-targets/:id
func (s *Server) handlePutUserTarget(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid target id")
		return
	}

	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Missing required field: target_price")
		return
	}
	cmp, ok := req.cmp()
	if !ok {
		errorJSON(c, http.StatusBadRequest, "target_cmp must be EQ, GTE or LTE")
		return
	}
	price, err := decimal.NewFromString(req.TargetPrice.String())
	if err != nil || price.Sign() <= 0 {
		errorJSON(c, http.StatusBadRequest, "target_price must be a positive number")
		return
	}

	armed := true
	if req.TargetAlert != nil {
		armed = *req.TargetAlert
	}

	target := storage.TargetConfig{
		ID:          id,
		TargetPrice: price,
		Cmp:         cmp,
		Armed:       armed,
		UpdatedTS:   s.now().UTC(),
	}
	if err := s.store.UpdateTarget(c.Request.Context(), target); err != nil {
		s.logger.Error().Err(err).Msg("failed to update target")
		errorJSON(c, http.StatusInternalServerError, "Failed to update target")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DELETE /api/user-targets/:id
func (s *Server) handleDeleteUserTarget(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid target id")
		return
	}
	if err := s.store.DeleteTarget(c.Request.Context(), id); err != nil {
		s.logger.Error().Err(err).Msg("failed to delete target")
		errorJSON(c, http.StatusInternalServerError, "Failed to delete target")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GET /api/global-config?symbol=
func (s *Server) handleGetGlobalConfig(c *gin.Context) {
	cfg, err := s.store.GetGlobalConfig(c.Request.Context(), s.symbolParam(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load global config")
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch global config")
		return
	}
	if cfg == nil {
		errorJSON(c, http.StatusNotFound, "Global config not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":        cfg.Symbol,
		"market_status": cfg.MarketStatus,
		"rise_1":        cfg.Rise[0],
		"rise_2":        cfg.Rise[1],
		"rise_3":        cfg.Rise[2],
		"fall_1":        cfg.Fall[0],
		"fall_2":        cfg.Fall[1],
		"fall_3":        cfg.Fall[2],
		"updated_ts":    cfg.UpdatedTS.Unix(),
	})
}

type globalConfigRequest struct {
	Symbol       string       `json:"symbol"`
	MarketStatus string       `json:"market_status"`
	Rise1        *json.Number `json:"rise_1"`
	Rise2        *json.Number `json:"rise_2"`
	Rise3        *json.Number `json:"rise_3"`
	Fall1        *json.Number `json:"fall_1"`
	Fall2        *json.Number `json:"fall_2"`
	Fall3        *json.Number `json:"fall_3"`
}

// POST /api/global-config
func (s *Server) handlePostGlobalConfig(c *gin.Context) {
	var req globalConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	symbol := req.Symbol
	if symbol == "" {
		symbol = s.cfg.Market.Symbol
	}
	status := req.MarketStatus
	if status == "" {
		status = storage.MarketOpen
	}

	cfg := storage.GlobalConfig{Symbol: symbol, MarketStatus: status}
	for i, slot := range []*json.Number{req.Rise1, req.Rise2, req.Rise3} {
		d, err := optionalDecimal(slot)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "rise thresholds must be numbers")
			return
		}
		cfg.Rise[i] = d
	}
	for i, slot := range []*json.Number{req.Fall1, req.Fall2, req.Fall3} {
		d, err := optionalDecimal(slot)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "fall thresholds must be numbers")
			return
		}
		cfg.Fall[i] = d
	}

	if err := s.store.UpsertGlobalConfig(c.Request.Context(), cfg); err != nil {
		s.logger.Error().Err(err).Msg("failed to upsert global config")
		errorJSON(c, http.StatusInternalServerError, "Failed to update global config")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func optionalDecimal(n *json.Number) (*decimal.Decimal, error) {
	if n == nil || *n == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GET /api/user-configs?symbol=
func (s *Server) handleGetUserConfigs(c *gin.Context) {
	configs, err := s.store.ListRuleConfigs(c.Request.Context(), s.symbolParam(c))
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list user configs")
		errorJSON(c, http.StatusInternalServerError, "Failed to fetch user configs")
		return
	}

	out := make([]gin.H, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, gin.H{
			"id":         cfg.ID,
			"symbol":     cfg.Symbol,
			"created_by": cfg.CreatedBy,
			"rise_1":     cfg.Rise[0],
			"rise_2":     cfg.Rise[1],
			"rise_3":     cfg.Rise[2],
			"fall_1":     cfg.Fall[0],
			"fall_2":     cfg.Fall[1],
			"fall_3":     cfg.Fall[2],
		})
	}
	c.JSON(http.StatusOK, out)
}

type userConfigRequest struct {
	Symbol    string       `json:"symbol"`
	CreatedBy string       `json:"created_by" binding:"required"`
	Rise1     *json.Number `json:"rise_1"`
	Rise2     *json.Number `json:"rise_2"`
	Rise3     *json.Number `json:"rise_3"`
	Fall1     *json.Number `json:"fall_1"`
	Fall2     *json.Number `json:"fall_2"`
	Fall3     *json.Number `json:"fall_3"`
}

// POST /api/user-configs
func (s *Server) handlePostUserConfig(c *gin.Context) {
	var req userConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "Missing required field: created_by")
		return
	}

	symbol := req.Symbol
	if symbol == "" {
		symbol = s.cfg.Market.Symbol
	}

	cfg := storage.RuleConfig{Symbol: symbol, CreatedBy: req.CreatedBy}
	for i, slot := range []*json.Number{req.Rise1, req.Rise2, req.Rise3} {
		d, err := optionalDecimal(slot)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "rise thresholds must be numbers")
			return
		}
		cfg.Rise[i] = d
	}
	for i, slot := range []*json.Number{req.Fall1, req.Fall2, req.Fall3} {
		d, err := optionalDecimal(slot)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "fall thresholds must be numbers")
			return
		}
		cfg.Fall[i] = d
	}

	if err := s.store.UpsertRuleConfig(c.Request.Context(), cfg); err != nil {
		s.logger.Error().Err(err).Msg("failed to upsert user config")
		errorJSON(c, http.StatusInternalServerError, "Failed to update user config")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// POST /api/test/feishu
func (s *Server) handleTestFeishu(c *gin.Context) {
	text := "🧪 [测试消息]\n时间: " + s.now().UTC().Format(time.RFC3339) + "\n这是一条测试消息，用于验证飞书机器人配置是否正确。"
	if err := s.notifier.Notify(c.Request.Context(), text); err != nil {
		if errors.Is(err, alerting.ErrWebhookNotConfigured) {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "发送失败: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "测试消息已发送到飞书群"})
}

// POST /api/test/alert
func (s *Server) handleTestAlert(c *gin.Context) {
	node := engine.Node{
		Kind:          engine.KindRise,
		Baseline:      engine.BaselinePrevClose,
		Level:         2,
		ChangePercent: decimal.RequireFromString("0.96"),
		RefPrice:      decimal.RequireFromString("575.00"),
	}
	msg := alerting.BuildNodeAlertMessage(s.cfg.Market.Symbol, node, decimal.RequireFromString("580.50"), "测试用户")
	msg += "\n\n⚠️ 这是一条测试告警消息"

	if err := s.notifier.Notify(c.Request.Context(), msg); err != nil {
		if errors.Is(err, alerting.ErrWebhookNotConfigured) {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "发送失败: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "测试告警消息已发送到飞书群"})
}

// POST /api/test/daily-report
func (s *Server) handleTestDailyReport(c *gin.Context) {
	if s.svc == nil {
		errorJSON(c, http.StatusServiceUnavailable, "report service not configured")
		return
	}
	if err := s.svc.SendDailyReportNow(c.Request.Context()); err != nil {
		if errors.Is(err, report.ErrNotConfigured) {
			errorJSON(c, http.StatusBadRequest, err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "生成报告失败: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "AI 分析报告已生成并发送到飞书群"})
}

package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldwatcher/internal/timeutil"
)

// ErrNotConfigured indicates the AI endpoint or key is missing.
var ErrNotConfigured = errors.New("ai api url or key not configured")

const systemPrompt = `你是一位专业的黄金市场分析师。请根据提供的实时金价数据和历史日线数据，用中文输出简洁的 Markdown 格式分析报告。

报告必须包含以下三个部分：
## 市场回顾
简要分析过去三天的价格走势和关键变化（2-3 条）

## 未来三天展望
评估未来三天的风险等级和可能走势，包括：
- 风险等级：低/中/高
- 支撑位和阻力位预测
- 关键影响因素

## 操作建议
分别给出三种策略：
- **保守**: 适合风险厌恶型投资者
- **中性**: 适合普通投资者
- **激进**: 适合短线交易者

注意：保持客观，避免过度自信的预测。`

// PricePoint is one timestamped price for the prompt context.
type PricePoint struct {
	TS    time.Time
	Price decimal.Decimal
}

// DailyLine is one day's aggregate for the prompt context.
type DailyLine struct {
	Date     string
	High     decimal.Decimal
	Low      decimal.Decimal
	HighTime string
	LowTime  string
}

// AnalysisInput carries the market context handed to the model.
type AnalysisInput struct {
	Symbol       string
	PriceNow     decimal.Decimal
	Change1m     *decimal.Decimal
	Change5m     *decimal.Decimal
	RecentPrices []PricePoint
	DailyLines   []DailyLine
}

// Result is a generated report.
type Result struct {
	Model    string
	ReportMD string
}

// Generator produces market commentary from an analysis input.
type Generator interface {
	Generate(ctx context.Context, input AnalysisInput) (Result, error)
}

// Options parameterise the OpenAI-compatible generator.
type Options struct {
	APIURL      string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TZOffset    time.Duration
	Timeout     time.Duration
}

// OpenAIGenerator 调用 OpenAI 兼容接口 (OpenAI / DeepSeek / 火山引擎等) 生成报告。
type OpenAIGenerator struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
	now    func() time.Time
}

// NewOpenAIGenerator constructs a generator.
func NewOpenAIGenerator(opts Options, logger zerolog.Logger) *OpenAIGenerator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1000
	}
	if opts.Temperature <= 0 {
		opts.Temperature = 0.7
	}

	return &OpenAIGenerator{
		opts:   opts,
		logger: logger.With().Str("component", "report_generator").Logger(),
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// Generate calls the chat-completions endpoint and extracts the report text.
func (g *OpenAIGenerator) Generate(ctx context.Context, input AnalysisInput) (Result, error) {
	if g.opts.APIURL == "" || g.opts.APIKey == "" {
		return Result{}, ErrNotConfigured
	}

	payload := map[string]any{
		"model": g.opts.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": g.buildUserPrompt(input)},
		},
		"max_tokens":  g.opts.MaxTokens,
		"temperature": g.opts.Temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal ai payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.APIURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create ai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.opts.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("send ai request: %w", err)
	}
	defer resp.Body.Close()

	payloadBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("ai api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payloadBytes)))
	}

	content, err := extractContent(payloadBytes)
	if err != nil {
		return Result{}, err
	}

	g.logger.Info().Str("model", g.opts.Model).Int("bytes", len(content)).Msg("报告生成完成")
	return Result{Model: g.opts.Model, ReportMD: content}, nil
}

func (g *OpenAIGenerator) buildUserPrompt(input AnalysisInput) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("当前时间: %s\n\n", timeutil.FormatLocal(g.now(), g.opts.TZOffset)))
	builder.WriteString(fmt.Sprintf("品种: %s\n", input.Symbol))
	builder.WriteString(fmt.Sprintf("当前价: %s 元/克", input.PriceNow.StringFixed(2)))

	if len(input.DailyLines) > 0 {
		builder.WriteString("\n\n过去三天日线数据：\n")
		for _, day := range input.DailyLines {
			swing := "0.00"
			if day.Low.Sign() > 0 {
				swing = day.High.Sub(day.Low).Div(day.Low).Mul(decimal.NewFromInt(100)).StringFixed(2)
			}
			builder.WriteString(fmt.Sprintf("%s: 最高%s(%s) 最低%s(%s) 波动%s%%\n",
				day.Date, day.High.StringFixed(2), day.HighTime, day.Low.StringFixed(2), day.LowTime, swing))
		}
	}

	if input.Change1m != nil || input.Change5m != nil {
		builder.WriteString("\n短期变化：\n")
		if input.Change1m != nil {
			builder.WriteString(fmt.Sprintf("1分钟: %s%%\n", input.Change1m.StringFixed(2)))
		}
		if input.Change5m != nil {
			builder.WriteString(fmt.Sprintf("5分钟: %s%%\n", input.Change5m.StringFixed(2)))
		}
	}

	if len(input.RecentPrices) > 0 {
		builder.WriteString("\n最近价格序列（最新在前）:\n")
		points := input.RecentPrices
		if len(points) > 10 {
			points = points[:10]
		}
		lines := make([]string, 0, len(points))
		for _, p := range points {
			lines = append(lines, fmt.Sprintf("%s → %s", timeutil.FormatLocal(p.TS, g.opts.TZOffset), p.Price.StringFixed(2)))
		}
		builder.WriteString(strings.Join(lines, "\n"))
	}

	return builder.String()
}

// extractContent 兼容不同服务商的响应格式。
func extractContent(payload []byte) (string, error) {
	var data struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Output struct {
			Text string `json:"text"`
		} `json:"output"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return "", fmt.Errorf("decode ai response: %w", err)
	}

	switch {
	case len(data.Choices) > 0 && data.Choices[0].Message.Content != "":
		return data.Choices[0].Message.Content, nil
	case data.Output.Text != "":
		return data.Output.Text, nil
	case data.Result != "":
		return data.Result, nil
	}

	snippet := string(payload)
	if len(snippet) > 500 {
		snippet = snippet[:500]
	}
	return "", fmt.Errorf("ai response missing content: %s", snippet)
}

var _ Generator = (*OpenAIGenerator)(nil)

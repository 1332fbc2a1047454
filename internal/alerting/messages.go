package alerting

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"goldwatcher/internal/engine"
)

var baselineLabels = map[engine.Baseline]string{
	engine.BaselinePrevClose:    "昨日收盘价",
	engine.BaselineOpenPosition: "买入价",
}

var cmpLabels = map[string]string{
	engine.CmpEQ:  "等于",
	engine.CmpGTE: "大于等于",
	engine.CmpLTE: "小于等于",
}

// BuildNodeAlertMessage 构造涨跌幅节点告警消息。
func BuildNodeAlertMessage(symbol string, node engine.Node, priceNow decimal.Decimal, createdBy string) string {
	icon, typeLabel := "📈", "涨幅"
	if node.Kind == engine.KindFall {
		icon, typeLabel = "📉", "跌幅"
	}

	baseLabel := baselineLabels[node.Baseline]
	if baseLabel == "" {
		baseLabel = string(node.Baseline)
	}

	lines := []string{
		fmt.Sprintf("%s [%s 金价%s提醒]", icon, symbol, typeLabel),
		fmt.Sprintf("当前价: %s", priceNow.StringFixed(2)),
		fmt.Sprintf("%s: %s", baseLabel, node.RefPrice.StringFixed(2)),
		fmt.Sprintf("%s: %s%%", typeLabel, node.ChangePercent.Abs().StringFixed(2)),
		fmt.Sprintf("节点等级: %d级", node.Level),
		fmt.Sprintf("用户: %s", createdBy),
	}
	return strings.Join(lines, "\n")
}

// BuildTargetMessage 构造目标价触发消息。
func BuildTargetMessage(symbol string, targetPrice decimal.Decimal, cmp string, currentPrice decimal.Decimal, createdBy string) string {
	cmpLabel := cmpLabels[cmp]
	if cmpLabel == "" {
		cmpLabel = cmp
	}

	lines := []string{
		fmt.Sprintf("🎯 [%s 目标价提醒]", symbol),
		fmt.Sprintf("目标价: %s (%s)", targetPrice.StringFixed(2), cmpLabel),
		fmt.Sprintf("当前价: %s", currentPrice.StringFixed(2)),
		fmt.Sprintf("用户: %s", createdBy),
	}
	return strings.Join(lines, "\n")
}

// BuildReportMessage 构造 AI 分析报告消息。
func BuildReportMessage(symbol string, price decimal.Decimal, reportMD string) string {
	return fmt.Sprintf("[%s 金价 AI 分析]\n当前价: %s\n\n%s", symbol, price.StringFixed(2), reportMD)
}

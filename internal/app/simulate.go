package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"goldwatcher/internal/alerting"
	"goldwatcher/internal/engine"
)

// SimulateAlert 用给定的当前价和基准价走一遍节点判定并真实推送飞书,
// 便于在不接数据库的情况下验证阈值配置与机器人连通性。
func (a *App) SimulateAlert(ctx context.Context, price, ref decimal.Decimal, rise, fall [3]*decimal.Decimal) error {
	nodes := engine.CheckNodes(price, ref, engine.BaselinePrevClose, rise, fall)
	if len(nodes) == 0 {
		a.Logger.Info().
			Str("price", price.String()).
			Str("ref", ref.String()).
			Msg("no threshold node triggered")
		return nil
	}

	notifier := a.newNotifier()
	for _, node := range nodes {
		msg := alerting.BuildNodeAlertMessage(a.Config.Market.Symbol, node, price, "simulate")
		msg += "\n\n⚠️ 这是一条测试告警消息"
		if err := notifier.Notify(ctx, msg); err != nil {
			if errors.Is(err, alerting.ErrWebhookNotConfigured) {
				return errors.New("feishu.webhook_url 未配置")
			}
			return err
		}
		a.Logger.Info().
			Str("kind", string(node.Kind)).
			Int("level", node.Level).
			Str("change_percent", node.ChangePercent.StringFixed(2)).
			Msg("simulated alert sent")
	}
	return nil
}

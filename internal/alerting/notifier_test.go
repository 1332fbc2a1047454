package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"goldwatcher/internal/engine"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFeishuNotifierSuccess(t *testing.T) {
	var received struct {
		MsgType string `json:"msg_type"`
		Content struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0})
	}))
	defer srv.Close()

	notifier := NewFeishuNotifier(srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Feishu Notify 应成功: %v", err)
	}
	if received.MsgType != "text" {
		t.Fatalf("msg_type 应为 text, 实际 %q", received.MsgType)
	}
	if received.Content.Text != "hello" {
		t.Fatalf("content.text 不正确: %q", received.Content.Text)
	}
}

func TestFeishuNotifierAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 19001, "msg": "param invalid"})
	}))
	defer srv.Close()

	notifier := NewFeishuNotifier(srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), "hello"); err == nil {
		t.Fatal("code!=0 应报错")
	}
}

func TestFeishuNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	notifier := NewFeishuNotifier(srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), "hello"); err == nil {
		t.Fatal("HTTP 500 应报错")
	}
}

func TestFeishuNotifierMissingWebhook(t *testing.T) {
	notifier := NewFeishuNotifier("", time.Second, testLogger())
	if err := notifier.Notify(context.Background(), "hello"); err != ErrWebhookNotConfigured {
		t.Fatalf("缺少 webhook 应返回 ErrWebhookNotConfigured, 实际 %v", err)
	}
}

func TestBuildNodeAlertMessage(t *testing.T) {
	node := engine.Node{
		Kind:          engine.KindFall,
		Baseline:      engine.BaselineOpenPosition,
		Level:         2,
		ChangePercent: decimal.RequireFromString("-1.3913"),
		RefPrice:      decimal.RequireFromString("575"),
	}
	msg := BuildNodeAlertMessage("AU", node, decimal.RequireFromString("567"), "alice")

	for _, want := range []string{"📉", "跌幅", "当前价: 567.00", "买入价: 575.00", "跌幅: 1.39%", "节点等级: 2级", "用户: alice"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("消息应包含 %q, 实际:\n%s", want, msg)
		}
	}
}

func TestBuildTargetMessage(t *testing.T) {
	msg := BuildTargetMessage("AU", decimal.RequireFromString("580"), engine.CmpGTE, decimal.RequireFromString("581.2"), "user")
	for _, want := range []string{"🎯", "目标价: 580.00 (大于等于)", "当前价: 581.20", "用户: user"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("消息应包含 %q, 实际:\n%s", want, msg)
		}
	}
}

func TestBuildReportMessage(t *testing.T) {
	msg := BuildReportMessage("AU", decimal.RequireFromString("583.5"), "## 走势\n平稳")
	if !strings.HasPrefix(msg, "[AU 金价 AI 分析]\n当前价: 583.50\n\n") {
		t.Fatalf("报告消息前缀不正确:\n%s", msg)
	}
}

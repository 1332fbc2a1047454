package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func feedLine(price, xau string) string {
	fields := make([]string, 40)
	for i := range fields {
		fields[i] = "0"
	}
	fields[0] = `var hq_str="AU9999`
	fields[1] = price
	fields[33] = xau
	return strings.Join(fields, ",") + `";`
}

func TestPanjiaFetchMissingURL(t *testing.T) {
	p := NewPanjia(PanjiaOptions{}, noopLogger())
	if _, err := p.FetchPrice(context.Background()); err == nil {
		t.Fatal("缺少 URL 时应返回错误")
	}
}

func TestPanjiaFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") == "" {
			t.Error("请求应携带缓存穿透时间戳参数 t")
		}
		if r.Header.Get("Referer") != "https://example.com/" {
			t.Errorf("Referer 头不正确: %q", r.Header.Get("Referer"))
		}
		_, _ = w.Write([]byte(feedLine("583.50", "2412.30")))
	}))
	defer srv.Close()

	p := NewPanjia(PanjiaOptions{
		URL:       srv.URL,
		UserAgent: "test",
		Referer:   "https://example.com/",
		Timeout:   time.Second,
	}, noopLogger())

	quote, err := p.FetchPrice(context.Background())
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if !quote.Price.Equal(decimal.RequireFromString("583.50")) {
		t.Fatalf("期望价格 583.50, 实际 %s", quote.Price.String())
	}
	if !quote.XAU.Equal(decimal.RequireFromString("2412.30")) {
		t.Fatalf("期望 XAU 2412.30, 实际 %s", quote.XAU.String())
	}
	if quote.Source != SourcePanjia {
		t.Fatalf("来源应为 %s, 实际 %s", SourcePanjia, quote.Source)
	}
}

func TestPanjiaFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPanjia(PanjiaOptions{URL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := p.FetchPrice(context.Background()); err == nil {
		t.Fatal("HTTP 502 应返回错误")
	}
}

func TestPanjiaParseShortLine(t *testing.T) {
	p := NewPanjia(PanjiaOptions{URL: "http://example"}, noopLogger())
	if _, err := p.parse("only-one-field"); err == nil {
		t.Fatal("字段不足时应返回错误")
	}
}

func TestPanjiaParseNonPositivePrice(t *testing.T) {
	p := NewPanjia(PanjiaOptions{URL: "http://example"}, noopLogger())
	if _, err := p.parse("head,0,rest"); err == nil {
		t.Fatal("非正价格应返回错误")
	}
}

func TestPanjiaParseMissingXAU(t *testing.T) {
	p := NewPanjia(PanjiaOptions{URL: "http://example"}, noopLogger())
	quote, err := p.parse("head,583.5,tail")
	if err != nil {
		t.Fatalf("缺少 XAU 字段不应报错: %v", err)
	}
	if !quote.XAU.IsZero() {
		t.Fatalf("缺失的 XAU 应为零值, 实际 %s", quote.XAU.String())
	}
}

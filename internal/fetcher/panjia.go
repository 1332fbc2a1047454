package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SourcePanjia labels quotes coming from the panjia feed.
const SourcePanjia = "panjia"

// PanjiaOptions parameterise the panjia feed fetcher.
type PanjiaOptions struct {
	URL        string
	UserAgent  string
	Referer    string
	Source     string
	PriceIndex int
	XAUIndex   int
	Timeout    time.Duration
}

// Panjia fetches the gold spot price from the panjia delimited-text feed.
// The feed is a comma-separated line; by default field 1 carries the
// domestic CNY/gram price and field 33 the XAU USD/ounce price.
type Panjia struct {
	opts   PanjiaOptions
	logger zerolog.Logger
	client *http.Client
	now    func() time.Time
}

// NewPanjia constructs a panjia fetcher.
func NewPanjia(opts PanjiaOptions, logger zerolog.Logger) *Panjia {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.PriceIndex <= 0 {
		opts.PriceIndex = 1
	}
	if opts.XAUIndex <= 0 {
		opts.XAUIndex = 33
	}
	if opts.Source == "" {
		opts.Source = SourcePanjia
	}

	return &Panjia{
		opts:   opts,
		logger: logger.With().Str("component", "panjia_fetcher").Logger(),
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// FetchPrice retrieves and parses the current quote.
func (p *Panjia) FetchPrice(ctx context.Context) (Quote, error) {
	if p.opts.URL == "" {
		return Quote{}, errors.New("panjia feed url not configured")
	}

	// 时间戳参数用于绕过上游缓存。
	sep := "?"
	if strings.Contains(p.opts.URL, "?") {
		sep = "&"
	}
	endpoint := p.opts.URL + sep + "t=" + strconv.FormatInt(p.now().UnixMilli(), 10)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	if ua := strings.TrimSpace(p.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "goldwatcher/1.0")
	}
	if referer := strings.TrimSpace(p.opts.Referer); referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("panjia feed error (%d): %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	return p.parse(string(payload))
}

func (p *Panjia) parse(body string) (Quote, error) {
	fields := strings.Split(body, ",")
	if len(fields) <= p.opts.PriceIndex {
		return Quote{}, fmt.Errorf("panjia feed returned %d fields, need index %d", len(fields), p.opts.PriceIndex)
	}

	price, err := parseField(fields[p.opts.PriceIndex])
	if err != nil {
		return Quote{}, fmt.Errorf("parse price field: %w", err)
	}
	if price.Sign() <= 0 {
		return Quote{}, fmt.Errorf("panjia feed returned non-positive price %s", price.String())
	}

	quote := Quote{Price: price, Source: p.opts.Source}

	// XAU 字段缺失时不视为错误, 仅记录日志。
	if len(fields) > p.opts.XAUIndex {
		xau, xauErr := parseField(fields[p.opts.XAUIndex])
		if xauErr != nil {
			p.logger.Warn().Err(xauErr).Msg("failed to parse xau field")
		} else {
			quote.XAU = xau
		}
	} else {
		p.logger.Warn().Int("fields", len(fields)).Msg("panjia feed missing xau field")
	}

	return quote, nil
}

func parseField(raw string) (decimal.Decimal, error) {
	cleaned := strings.Trim(strings.TrimSpace(raw), `";`)
	if cleaned == "" {
		return decimal.Decimal{}, errors.New("empty field")
	}
	return decimal.NewFromString(cleaned)
}

var _ PriceFetcher = (*Panjia)(nil)

package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/tradedate"
)

const eastmoneyKlineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get"

// EastmoneyFetcher implements Fetcher using the Eastmoney daily kline API
// with forward-adjusted prices.
type EastmoneyFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewEastmoneyFetcher creates a fetcher with optional proxy support.
func NewEastmoneyFetcher(baseURL, proxyURL string, timeout time.Duration) *EastmoneyFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if baseURL == "" {
		baseURL = eastmoneyKlineURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EastmoneyFetcher{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *EastmoneyFetcher) Name() string { return "eastmoney" }

// secID maps an exchange code to the provider's market-prefixed id.
// Shanghai listings (6xx, 9xx) use market 1, everything else market 0.
func secID(code string) string {
	if strings.HasPrefix(code, "6") || strings.HasPrefix(code, "9") {
		return "1." + code
	}
	return "0." + code
}

// klineResponse is the response structure of the kline endpoint.
type klineResponse struct {
	RC   int `json:"rc"`
	Data *struct {
		Code   string   `json:"code"`
		Name   string   `json:"name"`
		Klines []string `json:"klines"`
	} `json:"data"`
}

func (f *EastmoneyFetcher) Fetch(ctx context.Context, code string, start, end time.Time) ([]model.Bar, error) {
	q := url.Values{}
	q.Set("secid", secID(code))
	q.Set("fields1", "f1,f2,f3,f4,f5,f6")
	q.Set("fields2", "f51,f52,f53,f54,f55,f56,f57,f58,f59,f60,f61")
	q.Set("klt", "101") // daily
	q.Set("fqt", "1")   // forward adjusted
	q.Set("beg", tradedate.Compact(start))
	q.Set("end", tradedate.Compact(end))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, &model.FetchError{Code: code, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.FetchError{Code: code, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &model.FetchError{Code: code, Err: fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200))}
	}

	var kr klineResponse
	if err := json.Unmarshal(body, &kr); err != nil {
		return nil, &model.FetchError{Code: code, Err: fmt.Errorf("decode: %w", err)}
	}
	if kr.RC != 0 {
		return nil, &model.FetchError{Code: code, Err: fmt.Errorf("api rc %d", kr.RC)}
	}
	if kr.Data == nil || len(kr.Data.Klines) == 0 {
		return []model.Bar{}, nil
	}

	bars := make([]model.Bar, 0, len(kr.Data.Klines))
	for _, line := range kr.Data.Klines {
		b, err := parseKline(line)
		if err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	return bars, nil
}

// parseKline decodes "date,open,close,high,low,volume,amount,amplitude,pct_chg,change,turnover".
func parseKline(line string) (model.Bar, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 9 {
		return model.Bar{}, fmt.Errorf("kline %q: expected at least 9 fields, got %d", line, len(fields))
	}
	date, err := tradedate.Normalize(fields[0])
	if err != nil {
		return model.Bar{}, err
	}
	closePx, err := decimal.NewFromString(fields[2])
	if err != nil {
		return model.Bar{}, fmt.Errorf("kline %s close: %w", date, err)
	}
	vol, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return model.Bar{}, fmt.Errorf("kline %s volume: %w", date, err)
	}
	amount, err := decimal.NewFromString(fields[6])
	if err != nil {
		return model.Bar{}, fmt.Errorf("kline %s amount: %w", date, err)
	}
	pct, err := decimal.NewFromString(fields[8])
	if err != nil {
		return model.Bar{}, fmt.Errorf("kline %s pct_chg: %w", date, err)
	}
	return model.Bar{
		Date:      date,
		Close:     closePx,
		PctChange: pct,
		Volume:    int64(vol),
		Amount:    amount,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// GlobalQuoteSource reads the canonical upstream shape:
//
//	GET {baseURL}?function=GLOBAL_QUOTE&symbol=SYM&apikey=KEY
//	{"Global Quote": {"01. symbol": "AAPL", "05. price": "189.84",
//	  "06. volume": "52164535", "07. latest trading day": "2024-06-12",
//	  "09. change": "2.56", "10. change percent": "1.3669%"}}
type GlobalQuoteSource struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGlobalQuoteSource creates a source against baseURL. A nil httpClient
// gets one with the given timeout.
func NewGlobalQuoteSource(baseURL, apiKey string, timeout time.Duration, httpClient *http.Client) *GlobalQuoteSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &GlobalQuoteSource{baseURL: baseURL, apiKey: apiKey, httpClient: httpClient}
}

// Name returns the provider identifier.
func (s *GlobalQuoteSource) Name() string { return "globalquote" }

type globalQuoteResponse struct {
	ErrorMessage string            `json:"Error Message"`
	Note         string            `json:"Note"`
	Information  string            `json:"Information"`
	GlobalQuote  map[string]string `json:"Global Quote"`
}

// Fetch requests one quote.
func (s *GlobalQuoteSource) Fetch(ctx context.Context, symbol string) (*domain.Quote, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	q := u.Query()
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", s.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", symbol, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: status %d", symbol, resp.StatusCode)
	}
	return parseGlobalQuote(symbol, body)
}

// parseGlobalQuote converts a Global Quote payload into a domain.Quote.
func parseGlobalQuote(symbol string, body []byte) (*domain.Quote, error) {
	var r globalQuoteResponse
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", symbol, ErrNoData, err)
	}
	switch {
	case r.ErrorMessage != "":
		return nil, fmt.Errorf("%s: %w: %s", symbol, ErrNoData, r.ErrorMessage)
	case len(r.GlobalQuote) == 0 && (r.Note != "" || r.Information != ""):
		return nil, fmt.Errorf("%s: %w: %s%s", symbol, ErrNoData, r.Note, r.Information)
	case len(r.GlobalQuote) == 0:
		return nil, fmt.Errorf("%s: %w: missing Global Quote", symbol, ErrNoData)
	}

	gq := r.GlobalQuote
	sym := strings.ToUpper(strings.TrimSpace(gq["01. symbol"]))
	if sym == "" {
		return nil, fmt.Errorf("%s: %w: empty symbol", symbol, ErrNoData)
	}

	change, err := parseDecimal(gq["09. change"])
	if err != nil {
		return nil, fmt.Errorf("%s: change: %w", sym, err)
	}
	pct, err := parseDecimal(strings.TrimSuffix(strings.TrimSpace(gq["10. change percent"]), "%"))
	if err != nil {
		return nil, fmt.Errorf("%s: change percent: %w", sym, err)
	}

	// A small move on a high-priced ticker can round to "0.0000%" while the
	// change itself is non-zero. Treat the pair as flat.
	if change == 0 || pct == 0 {
		change, pct = 0, 0
	}

	out := &domain.Quote{
		Symbol:           sym,
		Change:           change,
		ChangePercent:    pct,
		LatestTradingDay: gq["07. latest trading day"],
		Source:           "globalquote",
	}
	if v, ok := gq["05. price"]; ok && v != "" {
		p, err := parseDecimal(v)
		if err != nil {
			return nil, fmt.Errorf("%s: price: %w", sym, err)
		}
		out.Price = &p
	}
	if v, ok := gq["06. volume"]; ok && v != "" {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%s: volume: %w: %q", sym, ErrMalformed, v)
		}
		vol := d.IntPart()
		out.Volume = &vol
	}
	return out, nil
}

func parseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrMalformed)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	f, _ := d.Float64()
	return f, nil
}

// Package heatmap is a Go SDK for the heatmap-server HTTP API and its gRPC
// health service.
package heatmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Lucas-Song-Dev/StockHeatMap/pkg/heatmap/wire"
)

// Response types, shared with the server.
type (
	HeatmapResponse        = wire.HeatmapResponse
	StocksBySectorResponse = wire.StocksBySectorResponse
	StockResponse          = wire.StockResponse
	StocksResponse         = wire.StocksResponse
	SectorsResponse        = wire.SectorsResponse
	HistoryResponse        = wire.HistoryResponse
	HistoryBatchResponse   = wire.HistoryBatchResponse
	SearchResponse         = wire.SearchResponse
	RefreshResponse        = wire.RefreshResponse
	StatusResponse         = wire.StatusResponse
	MoversResponse         = wire.MoversResponse
	RunsResponse           = wire.RunsResponse
)

// SectorQuery narrows StocksBySector. The zero value asks for the current
// snapshot as is.
type SectorQuery struct {
	Symbols []string
	Limit   int
	// LargeCapThreshold overrides the major-cap cutoff when positive.
	LargeCapThreshold float64
}

// ErrNotFound is matched by errors.Is for 404 responses.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("heatmap api: %d %s", e.StatusCode, e.Message)
}

// Is reports 404s as ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client provides a Go SDK for interacting with the heatmap-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new heatmap API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetHeatmap retrieves the laid-out heatmap in mode ("absolute" or
// "sector"; empty means absolute).
func (c *Client) GetHeatmap(ctx context.Context, mode string) (*HeatmapResponse, error) {
	q := url.Values{}
	if mode != "" {
		q.Set("mode", mode)
	}
	var out HeatmapResponse
	return &out, c.do(ctx, http.MethodGet, "/api/heatmap", q, &out)
}

// StocksBySector retrieves the assembled sectors without layout.
func (c *Client) StocksBySector(ctx context.Context, sq SectorQuery) (*StocksBySectorResponse, error) {
	q := url.Values{}
	if len(sq.Symbols) > 0 {
		q.Set("symbols", strings.Join(sq.Symbols, ","))
	}
	if sq.Limit > 0 {
		q.Set("limit", strconv.Itoa(sq.Limit))
	}
	if sq.LargeCapThreshold > 0 {
		q.Set("large_cap_threshold", strconv.FormatFloat(sq.LargeCapThreshold, 'g', -1, 64))
	}
	var out StocksBySectorResponse
	return &out, c.do(ctx, http.MethodGet, "/api/stocks-by-sector", q, &out)
}

// LookupStocks retrieves quotes for arbitrary symbols, watched or not.
func (c *Client) LookupStocks(ctx context.Context, symbols ...string) (*StocksResponse, error) {
	q := url.Values{"symbols": {strings.Join(symbols, ",")}}
	var out StocksResponse
	return &out, c.do(ctx, http.MethodGet, "/api/stocks", q, &out)
}

// Sectors retrieves the average change and stock count of each sector.
func (c *Client) Sectors(ctx context.Context) (*SectorsResponse, error) {
	var out SectorsResponse
	return &out, c.do(ctx, http.MethodGet, "/api/sectors", nil, &out)
}

// GetStock retrieves one stock. Unknown symbols return ErrNotFound.
func (c *Client) GetStock(ctx context.Context, symbol string) (*StockResponse, error) {
	var out StockResponse
	return &out, c.do(ctx, http.MethodGet, "/api/stocks/"+url.PathEscape(symbol), nil, &out)
}

// GetHistory retrieves up to days of archived history for symbol.
func (c *Client) GetHistory(ctx context.Context, symbol string, days int) (*HistoryResponse, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var out HistoryResponse
	return &out, c.do(ctx, http.MethodGet, "/api/history/"+url.PathEscape(symbol), q, &out)
}

// GetHistories retrieves archived history for several symbols at once.
func (c *Client) GetHistories(ctx context.Context, days int, symbols ...string) (*HistoryBatchResponse, error) {
	q := url.Values{"symbols": {strings.Join(symbols, ",")}}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	var out HistoryBatchResponse
	return &out, c.do(ctx, http.MethodGet, "/api/history", q, &out)
}

// Search finds stocks by symbol, sector or industry.
func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResponse, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out SearchResponse
	return &out, c.do(ctx, http.MethodGet, "/api/search", q, &out)
}

// Refresh asks the server for a manual refresh. Refreshed is false when one
// was already running.
func (c *Client) Refresh(ctx context.Context) (*RefreshResponse, error) {
	var out RefreshResponse
	return &out, c.do(ctx, http.MethodPost, "/api/refresh", nil, &out)
}

// GetStatus retrieves the service status.
func (c *Client) GetStatus(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	return &out, c.do(ctx, http.MethodGet, "/api/status", nil, &out)
}

// Movers retrieves the top n gainers and losers.
func (c *Client) Movers(ctx context.Context, n int) (*MoversResponse, error) {
	q := url.Values{}
	if n > 0 {
		q.Set("n", strconv.Itoa(n))
	}
	var out MoversResponse
	return &out, c.do(ctx, http.MethodGet, "/api/movers", q, &out)
}

// Runs retrieves recent refresh runs.
func (c *Client) Runs(ctx context.Context, limit int) (*RunsResponse, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out RunsResponse
	return &out, c.do(ctx, http.MethodGet, "/api/runs", q, &out)
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// CheckHealth queries the gRPC health service at addr for service ("" for
// the whole server) and returns the status name, e.g. "SERVING".
func CheckHealth(ctx context.Context, addr, service string) (string, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus().String(), nil
}

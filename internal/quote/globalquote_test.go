package quote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestParseGlobalQuote(t *testing.T) {
	body := []byte(`{"Global Quote": {
		"01. symbol": "aapl",
		"05. price": "189.8400",
		"06. volume": "52164535",
		"07. latest trading day": "2024-06-12",
		"09. change": "2.5600",
		"10. change percent": "1.3669%"}}`)

	q, err := parseGlobalQuote("AAPL", body)
	if err != nil {
		t.Fatalf("parseGlobalQuote returned error: %v", err)
	}
	if q.Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want %q", q.Symbol, "AAPL")
	}
	if q.Price == nil || *q.Price != 189.84 {
		t.Errorf("Price = %v, want 189.84", q.Price)
	}
	if q.Change != 2.56 {
		t.Errorf("Change = %v, want 2.56", q.Change)
	}
	if q.ChangePercent != 1.3669 {
		t.Errorf("ChangePercent = %v, want 1.3669", q.ChangePercent)
	}
	if q.Volume == nil || *q.Volume != 52164535 {
		t.Errorf("Volume = %v, want 52164535", q.Volume)
	}
	if q.LatestTradingDay != "2024-06-12" {
		t.Errorf("LatestTradingDay = %q, want %q", q.LatestTradingDay, "2024-06-12")
	}
	if q.MarketCap != nil {
		t.Errorf("MarketCap = %v, want nil", *q.MarketCap)
	}
}

func TestParseGlobalQuoteErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"error message", `{"Error Message": "Invalid API call."}`, ErrNoData},
		{"rate limit note", `{"Note": "Thank you for using Alpha Vantage!"}`, ErrNoData},
		{"information", `{"Information": "demo key"}`, ErrNoData},
		{"missing object", `{}`, ErrNoData},
		{"empty object", `{"Global Quote": {}}`, ErrNoData},
		{"not json", `<html>`, ErrNoData},
		{"bad percent", `{"Global Quote": {"01. symbol": "X", "09. change": "1", "10. change percent": "abc%"}}`, ErrMalformed},
		{"bad change", `{"Global Quote": {"01. symbol": "X", "09. change": "", "10. change percent": "1%"}}`, ErrMalformed},
		{"bad price", `{"Global Quote": {"01. symbol": "X", "05. price": "n/a", "09. change": "1", "10. change percent": "1%"}}`, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseGlobalQuote("X", []byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("parseGlobalQuote error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseGlobalQuoteRoundedToZero(t *testing.T) {
	tests := []struct {
		name, change, pct string
	}{
		{"percent rounds to zero", "0.0100", "0.0000%"},
		{"change rounds to zero", "0.0000", "-0.0001%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(fmt.Sprintf(`{"Global Quote": {"01. symbol": "BRK.A", "05. price": "612000.00", "09. change": %q, "10. change percent": %q}}`, tt.change, tt.pct))
			q, err := parseGlobalQuote("BRK.A", body)
			if err != nil {
				t.Fatalf("parseGlobalQuote returned error: %v", err)
			}
			if q.Change != 0 || q.ChangePercent != 0 {
				t.Errorf("Change, ChangePercent = %v, %v, want 0, 0", q.Change, q.ChangePercent)
			}
			if err := q.Validate(); err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestGlobalQuoteSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("function") != "GLOBAL_QUOTE" || q.Get("apikey") != "k" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		sym := q.Get("symbol")
		if sym == "BOGUS1" {
			fmt.Fprint(w, `{"Error Message": "Invalid API call."}`)
			return
		}
		fmt.Fprintf(w, `{"Global Quote": {"01. symbol": %q, "05. price": "10", "09. change": "-0.5", "10. change percent": "-4.7619%%"}}`, sym)
	}))
	defer srv.Close()

	src := NewGlobalQuoteSource(srv.URL, "k", time.Second, nil)
	ctx := context.Background()

	q, err := src.Fetch(ctx, "MSFT")
	if err != nil {
		t.Fatalf("Fetch(MSFT) returned error: %v", err)
	}
	if q.Symbol != "MSFT" || q.ChangePercent != -4.7619 {
		t.Errorf("Fetch(MSFT) = %+v", q)
	}
	if _, err := src.Fetch(ctx, "BOGUS1"); !errors.Is(err, ErrNoData) {
		t.Errorf("Fetch(BOGUS1) error = %v, want ErrNoData", err)
	}

	bad := NewGlobalQuoteSource(srv.URL, "wrong", time.Second, nil)
	_, err = bad.Fetch(ctx, "MSFT")
	if err == nil || permanent(err) {
		t.Errorf("Fetch with HTTP 400 = %v, want retryable transport error", err)
	}
}

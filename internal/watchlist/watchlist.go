// Package watchlist holds the static ticker classification table and
// assembles fetched quotes into ordered sectors.
package watchlist

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

//go:embed default.yaml
var defaultYAML []byte

// SectorTickers is one configured sector and its tickers in display order.
type SectorTickers struct {
	Name    string   `yaml:"name"`
	Tickers []string `yaml:"tickers"`
}

// Watchlist maps each watched ticker to exactly one sector, plus an
// industry lookup and the set of major tickers. It is immutable after
// Parse.
type Watchlist struct {
	Sectors    []SectorTickers   `yaml:"sectors"`
	Industries map[string]string `yaml:"industries"`
	Major      []string          `yaml:"major"`

	// LargeCapThreshold, when positive, also flags any stock whose known
	// market cap meets it as major.
	LargeCapThreshold float64 `yaml:"large_cap_threshold"`

	major map[string]bool
}

// Default returns the built-in watchlist.
func Default() *Watchlist {
	w, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("watchlist: built-in table: %v", err))
	}
	return w
}

// Load reads a watchlist from a YAML file. An empty path yields Default().
func Load(path string) (*Watchlist, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

// Parse decodes and validates a watchlist. Tickers are upper-cased.
func Parse(data []byte) (*Watchlist, error) {
	w := &Watchlist{}
	if err := yaml.Unmarshal(data, w); err != nil {
		return nil, err
	}
	w.normalize()
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Watchlist) normalize() {
	for i := range w.Sectors {
		w.Sectors[i].Name = strings.TrimSpace(w.Sectors[i].Name)
		for j, t := range w.Sectors[i].Tickers {
			w.Sectors[i].Tickers[j] = strings.ToUpper(strings.TrimSpace(t))
		}
	}
	ind := make(map[string]string, len(w.Industries))
	for t, name := range w.Industries {
		ind[strings.ToUpper(strings.TrimSpace(t))] = name
	}
	w.Industries = ind
	w.major = make(map[string]bool, len(w.Major))
	for i, t := range w.Major {
		t = strings.ToUpper(strings.TrimSpace(t))
		w.Major[i] = t
		w.major[t] = true
	}
}

// Validate checks that sector names are non-empty and unique and that every
// ticker belongs to exactly one sector.
func (w *Watchlist) Validate() error {
	if len(w.Sectors) == 0 {
		return fmt.Errorf("no sectors configured")
	}
	names := make(map[string]bool, len(w.Sectors))
	owner := make(map[string]string)
	for _, s := range w.Sectors {
		if s.Name == "" {
			return fmt.Errorf("sector with empty name")
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate sector %q", s.Name)
		}
		names[s.Name] = true
		for _, t := range s.Tickers {
			if t == "" {
				return fmt.Errorf("sector %q: empty ticker", s.Name)
			}
			if prev, ok := owner[t]; ok {
				return fmt.Errorf("ticker %s in both %q and %q", t, prev, s.Name)
			}
			owner[t] = s.Name
		}
	}
	return nil
}

// Symbols returns every watched ticker in configured order.
func (w *Watchlist) Symbols() []string {
	var out []string
	for _, s := range w.Sectors {
		out = append(out, s.Tickers...)
	}
	return out
}

// IndustryOf returns the ticker's industry, or domain.DefaultIndustry.
func (w *Watchlist) IndustryOf(ticker string) string {
	if ind, ok := w.Industries[ticker]; ok && ind != "" {
		return ind
	}
	return domain.DefaultIndustry
}

// IsMajor reports membership in the fixed major set.
func (w *Watchlist) IsMajor(ticker string) bool {
	return w.major[ticker]
}

// Assemble merges fetched quotes into sectors. Sector order and ticker
// order follow the table; tickers without a quote are dropped, and so are
// sectors left empty.
func (w *Watchlist) Assemble(quotes map[string]domain.Quote) []domain.Sector {
	var out []domain.Sector
	for _, s := range w.Sectors {
		var stocks []domain.Stock
		for _, t := range s.Tickers {
			q, ok := quotes[t]
			if !ok {
				continue
			}
			stocks = append(stocks, domain.Stock{
				Quote:    q,
				Sector:   s.Name,
				Industry: w.IndustryOf(t),
				IsMajor:  w.isMajorStock(t, q),
			})
		}
		if len(stocks) == 0 {
			continue
		}
		out = append(out, domain.Sector{Name: s.Name, Stocks: stocks})
	}
	return out
}

func (w *Watchlist) isMajorStock(ticker string, q domain.Quote) bool {
	if w.major[ticker] {
		return true
	}
	return w.LargeCapThreshold > 0 && q.MarketCap != nil && *q.MarketCap >= w.LargeCapThreshold
}

// OtherSector holds looked-up tickers the table does not classify.
const OtherSector = "OTHER"

// WithLargeCapThreshold returns a copy of w that flags stocks with a market
// cap of at least threshold as major.
func (w *Watchlist) WithLargeCapThreshold(threshold float64) *Watchlist {
	c := *w
	c.LargeCapThreshold = threshold
	return &c
}

// SectorOf returns the configured sector of ticker.
func (w *Watchlist) SectorOf(ticker string) (string, bool) {
	for _, s := range w.Sectors {
		for _, t := range s.Tickers {
			if t == ticker {
				return s.Name, true
			}
		}
	}
	return "", false
}

// Classify assembles the quotes of symbols only. Watched tickers keep the
// table's sector order; the rest follow in a trailing OtherSector in the
// order given. Symbols without a quote are dropped.
func (w *Watchlist) Classify(quotes map[string]domain.Quote, symbols []string) []domain.Sector {
	want := make(map[string]domain.Quote, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if q, ok := quotes[s]; ok {
			want[s] = q
		}
	}
	out := w.Assemble(want)

	var other []domain.Stock
	seen := make(map[string]bool)
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		q, ok := want[s]
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		if _, watched := w.SectorOf(s); watched {
			continue
		}
		other = append(other, domain.Stock{
			Quote:    q,
			Sector:   OtherSector,
			Industry: w.IndustryOf(s),
			IsMajor:  w.isMajorStock(s, q),
		})
	}
	if len(other) > 0 {
		out = append(out, domain.Sector{Name: OtherSector, Stocks: other})
	}
	return out
}

// Package search keeps an in-memory full-text index over the current heatmap
// stocks so viewers can jump to a ticker by symbol, sector or industry.
package search

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// DefaultLimit bounds the number of hits returned when none is requested.
const DefaultLimit = 20

// Hit is one search result.
type Hit struct {
	Stock domain.Stock `json:"stock"`
	Score float64      `json:"score"`
}

// document is the indexed form of a stock.
type document struct {
	Symbol   string `json:"symbol"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
}

// Index is safe for concurrent use. Rebuild swaps in a fresh index so
// searches never observe a half-built one.
type Index struct {
	mu     sync.RWMutex
	idx    bleve.Index
	stocks map[string]domain.Stock
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	stockMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Store = true
	textFieldMapping.Index = true
	stockMapping.AddFieldMappingsAt("symbol", textFieldMapping)
	stockMapping.AddFieldMappingsAt("sector", textFieldMapping)
	stockMapping.AddFieldMappingsAt("industry", textFieldMapping)

	indexMapping.AddDocumentMapping("_default", stockMapping)
	return indexMapping
}

// Rebuild replaces the indexed stocks with those in sectors.
func (x *Index) Rebuild(sectors []domain.Sector) error {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}
	stocks := make(map[string]domain.Stock)
	batch := idx.NewBatch()
	for _, sec := range sectors {
		for _, st := range sec.Stocks {
			stocks[st.Symbol] = st
			d := document{Symbol: strings.ToLower(st.Symbol), Sector: st.Sector, Industry: st.Industry}
			if err := batch.Index(st.Symbol, d); err != nil {
				idx.Close()
				return fmt.Errorf("indexing %s: %w", st.Symbol, err)
			}
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("executing batch: %w", err)
	}

	x.mu.Lock()
	old := x.idx
	x.idx = idx
	x.stocks = stocks
	x.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// Len returns the number of indexed stocks.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.stocks)
}

// Search ranks stocks against q: an exact symbol match first, then symbol
// prefix, then words in the sector or industry, then symbol substrings.
// An empty query or an empty index returns no hits.
func (x *Index) Search(q string, limit int) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.idx == nil {
		return nil, nil
	}

	lower := strings.ToLower(q)

	exactQuery := bleve.NewTermQuery(lower)
	exactQuery.SetField("symbol")
	exactQuery.SetBoost(10.0)

	prefixQuery := bleve.NewPrefixQuery(lower)
	prefixQuery.SetField("symbol")
	prefixQuery.SetBoost(5.0)

	industryQuery := bleve.NewMatchQuery(q)
	industryQuery.SetField("industry")
	industryQuery.SetBoost(3.0)

	sectorQuery := bleve.NewMatchQuery(q)
	sectorQuery.SetField("sector")
	sectorQuery.SetBoost(2.0)

	wildcardSymbol := bleve.NewWildcardQuery("*" + lower + "*")
	wildcardSymbol.SetField("symbol")
	wildcardSymbol.SetBoost(1.0)

	searchQuery := bleve.NewDisjunctionQuery(
		exactQuery,
		prefixQuery,
		industryQuery,
		sectorQuery,
		wildcardSymbol,
	)

	req := bleve.NewSearchRequest(searchQuery)
	req.Size = limit
	res, err := x.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", q, err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		st, ok := x.stocks[h.ID]
		if !ok {
			continue
		}
		hits = append(hits, Hit{Stock: st, Score: h.Score})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Stock.Symbol < hits[j].Stock.Symbol
	})
	return hits, nil
}

// Close releases the current index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.idx == nil {
		return nil
	}
	err := x.idx.Close()
	x.idx = nil
	x.stocks = nil
	return err
}

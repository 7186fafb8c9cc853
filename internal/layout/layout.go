package layout

import (
	"sort"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
)

// Cell is the derived render data for one stock.
type Cell struct {
	Stock  domain.Stock
	Size   float64
	Bucket Bucket
}

// IndustryLayout is one subsector block inside a sector.
type IndustryLayout struct {
	Name         string
	MaxMarketCap float64
	Cells        []Cell
}

// SectorLayout is one sector with its industry blocks in first-seen order.
type SectorLayout struct {
	Name       string
	Industries []IndustryLayout
}

// Heatmap is the full derived layout for one data set and mode.
type Heatmap struct {
	Mode    Mode
	Sectors []SectorLayout
}

// Compute lays out sectors under mode. Within a sector, stocks are grouped
// by industry in first-seen order and keep their arrival order inside each
// group. Relative sizes are normalized against the largest known cap in the
// same (sector, industry) group.
func Compute(sectors []domain.Sector, mode Mode) Heatmap {
	hm := Heatmap{Mode: mode, Sectors: make([]SectorLayout, 0, len(sectors))}
	for _, sec := range sectors {
		sl := SectorLayout{Name: sec.Name}
		index := make(map[string]int)
		for _, st := range sec.Stocks {
			ind := st.Industry
			if ind == "" {
				ind = domain.DefaultIndustry
			}
			i, ok := index[ind]
			if !ok {
				i = len(sl.Industries)
				index[ind] = i
				sl.Industries = append(sl.Industries, IndustryLayout{Name: ind})
			}
			il := &sl.Industries[i]
			if c := capOr(st.MarketCap, 0); c > il.MaxMarketCap {
				il.MaxMarketCap = c
			}
			il.Cells = append(il.Cells, Cell{Stock: st})
		}
		for i := range sl.Industries {
			il := &sl.Industries[i]
			for j := range il.Cells {
				c := &il.Cells[j]
				c.Size = Size(mode, c.Stock.MarketCap, il.MaxMarketCap)
				c.Bucket = BucketFor(c.Stock.ChangePercent)
			}
		}
		hm.Sectors = append(hm.Sectors, sl)
	}
	return hm
}

// Cells returns every cell in display order.
func (h Heatmap) Cells() []Cell {
	var out []Cell
	for _, s := range h.Sectors {
		for _, ind := range s.Industries {
			out = append(out, ind.Cells...)
		}
	}
	return out
}

// Cell finds the cell for symbol.
func (h Heatmap) Cell(symbol string) (Cell, bool) {
	for _, s := range h.Sectors {
		for _, ind := range s.Industries {
			for _, c := range ind.Cells {
				if c.Stock.Symbol == symbol {
					return c, true
				}
			}
		}
	}
	return Cell{}, false
}

// TopMovers returns up to n gainers (largest positive change first) and n
// losers (largest negative change first). Flat stocks are in neither list.
func TopMovers(sectors []domain.Sector, n int) (gainers, losers []domain.Stock) {
	for _, sec := range sectors {
		for _, st := range sec.Stocks {
			switch {
			case st.ChangePercent > 0:
				gainers = append(gainers, st)
			case st.ChangePercent < 0:
				losers = append(losers, st)
			}
		}
	}
	sort.SliceStable(gainers, func(i, j int) bool {
		return gainers[i].ChangePercent > gainers[j].ChangePercent
	})
	sort.SliceStable(losers, func(i, j int) bool {
		return losers[i].ChangePercent < losers[j].ChangePercent
	})
	if n >= 0 && len(gainers) > n {
		gainers = gainers[:n]
	}
	if n >= 0 && len(losers) > n {
		losers = losers[:n]
	}
	return gainers, losers
}

// SectorStats summarizes the moves of one sector.
type SectorStats struct {
	Name             string
	Count            int
	AvgChangePercent float64
	Gainers          int
	Losers           int
}

// SectorPerformance returns the average change and stock counts of each
// sector, in input order. A sector without stocks averages zero.
func SectorPerformance(sectors []domain.Sector) []SectorStats {
	out := make([]SectorStats, 0, len(sectors))
	for _, sec := range sectors {
		ss := SectorStats{Name: sec.Name, Count: len(sec.Stocks)}
		var sum float64
		for _, st := range sec.Stocks {
			sum += st.ChangePercent
			switch {
			case st.ChangePercent > 0:
				ss.Gainers++
			case st.ChangePercent < 0:
				ss.Losers++
			}
		}
		if ss.Count > 0 {
			ss.AvgChangePercent = sum / float64(ss.Count)
		}
		out = append(out, ss)
	}
	return out
}

// Performance summarizes the stocks laid out in s.
func (s SectorLayout) Performance() SectorStats {
	sec := domain.Sector{Name: s.Name}
	for _, ind := range s.Industries {
		for _, c := range ind.Cells {
			sec.Stocks = append(sec.Stocks, c.Stock)
		}
	}
	return SectorPerformance([]domain.Sector{sec})[0]
}

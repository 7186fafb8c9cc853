// Package httpapi provides the HTTP JSON API for the heatmap, serving the
// same data the TUI renders, plus WebSocket push of every new snapshot.
package httpapi

import (
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/history"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/layout"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/refresh"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/search"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/store"
	"github.com/Lucas-Song-Dev/StockHeatMap/pkg/heatmap/wire"
)

// Response shapes live in the wire package so clients can decode them
// without importing the server.
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
	LegendResponse         = wire.LegendResponse
)

// BuildHeatmapResponse lays out snap under mode.
func BuildHeatmapResponse(snap refresh.Snapshot, mode layout.Mode) HeatmapResponse {
	hm := layout.Compute(snap.Sectors, mode)
	resp := HeatmapResponse{
		Mode:    mode.String(),
		Seq:     snap.Seq,
		Loading: snap.Loading,
		Sectors: make([]wire.SectorJSON, 0, len(hm.Sectors)),
		Legend:  legend(),
	}
	if !snap.UpdatedAt.IsZero() {
		t := snap.UpdatedAt
		resp.UpdatedAt = &t
	}
	if snap.Err != "" {
		msg := snap.Err
		resp.Error = &msg
	}
	for _, s := range hm.Sectors {
		sj := wire.SectorJSON{Name: s.Name, Industries: make([]wire.IndustryJSON, 0, len(s.Industries))}
		for _, ind := range s.Industries {
			ij := wire.IndustryJSON{Name: ind.Name, MaxMarketCap: ind.MaxMarketCap, Cells: make([]wire.CellJSON, 0, len(ind.Cells))}
			for _, c := range ind.Cells {
				ij.Cells = append(ij.Cells, convertCell(c))
			}
			sj.Industries = append(sj.Industries, ij)
		}
		resp.Sectors = append(resp.Sectors, sj)
	}
	return resp
}

func convertCell(c layout.Cell) wire.CellJSON {
	return wire.CellJSON{
		Symbol:        c.Stock.Symbol,
		Size:          c.Size,
		Bucket:        string(c.Bucket),
		Price:         c.Stock.Price,
		Change:        c.Stock.Change,
		ChangePercent: c.Stock.ChangePercent,
		Volume:        c.Stock.Volume,
		MarketCap:     c.Stock.MarketCap,
		IsMajor:       c.Stock.IsMajor,
	}
}

func legend() []wire.LegendEntry {
	entries := layout.Legend()
	out := make([]wire.LegendEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, wire.LegendEntry{Bucket: string(e.Bucket), Label: e.Label})
	}
	return out
}

func convertSectorStats(stats []layout.SectorStats) []wire.SectorPerformance {
	out := make([]wire.SectorPerformance, 0, len(stats))
	for _, s := range stats {
		out = append(out, wire.SectorPerformance{
			Name:             s.Name,
			Count:            s.Count,
			AvgChangePercent: s.AvgChangePercent,
			Gainers:          s.Gainers,
			Losers:           s.Losers,
			Bucket:           string(layout.BucketFor(s.AvgChangePercent)),
		})
	}
	return out
}

func convertReport(r *history.Report) HistoryResponse {
	return HistoryResponse{
		Symbol: r.Symbol,
		From:   r.From,
		To:     r.To,
		Days:   r.Days,
		Stats: wire.HistoryStats{
			Symbol:           r.Stats.Symbol,
			Days:             r.Stats.Days,
			MaxChangePercent: r.Stats.MaxChangePercent,
			MinChangePercent: r.Stats.MinChangePercent,
			AvgChangePercent: r.Stats.AvgChangePercent,
			UpDays:           r.Stats.UpDays,
			DownDays:         r.Stats.DownDays,
			High:             r.Stats.High,
			Low:              r.Stats.Low,
			First:            r.Stats.First,
			Last:             r.Stats.Last,
			MaxGain:          r.Stats.MaxGain,
			MaxLoss:          r.Stats.MaxLoss,
			PeriodReturn:     r.Stats.PeriodReturn(),
		},
	}
}

func convertHits(hits []search.Hit) []wire.SearchHit {
	out := make([]wire.SearchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, wire.SearchHit{Stock: h.Stock, Score: h.Score})
	}
	return out
}

func convertRuns(runs []store.Run) []wire.Run {
	out := make([]wire.Run, 0, len(runs))
	for _, r := range runs {
		out = append(out, wire.Run{
			ID:        r.ID,
			Seq:       r.Seq,
			Trigger:   r.Trigger,
			StartedAt: r.StartedAt,
			Duration:  r.Duration,
			Requested: r.Requested,
			Fetched:   r.Fetched,
			Error:     r.Error,
		})
	}
	return out
}

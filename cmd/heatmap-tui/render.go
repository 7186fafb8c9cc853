package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize/english"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/interact"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/layout"
)

const (
	minCellWidth = 8
	maxCellWidth = 26
	cellGap      = 1
	indent       = 2
)

// Styles.
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	sectorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	industryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("124"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	labelStyle    = lipgloss.NewStyle().Bold(true)
	selectedBG    = lipgloss.Color("15")
)

var bucketColors = map[layout.Bucket]lipgloss.Color{
	layout.StrongNegative:   "124",
	layout.ModerateNegative: "196",
	layout.WeakNegative:     "210",
	layout.Neutral:          "250",
	layout.WeakPositive:     "114",
	layout.ModeratePositive: "34",
	layout.StrongPositive:   "22",
}

func bucketStyle(b layout.Bucket) lipgloss.Style {
	s := lipgloss.NewStyle().Background(bucketColors[b])
	switch b {
	case layout.WeakNegative, layout.Neutral, layout.WeakPositive:
		return s.Foreground(lipgloss.Color("0"))
	default:
		return s.Foreground(lipgloss.Color("15"))
	}
}

// region is the screen area of one cell in content coordinates. Columns are
// half-open.
type region struct {
	line   int
	x0, x1 int
	symbol string
}

func hitTest(regions []region, line, x int) string {
	for _, r := range regions {
		if r.line == line && x >= r.x0 && x < r.x1 {
			return r.symbol
		}
	}
	return ""
}

// cellWidth scales size against the largest size on screen.
func cellWidth(size, maxSize float64) int {
	if maxSize <= 0 || math.IsNaN(size) {
		return minCellWidth
	}
	w := minCellWidth + int(math.Round(size/maxSize*float64(maxCellWidth-minCellWidth)))
	return min(max(w, minCellWidth), maxCellWidth)
}

func maxSize(h layout.Heatmap) float64 {
	var m float64
	for _, c := range h.Cells() {
		m = max(m, c.Size)
	}
	return m
}

// renderHeatmap draws h wrapped to width columns and returns the content
// together with the clickable cell regions. Each cell is two lines tall.
func renderHeatmap(h layout.Heatmap, width int, st *interact.State) (string, []region) {
	var (
		b       strings.Builder
		regions []region
		line    int
	)
	emit := func(s string) {
		b.WriteString(s)
		b.WriteByte('\n')
		line++
	}
	selected, _ := st.Selected()
	hovered, _ := st.Hovered()
	biggest := maxSize(h)
	avail := max(width-indent, minCellWidth)

	for i, sec := range h.Sectors {
		if i > 0 {
			emit("")
		}
		emit(sectorHeader(sec))
		for _, ind := range sec.Industries {
			emit(industryStyle.Render("  " + ind.Name))

			var top, bottom []string
			x := indent
			flush := func() {
				if len(top) == 0 {
					return
				}
				pad := strings.Repeat(" ", indent)
				emit(pad + strings.Join(top, " "))
				emit(pad + strings.Join(bottom, " "))
				top, bottom = nil, nil
				x = indent
			}
			for _, c := range ind.Cells {
				w := cellWidth(c.Size, biggest)
				if x > indent && x-indent+w > avail {
					flush()
				}
				style := bucketStyle(c.Bucket).Width(w)
				switch c.Stock.Symbol {
				case selected:
					style = style.Background(selectedBG).Foreground(lipgloss.Color("0")).Bold(true)
				case hovered:
					style = style.Underline(true).Bold(true)
				}
				name := c.Stock.Symbol
				if c.Stock.IsMajor {
					name += "*"
				}
				top = append(top, style.Render(" "+truncate(name, w-1)))
				bottom = append(bottom, style.UnsetUnderline().Render(" "+truncate(layout.FormatPercent(c.Stock.ChangePercent), w-1)))
				regions = append(regions,
					region{line: line, x0: x, x1: x + w, symbol: c.Stock.Symbol},
					region{line: line + 1, x0: x, x1: x + w, symbol: c.Stock.Symbol},
				)
				x += w + cellGap
			}
			flush()
		}
	}
	return strings.TrimSuffix(b.String(), "\n"), regions
}

// sectorHeader labels a sector with its average change and stock count.
func sectorHeader(sec layout.SectorLayout) string {
	p := sec.Performance()
	label := sectorStyle.Render(" " + sec.Name + " ")
	stats := fmt.Sprintf(" avg %s  %s", layout.FormatPercent(p.AvgChangePercent), english.Plural(p.Count, "stock", "stocks"))
	return label + bucketStyle(layout.BucketFor(p.AvgChangePercent)).Render(stats+" ")
}

func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if len(s) <= w {
		return s
	}
	return s[:w]
}

func renderLegend() string {
	parts := make([]string, 0, len(layout.Buckets))
	for _, e := range layout.Legend() {
		parts = append(parts, bucketStyle(e.Bucket).Render(" "+e.Label+" "))
	}
	return strings.Join(parts, " ")
}

func renderMovers(gainers, losers []domain.Stock) string {
	if len(gainers) == 0 && len(losers) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(dimStyle.Render("up "))
	for _, s := range gainers {
		b.WriteString(gainStyle.Render(fmt.Sprintf("%s %s  ", s.Symbol, layout.FormatPercent(s.ChangePercent))))
	}
	b.WriteString(dimStyle.Render(" down "))
	for _, s := range losers {
		b.WriteString(lossStyle.Render(fmt.Sprintf("%s %s  ", s.Symbol, layout.FormatPercent(s.ChangePercent))))
	}
	return b.String()
}

// renderDetails is the two-line panel for the selected stock. Only real
// quote fields are shown.
func renderDetails(c layout.Cell) (string, string) {
	s := c.Stock
	pct := gainStyle
	if s.ChangePercent < 0 {
		pct = lossStyle
	}
	first := labelStyle.Render(s.Symbol) + dimStyle.Render(fmt.Sprintf("  %s / %s", s.Sector, s.Industry))
	if s.IsMajor {
		first += dimStyle.Render("  major")
	}
	second := fmt.Sprintf("price %s  change %s  vol %s  cap %s  ",
		layout.FormatPrice(s.Price),
		pct.Render(fmt.Sprintf("%s (%s)", layout.FormatChange(s.Change), layout.FormatPercent(s.ChangePercent))),
		layout.FormatVolume(s.Volume),
		layout.FormatMarketCap(s.MarketCap),
	) + dimStyle.Render("[esc] close")
	return first, second
}

func renderTooltip(c layout.Cell) string {
	s := c.Stock
	return fmt.Sprintf("%s  %s  %s  %s", labelStyle.Render(s.Symbol), s.Industry,
		layout.FormatPrice(s.Price), layout.FormatPercent(s.ChangePercent))
}

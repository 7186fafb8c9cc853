package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/config"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/interact"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/layout"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/quote"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/refresh"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/store"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/util"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/watchlist"
)

const (
	headerHeight = 1
	footerHeight = 4
	moversCount  = 5
)

// Messages.
type tickMsg time.Time
type snapshotMsg refresh.Snapshot

func tickCmd() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitSnapshot(ch <-chan refresh.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

// refresher is the part of the scheduler the view drives.
type refresher interface {
	Trigger() bool
	InFlight() bool
}

// Model.
type model struct {
	sched   refresher
	updates <-chan refresh.Snapshot
	cancel  context.CancelFunc
	logger  *slog.Logger

	snap    refresh.Snapshot
	mode    layout.Mode
	heatmap layout.Heatmap
	gainers []domain.Stock
	losers  []domain.Stock
	state   interact.State
	regions []region

	viewport      viewport.Model
	ready         bool
	width, height int
}

func initialModel(sched refresher, updates <-chan refresh.Snapshot, initial refresh.Snapshot, cancel context.CancelFunc, logger *slog.Logger) model {
	m := model{
		sched:   sched,
		updates: updates,
		cancel:  cancel,
		logger:  logger,
		mode:    layout.ModeAbsolute,
	}
	m.setSnapshot(initial)
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), waitSnapshot(m.updates))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			return m, tea.Quit
		case "esc":
			m.state.Close()
			m.render()
			return m, nil
		case "t":
			m.mode = m.mode.Toggle()
			m.logger.Info("size mode", "mode", m.mode.String())
			m.relayout()
			return m, nil
		case "r":
			if !m.sched.Trigger() {
				m.logger.Info("refresh ignored, one already in flight")
			}
			return m, nil
		case "left", "right":
			m.stepSelection(msg.String() == "right")
			m.render()
			return m, nil
		}

	case tea.MouseMsg:
		if msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown {
			break
		}
		if m.handleMouse(msg) {
			m.render()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-headerHeight-footerHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.render()
		return m, nil

	case snapshotMsg:
		m.setSnapshot(refresh.Snapshot(msg))
		return m, waitSnapshot(m.updates)

	case tickMsg:
		// Keeps the "updated ... ago" header current.
		return m, tickCmd()
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// setSnapshot replaces the data on screen and drops interaction state for
// symbols that are gone.
func (m *model) setSnapshot(snap refresh.Snapshot) {
	changed := snap.Seq != m.snap.Seq || len(snap.Sectors) != len(m.snap.Sectors)
	m.snap = snap
	if !changed {
		m.render()
		return
	}
	m.gainers, m.losers = layout.TopMovers(snap.Sectors, moversCount)
	m.relayout()
	if m.logger != nil {
		m.logger.Info("snapshot", "seq", snap.Seq, "sectors", len(snap.Sectors), "stocks", len(m.heatmap.Cells()))
	}
}

func (m *model) relayout() {
	m.heatmap = layout.Compute(m.snap.Sectors, m.mode)
	m.state.Prune(func(sym string) bool {
		_, ok := m.heatmap.Cell(sym)
		return ok
	})
	m.render()
}

func (m *model) render() {
	if !m.ready {
		return
	}
	var content string
	switch {
	case m.snap.HasData():
		content, m.regions = renderHeatmap(m.heatmap, m.width, &m.state)
	case m.snap.Err != "":
		content, m.regions = errorStyle.Render(" "+m.snap.Err+" "), nil
	default:
		content, m.regions = dimStyle.Render("Loading stock data..."), nil
	}
	m.viewport.SetContent(content)
}

// handleMouse applies hover and click to the interaction state and reports
// whether anything changed.
func (m *model) handleMouse(msg tea.MouseMsg) bool {
	inContent := msg.Y >= headerHeight && msg.Y < headerHeight+m.viewport.Height
	sym := ""
	if inContent {
		sym = hitTest(m.regions, msg.Y-headerHeight+m.viewport.YOffset, msg.X)
	}

	switch {
	case msg.Action == tea.MouseActionMotion:
		prev, had := m.state.Hovered()
		if had && prev != sym {
			m.state.Leave(prev)
		}
		if sym != "" {
			m.state.Hover(sym)
		}
		return prev != sym
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		if sym != "" {
			m.state.Select(sym)
			return true
		}
		// The footer holds the details panel; clicks there keep it open.
		if msg.Y >= headerHeight+m.viewport.Height {
			return false
		}
		return m.state.ClickOutside()
	}
	return false
}

func (m *model) stepSelection(forward bool) {
	cells := m.heatmap.Cells()
	if len(cells) == 0 {
		return
	}
	cur := -1
	if sel, ok := m.state.Selected(); ok {
		for i, c := range cells {
			if c.Stock.Symbol == sel {
				cur = i
				break
			}
		}
	}
	switch {
	case cur < 0:
		cur = 0
	case forward:
		cur = (cur + 1) % len(cells)
	default:
		cur = (cur - 1 + len(cells)) % len(cells)
	}
	m.state.Select(cells[cur].Stock.Symbol)
}

func (m model) View() string {
	if !m.ready {
		return "initializing..."
	}
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.footerView()
}

func (m model) headerView() string {
	parts := []string{
		titleStyle.Render("Stock Heatmap"),
		dimStyle.Render("size: " + m.mode.String()),
		dimStyle.Render("updated " + layout.FormatUpdated(m.snap.UpdatedAt)),
	}
	if m.sched.InFlight() {
		parts = append(parts, dimStyle.Render("refreshing..."))
	}
	return strings.Join(parts, "  ")
}

func (m model) footerView() string {
	lines := []string{renderLegend(), renderMovers(m.gainers, m.losers)}
	if sym, ok := m.state.Selected(); ok {
		if c, ok := m.heatmap.Cell(sym); ok {
			a, b := renderDetails(c)
			return strings.Join(append(lines, a, b), "\n")
		}
	}
	if sym, ok := m.state.Tooltip(); ok {
		if c, ok := m.heatmap.Cell(sym); ok {
			lines = append(lines, renderTooltip(c))
		}
	}
	for len(lines) < footerHeight-1 {
		lines = append(lines, "")
	}
	lines = append(lines, dimStyle.Render("click select  esc close  left/right step  t size mode  r refresh  q quit"))
	return strings.Join(lines, "\n")
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
		os.Exit(1)
	}
	cfgPath := "config/heatmap.yaml"
	if p := os.Getenv("HEATMAP_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}

	logPath := fmt.Sprintf("/tmp/heatmap-tui-%s.log", time.Now().Format("2006-01-02"))
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := util.NewLoggerTo(logFile, cfg.Logging.Level, "text")
	util.SetDefault(logger)

	wl, err := watchlist.Load(cfg.Watchlist.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading watchlist: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := quote.NewClientFromConfig(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating quote client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	sched := refresh.New(client, wl, refresh.Options{
		Interval: cfg.Refresh.Interval,
		Logger:   logger.With("component", "refresh"),
	})

	// Show the server's last snapshot, if one is shared, until the first
	// cycle lands.
	if cfg.Storage.SQLitePath != "" {
		if db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath); err != nil {
			logger.Warn("opening sqlite store", "error", err)
		} else {
			prev, err := db.LoadLatestSnapshot(ctx)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				logger.Warn("loading last snapshot", "error", err)
			default:
				sched.Seed(prev.Sectors, prev.UpdatedAt)
			}
			db.Close()
		}
	}

	id, updates := sched.Subscribe(8)
	defer sched.Unsubscribe(id)

	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("refresh scheduler stopped", "error", err)
		}
	}()

	p := tea.NewProgram(
		initialModel(sched, updates, sched.Snapshot(), cancel, logger),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/Lucas-Song-Dev/StockHeatMap/internal/config"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/domain"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/layout"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/quote"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/refresh"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/util"
	"github.com/Lucas-Song-Dev/StockHeatMap/internal/watchlist"
	"github.com/Lucas-Song-Dev/StockHeatMap/pkg/heatmap"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: heatmap-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version            Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  heatmap            Print the server's heatmap (-mode absolute|sector)\n")
		fmt.Fprintf(os.Stderr, "  local              Fetch quotes directly and print the heatmap\n")
		fmt.Fprintf(os.Stderr, "  status             Show heatmap-server status\n")
		fmt.Fprintf(os.Stderr, "  refresh            Ask the server to refresh now\n")
		fmt.Fprintf(os.Stderr, "  search <query>     Search stocks by symbol, sector or industry\n")
		fmt.Fprintf(os.Stderr, "  history <sym>...   Show archived daily changes (-days N)\n")
		fmt.Fprintf(os.Stderr, "  sectors            Show average change per sector\n")
		fmt.Fprintf(os.Stderr, "  lookup <sym>...    Look up quotes for any symbols\n")
		fmt.Fprintf(os.Stderr, "  movers             Show top gainers and losers (-n N)\n")
		fmt.Fprintf(os.Stderr, "  runs               Show recent refresh runs (-limit N)\n")
		fmt.Fprintf(os.Stderr, "  health             Query the gRPC health service (-grpc host:port)\n")
		fmt.Fprintf(os.Stderr, "\nThe server URL comes from -server or HEATMAP_SERVER (default http://localhost:5000).\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "version":
		fmt.Printf("heatmap-cli %s\n", version)
	case "heatmap":
		err = runHeatmap(ctx, args)
	case "local":
		err = runLocal(ctx, args)
	case "status":
		err = runStatus(ctx, args)
	case "refresh":
		err = runRefresh(ctx, args)
	case "search":
		err = runSearch(ctx, args)
	case "history":
		err = runHistory(ctx, args)
	case "sectors":
		err = runSectors(ctx, args)
	case "lookup":
		err = runLookup(ctx, args)
	case "movers":
		err = runMovers(ctx, args)
	case "runs":
		err = runRuns(ctx, args)
	case "health":
		err = runHealth(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set carrying the shared -server flag.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	def := "http://localhost:5000"
	if v := os.Getenv("HEATMAP_SERVER"); v != "" {
		def = v
	}
	server := fs.String("server", def, "heatmap-server base URL")
	return fs, server
}

func runHeatmap(ctx context.Context, args []string) error {
	fs, server := newFlagSet("heatmap")
	mode := fs.String("mode", "absolute", "size mode: absolute or sector")
	fs.Parse(args)

	resp, err := heatmap.NewClient(*server).GetHeatmap(ctx, *mode)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		fmt.Println(*resp.Error)
		return nil
	}
	if resp.Loading {
		fmt.Println("Loading stock data...")
		return nil
	}

	table := newTable([]string{"Sector", "Industry", "Symbol", "Change %", "Price", "Market Cap", "Size", "Bucket"})
	for _, sec := range resp.Sectors {
		for _, ind := range sec.Industries {
			for _, c := range ind.Cells {
				table.Append([]string{
					sec.Name, ind.Name, majorMark(c.Symbol, c.IsMajor),
					layout.FormatPercent(c.ChangePercent),
					layout.FormatPrice(c.Price),
					layout.FormatMarketCap(c.MarketCap),
					strconv.FormatFloat(c.Size, 'f', 1, 64),
					c.Bucket,
				})
			}
		}
	}
	table.Render()
	if resp.UpdatedAt != nil {
		fmt.Printf("updated %s (seq %d, mode %s)\n", layout.FormatUpdated(*resp.UpdatedAt), resp.Seq, resp.Mode)
	}
	return nil
}

// runLocal runs a single refresh cycle in-process, without a server.
func runLocal(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("local", flag.ExitOnError)
	mode := fs.String("mode", "absolute", "size mode: absolute or sector")
	cfgPath := fs.String("config", "config/heatmap.yaml", "config file (HEATMAP_CONFIG overrides)")
	fs.Parse(args)

	m, err := layout.ParseMode(*mode)
	if err != nil {
		return err
	}
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	if p := os.Getenv("HEATMAP_CONFIG"); p != "" {
		*cfgPath = p
	}
	cfg, err := config.LoadOrDefault(*cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := util.NewLoggerTo(os.Stderr, "warn", "text")
	if cfg.Logging.Level == "debug" {
		logger = util.NewLoggerTo(os.Stderr, "debug", "text")
	}

	wl, err := watchlist.Load(cfg.Watchlist.Path)
	if err != nil {
		return fmt.Errorf("loading watchlist: %w", err)
	}
	client, err := quote.NewClientFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	sched := refresh.New(client, wl, refresh.Options{Logger: logger})
	if _, err := sched.Refresh(ctx); err != nil {
		return err
	}
	snap := sched.Snapshot()
	h := layout.Compute(snap.Sectors, m)

	table := newTable([]string{"Sector", "Industry", "Symbol", "Change %", "Price", "Volume", "Market Cap", "Size"})
	for _, sec := range h.Sectors {
		for _, ind := range sec.Industries {
			for _, c := range ind.Cells {
				table.Append(stockRow(sec.Name, ind.Name, c.Stock, c.Size))
			}
		}
	}
	table.Render()
	fmt.Printf("%d stocks from %s\n", domain.CountStocks(snap.Sectors), client.SourceName())
	return nil
}

func runStatus(ctx context.Context, args []string) error {
	fs, server := newFlagSet("status")
	fs.Parse(args)

	st, err := heatmap.NewClient(*server).GetStatus(ctx)
	if err != nil {
		return err
	}
	table := newTable([]string{"Field", "Value"})
	table.Append([]string{"Status", st.Status})
	table.Append([]string{"Market open", strconv.FormatBool(st.MarketOpen)})
	table.Append([]string{"Source", st.Source})
	table.Append([]string{"Interval", st.Interval})
	table.Append([]string{"Seq", strconv.FormatUint(st.Seq, 10)})
	table.Append([]string{"Stocks", strconv.Itoa(st.Stocks)})
	table.Append([]string{"Sectors", strconv.Itoa(st.Sectors)})
	table.Append([]string{"Refreshing", strconv.FormatBool(st.Refreshing)})
	if st.LastUpdated != nil {
		table.Append([]string{"Last updated", layout.FormatUpdated(*st.LastUpdated)})
	}
	if st.LastError != "" {
		table.Append([]string{"Last error", st.LastError})
	}
	table.Render()
	return nil
}

func runRefresh(ctx context.Context, args []string) error {
	fs, server := newFlagSet("refresh")
	fs.Parse(args)

	resp, err := heatmap.NewClient(*server).Refresh(ctx)
	if err != nil {
		return err
	}
	switch {
	case resp.Error != "":
		fmt.Printf("refresh failed: %s\n", resp.Error)
	case resp.Refreshed:
		fmt.Println("refreshed")
	default:
		fmt.Println("a refresh is already in progress")
	}
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs, server := newFlagSet("search")
	limit := fs.Int("limit", 20, "maximum results")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: heatmap-cli search [options] <query>")
	}

	resp, err := heatmap.NewClient(*server).Search(ctx, fs.Arg(0), *limit)
	if err != nil {
		return err
	}
	table := newTable([]string{"Symbol", "Sector", "Industry", "Change %", "Score"})
	for _, h := range resp.Hits {
		table.Append([]string{
			majorMark(h.Stock.Symbol, h.Stock.IsMajor), h.Stock.Sector, h.Stock.Industry,
			layout.FormatPercent(h.Stock.ChangePercent),
			strconv.FormatFloat(h.Score, 'f', 2, 64),
		})
	}
	table.Render()
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs, server := newFlagSet("history")
	days := fs.Int("days", 30, "days of history")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: heatmap-cli history [options] <symbol>...")
	}
	if fs.NArg() > 1 {
		return runHistories(ctx, heatmap.NewClient(*server), *days, fs.Args())
	}

	rep, err := heatmap.NewClient(*server).GetHistory(ctx, fs.Arg(0), *days)
	if err != nil {
		return err
	}
	table := newTable([]string{"Date", "Price", "Change", "Change %", "Volume"})
	for _, q := range rep.Days {
		table.Append([]string{
			q.Date.Format("2006-01-02"),
			layout.FormatPrice(q.Price),
			layout.FormatChange(q.Change),
			layout.FormatPercent(q.ChangePercent),
			layout.FormatVolume(q.Volume),
		})
	}
	table.Render()
	s := rep.Stats
	fmt.Printf("%s: %d days, avg %s, max %s, min %s, up %d, down %d, return %s\n",
		rep.Symbol, len(rep.Days),
		layout.FormatPercent(s.AvgChangePercent),
		layout.FormatPercent(s.MaxChangePercent),
		layout.FormatPercent(s.MinChangePercent),
		s.UpDays, s.DownDays, layout.FormatPercent(s.PeriodReturn*100))
	return nil
}

// runHistories prints one summary row per symbol.
func runHistories(ctx context.Context, c *heatmap.Client, days int, symbols []string) error {
	resp, err := c.GetHistories(ctx, days, symbols...)
	if err != nil {
		return err
	}
	table := newTable([]string{"Symbol", "Days", "Avg %", "Max %", "Min %", "Up", "Down", "Return"})
	for _, rep := range resp.Reports {
		s := rep.Stats
		table.Append([]string{
			rep.Symbol, strconv.Itoa(len(rep.Days)),
			layout.FormatPercent(s.AvgChangePercent),
			layout.FormatPercent(s.MaxChangePercent),
			layout.FormatPercent(s.MinChangePercent),
			strconv.Itoa(s.UpDays), strconv.Itoa(s.DownDays),
			layout.FormatPercent(s.PeriodReturn * 100),
		})
	}
	table.Render()
	if len(resp.Missing) > 0 {
		fmt.Printf("no history: %s\n", strings.Join(resp.Missing, ", "))
	}
	return nil
}

func runSectors(ctx context.Context, args []string) error {
	fs, server := newFlagSet("sectors")
	fs.Parse(args)

	resp, err := heatmap.NewClient(*server).Sectors(ctx)
	if err != nil {
		return err
	}
	table := newTable([]string{"Sector", "Stocks", "Avg %", "Up", "Down", "Bucket"})
	for _, s := range resp.Sectors {
		table.Append([]string{
			s.Name, strconv.Itoa(s.Count),
			layout.FormatPercent(s.AvgChangePercent),
			strconv.Itoa(s.Gainers), strconv.Itoa(s.Losers), s.Bucket,
		})
	}
	table.Render()
	return nil
}

func runLookup(ctx context.Context, args []string) error {
	fs, server := newFlagSet("lookup")
	fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: heatmap-cli lookup [options] <symbol>...")
	}

	resp, err := heatmap.NewClient(*server).LookupStocks(ctx, fs.Args()...)
	if err != nil {
		return err
	}
	table := newTable([]string{"Sector", "Industry", "Symbol", "Change %", "Price", "Volume", "Market Cap"})
	for _, st := range resp.Stocks {
		table.Append(stockRow(st.Sector, st.Industry, st, 0)[:7])
	}
	table.Render()
	if len(resp.Missing) > 0 {
		fmt.Printf("no quote: %s\n", strings.Join(resp.Missing, ", "))
	}
	return nil
}

func runMovers(ctx context.Context, args []string) error {
	fs, server := newFlagSet("movers")
	n := fs.Int("n", 5, "stocks per side")
	fs.Parse(args)

	resp, err := heatmap.NewClient(*server).Movers(ctx, *n)
	if err != nil {
		return err
	}
	table := newTable([]string{"", "Symbol", "Industry", "Change %", "Price"})
	for _, s := range resp.Gainers {
		table.Append([]string{"up", s.Symbol, s.Industry, layout.FormatPercent(s.ChangePercent), layout.FormatPrice(s.Price)})
	}
	for _, s := range resp.Losers {
		table.Append([]string{"down", s.Symbol, s.Industry, layout.FormatPercent(s.ChangePercent), layout.FormatPrice(s.Price)})
	}
	table.Render()
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs, server := newFlagSet("runs")
	limit := fs.Int("limit", 20, "runs to show")
	fs.Parse(args)

	resp, err := heatmap.NewClient(*server).Runs(ctx, *limit)
	if err != nil {
		return err
	}
	table := newTable([]string{"Seq", "Trigger", "Started", "Duration", "Fetched", "Error"})
	for _, r := range resp.Runs {
		table.Append([]string{
			strconv.FormatUint(r.Seq, 10), r.Trigger,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Duration.Round(time.Millisecond).String(),
			fmt.Sprintf("%d/%d", r.Fetched, r.Requested),
			r.Error,
		})
	}
	table.Render()
	return nil
}

func runHealth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("grpc", "localhost:5001", "gRPC health address")
	service := fs.String("service", "", "service name; empty checks the whole server")
	fs.Parse(args)

	status, err := heatmap.CheckHealth(ctx, *addr, *service)
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	return table
}

func stockRow(sector, industry string, s domain.Stock, size float64) []string {
	return []string{
		sector, industry, majorMark(s.Symbol, s.IsMajor),
		layout.FormatPercent(s.ChangePercent),
		layout.FormatPrice(s.Price),
		layout.FormatVolume(s.Volume),
		layout.FormatMarketCap(s.MarketCap),
		strconv.FormatFloat(size, 'f', 1, 64),
	}
}

func majorMark(symbol string, major bool) string {
	if major {
		return symbol + " *"
	}
	return symbol
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	trailingstop "github.com/tesius/trailing-stop-visualizer"
	"github.com/tesius/trailing-stop-visualizer/pkg/config"
	"github.com/tesius/trailing-stop-visualizer/pkg/core"
	"github.com/tesius/trailing-stop-visualizer/pkg/download"
	"github.com/tesius/trailing-stop-visualizer/pkg/feed"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger"
	"github.com/tesius/trailing-stop-visualizer/pkg/logger/zerolog"
	"github.com/tesius/trailing-stop-visualizer/pkg/notification"
	"github.com/tesius/trailing-stop-visualizer/pkg/plot"
	"github.com/tesius/trailing-stop-visualizer/pkg/plot/indicator"
	"github.com/tesius/trailing-stop-visualizer/pkg/storage"
)

// Command line flags
var (
	configPath string

	// Serve command flags
	servePort int

	// Analyze command flags
	ticker       string
	interval     string
	days         int
	period       int
	multiplier   float64
	tradeType    string
	entryPrice   float64
	entryDate    string
	firstTPRatio float64
	csvFile      string
	histogram    bool
	notify       bool

	// Download command flags
	startDate  string
	endDate    string
	outputFile string
)

func main() {
	godotenv.Load()

	rootCmd := &cobra.Command{
		Use:     "trailstop",
		Short:   "ATR trailing stop analysis for stocks and crypto",
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "trailstop.yml", "Config file path")

	rootCmd.AddCommand(buildServeCmd())
	rootCmd.AddCommand(buildAnalyzeCmd())
	rootCmd.AddCommand(buildDownloadCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app bundles the dependencies shared by all commands
type app struct {
	cfg    *config.Config
	log    logger.Logger
	feeder core.Feeder
	store  core.CandleStorage
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	zl, err := zerolog.NewZerolog(cfg.Log.Level, cfg.Log.TimeLayout, cfg.Log.Colored, cfg.Log.JSON)
	if err != nil {
		return nil, err
	}
	log := zerolog.NewAdapter(zl.Logger)

	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	source, err := buildSource(ctx, cfg, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		cfg:    cfg,
		log:    log,
		feeder: feed.WithCache(source, store, cfg.Feed.CacheTTL, log),
		store:  store,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warnf("failed to close candle store: %s", err)
	}
}

// buildSource selects the upstream candle source from the configuration
func buildSource(ctx context.Context, cfg *config.Config, log logger.Logger) (core.Feeder, error) {
	if cfg.Feed.Source == "binance" {
		var options []feed.BinanceOption
		if cfg.Feed.BinanceKey != "" {
			options = append(options, feed.WithBinanceCredentials(cfg.Feed.BinanceKey, cfg.Feed.BinanceSecret))
		}
		return feed.NewBinance(ctx, log, options...)
	}

	return feed.NewYahoo(log), nil
}

// buildStore opens the candle cache backing store. A configured path means
// a persistent file, otherwise the cache lives in memory.
func buildStore(cfg *config.Config) (core.CandleStorage, error) {
	if cfg.Storage.Path != "" {
		return storage.FromFile(cfg.Storage.Path)
	}
	return storage.FromMemory()
}

// buildAnalyzer assembles the analyzer and, when enabled, the Telegram bot.
// The bot answers /analyze queries with its own analyzer so in-chat replies
// are not duplicated as broadcast notifications; the returned analyzer
// pushes fresh sell signals through the bot.
func buildAnalyzer(a *app) (*trailingstop.Analyzer, core.NotifierWithStart, error) {
	options := []trailingstop.Option{trailingstop.WithLogger(a.log)}

	var bot core.NotifierWithStart
	if a.cfg.Telegram.Enabled {
		queryAnalyzer := trailingstop.NewAnalyzer(a.feeder, options...)

		var err error
		bot, err = notification.NewTelegram(queryAnalyzer, notification.TelegramSettings{
			Token: a.cfg.Telegram.Token,
			Users: a.cfg.Telegram.Users,
		})
		if err != nil {
			return nil, nil, err
		}

		options = append(options, trailingstop.WithNotifier(bot))
	}

	return trailingstop.NewAnalyzer(a.feeder, options...), bot, nil
}

func buildServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chart HTTP server",
		RunE:  runServe,
	}

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Override the configured HTTP port")

	return serveCmd
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	analyzer, bot, err := buildAnalyzer(app)
	if err != nil {
		return err
	}

	if bot != nil {
		bot.Start()
	}

	port := app.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}

	chart, err := plot.NewChart(
		analyzer,
		app.log,
		plot.WithPort(port),
		plot.WithIndicators(
			indicator.EMA(21, "#2196f3", indicator.Close),
			indicator.SMA(50, "#9c27b0", indicator.Close),
		),
	)
	if err != nil {
		return err
	}

	server := plot.NewStandardHTTPServer(app.cfg.Server.ReadTimeout, app.cfg.Server.WriteTimeout)
	return chart.Start(server)
}

func buildAnalyzeCmd() *cobra.Command {
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a trailing stop analysis and print the summary",
		RunE:  runAnalyze,
	}

	analyzeCmd.Flags().StringVarP(&ticker, "ticker", "t", "", "Ticker symbol (e.g. AAPL, 005930, BTCUSDT)")
	analyzeCmd.Flags().StringVarP(&interval, "interval", "i", "", "Bar interval: 1d, 1wk or 1mo (default 1d)")
	analyzeCmd.Flags().IntVarP(&days, "days", "d", 0, "History window in days (default 365)")
	analyzeCmd.Flags().IntVar(&period, "period", 0, "ATR smoothing period")
	analyzeCmd.Flags().Float64Var(&multiplier, "multiplier", 0, "ATR stop multiplier")
	analyzeCmd.Flags().StringVar(&tradeType, "trade-type", "", "Trade type preset: A, M or B")
	analyzeCmd.Flags().Float64Var(&entryPrice, "entry-price", 0, "Entry price for the exit simulation")
	analyzeCmd.Flags().StringVar(&entryDate, "entry-date", "", "Entry date for the exit simulation (e.g. 2025-01-10)")
	analyzeCmd.Flags().Float64Var(&firstTPRatio, "first-tp-ratio", 0, "Fraction sold at the first take profit (0.25 or 0.5)")
	analyzeCmd.Flags().StringVar(&csvFile, "csv", "", "Read daily bars from a CSV file instead of the configured feed")
	analyzeCmd.Flags().BoolVar(&histogram, "histogram", false, "Print the true range distribution")
	analyzeCmd.Flags().BoolVar(&notify, "notify", false, "Send the summary to the configured Telegram users")

	analyzeCmd.MarkFlagRequired("ticker")

	return analyzeCmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	if csvFile != "" {
		csvFeed, err := feed.NewCSVFeed(feed.CSVSource{
			Ticker:   trailingstop.NormalizeTicker(ticker),
			File:     csvFile,
			Interval: feed.IntervalDaily,
		})
		if err != nil {
			return err
		}
		app.feeder = csvFeed
	}

	analyzer, bot, err := buildAnalyzer(app)
	if err != nil {
		return err
	}

	analysis, err := analyzer.Analyze(cmd.Context(), trailingstop.Request{
		Ticker:       ticker,
		Interval:     interval,
		Days:         days,
		Period:       period,
		Multiplier:   multiplier,
		TradeType:    tradeType,
		EntryPrice:   entryPrice,
		EntryDate:    entryDate,
		FirstTPRatio: firstTPRatio,
	})
	if err != nil {
		return err
	}

	fmt.Println(analysis.Summary())

	if histogram {
		if err := analysis.TrueRangeHistogram(os.Stdout, 12); err != nil {
			return err
		}
	}

	if notify {
		if bot == nil {
			return fmt.Errorf("telegram is not enabled in the configuration")
		}
		bot.Notify(fmt.Sprintf("```\n%s\n```", analysis.Summary()))
	}

	return nil
}

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download historical bars to a CSV file",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&ticker, "ticker", "t", "", "Ticker symbol (e.g. AAPL)")
	downloadCmd.Flags().StringVarP(&interval, "interval", "i", feed.IntervalDaily, "Bar interval: 1d, 1wk or 1mo")
	downloadCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download (default 365)")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2024-01-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2024-12-31)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./aapl.csv)")

	downloadCmd.MarkFlagRequired("ticker")
	downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

func runDownload(cmd *cobra.Command, args []string) error {
	app, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer app.close()

	options, err := buildDownloadOptions()
	if err != nil {
		return err
	}

	return download.NewDownloader(app.feeder, app.log).Download(
		cmd.Context(),
		ticker,
		interval,
		outputFile,
		options...,
	)
}

func buildDownloadOptions() ([]download.Option, error) {
	var options []download.Option

	if days > 0 {
		options = append(options, download.WithDays(days))
	}

	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("start and end dates must be provided together")
		}

		start, err := time.Parse(core.DateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date format: %w", err)
		}

		end, err := time.Parse(core.DateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date format: %w", err)
		}

		options = append(options, download.WithWindow(start, end))
	}

	return options, nil
}

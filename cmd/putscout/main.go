package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/rewired-gh/putscout/internal/config"
	"github.com/rewired-gh/putscout/internal/kite"
	"github.com/rewired-gh/putscout/internal/logger"
	"github.com/rewired-gh/putscout/internal/metrics"
	"github.com/rewired-gh/putscout/internal/models"
	"github.com/rewired-gh/putscout/internal/positions"
	"github.com/rewired-gh/putscout/internal/report"
	"github.com/rewired-gh/putscout/internal/scanner"
	"github.com/rewired-gh/putscout/internal/sensibull"
	"github.com/rewired-gh/putscout/internal/storage"
	"github.com/rewired-gh/putscout/internal/telegram"
	"github.com/rewired-gh/putscout/internal/trader"
	"github.com/rewired-gh/putscout/internal/watchlist"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatalf("Failed to parse flags: %v", err)
	}
	configPath, _ := flags.GetString("config")

	cfg, err := config.Load(configPath, flags)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	defer logger.Sync()
	if configPath != "" {
		logger.Info("Configuration loaded from %s", configPath)
	}

	store, err := storage.New(cfg.Storage.MaxRuns, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cancelling run...")
		cancel()
	}()

	app := newApp(cfg, store, telegramClient)
	if err := app.run(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("Run failed: %v", err)
		if telegramClient != nil {
			if sendErr := telegramClient.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
			}
		}
		_ = store.Close()
		logger.Sync()
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	kite     *kite.Client
	chains   *sensibull.Client
	store    *storage.Storage
	notifier *telegram.Client
	metrics  *metrics.Recorder

	book    *positions.Service
	scanner *scanner.Scanner
	trader  *trader.Trader

	runID  string
	placed []models.Placement
}

func newApp(cfg *config.Config, store *storage.Storage, notifier *telegram.Client) *app {
	kiteClient := kite.NewClient(cfg.Kite.BaseURL, cfg.Kite.AuthToken,
		kite.WithTimeout(cfg.Kite.Timeout),
		kite.WithRetries(cfg.Kite.MaxRetries, cfg.Kite.RetryBackoff),
		kite.WithOrderTag(cfg.Kite.OrderTag),
	)
	chains := sensibull.NewClient(cfg.Sensibull.BaseURL, cfg.Sensibull.Timeout)
	rec := metrics.New()

	scan := scanner.New(chains, kiteClient, scanner.Config{
		MaxTimeToExpiryDays:     cfg.Scanner.MaxTimeToExpiryDays,
		MinDip:                  cfg.Scanner.MinDip,
		MaxDip:                  cfg.Scanner.MaxDip,
		MinimumProfitPercentage: cfg.Scanner.MinimumProfitPercentage,
	})
	scan.SetObserver(rec)

	return &app{
		cfg:      cfg,
		kite:     kiteClient,
		chains:   chains,
		store:    store,
		notifier: notifier,
		metrics:  rec,
		book:     positions.New(kiteClient, positions.Config{GTTTriggerOffset: cfg.Positions.GTTTriggerOffset}),
		scanner:  scan,
		trader:   trader.New(chains, kiteClient),
	}
}

func (a *app) run(ctx context.Context, in io.Reader, out io.Writer) error {
	started := time.Now()

	user, err := a.kite.Profile(ctx)
	if err != nil {
		var apiErr *kite.APIError
		if errors.As(err, &apiErr) && apiErr.IsAuth() {
			return fmt.Errorf("kite.auth_token rejected, log in again: %w", err)
		}
		return err
	}
	logger.Info("Logged in as %s (%s), order tag %s", user.UserName, user.UserID, a.kite.OrderTag())

	stocks, err := a.resolveStocks()
	if err != nil {
		return err
	}

	a.logPreviousRun()

	tickers := make([]string, 0, len(stocks))
	for _, s := range stocks {
		tickers = append(tickers, s.Ticker)
	}
	a.runID, err = a.store.StartRun(tickers)
	if err != nil {
		return err
	}

	candidates, runErr := a.execute(ctx, stocks, in, out)

	if err := a.store.FinishRun(a.runID, candidates, len(a.placed)); err != nil {
		logger.Warn("Failed to finish run journal: %v", err)
	}
	if err := a.store.RotateRuns(); err != nil {
		logger.Warn("Failed to rotate runs: %v", err)
	}

	if a.notifier != nil {
		if err := a.notifier.SendOrders(a.placed); err != nil {
			logger.Warn("Failed to send orders to Telegram: %v", err)
		}
	}

	a.metrics.Finish(started, time.Now())
	if err := a.metrics.Write(a.cfg.Metrics.TextfilePath); err != nil {
		logger.Warn("Failed to write metrics textfile: %v", err)
	}

	logger.Info("Run %s completed in %v", a.runID, time.Since(started))
	return runErr
}

func (a *app) logPreviousRun() {
	runs, err := a.store.RecentRuns(1)
	if err != nil {
		logger.Warn("Failed to read run journal: %v", err)
		return
	}
	if len(runs) == 0 {
		return
	}
	last := runs[0]
	logger.Info("Previous run %s at %s: %d options of interest, %d orders placed",
		last.ID, last.StartedAt.Format(time.RFC3339), last.Candidates, last.OrdersPlaced)

	placements, err := a.store.RunOrders(last.ID)
	if err != nil {
		logger.Warn("Failed to read orders of run %s: %v", last.ID, err)
		return
	}
	for _, p := range placements {
		logger.Info("Previous %s %s %d %s at %.2f (%s)", p.Kind, p.TransactionType, p.Quantity, p.TradingSymbol, p.Price, p.ID)
	}
}

func (a *app) resolveStocks() ([]models.StockOfInterest, error) {
	var stocks []models.StockOfInterest
	if a.cfg.Run.Stocks != "" {
		stocks = watchlist.FromTickers(a.cfg.Run.Stocks)
	} else {
		var err error
		stocks, err = watchlist.Load(a.cfg.Watchlist.Path)
		if err != nil {
			return nil, err
		}
	}
	if a.cfg.Run.CustomFiltered {
		stocks = watchlist.OnlyCustomFiltered(stocks)
	}
	if len(stocks) == 0 {
		return nil, errors.New("no stocks to scan")
	}
	return stocks, nil
}

// execute runs the book maintenance and scan steps and returns the number of
// options of interest found.
func (a *app) execute(ctx context.Context, stocks []models.StockOfInterest, in io.Reader, out io.Writer) (int, error) {
	expected, err := a.book.ExpectedProfit(ctx)
	if err != nil {
		return 0, err
	}
	a.metrics.ExpectedProfit.Set(expected)
	logger.Info("Total profit expected till now: %.0f", expected)

	if a.cfg.Run.OrderEnabled {
		placed, err := a.book.CoverNakedPositions(ctx)
		a.record(placed)
		if err != nil {
			return 0, err
		}
	}

	if a.cfg.Run.OrderEnabled && a.cfg.Run.ExitEnabled {
		placed, err := a.book.ExitProfitablePositions(ctx, a.cfg.Positions.ExitProfitPercentage)
		a.record(placed)
		if err != nil {
			return 0, err
		}
	}

	options, err := a.scanner.GetOptionsOfInterest(ctx, stocks)
	if err != nil {
		return 0, err
	}
	a.metrics.Selected.Set(float64(len(options)))
	if len(options) == 0 {
		logger.Info("No eligible options found...")
		return 0, nil
	}

	held, err := a.kite.Positions(ctx)
	if err != nil {
		return len(options), err
	}
	scanner.Annotate(options, held)

	if err := report.Render(out, options); err != nil {
		return len(options), err
	}

	if err := a.store.AddCandidates(a.runID, options); err != nil {
		logger.Warn("Failed to journal candidates: %v", err)
	}
	if a.notifier != nil {
		if err := a.notifier.SendCandidates(options, a.cfg.Telegram.TopN); err != nil {
			logger.Warn("Failed to send candidates to Telegram: %v", err)
		}
	}

	if !a.cfg.Run.OrderEnabled {
		return len(options), nil
	}
	return len(options), a.sellSelected(ctx, options, in, out)
}

func (a *app) sellSelected(ctx context.Context, options []models.Option, in io.Reader, out io.Writer) error {
	fmt.Fprint(out, "Select the options to trade: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read selection: %w", err)
	}

	ids, err := report.ParseSelection(line)
	if err != nil {
		return err
	}
	selected, totals, err := report.Select(options, ids)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		logger.Info("Nothing selected")
		return nil
	}
	fmt.Fprintf(out, "Expected profit: %.0f, margin: %.0f\n", totals.Profit, totals.Margin)

	available, err := a.kite.EquityNet(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Available margin: %.0f\n", available)
	if totals.Margin > available {
		logger.Warn("Selection needs %.0f margin but only %.0f is available", totals.Margin, available)
	}

	var failed []string
	for _, option := range selected {
		p, err := a.trader.SellOption(ctx, option)
		if err != nil {
			logger.Error("Failed to sell %s: %v", option.TradingSymbol, err)
			failed = append(failed, option.TradingSymbol)
			continue
		}
		a.record([]models.Placement{p})
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to sell %s", strings.Join(failed, ", "))
	}
	return nil
}

func (a *app) record(placed []models.Placement) {
	for _, p := range placed {
		if err := a.store.AddOrder(a.runID, p); err != nil {
			logger.Warn("Failed to journal %s order on %s: %v", p.Kind, p.TradingSymbol, err)
		}
	}
	a.metrics.ObservePlacements(placed)
	a.placed = append(a.placed, placed...)
}

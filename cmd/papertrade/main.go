package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/quantframe/papertrade/internal/datasource"
	"github.com/quantframe/papertrade/internal/engine"
	"github.com/quantframe/papertrade/internal/logger"
	"github.com/quantframe/papertrade/internal/strategy"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "papertrade",
		Usage: "Paper-trading order execution and position accounting",
		Commands: []*cli.Command{
			backtestCommand(),
			liveCommand(),
			schemaCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug-level console logging",
	}
}

func newCLILogger(cmd *cli.Command) (*logger.Logger, error) {
	if cmd.Bool("verbose") {
		return logger.NewDevelopmentLogger()
	}

	return logger.NewLogger()
}

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "Replay historical candles through the strategy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the engine YAML config",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Candle file glob, CSV or Parquet (e.g. 'data/*.csv')",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory for the results JSON",
				Value:   "results",
			},
			&cli.IntFlag{
				Name:  "short",
				Usage: "Short SMA period",
				Value: 5,
			},
			&cli.IntFlag{
				Name:  "long",
				Usage: "Long SMA period",
				Value: 20,
			},
			verboseFlag(),
		},
		Action: backtestAction,
	}
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := newCLILogger(cmd)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	config, err := os.ReadFile(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	backtester := engine.NewBacktestEngine(appLogger)
	if err := backtester.Initialize(string(config)); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := backtester.LoadStrategy(strategy.NewSMACrossover(int(cmd.Int("short")), int(cmd.Int("long")))); err != nil {
		return err
	}

	store, err := datasource.NewCandleStore(appLogger)
	if err != nil {
		return fmt.Errorf("failed to open candle store: %w", err)
	}
	defer store.Close()

	if err := store.Load(cmd.String("data")); err != nil {
		return fmt.Errorf("failed to load candle files: %w", err)
	}

	candles, err := store.Candles(backtester.Config().Symbols,
		optional.None[time.Time](), optional.None[time.Time]())
	if err != nil {
		return fmt.Errorf("failed to query candles: %w", err)
	}

	source := datasource.NewHistoricalSource(candles, appLogger)
	if err := backtester.SetDataSource(source); err != nil {
		return err
	}

	bar := progressbar.Default(int64(source.Count()))
	callback := engine.OnProcessSignalCallback(func(_ int, _ int) {
		_ = bar.Add(1)
	})

	if err := backtester.Run(ctx, optional.Some(callback)); err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	runID := uuid.New().String()

	resultsPath, err := writeResults(cmd.String("output"), runID, backtester.Results())
	if err != nil {
		return err
	}

	printSummary(backtester.Results())
	fmt.Printf("\nFull results written to %s\n", resultsPath)

	return nil
}

func liveCommand() *cli.Command {
	return &cli.Command{
		Name:  "live",
		Usage: "Run the paper-trading loop against a polled quote source",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the engine YAML config",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "data",
				Aliases:  []string{"d"},
				Usage:    "Candle file glob an external downloader keeps fresh",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "short",
				Usage: "Short SMA period",
				Value: 5,
			},
			&cli.IntFlag{
				Name:  "long",
				Usage: "Long SMA period",
				Value: 20,
			},
			verboseFlag(),
		},
		Action: liveAction,
	}
}

func liveAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := newCLILogger(cmd)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	config, err := os.ReadFile(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	trader := engine.NewLiveEngine(appLogger)
	if err := trader.Initialize(string(config)); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := trader.LoadStrategy(strategy.NewSMACrossover(int(cmd.Int("short")), int(cmd.Int("long")))); err != nil {
		return err
	}

	store, err := datasource.NewCandleStore(appLogger)
	if err != nil {
		return fmt.Errorf("failed to open candle store: %w", err)
	}
	defer store.Close()

	if err := store.Load(cmd.String("data")); err != nil {
		return fmt.Errorf("failed to load candle files: %w", err)
	}

	engineConfig, err := engine.ParseConfig(string(config))
	if err != nil {
		return err
	}

	provider := datasource.NewStoreQuoteProvider(store, engineConfig.LotSizes, engineConfig.StockNames)

	source, err := datasource.NewLiveSource(datasource.LiveSourceConfig{
		Provider:     provider,
		Symbols:      engineConfig.Symbols,
		Interval:     engineConfig.Interval,
		HistoryCount: engineConfig.HistoryCount,
		PollInterval: engineConfig.PollInterval,
		RequestDelay: engineConfig.RequestDelay,
	}, appLogger)
	if err != nil {
		return err
	}

	if err := trader.SetDataSource(source); err != nil {
		return err
	}

	// SIGINT/SIGTERM stop the loop; the engine persists on the way out
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := trader.Run(runCtx); err != nil {
		return fmt.Errorf("live trading failed: %w", err)
	}

	printSummary(engine.Results{
		Trades:      trader.Account().Trades(),
		EquityCurve: trader.Account().EquityCurve(),
		Performance: trader.Performance(),
	})

	return nil
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Generate the JSON schema for the engine config file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Schema output path",
				Value:   "config/papertrade-config.json",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			config := engine.DefaultConfig()

			schemaJSON, err := config.GenerateSchemaJSON()
			if err != nil {
				return fmt.Errorf("failed to generate schema: %w", err)
			}

			schemaPath := cmd.String("output")
			if err := os.MkdirAll(filepath.Dir(schemaPath), 0o755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

			if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0o644); err != nil {
				return fmt.Errorf("failed to write schema: %w", err)
			}

			log.Printf("Schema written to %s", schemaPath)

			return nil
		},
	}
}

func writeResults(dir string, runID string, results engine.Results) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	encoded, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("backtest_%s.json", runID))
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}

	return path, nil
}

func printSummary(results engine.Results) {
	perf := results.Performance

	fmt.Printf("\nInitial capital: %.2f\n", perf.InitialCapital)
	fmt.Printf("Final equity:    %.2f\n", perf.FinalEquity)
	fmt.Printf("Total return:    %.2f%%\n", perf.TotalReturn*100)
	fmt.Printf("Max drawdown:    %.2f%%\n", perf.MaxDrawdown*100)
	fmt.Printf("Closed trades:   %d (win rate %.1f%%, avg profit %.2f%%)\n",
		perf.TradeStats.TotalTrades,
		perf.TradeStats.WinRate*100,
		perf.TradeStats.AvgProfitRatio*100)

	for symbol, sp := range perf.Symbols {
		fmt.Printf("  %-10s pnl=%.2f roi=%.2f%% rounds=%d position=%d\n",
			symbol, sp.TotalPnL, sp.ROI*100, sp.ClosedRound, sp.Position)
	}
}

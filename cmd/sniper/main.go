package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"solana-sniper/internal/config"
	"solana-sniper/internal/ingestion"
	"solana-sniper/internal/intake"
	"solana-sniper/internal/liquidity"
	"solana-sniper/internal/notify"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/pipeline"
	"solana-sniper/internal/position"
	"solana-sniper/internal/ratelimit"
	"solana-sniper/internal/safety"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
	chstore "solana-sniper/internal/storage/clickhouse"
	"solana-sniper/internal/storage/memory"
	"solana-sniper/internal/storage/migrations"
	pgstore "solana-sniper/internal/storage/postgres"
	"solana-sniper/internal/swap"
	"solana-sniper/internal/trade"
	"solana-sniper/internal/volume"
	"solana-sniper/internal/wallet"
)

const retrySweepInterval = 30 * time.Second

func main() {
	settingsPath := flag.String("settings", "", "Path to the JSON settings file (optional, defaults apply)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[sniper] ", log.LstdFlags)

	cfg, err := config.Load(*settingsPath)
	if err != nil {
		logger.Fatalf("Config: %v", err)
	}
	logger.Printf("Simulation=%v tradeUSD=%.0f maxTrades=%d liquidityFloor=$%.0f",
		cfg.Simulation, cfg.TradeAmountUSD, cfg.MaxTrades, cfg.LiquidityFloorUSD)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, logger, cfg, *useMemory)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}
	logger.Println("Shutdown complete")
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, useMemory bool) error {
	limiters := make(map[string]*ratelimit.Limiter, len(cfg.RateLimits))
	for name, rl := range cfg.RateLimits {
		limiters[name] = ratelimit.New(ratelimit.Config{
			Name:         name,
			MinInterval:  rl.MinInterval.Std(),
			JitterMin:    rl.JitterMin.Std(),
			JitterMax:    rl.JitterMax.Std(),
			MaxPerMinute: rl.MaxPerMinute,
		})
	}

	var rpcOpts []solana.ClientOption
	if p := limiters[config.UpstreamRPC]; p != nil {
		rpcOpts = append(rpcOpts, solana.WithPacer(p))
	}
	rpc := solana.NewHTTPClient(cfg.RPCEndpoint, rpcOpts...)

	var routerOpts []swap.Option
	if p := limiters[config.UpstreamSwapRouter]; p != nil {
		routerOpts = append(routerOpts, swap.WithPacer(p))
	}
	router := swap.NewClient(cfg.SwapRouterURL, routerOpts...)

	var oracleOpts []safety.OracleOption
	if p := limiters[config.UpstreamLockOracle]; p != nil {
		oracleOpts = append(oracleOpts, safety.WithOraclePacer(p))
	}
	oracle := safety.NewLockOracle(cfg.LockOracleURL, oracleOpts...)

	// Storage. Postgres when a DSN is present, memory otherwise.
	var (
		tokens   storage.TokenStore
		trades   storage.TradeStore
		liqSnaps storage.LiquiditySnapshotStore
		volSnaps storage.VolumeSnapshotStore
		reports  storage.SafetyReportStore
	)
	if useMemory || cfg.PostgresDSN == "" {
		logger.Println("Using in-memory storage")
		tokens = memory.NewTokenStore()
		trades = memory.NewTradeStore()
		liqSnaps = memory.NewLiquiditySnapshotStore()
		volSnaps = memory.NewVolumeSnapshotStore()
		reports = memory.NewSafetyReportStore()
	} else {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return err
		}
		logger.Println("Using PostgreSQL storage")
		tokens = pgstore.NewTokenStore(pool)
		trades = pgstore.NewTradeStore(pool)
		liqSnaps = pgstore.NewLiquiditySnapshotStore(pool)
		volSnaps = pgstore.NewVolumeSnapshotStore(pool)
		reports = pgstore.NewSafetyReportStore(pool)
	}

	var telemetry storage.PriceTrackStore
	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return err
		}
		defer conn.Close()
		telemetry = chstore.NewPriceTrackStore(conn)
		logger.Println("Price telemetry enabled (ClickHouse)")
	}

	var w *wallet.Wallet
	if !cfg.Simulation {
		var err error
		w, err = wallet.New(cfg.WalletSecretKey, rpc)
		if err != nil {
			return err
		}
		logger.Printf("Trading live from wallet %s", w.Pubkey())
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.DiscordWebhookURL != "" {
		notifier = notify.NewDiscord(cfg.DiscordWebhookURL)
	}

	analyzer := liquidity.NewAnalyzer(rpc, router, liquidity.Options{
		RaydiumAMMPrograms:  []string{config.RaydiumAMMProgram},
		RaydiumCLMMPrograms: []string{config.RaydiumCLMMProgram},
		PumpfunPrograms:     []string{config.PumpfunProgram},
	})
	volumes := volume.NewTracker(rpc, analyzer)
	checker := safety.NewChecker(rpc, router, oracle, volumes, safety.Config{
		TradeAmountUSD:     cfg.TradeAmountUSD,
		SlippagePct:        cfg.SlippagePct,
		MaxFeeRatio:        cfg.MaxFeeRatio,
		FeePctLimit:        cfg.FeePctLimit,
		MarketCapCeiling:   cfg.MarketCapCeiling,
		MinHolders:         cfg.MinHolders,
		TopHolderPct:       cfg.TopHolderPct,
		Top5Pct:            cfg.Top5Pct,
		UniformEpsilonPct:  cfg.UniformEpsilonPct,
		UniformFloorPct:    cfg.UniformFloorPct,
		SmallTopPct:        cfg.SmallTopPct,
		SecondaryHolderPct: cfg.SecondaryHolderPct,
	})

	var execWallet trade.Wallet
	if w != nil {
		execWallet = w
	}
	executor := trade.NewExecutor(rpc, router, execWallet, trades, notifier, trade.Config{
		Simulation:            cfg.Simulation,
		TradeAmountUSD:        cfg.TradeAmountUSD,
		SlippagePct:           cfg.SlippagePct,
		SellRetrySlippageStep: cfg.SellRetrySlippageStep,
		SellMaxRetries:        cfg.SellMaxRetries,
	})

	trackerOpts := []position.TrackerOption{}
	if telemetry != nil {
		trackerOpts = append(trackerOpts, position.WithTelemetry(telemetry))
	}
	if w != nil {
		trackerOpts = append(trackerOpts, position.WithWallet(w))
	}
	tracker := position.NewTracker(executor, analyzer, trades, position.Config{
		UseTakeProfit:          cfg.UseTakeProfit,
		UseStopLoss:            cfg.UseStopLoss,
		UseTrailingStop:        cfg.UseTrailingStop,
		UseTimeout:             cfg.UseTimeout,
		TakeProfit:             cfg.TakeProfit,
		StopLoss:               cfg.StopLoss,
		TrailingStop:           cfg.TrailingStop,
		TSLActivation:          cfg.TSLActivation,
		TimeoutAfter:           cfg.TimeoutAfter.Std(),
		TimeoutProfitThreshold: cfg.TimeoutProfitThreshold,
		TimeoutMaxLoss:         cfg.TimeoutMaxLoss,
		TrackInterval:          cfg.TrackInterval.Std(),
		ReconcileInterval:      cfg.ReconcileInterval.Std(),
		DustUSD:                cfg.DustUSD,
		Simulation:             cfg.Simulation,
	}, trackerOpts...)

	in := intake.New(intake.DefaultQueueSize)
	orch := pipeline.New(pipeline.Options{
		Intake:    in,
		RPC:       rpc,
		Analyzer:  analyzer,
		Safety:    checker,
		Executor:  executor,
		Tracker:   tracker,
		Volumes:   volumes,
		Notifier:  notifier,
		Tokens:    tokens,
		Liquidity: liqSnaps,
		Volume:    volSnaps,
		Reports:   reports,
		Config: pipeline.Config{
			LiquidityFloorUSD: cfg.LiquidityFloorUSD,
			MaxTokenAge:       cfg.MaxTokenAge.Std(),
			Blacklist:         cfg.Blacklist,
			MaxTrades:         cfg.MaxTrades,
			Phase2Delay:       cfg.Phase2Delay.Std(),
			MinPostBuyScore:   cfg.MinPostBuyScore,
			ClosePoorScore:    cfg.ClosePoorScore,
		},
	})

	// Pick up positions left open by a previous run before anything trades.
	if err := tracker.Restore(ctx); err != nil {
		logger.Printf("Restore failed: %v", err)
	} else if n := len(tracker.Active()); n > 0 {
		logger.Printf("Restored %d open positions", n)
	}

	ws, err := solana.NewWS(ctx, cfg.WSEndpoint, nil)
	if err != nil {
		return err
	}
	defer ws.Close()
	connector := ingestion.NewConnector(ws, in, cfg.Programs, cfg.InstructionMarkers)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := connector.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("Connector stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		orch.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		tracker.Run(ctx)
	}()

	// Failed-sell retry sweep and trading gauges.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(retrySweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !cfg.Simulation {
					executor.RetryFailedSells(ctx, analyzer.CurrentPrice)
				}
				observability.SetActivePositions(len(tracker.Active()))
				observability.DefaultMetrics.FailedSells.Set(float64(len(executor.FailedSells())))
			}
		}
	}()

	logger.Printf("Watching %d programs for pool creation", len(cfg.Programs))
	wg.Wait()
	orch.Wait()
	return ctx.Err()
}

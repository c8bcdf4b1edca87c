package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jensholdgaard/claim-market/internal/api"
	"github.com/jensholdgaard/claim-market/internal/bot"
	"github.com/jensholdgaard/claim-market/internal/claims"
	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/config"
	"github.com/jensholdgaard/claim-market/internal/economy"
	"github.com/jensholdgaard/claim-market/internal/health"
	"github.com/jensholdgaard/claim-market/internal/leader"
	"github.com/jensholdgaard/claim-market/internal/ledger"
	"github.com/jensholdgaard/claim-market/internal/listing"
	"github.com/jensholdgaard/claim-market/internal/market"
	"github.com/jensholdgaard/claim-market/internal/naming"
	"github.com/jensholdgaard/claim-market/internal/notify"
	"github.com/jensholdgaard/claim-market/internal/store"
	"github.com/jensholdgaard/claim-market/internal/sweeper"
	"github.com/jensholdgaard/claim-market/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/jensholdgaard/claim-market/internal/store/filestore"
	_ "github.com/jensholdgaard/claim-market/internal/store/postgres"
	_ "github.com/jensholdgaard/claim-market/internal/store/sqlite"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cfg.Telemetry.InstanceID == "" {
		cfg.Telemetry.InstanceID = leader.Identity()
	}
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	repos, err := store.Open(ctx, cfg.Database, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Close()
	logger.InfoContext(ctx, "store opened", slog.String("driver", cfg.Database.Driver))

	checkers := []health.Checker{{Name: "store", Check: repos.Ping}}

	bank, closeBank, err := openBank(ctx, cfg.Economy)
	if err != nil {
		return fmt.Errorf("opening economy (driver=%s): %w", cfg.Economy.Driver, err)
	}
	defer closeBank()
	if pinger, ok := bank.(interface{ Ping(context.Context) error }); ok {
		checkers = append(checkers, health.Checker{Name: "economy", Check: pinger.Ping})
	}

	registry := openRegistry(ctx, cfg.Claims, logger)

	healthHandler := health.NewHandler(clk, checkers...)

	// The bot is created before the market so its announcer can observe
	// trades; it connects only on the leader.
	var discordBot *bot.Bot
	var observer market.Observer
	if cfg.Discord.Enabled() {
		discordBot, err = bot.New(cfg.Discord, logger, tp.TracerProvider)
		if err != nil {
			return fmt.Errorf("creating bot: %w", err)
		}
		observer = discordBot.Announcer()
	}

	listings := listing.NewStore(repos.Listings, logger, tp.TracerProvider)
	txLedger := ledger.New(repos.Ledger, clk, logger, tp.TracerProvider)
	inbox := notify.NewInbox(cfg.Market.InboxSize, clk)
	board := notify.NewBoard()

	mkt, err := market.New(market.Deps{
		Store:          listings,
		Ledger:         txLedger,
		Claims:         registry,
		Currency:       bank,
		Names:          naming.NewService(repos.Names, cfg.Naming.MaxNameLength, logger, tp.TracerProvider),
		Events:         repos.Events,
		Notifier:       inbox,
		Display:        board,
		Observer:       observer,
		Clock:          clk,
		Config:         cfg.Market,
		Logger:         logger,
		TracerProvider: tp.TracerProvider,
		MeterProvider:  tp.MeterProvider,
	})
	if err != nil {
		return fmt.Errorf("creating market: %w", err)
	}

	apiServer := api.New(api.Deps{
		Market:   mkt,
		Balances: economy.NewManager(bank, repos.Events, clk, logger, tp.TracerProvider),
		Inbox:    inbox,
		Board:    board,
		Health:   healthHandler,
		Logger:   logger,
	})

	// The HTTP server runs on every replica; market routes answer 503
	// until this replica leads.
	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           tp.HTTPHandler(apiServer.Handler(), "claimmarket"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting http server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "http server error", slog.Any("error", listenErr))
			cancel()
		}
	}()

	expiration := sweeper.NewExpiration(mkt, cfg.Market.SweepInterval, cfg.Market.DisplayRefreshEvery, logger, tp.TracerProvider)

	// lead is the work only the leader runs. It blocks until ctx is done.
	lead := func(ctx context.Context) {
		if loadErr := listings.Load(ctx); loadErr != nil {
			logger.ErrorContext(ctx, "loading listings failed", slog.Any("error", loadErr))
			cancel()
			return
		}
		if loadErr := txLedger.Load(ctx); loadErr != nil {
			logger.ErrorContext(ctx, "loading ledger failed", slog.Any("error", loadErr))
			cancel()
			return
		}
		sales, auctions := listings.Len()
		logger.InfoContext(ctx, "market state loaded",
			slog.Int("sales", sales),
			slog.Int("auctions", auctions),
			slog.Int64("transactions", txLedger.Count()),
		)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sweepErr := expiration.Start(ctx); sweepErr != nil {
				logger.ErrorContext(ctx, "sweeper stopped", slog.Any("error", sweepErr))
			}
		}()

		if discordBot != nil {
			if botErr := discordBot.Start(ctx, mkt, clk); botErr != nil {
				logger.ErrorContext(ctx, "starting bot failed", slog.Any("error", botErr))
				discordBot = nil
			}
		}

		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "claim market is running (leader)", slog.String("version", version))

		<-ctx.Done()

		healthHandler.SetReady(false)

		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer stopCancel()
		if stopErr := expiration.Stop(stopCtx); stopErr != nil {
			logger.Error("sweeper shutdown error", slog.Any("error", stopErr))
		}
		wg.Wait()
		if discordBot != nil {
			if stopErr := discordBot.Stop(); stopErr != nil {
				logger.Error("bot shutdown error", slog.Any("error", stopErr))
			}
		}
	}

	if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, lead, func() {
		logger.Info("no longer leading, shutting down...")
		cancel()
	}); leaderErr != nil {
		return fmt.Errorf("leader election: %w", leaderErr)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// openBank builds the currency service named by cfg.Driver.
func openBank(ctx context.Context, cfg config.EconomyConfig) (economy.Bank, func(), error) {
	switch cfg.Driver {
	case "redis":
		r, err := economy.NewRedis(ctx, cfg.RedisURL, cfg.CurrencySymbol, cfg.Retries)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { _ = r.Close() }, nil
	default:
		return economy.NewMemory(cfg.CurrencySymbol, cfg.StartingBalance), func() {}, nil
	}
}

// openRegistry builds the claim registry named by cfg.Driver.
func openRegistry(ctx context.Context, cfg config.ClaimsConfig, logger *slog.Logger) claims.Registry {
	if cfg.Driver == "http" {
		return claims.NewHTTP(cfg.BaseURL, cfg.Timeout)
	}
	logger.WarnContext(ctx, "using the in-memory claim registry, which starts empty")
	return claims.NewMemory()
}

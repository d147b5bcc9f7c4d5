package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/yomolify/bt-ccxt-store/internal/broker"
	"github.com/yomolify/bt-ccxt-store/internal/gateway"
	"github.com/yomolify/bt-ccxt-store/internal/infra"
	"github.com/yomolify/bt-ccxt-store/internal/storage"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("❌ Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := infra.NewLogger(cfg.Logging.Level)
	slog.SetDefault(log)

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg); err != nil && ctx.Err() == nil {
		log.Error("❌ Broker exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("👋 Shutdown complete")
}

func run(ctx context.Context, log *slog.Logger, cfg *infra.Config) error {
	var journal *storage.Journal
	if cfg.Journal.Enabled {
		j, err := storage.NewJournal(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		journal = j
		log.Info("✅ Order journal opened", slog.String("path", cfg.Journal.Path))
	}

	gw, err := gateway.NewGateway(cfg)
	if err != nil {
		return err
	}

	orderTypes, err := cfg.OrderTypeTable()
	if err != nil {
		return err
	}

	engine := broker.NewEngine(log, gw, broker.Options{
		Mappings:   cfg.Broker.Mappings,
		OrderTypes: orderTypes,
		Journal:    journal,
		Currency:   cfg.Trading.Currency,
	})
	if err := engine.Start(ctx); err != nil {
		return err
	}

	reconciler := broker.NewReconciler(log, engine,
		cfg.Broker.CadenceSec, cfg.Broker.Workers, cfg.Broker.QueueSize)

	// Optional private order-update stream: nudges the reconciler so
	// terminal states land faster than the polling cadence. The REST
	// poll stays authoritative.
	if cfg.Gateway.WSURL != "" {
		var signer *gateway.Signer
		if cfg.Gateway.AccessKey != "" {
			signer = gateway.NewSigner(cfg.Gateway.AccessKey, cfg.Gateway.SecretKey, cfg.Gateway.Passphrase)
			defer signer.Wipe()
		}
		stream := gateway.NewOrderStream(cfg.Gateway.WSURL, signer, func(u gateway.OrderUpdate) {
			reconciler.Nudge(u.ID)
		})
		stream.Start(ctx)
		defer stream.Stop()
		log.Info("✅ Order stream started", slog.String("url", cfg.Gateway.WSURL))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return reconciler.Run(ctx) })

	log.Info("✨ Broker fully operational. Press Ctrl+C to exit.",
		slog.String("mode", cfg.Trading.Mode),
		slog.Int("cadence_sec", cfg.Broker.CadenceSec),
	)
	return g.Wait()
}

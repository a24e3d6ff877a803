package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtding233/banner-gacha/internal/admin"
	"github.com/xtding233/banner-gacha/internal/catalog"
	"github.com/xtding233/banner-gacha/internal/config"
	"github.com/xtding233/banner-gacha/internal/logger"
	"github.com/xtding233/banner-gacha/internal/server"
	"github.com/xtding233/banner-gacha/internal/service"
	"github.com/xtding233/banner-gacha/internal/token"
)

// Version is stamped at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: logger.DefaultServiceName,
		Version:     Version,
		Environment: cfg.Environment,
	}, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Close store", "error", err)
		}
	}()

	svc := service.New(st, service.Options{
		BinaryVersion: cfg.SchemaVersion,
		Wallet:        token.NewMemoryWallet(),
		Cost: token.Cost{
			Name:       cfg.CostName,
			PerDraw:    cfg.CostPerDraw,
			PerTenDraw: cfg.CostPerTenDraw,
		},
	})
	codec := admin.NewTokenCodec([]byte(cfg.TokenSecret), cfg.TokenTTL)

	root, err := svc.Init(ctx)
	if err != nil {
		return fmt.Errorf("initialize state: %w", err)
	}
	if root != nil {
		tok, err := codec.Encode(*root)
		if err != nil {
			return fmt.Errorf("encode bootstrap capability: %w", err)
		}
		// shown once; later starts find the registry already bootstrapped
		if err := deliverBootstrapToken(os.Stderr, cfg.BootstrapTokenFile, tok); err != nil {
			return err
		}
		slog.Warn("Admin registry bootstrapped", "registry", root.ForObject, "cap", root.ID,
			"token_file", cfg.BootstrapTokenFile)
	}

	if cfg.ConfigDir != "" {
		if err := seedCatalog(ctx, svc, cfg); err != nil {
			return err
		}
	}

	srv := server.New(server.Options{
		Addr:           cfg.HTTPAddr,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		ReceiptSize:    cfg.ReceiptCache,
		ReceiptTTL:     cfg.ReceiptTTL,
		BuildVersion:   Version,
		AllowedOrigins: cfg.CORSOrigins,
	}, svc, codec)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("Server stopped")
	return nil
}

// seedCatalog applies the YAML catalog once and, when an interval is set, again on
// every change until ctx ends.
func seedCatalog(ctx context.Context, svc *service.Service, cfg *config.Config) error {
	loader := catalog.NewLoader(cfg.ConfigDir)
	cat, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if _, err := svc.ApplyCatalog(ctx, cat); err != nil {
		return fmt.Errorf("apply catalog: %w", err)
	}
	if cfg.WatchInterval <= 0 {
		return nil
	}

	w := catalog.NewWatcher(loader.Paths(), cfg.WatchInterval, func(changed []string) {
		log := slog.With("changed", changed)
		cat, err := loader.Load()
		if err != nil {
			log.Error("Catalog reload rejected", "error", err)
			return
		}
		applyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if _, err := svc.ApplyCatalog(applyCtx, cat); err != nil {
			log.Error("Catalog reload failed", "error", err)
		}
	})
	go w.Run(ctx)
	return nil
}

// deliverBootstrapToken keeps the root credential out of the log stream: it goes to a
// new owner-only file when path is set, otherwise straight to w.
func deliverBootstrapToken(w io.Writer, path, tok string) error {
	if path == "" {
		_, err := fmt.Fprintf(w, "admin bootstrap capability token (shown once):\n%s\n", tok)
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("write bootstrap token: %w", err)
	}
	if _, err := fmt.Fprintln(f, tok); err != nil {
		_ = f.Close()
		return fmt.Errorf("write bootstrap token: %w", err)
	}
	return f.Close()
}

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/chantierpro/internal/auth"
	"github.com/diewo77/chantierpro/internal/billing"
	"github.com/diewo77/chantierpro/internal/config"
	"github.com/diewo77/chantierpro/internal/db"
	"github.com/diewo77/chantierpro/internal/policy"
	"github.com/diewo77/chantierpro/internal/server"
	"github.com/diewo77/chantierpro/internal/services"
	"github.com/joho/godotenv"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

const profileCacheTTL = 5 * time.Minute

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()

	lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.App.LogLevel}))
	slog.SetDefault(lg)

	if err := run(cfg, lg); err != nil {
		lg.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, lg *slog.Logger) error {
	dbConn, err := db.Connect(cfg.Database, lg)
	if err != nil {
		return err
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, cfg.Database.PostgresDSN(), cfg.App.Migrations, lg); err != nil {
			return err
		}
		lg.Info("migrations completed")
		return nil
	}
	if *seedOnlyFlag {
		if err := db.Seed(dbConn, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return err
		}
		lg.Info("seeding completed")
		return nil
	}

	if err := db.Migrate(dbConn, cfg.Database.PostgresDSN(), cfg.App.Migrations, lg); err != nil {
		return err
	}
	if cfg.App.Seed {
		if err := db.Seed(dbConn, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return err
		}
	}

	mode, err := billing.ParseProgressMode(cfg.Billing.ProgressMode)
	if err != nil {
		return err
	}
	docs := services.NewDocumentService(dbConn, services.Settings{
		LegalMention:         cfg.Billing.LegalMention,
		ImbalanceThreshold:   cfg.Billing.ImbalanceThreshold,
		OverbillingTolerance: cfg.Billing.OverbillingTolerance,
		ProgressMode:         mode,
	}, lg)

	if cfg.Auth.SessionSecret == "devsessionsecret" && !cfg.App.Dev {
		lg.Warn("SESSION_SECRET is the development default")
	}

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: server.New(server.Deps{
			DB:       dbConn,
			Sessions: auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL),
			Gate:     policy.NewDBAuthGate(dbConn, profileCacheTTL),
			Docs:     docs,
			Logger:   lg,
		}),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("server starting", "port", cfg.Server.Port, "dev", cfg.App.Dev)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
		lg.Info("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	lg.Info("server stopped gracefully")
	return nil
}

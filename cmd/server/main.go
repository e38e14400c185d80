package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/Mrigank923/Voy/internal/config"
	"github.com/Mrigank923/Voy/internal/dispatch"
	"github.com/Mrigank923/Voy/internal/engine"
	"github.com/Mrigank923/Voy/internal/eta"
	"github.com/Mrigank923/Voy/internal/feed"
	"github.com/Mrigank923/Voy/internal/fleet"
	"github.com/Mrigank923/Voy/internal/geo"
	httpapi "github.com/Mrigank923/Voy/internal/http"
	"github.com/Mrigank923/Voy/internal/ingest"
	"github.com/Mrigank923/Voy/internal/logging"
	"github.com/Mrigank923/Voy/internal/schedule"
	"github.com/Mrigank923/Voy/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var store storage.TransitionStore
	if cfg.PGDSN != "" {
		if os.Getenv("MIGRATE") == "true" {
			if err := runMigrations(cfg.PGDSN); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		store = ps
	} else {
		logger.Warn("PG_DSN not set, transitions kept in memory only")
		store = storage.NewMemoryStore()
	}

	var publisher feed.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		publisher = kp
	}

	wsreg := dispatch.NewWSRegistry()
	var driverNotifier dispatch.DriverNotifier = wsreg
	if ep := os.Getenv("DRIVER_PUSH_ENDPOINT"); ep != "" {
		driverNotifier = &dispatch.FallbackDriverNotifier{Primary: wsreg, Fallback: dispatch.NewHTTPNotifier(ep)}
	}
	var riderNotifier dispatch.RiderNotifier
	if ep := os.Getenv("RIDER_NOTIFY_ENDPOINT"); ep != "" {
		riderNotifier = dispatch.NewHTTPNotifier(ep)
	}

	var etaClient eta.Client
	if cfg.OSRMEndpoint != "" {
		etaClient = eta.NewOSRMClient(cfg.OSRMEndpoint)
	}

	eng := engine.New(engine.Options{
		Dispatch:        cfg.Dispatch,
		Geo:             geo.NewIndex(),
		Fleet:           fleet.NewRegistry(),
		Scheduler:       schedule.New(),
		DriverNotifier:  driverNotifier,
		RiderNotifier:   riderNotifier,
		Store:           store,
		Publisher:       publisher,
		ETAClient:       etaClient,
		ETACache:        eta.NewCache(30 * time.Second),
		DefaultSpeedMps: cfg.DefaultSpeedMps,
		Logger:          logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go eng.Run(ctx)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(eng, wsreg, logger),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("dispatch engine listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_dispatch_tables.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}

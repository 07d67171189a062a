package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-production/internal/config"
	"github.com/diewo77/go-production/internal/db"
	"github.com/diewo77/go-production/internal/ledger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag  = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag     = flag.Bool("seed-only", false, "Run DB seed and exit")
	recomputeAllFlag = flag.Bool("recompute-all", false, "Rebuild every product cache from its productions and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	log := newLogger(cfg.App.Dev)
	defer func() { _ = log.Sync() }()

	dbConn, err := db.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if *migrateOnlyFlag {
		if err := migrate(cfg, dbConn); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("migrations completed successfully")
		return
	}

	if *seedOnlyFlag {
		if err := db.Seed(dbConn); err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
		log.Info("seeding completed successfully")
		return
	}

	if cfg.App.Migrations {
		if err := migrate(cfg, dbConn); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("migrations completed")
	}
	if err := db.CheckTables(dbConn); err != nil {
		log.Fatal("schema check failed, run with -migrate-only or MIGRATIONS=1", zap.Error(err))
	}

	if cfg.App.Seed {
		if err := db.Seed(dbConn); err != nil {
			log.Fatal("seeding failed", zap.Error(err))
		}
	}

	svc := ledger.NewService(dbConn,
		ledger.WithLogger(log.Named("ledger")),
		ledger.WithTolerance(cfg.Ledger.Tolerance),
	)

	if *recomputeAllFlag {
		n, err := svc.RecomputeAll(context.Background())
		if err != nil {
			log.Fatal("recompute failed", zap.Int("recomputed", n), zap.Error(err))
		}
		log.Info("product caches rebuilt", zap.Int("recomputed", n))
		return
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      NewApp(svc, log),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port), zap.Bool("dev", cfg.App.Dev))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	if sqlDB, err := dbConn.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("server stopped gracefully")
}

// migrate applies the versioned SQL migrations on postgres and falls back
// to AutoMigrate on sqlite.
func migrate(cfg *config.Config, dbConn *gorm.DB) error {
	if cfg.Database.IsSQLite() {
		return db.Migrate(dbConn)
	}
	return db.MigrateSQL(cfg.Database.URL())
}

func newLogger(dev bool) *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if dev {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-production/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 10

// Open connects to the configured database, retrying while postgres starts up.
// TranslateError is enabled so unique violations surface as gorm.ErrDuplicatedKey.
func Open(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	if cfg.IsSQLite() {
		log.Info("opening sqlite database", zap.String("path", cfg.SQLitePath))
		db, err := gorm.Open(sqlite.Open(SQLiteDSN(cfg.SQLitePath)), gcfg)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite pool: %w", err)
		}
		// sqlite has a single writer: one connection queues transactions
		// instead of failing them with "database is locked".
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	dsn := NormalizeDSN(cfg.DSN())
	if dsn == "" {
		return nil, fmt.Errorf("empty database DSN, check DATABASE_DSN or DB_* variables")
	}
	log.Info("connecting to database", zap.String("dsn", MaskDSN(dsn)))

	var db *gorm.DB
	var err error
	for i := 0; i < connectAttempts; i++ {
		db, err = gorm.Open(postgres.Open(dsn), gcfg)
		if err == nil {
			break
		}
		log.Warn("database connection failed, retrying",
			zap.Int("attempt", i+1), zap.Int("max", connectAttempts), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}
	return db, nil
}

// sqliteParams are appended to sqlite DSNs unless already set: foreign keys
// so ON DELETE CASCADE from products to productions applies, and a busy
// timeout for writers from other processes sharing the file.
var sqliteParams = []string{"_foreign_keys=on", "_busy_timeout=5000"}

// SQLiteDSN turns a file path into a sqlite DSN carrying sqliteParams.
func SQLiteDSN(path string) string {
	dsn := path
	for _, param := range sqliteParams {
		key := param[:strings.Index(param, "=")+1]
		if strings.Contains(dsn, key) {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + param
	}
	return dsn
}

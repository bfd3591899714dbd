package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AzielCF/az-tgclean/core/config"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewGorm opens the key-value database through GORM using the configured driver.
func NewGorm(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Database.Driver {
	case "postgres":
		dialector = postgres.Open(postgresDSN(cfg))
	case "sqlite", "": // Default to SQLite
		dialector = sqlite.Open(sqliteDSN(cfg.Database.Name))
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	logLevel := logger.Warn
	if cfg.App.Debug {
		logLevel = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database (%s): %w", cfg.Database.Name, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	tunePool(sqlDB, cfg.Database.Driver)

	return db, nil
}

// NewSQL opens a plain database/sql handle (sqlite3 or postgres driver) for the raw SQL store.
func NewSQL(cfg *config.Config) (*sql.DB, error) {
	var (
		driverName string
		dsn        string
	)

	switch cfg.Database.Driver {
	case "postgres":
		driverName, dsn = "postgres", postgresDSN(cfg)
	case "sqlite", "":
		driverName, dsn = "sqlite3", sqliteDSN(cfg.Database.Name)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database (%s): %w", cfg.Database.Name, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database (%s): %w", cfg.Database.Name, err)
	}
	tunePool(db, cfg.Database.Driver)

	return db, nil
}

func postgresDSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
		cfg.Database.Host,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name, // Name acts as dbname in Postgres
		cfg.Database.Port,
	)
}

func sqliteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared"
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL", path)
}

func tunePool(sqlDB *sql.DB, driver string) {
	if driver == "sqlite" || driver == "" {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(time.Hour)
		return
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)
}

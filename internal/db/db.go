package db

import (
	"context"
	"fmt"
	"time"

	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps a GORM DB connection with additional functionality
type Database struct {
	*gorm.DB
	logger *utils.Logger
	config *config.DatabaseConfig
}

// NewDatabase creates a new database connection
func NewDatabase(cfg *config.DatabaseConfig, log *utils.Logger) (*Database, error) {
	dbLogger := log.Named("database")

	// Configure GORM logger
	gormLogger := logger.New(
		&logAdapter{logger: dbLogger},
		logger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gormConfig := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		TranslateError:         true,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dbLogger.Info("Opening sqlite database", zap.String("path", cfg.Path))
		dialector = sqlite.Open(cfg.Path)
	default:
		dbLogger.Info("Connecting to database",
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port),
			zap.String("dbname", cfg.DBName),
			zap.String("user", cfg.User),
		)
		gormConfig.PrepareStmt = true
		dialector = postgres.Open(cfg.GetDSN())
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// sqlite serialises writers; one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	database := &Database{
		DB:     db,
		logger: dbLogger,
		config: cfg,
	}

	if err := database.VerifyConnection(); err != nil {
		return nil, err
	}

	return database, nil
}

// VerifyConnection checks if the database connection is working
func (db *Database) VerifyConnection() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	db.logger.Info("Successfully connected to database")
	return nil
}

// Ping checks the connection without logging
func (db *Database) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate runs auto migration for the given models
func (db *Database) AutoMigrate() error {
	db.logger.Info("Running auto migrations")

	if err := Migrate(db.DB); err != nil {
		return err
	}

	if db.config.Driver == "sqlite" {
		return nil
	}

	// Create hypertables for time-series data
	if err := db.CreateHypertables(); err != nil {
		db.logger.Warn("Failed to create hypertables, time-series optimization disabled", zap.Error(err))
	}

	return nil
}

// Migrate creates or updates every table the service uses
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Device{},
		&models.ScheduleWindow{},
		&models.Sample{},
		&models.RollupRecord{},
		&models.UserAlarm{},
		&models.Setting{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate models: %w", err)
	}
	return nil
}

// CreateHypertables turns the raw sample table into a TimescaleDB hypertable
// when the extension is available
func (db *Database) CreateHypertables() error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;").Error; err != nil {
		return fmt.Errorf("failed to create TimescaleDB extension: %w", err)
	}

	var hypertableExists bool
	if err := db.DB.Raw("SELECT EXISTS(SELECT 1 FROM timescaledb_information.hypertables WHERE hypertable_name = ?);", "samples").Scan(&hypertableExists).Error; err != nil {
		return fmt.Errorf("failed to check if hypertable exists for samples: %w", err)
	}

	if hypertableExists {
		return nil
	}

	// created_at is epoch milliseconds; one chunk per day
	if err := db.DB.Exec("SELECT create_hypertable('samples', 'created_at', chunk_time_interval => 86400000, migrate_data => true);").Error; err != nil {
		return fmt.Errorf("failed to create hypertable for samples: %w", err)
	}
	db.logger.Info("Created hypertable for samples")

	return nil
}

// Close closes the database connection
func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	db.logger.Info("Database connection closed")
	return nil
}

// logAdapter adapts our logger to GORM's logger interface
type logAdapter struct {
	logger *utils.Logger
}

// Printf implements GORM's logger interface
func (l *logAdapter) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

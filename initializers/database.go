package initializers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/basit/pitchvault-backend/models"
)

var DB *gorm.DB

// ConnectToDatabase opens the configured store, migrates it and stores the
// handle in DB.
func ConnectToDatabase(cfg AppConfig) (*gorm.DB, error) {
	dsn := cfg.DBURL
	if cfg.DBDriver == "sqlite" && dsn == "" {
		dir := filepath.Join(cfg.StoragePath, "db")
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = filepath.Join(dir, "pitchvault.db")
	}
	if dsn == "" {
		return nil, errors.New("DB_URL is not set")
	}

	gLogger := logger.New(
		zap.NewStdLog(Logger.Named("gorm")),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := OpenDatabase(cfg.DBDriver, dsn, gLogger)
	if err != nil {
		return nil, err
	}
	DB = db
	Logger.Info("database connected and migrated", zap.String("driver", cfg.DBDriver))
	return db, nil
}

// OpenDatabase opens a gorm handle for driver and migrates the schema.
// SQLite is limited to one open connection so writes are serialized.
func OpenDatabase(driver, dsn string, gLogger logger.Interface) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(withSQLitePragmas(dsn))
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		})
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if driver == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Pitch{},
		&models.AccessToken{},
		&models.ViewEvent{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return db, nil
}

func withSQLitePragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

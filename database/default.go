package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"salchimonster/restaurant-reports/models"
)

const sqlitePrefix = "sqlite://"

func dialector(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, sqlitePrefix):
		path := strings.TrimPrefix(url, sqlitePrefix)
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("dialector: failed to create sqlite dir: %w", err)
			}
		}
		return sqlite.Open(path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"), nil
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"), strings.Contains(url, "host="):
		return postgres.Open(url), nil
	default:
		return nil, fmt.Errorf("dialector: unsupported database url %q", url)
	}
}

// Setup opens the database named by url (postgres:// or sqlite://path) and migrates it.
func Setup(ctx context.Context, url string) (*gorm.DB, error) {
	log.Info("Setting up database ...")

	d, err := dialector(url)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("Setup: failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("Setup: gorm sql db: %w", err)
	}

	if strings.HasPrefix(url, sqlitePrefix) {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("Setup: ping: %w", err)
	}

	if err = Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Credentials{},
		&models.Session{},
		&models.Locale{},
		&models.Delivery{},
		&models.NoEntregada{},
		&models.Apelacion{},
		&models.Reembolso{},
		&models.Descuento{},
		&models.DidiOrder{},
		&models.DidiHeartbeat{},
		&models.ReportRow{},
	)
	if err != nil {
		return fmt.Errorf("Migrate: %w", err)
	}

	return nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	if err = sqlDB.Close(); err != nil {
		log.Warnf("failed to close database: %v", err)
	}
}

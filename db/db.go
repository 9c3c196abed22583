package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/ledgerflowhq/ledgerflow/models"
)

type Config struct {
	DSN          string
	ReplicaDSNs  []string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	MaxIdleTime  time.Duration
	LogQueries   bool
}

// Open connects to the primary, applies pool limits, and registers read
// replicas through dbresolver when configured. Reads route to replicas,
// writes stay on the primary.
func Open(config Config) (*gorm.DB, error) {
	logMode := logger.Warn
	if config.LogQueries {
		logMode = logger.Info
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	}

	conn, err := gorm.Open(postgres.Open(config.DSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.MaxIdleTime)

	if len(config.ReplicaDSNs) > 0 {
		resolverConfig := dbresolver.Config{}
		for _, replicaDSN := range config.ReplicaDSNs {
			resolverConfig.Replicas = append(resolverConfig.Replicas, postgres.Open(replicaDSN))
		}

		err = conn.Use(dbresolver.Register(resolverConfig).
			SetConnMaxIdleTime(config.MaxIdleTime).
			SetConnMaxLifetime(config.MaxLifetime).
			SetMaxIdleConns(config.MaxIdleConns).
			SetMaxOpenConns(config.MaxOpenConns))
		if err != nil {
			return nil, fmt.Errorf("failed to configure read replicas: %w", err)
		}
	}

	return conn, nil
}

// Migrate creates or updates the schema for all record types.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.Tenant{},
		&models.Receipt{},
		&models.Integration{},
		&models.AuditEntry{},
		&models.EmailMapping{},
	)
}

// File: internal/repository/db.go
package repository

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/iyunix/go-rigadvisor/internal/domain"
)

// DefaultDSN is a process-local in-memory database shared by every connection in the pool.
const DefaultDSN = "file:rigadvisor?mode=memory&cache=shared"

// Open connects to dsn and migrates the journal tables.
func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// A shared-cache memory database locks per table; one connection keeps writers serialised.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.AttemptRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

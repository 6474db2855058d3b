package vpdstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/LeonardoBeccarini/growbox_control/internal/model/entities"
)

// Open opens the SQLite database at path and migrates the VPD tables.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// SQLite serialises writers; one connection avoids "database is locked".
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&entities.VPDConfig{}, &entities.VPDLogEntry{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// SQLStore keeps the VPD config and its adjustment log in SQLite via gorm.
type SQLStore struct {
	db       *gorm.DB
	logLimit int
	retain   int
}

// NewSQLStore loads at most logLimit entries with the config and keeps retain
// entries on disk.
func NewSQLStore(db *gorm.DB, logLimit, retain int) *SQLStore {
	if logLimit <= 0 {
		logLimit = DefaultLogLimit
	}
	if retain < logLimit {
		retain = logLimit
	}
	return &SQLStore{db: db, logLimit: logLimit, retain: retain}
}

func (s *SQLStore) GetOrCreate(ctx context.Context) (entities.VPDConfig, error) {
	db := s.db.WithContext(ctx)

	var cfg entities.VPDConfig
	err := db.Order("id").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cfg = entities.DefaultVPDConfig()
		if err := db.Omit(clause.Associations).Create(&cfg).Error; err != nil {
			return entities.VPDConfig{}, fmt.Errorf("create default vpd config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return entities.VPDConfig{}, fmt.Errorf("load vpd config: %w", err)
	}

	var entries []entities.VPDLogEntry
	if err := db.Where("config_id = ?", cfg.ID).Order("id desc").Limit(s.logLimit).Find(&entries).Error; err != nil {
		return entities.VPDConfig{}, fmt.Errorf("load vpd log: %w", err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	cfg.Log = entries
	return cfg, nil
}

// Save writes the config row and appends log entries that have no id yet.
func (s *SQLStore) Save(ctx context.Context, cfg *entities.VPDConfig) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(cfg).Error; err != nil {
			return fmt.Errorf("save vpd config: %w", err)
		}
		added := false
		for i := range cfg.Log {
			if cfg.Log[i].ID != 0 {
				continue
			}
			cfg.Log[i].ConfigID = cfg.ID
			if err := tx.Create(&cfg.Log[i]).Error; err != nil {
				return fmt.Errorf("append vpd log: %w", err)
			}
			added = true
		}
		if !added {
			return nil
		}
		keep := tx.Model(&entities.VPDLogEntry{}).Select("id").
			Where("config_id = ?", cfg.ID).Order("id desc").Limit(s.retain)
		return tx.Where("config_id = ? AND id NOT IN (?)", cfg.ID, keep).
			Delete(&entities.VPDLogEntry{}).Error
	})
}

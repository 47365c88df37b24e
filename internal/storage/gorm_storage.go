package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SnapshotRecord is the single-row table holding the serialized snapshot.
type SnapshotRecord struct {
	Name      string    `gorm:"primaryKey;column:name"`
	Payload   []byte    `gorm:"column:payload"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	if driver == "postgres" {
		gormDialector = postgres.Open(dsn)
	} else if driver == "sqlite" {
		gormDialector = sqlite.Open(dsn)
	} else {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrPersistence, driver, err)
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&SnapshotRecord{}); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrPersistence, err)
	}
	return nil
}

func (s *GormStorage) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	var rec SnapshotRecord
	result := s.db.WithContext(ctx).First(&rec, "name = ?", SnapshotName)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load snapshot: %v", ErrPersistence, result.Error)
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Payload, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrPersistence, err)
	}
	return &snap, nil
}

func (s *GormStorage) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", ErrPersistence, err)
	}
	rec := SnapshotRecord{
		Name:      SnapshotName,
		Payload:   payload,
		UpdatedAt: time.Now(),
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&rec)
	if result.Error != nil {
		return fmt.Errorf("%w: save snapshot: %v", ErrPersistence, result.Error)
	}
	return nil
}

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yeremiapane/restaurant-floor/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps durable keys in the storage_entries table.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Get(ctx context.Context, key string) (string, error) {
	var entry models.StorageEntry
	err := s.DB.WithContext(ctx).Where("storage_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return entry.Value, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	entry := models.StorageEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.DB.WithContext(ctx).Where("storage_key IN ?", keys).Delete(&models.StorageEntry{}).Error; err != nil {
		return fmt.Errorf("delete %v: %w", keys, err)
	}
	return nil
}

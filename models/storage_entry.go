package models

import (
	"time"
)

// StorageEntry is one key of the durable client storage.
type StorageEntry struct {
	Key       string    `gorm:"column:storage_key;primaryKey;type:varchar(100)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

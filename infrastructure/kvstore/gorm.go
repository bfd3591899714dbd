package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AzielCF/az-tgclean/domains/kvstore"
)

type kvEntryModel struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value;type:text"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (kvEntryModel) TableName() string {
	return "kv_entries"
}

// GormStore implements kvstore.Store on a single kv_entries table (SQLite or Postgres).
type GormStore struct {
	db *gorm.DB
}

var _ kvstore.Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (r *GormStore) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&kvEntryModel{})
}

func (r *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var m kvEntryModel
	if err := r.db.WithContext(ctx).First(&m, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return m.Value, true, nil
}

func (r *GormStore) Set(ctx context.Context, key, value string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": value, "updated_at": now}),
	}).Create(&kvEntryModel{
		Key:       key,
		Value:     value,
		UpdatedAt: now,
	}).Error
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (r *GormStore) Remove(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Delete(&kvEntryModel{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("failed to remove key %s: %w", key, err)
	}
	return nil
}

func (r *GormStore) MultiGet(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []kvEntryModel
	if err := r.db.WithContext(ctx).Where("key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get %d keys: %w", len(keys), err)
	}
	for _, row := range rows {
		out[row.Key] = row.Value
	}
	return out, nil
}

func (r *GormStore) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Where("key IN ?", keys).Delete(&kvEntryModel{}).Error; err != nil {
		return fmt.Errorf("failed to remove %d keys: %w", len(keys), err)
	}
	return nil
}

func (r *GormStore) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

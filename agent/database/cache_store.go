package database

import (
	"errors"

	"call-tracker/agent/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCacheMiss is returned when the durable cache holds no entry for a
// contract.
var ErrCacheMiss = errors.New("cache entry not found")

// CacheStore is the durable tier of the metadata cache.
type CacheStore struct {
	db *gorm.DB
}

func NewCacheStore(db *gorm.DB) *CacheStore {
	return &CacheStore{db: db}
}

// Get returns the stored entry for a contract. Callers decide whether the
// entry's content is still usable.
func (s *CacheStore) Get(contract string) (*models.TokenCacheEntry, error) {
	var entry models.TokenCacheEntry
	result := s.db.Where("contract = ?", contract).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, result.Error
	}
	return &entry, nil
}

// Put upserts an entry keyed on its contract address.
func (s *CacheStore) Put(entry *models.TokenCacheEntry) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract"}},
		UpdateAll: true,
	}).Create(entry).Error
}

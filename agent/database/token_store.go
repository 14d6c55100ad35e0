package database

import (
	"errors"
	"time"

	"call-tracker/agent/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTokenNotFound is returned when a contract has no tracked record.
var ErrTokenNotFound = errors.New("token record not found")

// TokenStore persists tracked token calls.
type TokenStore struct {
	db *gorm.DB
}

func NewTokenStore(db *gorm.DB) *TokenStore {
	return &TokenStore{db: db}
}

// GetByContract returns the record for a contract address.
func (s *TokenStore) GetByContract(contract string) (*models.TokenRecord, error) {
	var record models.TokenRecord
	result := s.db.Where("contract = ?", contract).First(&record)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, result.Error
	}
	return &record, nil
}

// ListLive returns every record still eligible for refresh, oldest first.
func (s *TokenStore) ListLive() ([]models.TokenRecord, error) {
	var records []models.TokenRecord
	result := s.db.Where("status = ?", models.StatusLive).Order("created_at asc").Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// ListAll returns every record, newest first.
func (s *TokenStore) ListAll() ([]models.TokenRecord, error) {
	var records []models.TokenRecord
	result := s.db.Order("created_at desc").Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// Save upserts a record keyed on its contract address.
func (s *TokenStore) Save(record *models.TokenRecord) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "contract"}},
		UpdateAll: true,
	}).Create(record).Error
}

// Retire flips the record to RETIRED and writes an audit event in the same
// transaction. Retirement is a status change, never a deletion.
func (s *TokenStore) Retire(contract, reason string, marketCap float64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.TokenRecord{}).
			Where("contract = ? AND status = ?", contract, models.StatusLive).
			Updates(map[string]interface{}{
				"status":     models.StatusRetired,
				"updated_at": time.Now().UTC(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		return tx.Create(&models.AuditEvent{
			Contract:  contract,
			Event:     models.AuditEventRetired,
			Reason:    reason,
			MarketCap: marketCap,
		}).Error
	})
}

// CountByStatus reports how many records carry the given status.
func (s *TokenStore) CountByStatus(status string) (int64, error) {
	var count int64
	result := s.db.Model(&models.TokenRecord{}).Where("status = ?", status).Count(&count)
	return count, result.Error
}

package database

import (
	"log"
	"strings"

	"call-tracker/agent/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserStore persists the authorized caller roster. Rows are keyed by
// username because admin commands identify users by handle.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// ListUsers returns every authorized user.
func (s *UserStore) ListUsers() ([]models.TelegramUser, error) {
	var users []models.TelegramUser
	result := s.db.Order("role desc, username asc").Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}
	return users, nil
}

// UpsertUser adds or updates a caller. Promoting an existing user just
// rewrites the role. userID may be 0 when only the handle is known.
func (s *UserStore) UpsertUser(username, role string, userID, addedBy int64) error {
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return gorm.ErrInvalidData
	}
	user := models.TelegramUser{
		Username:       strings.ToLower(username),
		TelegramUserID: userID,
		Role:           role,
		AddedBy:        addedBy,
	}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(&user)
	if result.Error != nil {
		log.Printf("ERROR: Database error upserting user @%s: %v", username, result.Error)
		return result.Error
	}
	log.Printf("INFO: User @%s stored with role %s.", username, role)
	return nil
}

// RecordUserID backfills the numeric Telegram ID for a handle once the
// user is seen posting.
func (s *UserStore) RecordUserID(username string, userID int64) {
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	if username == "" || userID == 0 {
		return
	}
	s.db.Model(&models.TelegramUser{}).
		Where("username = ? AND telegram_user_id = 0", username).
		Update("telegram_user_id", userID)
}

// DeleteUser removes a caller by handle. Returns the number of rows
// removed so callers can report "not found" distinctly.
func (s *UserStore) DeleteUser(username string) (int64, error) {
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	result := s.db.Where("username = ?", username).Delete(&models.TelegramUser{})
	if result.Error != nil {
		log.Printf("ERROR: Database error deleting user @%s: %v", username, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

package database

import (
	"commhub_backend/internal/models"
	"commhub_backend/internal/models/chat"

	"gorm.io/gorm"
)

// Migrate creates the chat schema and all tables. The chat.* tables live in
// their own Postgres schema; AutoMigrate handles the rest of the DDL,
// including the partial unique indexes on channel names and DM keys.
func Migrate(db *gorm.DB) error {
	if err := db.Exec("CREATE SCHEMA IF NOT EXISTS chat").Error; err != nil {
		return err
	}

	return db.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&chat.Conversation{},
		&chat.Participant{},
		&chat.Message{},
		&chat.UnreadCounter{},
	)
}

package setup

import (
	"fmt"

	"gorm.io/gorm"

	"civic-issue-portal/internal/domain"
)

// MigrateDB handles all database migrations using the provided GORM DB instance.
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.User{},
		&domain.Community{},
		&domain.CommunityMember{},
		&domain.JoinRequest{},
		&domain.CommunityMessage{},
		&domain.Issue{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}
	return nil
}

package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"routepulse/internal/models"
)

// Migrate ensures the collection tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.CollectionJob{},
		&models.RouteSnapshot{},
	}
}

package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"reportflow/internal/models"
)

// Migrate ensures the schema exists.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Schedule{},
		&models.ExecutionRecord{},
		&models.DeliveryResult{},
		&models.Artifact{},
		&models.Order{},
	}
}

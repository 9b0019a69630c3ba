package database

import "project0/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Session{},
		&models.MVP{},
		&models.Analysis{},
		&models.CreditRequest{},
		&models.AnalyticsCounter{},
	}
}

package database

import "dreambook/internal/models"

// PersistentModels lists every table owned by the application in dependency order.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.Bot{},
		&models.User{},
		&models.Dream{},
		&models.Tag{},
		&models.DreamTag{},
		&models.Vote{},
		&models.Comment{},
		&models.DreamRequest{},
		&models.DreamResponse{},
		&models.Feedback{},
		&models.Donation{},
	}
}

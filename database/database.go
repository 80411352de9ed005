package database

import (
	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/rs/zerolog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Initialize opens the sqlite database and migrates the tip schema.
// Driver errors are translated so callers can match gorm.ErrDuplicatedKey.
func Initialize(databaseURL string, log zerolog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(databaseURL), &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.Transaction{},
		&models.PerformerAccount{},
		&models.AuditLog{},
		&models.WebhookEvent{},
	)
	if err != nil {
		return nil, err
	}

	log.Info().Str("database", databaseURL).Msg("database initialized")
	return db, nil
}

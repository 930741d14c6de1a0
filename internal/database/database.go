package database

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tgo/mindvault/internal/config"
	"github.com/tgo/mindvault/internal/model"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.IsDevelopment() {
		logLevel = logger.Info
	}

	// TranslateError surfaces unique violations as gorm.ErrDuplicatedKey,
	// which the grant writes rely on to stay idempotent under races.
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	return db, nil
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Department{},
		&model.User{},
		&model.Library{},
		&model.PermissionGrant{},
		&model.UploadedFile{},
		&model.Document{},
		&model.Chunk{},
	)
}

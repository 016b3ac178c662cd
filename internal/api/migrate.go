package api

import (
	"context"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// fixed id so every instance serializes on the same lock
const migrateLockID int64 = 32933

// Migrate creates or updates the schema. On postgres concurrent starts are
// serialized with an advisory lock held on one connection.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return errors.Annotate(db.WithContext(ctx).AutoMigrate(domain.AllModels()...), "migration")
	}

	return db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SELECT pg_advisory_lock(?)", migrateLockID).Error; err != nil {
			return errors.Annotate(err, "migration lock")
		}
		defer func() {
			if err := conn.Exec("SELECT pg_advisory_unlock(?)", migrateLockID).Error; err != nil {
				logger.Warningf("migration unlock: %v", err)
			}
		}()

		if err := conn.AutoMigrate(domain.AllModels()...); err != nil {
			return errors.Annotate(err, "migration")
		}
		logger.Infof("migration successful")
		return nil
	})
}

package database

import (
	"context"

	"resplan/internal/models"

	"gorm.io/gorm"
)

// CreateAuditLog writes a journal entry on tx so that it commits or rolls
// back with the change it describes.
func CreateAuditLog(tx *gorm.DB, actor *models.User, entity string, entityID uint, action, details string) error {
	var userID uint
	if actor != nil {
		userID = actor.ID
	}
	record := models.AuditLog{
		UserID:   userID,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  details,
	}
	return tx.Create(&record).Error
}

// AuditFilter narrows ListAuditLogs; zero values match everything.
type AuditFilter struct {
	Entity   string
	EntityID uint
	Limit    int
}

func ListAuditLogs(ctx context.Context, db *gorm.DB, f AuditFilter) ([]models.AuditLog, error) {
	q := Conn(ctx, db).Order("created_at desc, id desc")
	if f.Entity != "" {
		q = q.Where("entity = ?", f.Entity)
	}
	if f.EntityID != 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 200
	}

	var logs []models.AuditLog
	err := q.Limit(limit).Find(&logs).Error
	return logs, err
}

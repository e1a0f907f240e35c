package models

import "time"

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	UserID uint `gorm:"index" json:"user_id"`

	Entity   string `gorm:"size:50;not null;index:idx_audit_entity" json:"entity"` // "client", "project", "consultant"...
	EntityID uint   `gorm:"index:idx_audit_entity" json:"entity_id"`
	Action   string `gorm:"size:50;not null" json:"action"` // "create", "update", "delete", "sync"
	Details  string `gorm:"type:text" json:"details"`
}

package models

import "time"

// Model mirrors gorm.Model without DeletedAt: deletes in this app are hard deletes.
type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All returns every persisted model in migration order.
func All() []any {
	return []any{
		&LookupList{},
		&LookupItem{},
		&Role{},
		&User{},
		&ProductGroup{},
		&ProductElement{},
		&ProductService{},
		&Consultant{},
		&ConsultantExpertise{},
		&Client{},
		&ProjectTemplate{},
		&PhaseTemplate{},
		&Project{},
		&ProjectGroup{},
		&ProjectPhase{},
		&AuditLog{},
	}
}

package models

import "time"

// Project is the root of the Project -> ProjectGroup -> ProjectPhase tree.
// The display status is not stored: it is derived from StatusID.
type Project struct {
	Model
	Name           string     `gorm:"size:100;not null" json:"name"`
	Description    string     `gorm:"type:text" json:"description"`
	TemplateID     *uint      `gorm:"index" json:"template_id"`
	ClientID       uint       `gorm:"index;not null" json:"client_id"`
	ManagerID      uint       `gorm:"index;not null" json:"manager_id"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	StatusID       *uint      `gorm:"index" json:"status_id"`
	IndustryID     *uint      `gorm:"index" json:"industry_id"`
	ProfitCenterID *uint      `gorm:"index" json:"profit_center_id"`

	Products []ProductService `gorm:"many2many:project_products;" json:"products,omitempty"`
	Groups   []ProjectGroup   `gorm:"foreignKey:ProjectID" json:"groups,omitempty"`
}

type ProjectGroup struct {
	Model
	ProjectID      uint           `gorm:"index;not null" json:"project_id"`
	ProductGroupID uint           `gorm:"index;not null" json:"product_group_id"`
	Order          int            `gorm:"column:position;not null" json:"order"`
	Phases         []ProjectPhase `gorm:"foreignKey:GroupID" json:"phases,omitempty"`
}

type ProjectPhase struct {
	Model
	GroupID          uint   `gorm:"index;not null" json:"group_id"`
	ProductElementID *uint  `gorm:"index" json:"product_element_id"`
	Name             string `gorm:"size:200;not null" json:"name"`
	Description      string `gorm:"type:text" json:"description"`
	Order            int    `gorm:"column:position;not null" json:"order"`
	Online           bool   `gorm:"not null" json:"online"`
	DurationID       *uint  `gorm:"index" json:"duration_id"`
}

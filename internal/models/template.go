package models

type ProjectTemplate struct {
	Model
	Name        string           `gorm:"size:100;not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	ClientID    *uint            `gorm:"index" json:"client_id"`
	ManagerID   *uint            `gorm:"index" json:"manager_id"`
	Phases      []PhaseTemplate  `gorm:"foreignKey:TemplateID" json:"phases,omitempty"`
	Products    []ProductService `gorm:"many2many:template_products;" json:"products,omitempty"`
}

type PhaseTemplate struct {
	Model
	TemplateID   uint   `gorm:"index;not null" json:"template_id"`
	Name         string `gorm:"size:100;not null" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	Order        int    `gorm:"column:position;not null" json:"order"`
	DurationDays *int   `json:"duration_days"`
}

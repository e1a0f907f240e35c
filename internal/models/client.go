package models

type Client struct {
	Model
	Name       string `gorm:"size:100;not null" json:"name"`
	Address    string `gorm:"size:200" json:"address"`
	City       string `gorm:"size:100" json:"city"`
	CountryID  *uint  `gorm:"index" json:"country_id"`
	IndustryID *uint  `gorm:"index" json:"industry_id"`

	// free text, not user references
	SalesPerson    string `gorm:"size:100" json:"sales_person"`
	ProjectManager string `gorm:"size:100" json:"project_manager"`

	Active bool   `gorm:"not null" json:"active"`
	Notes  string `gorm:"type:text" json:"notes"`
}

package models

const (
	ServiceTypeProduct = "Product"
	ServiceTypeService = "Service"
)

// ProductGroup: a product line; its elements describe the phases a project
// implementing this line usually goes through.
type ProductGroup struct {
	Model
	Name        string           `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string           `gorm:"type:text" json:"description"`
	DurationID  *uint            `gorm:"index" json:"duration_id"`
	Elements    []ProductElement `gorm:"foreignKey:GroupID" json:"elements,omitempty"`
	Services    []ProductService `gorm:"foreignKey:GroupID" json:"services,omitempty"`
}

type ProductElement struct {
	Model
	GroupID  uint   `gorm:"index;not null" json:"group_id"`
	Label    string `gorm:"size:200;not null" json:"label"`
	Activity string `gorm:"type:text" json:"activity"`
	Order    int    `gorm:"column:position;not null" json:"order"`
}

// ProductService: a sellable catalog entry (Product or Service).
type ProductService struct {
	Model
	GroupID     uint   `gorm:"index;not null" json:"group_id"`
	Name        string `gorm:"size:100;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Type        string `gorm:"size:20;not null" json:"type"`
}

package models

// Well-known list names. Lists are created by administrators; only the
// status list is seeded at bootstrap.
const (
	ProjectStatusList = "ProjectStatusList"
	IndustryList      = "IndustryList"
	CountryList       = "CountryList"
	ProfitCenterList  = "ProfitCenterList"
	DurationList      = "DurationList"
)

// DefaultProjectStatus is the implicit initial state of every project.
const DefaultProjectStatus = "Preparation"

// DefaultProjectStatuses seeds ProjectStatusList.
var DefaultProjectStatuses = []string{
	"Preparation",
	"Initiation",
	"Planning",
	"Implementation",
	"Closure",
	"Paid",
	"One-Time",
}

type LookupList struct {
	Model
	Name        string       `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	Items       []LookupItem `gorm:"foreignKey:ListID" json:"items,omitempty"`
}

type LookupItem struct {
	Model
	ListID      uint   `gorm:"index;not null" json:"list_id"`
	Value       string `gorm:"size:100;not null" json:"value"`
	Description string `gorm:"type:text" json:"description"`
	Order       int    `gorm:"column:position;not null" json:"order"`
}

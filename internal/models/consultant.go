package models

import (
	"time"

	"gorm.io/datatypes"
)

const ConsultantStatusActive = "Active"

type Consultant struct {
	Model
	UserID           uint              `gorm:"index;not null" json:"user_id"`
	Name             string            `gorm:"size:50;not null" json:"name"`
	Surname          string            `gorm:"size:50" json:"surname"`
	FullName         string            `gorm:"size:120;not null" json:"full_name"`
	Email            string            `gorm:"size:120" json:"email"`
	PhoneNumber      string            `gorm:"size:20" json:"phone_number"`
	AvailabilityDays int               `gorm:"column:availability_days_per_month;not null" json:"availability_days"`
	Status           string            `gorm:"size:20;not null" json:"status"`
	StartDate        *time.Time        `json:"start_date"`
	EndDate          *time.Time        `json:"end_date"`
	Notes            string            `gorm:"type:text" json:"notes"`
	CalendarName     string            `gorm:"size:100" json:"calendar_name"`
	Attributes       datatypes.JSONMap `json:"attributes"`

	Expertise []ConsultantExpertise `gorm:"foreignKey:ConsultantID" json:"expertise,omitempty"`
}

type ExpertiseKind string

const (
	ExpertiseGroup   ExpertiseKind = "group"
	ExpertiseElement ExpertiseKind = "element"
)

// ExpertiseTarget points at exactly one catalog entry: a ProductGroup or a
// ProductElement.
type ExpertiseTarget struct {
	Kind  ExpertiseKind `gorm:"column:target_kind;size:10;not null;uniqueIndex:idx_expertise_target,priority:2" json:"kind"`
	RefID uint          `gorm:"column:target_id;not null;uniqueIndex:idx_expertise_target,priority:3" json:"id"`
}

func GroupTarget(id uint) ExpertiseTarget {
	return ExpertiseTarget{Kind: ExpertiseGroup, RefID: id}
}

func ElementTarget(id uint) ExpertiseTarget {
	return ExpertiseTarget{Kind: ExpertiseElement, RefID: id}
}

func (t ExpertiseTarget) Valid() bool {
	return (t.Kind == ExpertiseGroup || t.Kind == ExpertiseElement) && t.RefID > 0
}

type ConsultantExpertise struct {
	Model
	ConsultantID uint            `gorm:"not null;uniqueIndex:idx_expertise_target,priority:1" json:"consultant_id"`
	Target       ExpertiseTarget `gorm:"embedded" json:"target"`
	Rating       int             `gorm:"not null" json:"rating"`
	Notes        string          `gorm:"type:text" json:"notes"`
}

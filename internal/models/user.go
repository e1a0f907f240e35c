package models

import "strings"

const (
	RoleAdmin          = "Admin"
	RoleManager        = "Manager"
	RoleProjectManager = "Project Manager"
	RoleConsultant     = "Consultant"
)

// DefaultRoles are seeded at bootstrap.
var DefaultRoles = []Role{
	{Name: RoleAdmin, Description: "Full access"},
	{Name: RoleManager, Description: "Manages clients, catalog, consultants and projects"},
	{Name: RoleProjectManager, Description: "Creates projects and edits the ones they manage"},
	{Name: RoleConsultant, Description: "Delivers project work"},
}

type Role struct {
	Model
	Name        string `gorm:"uniqueIndex;size:20;not null" json:"name"`
	Description string `gorm:"size:100" json:"description"`
}

type User struct {
	Model
	Username     string `gorm:"uniqueIndex;size:80;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;size:120;not null" json:"email"`
	PasswordHash string `gorm:"size:128;not null" json:"-"`
	FirstName    string `gorm:"size:50" json:"first_name"`
	LastName     string `gorm:"size:50" json:"last_name"`
	IsActive     bool   `gorm:"not null" json:"is_active"`
	Roles        []Role `gorm:"many2many:user_roles;" json:"roles"`
}

// HasRoleNamed reports membership in the loaded Roles only; callers must
// preload Roles.
func (u *User) HasRoleNamed(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

func (u *User) DisplayName() string {
	full := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if full == "" {
		return u.Username
	}
	return full
}

// Package policy holds the role predicates that gate every mutating
// operation. Roles come only from the User<->Role relation; there is no
// username-based override (bootstrap guarantees an Admin exists instead).
package policy

import (
	"resplan/internal/errs"
	"resplan/internal/models"
)

// HasRole is false for nil or inactive users.
func HasRole(u *models.User, role string) bool {
	if u == nil || !u.IsActive {
		return false
	}
	return u.HasRoleNamed(role)
}

func HasAnyRole(u *models.User, roles ...string) bool {
	for _, r := range roles {
		if HasRole(u, r) {
			return true
		}
	}
	return false
}

func CanManageLookups(u *models.User) bool { return HasRole(u, models.RoleAdmin) }

func CanManageUsers(u *models.User) bool { return HasRole(u, models.RoleAdmin) }

func CanManageCatalog(u *models.User) bool {
	return HasAnyRole(u, models.RoleAdmin, models.RoleManager)
}

func CanManageClients(u *models.User) bool {
	return HasAnyRole(u, models.RoleAdmin, models.RoleManager)
}

func CanManageConsultants(u *models.User) bool {
	return HasAnyRole(u, models.RoleAdmin, models.RoleManager)
}

func CanManageTemplates(u *models.User) bool {
	return HasAnyRole(u, models.RoleAdmin, models.RoleManager)
}

func CanCreateProject(u *models.User) bool {
	return HasAnyRole(u, models.RoleAdmin, models.RoleManager, models.RoleProjectManager)
}

// CanManageProject decides who may be named a project's manager.
func CanManageProject(u *models.User) bool {
	return HasAnyRole(u, models.RoleAdmin, models.RoleManager, models.RoleProjectManager)
}

// CanEditProject: Admin/Manager, or the project's own manager.
func CanEditProject(u *models.User, p *models.Project) bool {
	if HasAnyRole(u, models.RoleAdmin, models.RoleManager) {
		return true
	}
	return u != nil && u.IsActive && p != nil && p.ManagerID == u.ID
}

func CanDeleteProject(u *models.User) bool {
	return HasAnyRole(u, models.RoleAdmin, models.RoleManager)
}

// CanSeeAllProjects decides the scope of project listings.
func CanSeeAllProjects(u *models.User) bool {
	return HasAnyRole(u, models.RoleAdmin, models.RoleManager)
}

// Deny builds the PermissionError for actor attempting action.
func Deny(u *models.User, action string) error {
	actor := ""
	if u != nil {
		actor = u.Username
	}
	return &errs.PermissionError{Actor: actor, Action: action}
}

// Require returns Deny(u, action) unless allowed.
func Require(allowed bool, u *models.User, action string) error {
	if allowed {
		return nil
	}
	return Deny(u, action)
}

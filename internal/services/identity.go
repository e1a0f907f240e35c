package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"resplan/internal/database"
	"resplan/internal/errs"
	"resplan/internal/models"
	"resplan/internal/policy"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type IdentityService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewIdentityService(db *gorm.DB, log *zap.Logger) *IdentityService {
	return &IdentityService{db: db, log: log.Named("identity")}
}

type UserInput struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Password  string   `json:"password"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	IsActive  *bool    `json:"is_active,omitempty"`
	Roles     []string `json:"roles"`
}

func (in UserInput) checkLengths() error {
	return checkLengths(in.redacted(),
		maxLen{"username", in.Username, 80},
		maxLen{"email", in.Email, 120},
		maxLen{"first_name", in.FirstName, 50},
		maxLen{"last_name", in.LastName, 50},
	)
}

// redacted is echoed back in validation errors.
func (in UserInput) redacted() UserInput {
	in.Password = ""
	return in
}

func (s *IdentityService) CreateUser(ctx context.Context, actor *models.User, in UserInput) (*models.User, error) {
	if err := policy.Require(policy.CanManageUsers(actor), actor, "create users"); err != nil {
		return nil, err
	}
	in.Username, in.Email = trim(in.Username), trim(in.Email)
	switch {
	case in.Username == "":
		return nil, &errs.ValidationError{Field: "username", Message: "username is required", Input: in.redacted()}
	case in.Email == "":
		return nil, &errs.ValidationError{Field: "email", Message: "email is required", Input: in.redacted()}
	case len(in.Password) < minPasswordLength:
		return nil, &errs.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength), Input: in.redacted()}
	}
	if err := in.checkLengths(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.AsPersistence("hash password", err)
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    trim(in.FirstName),
		LastName:     trim(in.LastName),
		IsActive:     in.IsActive == nil || *in.IsActive,
	}
	err = database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := uniqueIdentity(tx, in.Username, in.Email, 0); err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		for _, name := range in.Roles {
			if _, err := grantRole(tx, &user, name); err != nil {
				return err
			}
		}
		return database.CreateAuditLog(tx, actor, "user", user.ID, "create", "created user "+user.Username)
	})
	err = errs.AsSync("create user", err)
	logResult(s.log, "create user", err, zap.String("username", in.Username))
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, user.ID)
}

// UpdateUser changes profile fields; an empty password keeps the old hash.
func (s *IdentityService) UpdateUser(ctx context.Context, actor *models.User, id uint, in UserInput) (*models.User, error) {
	if err := policy.Require(policy.CanManageUsers(actor), actor, "edit users"); err != nil {
		return nil, err
	}
	in.Username, in.Email = trim(in.Username), trim(in.Email)
	switch {
	case in.Username == "":
		return nil, &errs.ValidationError{Field: "username", Message: "username is required", Input: in.redacted()}
	case in.Email == "":
		return nil, &errs.ValidationError{Field: "email", Message: "email is required", Input: in.redacted()}
	case in.Password != "" && len(in.Password) < minPasswordLength:
		return nil, &errs.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength), Input: in.redacted()}
	}
	if err := in.checkLengths(); err != nil {
		return nil, err
	}

	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var user models.User
		if err := first(tx.Preload("Roles"), &user, "user", id); err != nil {
			return err
		}
		if err := uniqueIdentity(tx, in.Username, in.Email, id); err != nil {
			return err
		}
		if in.IsActive != nil && !*in.IsActive && user.IsActive && user.HasRoleNamed(models.RoleAdmin) {
			if err := keepOneAdmin(tx, id); err != nil {
				return err
			}
		}

		user.Username = in.Username
		user.Email = in.Email
		user.FirstName = trim(in.FirstName)
		user.LastName = trim(in.LastName)
		if in.IsActive != nil {
			user.IsActive = *in.IsActive
		}
		if in.Password != "" {
			hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			user.PasswordHash = string(hash)
		}
		if err := tx.Omit("Roles").Save(&user).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "user", id, "update", "updated user "+user.Username)
	})
	err = errs.AsPersistence("update user", err)
	logResult(s.log, "update user", err, zap.Uint("user_id", id))
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// SetUserRoles makes the user's role set exactly names. Every grant or
// revoke goes through the consultant reconciliation.
func (s *IdentityService) SetUserRoles(ctx context.Context, actor *models.User, userID uint, names []string) (*models.User, error) {
	if err := policy.Require(policy.CanManageUsers(actor), actor, "assign roles"); err != nil {
		return nil, err
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[trim(n)] = true
	}

	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var user models.User
		if err := first(tx.Preload("Roles"), &user, "user", userID); err != nil {
			return err
		}
		for _, current := range user.RoleNames() {
			if !want[current] {
				if _, err := revokeRole(tx, &user, current); err != nil {
					return err
				}
			}
		}
		granted := make([]string, 0, len(want))
		for n := range want {
			granted = append(granted, n)
		}
		sort.Strings(granted)
		for _, n := range granted {
			if _, err := grantRole(tx, &user, n); err != nil {
				return err
			}
		}
		return database.CreateAuditLog(tx, actor, "user", userID, "roles", fmt.Sprintf("roles set to %v", granted))
	})
	err = errs.AsSync("set user roles", err)
	logResult(s.log, "set user roles", err, zap.Uint("user_id", userID), zap.Strings("roles", names))
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func (s *IdentityService) GrantRole(ctx context.Context, actor *models.User, userID uint, role string) error {
	if err := policy.Require(policy.CanManageUsers(actor), actor, "assign roles"); err != nil {
		return err
	}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var user models.User
		if err := first(tx.Preload("Roles"), &user, "user", userID); err != nil {
			return err
		}
		changed, err := grantRole(tx, &user, role)
		if err != nil || !changed {
			return err
		}
		return database.CreateAuditLog(tx, actor, "user", userID, "grant", "granted "+role)
	})
	err = errs.AsSync("grant role", err)
	logResult(s.log, "grant role", err, zap.Uint("user_id", userID), zap.String("role", role))
	return err
}

func (s *IdentityService) RevokeRole(ctx context.Context, actor *models.User, userID uint, role string) error {
	if err := policy.Require(policy.CanManageUsers(actor), actor, "assign roles"); err != nil {
		return err
	}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var user models.User
		if err := first(tx.Preload("Roles"), &user, "user", userID); err != nil {
			return err
		}
		changed, err := revokeRole(tx, &user, role)
		if err != nil || !changed {
			return err
		}
		return database.CreateAuditLog(tx, actor, "user", userID, "revoke", "revoked "+role)
	})
	err = errs.AsSync("revoke role", err)
	logResult(s.log, "revoke role", err, zap.Uint("user_id", userID), zap.String("role", role))
	return err
}

// DeleteUser is refused while the user manages projects. Consultant rows and
// role links go with the user; templates lose their manager.
func (s *IdentityService) DeleteUser(ctx context.Context, actor *models.User, id uint) error {
	if err := policy.Require(policy.CanManageUsers(actor), actor, "delete users"); err != nil {
		return err
	}
	if actor != nil && actor.ID == id {
		return errs.Validation("user_id", "you cannot delete your own account")
	}

	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var user models.User
		if err := first(tx.Preload("Roles"), &user, "user", id); err != nil {
			return err
		}
		var managed int64
		if err := tx.Model(&models.Project{}).Where("manager_id = ?", id).Count(&managed).Error; err != nil {
			return err
		}
		if managed > 0 {
			return &errs.HasDependentsError{Entity: "user", ID: id, Dependents: "managed projects", Count: managed}
		}
		if user.IsActive && user.HasRoleNamed(models.RoleAdmin) {
			if err := keepOneAdmin(tx, id); err != nil {
				return err
			}
		}

		if err := reconcileConsultant(tx, id, roleRevoked); err != nil {
			return err
		}
		if err := tx.Model(&models.ProjectTemplate{}).Where("manager_id = ?", id).Update("manager_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Association("Roles").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&user).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "user", id, "delete", "deleted user "+user.Username)
	})
	err = errs.AsSync("delete user", err)
	logResult(s.log, "delete user", err, zap.Uint("user_id", id))
	return err
}

// Authenticate returns the active user with roles loaded, or
// ErrInvalidCredentials.
func (s *IdentityService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := database.Conn(ctx, s.db).Preload("Roles").
		Where("username = ? AND is_active = ?", trim(username), true).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.ErrInvalidCredentials
	}
	if err != nil {
		return nil, errs.AsPersistence("authenticate", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.log.Debug("password mismatch", zap.String("username", user.Username))
		return nil, errs.ErrInvalidCredentials
	}
	return &user, nil
}

func (s *IdentityService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := first(database.Conn(ctx, s.db).Preload("Roles"), &user, "user", id); err != nil {
		return nil, errs.AsPersistence("get user", err)
	}
	return &user, nil
}

func (s *IdentityService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := database.Conn(ctx, s.db).Preload("Roles").Order("username asc").Find(&users).Error
	return users, errs.AsPersistence("list users", err)
}

func (s *IdentityService) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := database.Conn(ctx, s.db).Order("id asc").Find(&roles).Error
	return roles, errs.AsPersistence("list roles", err)
}

func uniqueIdentity(tx *gorm.DB, username, email string, exceptID uint) error {
	check := func(column, value string) error {
		var count int64
		q := tx.Model(&models.User{}).Where(column+" = ?", value)
		if exceptID != 0 {
			q = q.Where("id <> ?", exceptID)
		}
		if err := q.Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &errs.DuplicateNameError{Entity: "user " + column, Name: value}
		}
		return nil
	}
	if err := check("username", username); err != nil {
		return err
	}
	return check("email", email)
}

// keepOneAdmin fails when removing userID would leave no active Admin.
func keepOneAdmin(tx *gorm.DB, userID uint) error {
	var others int64
	err := tx.Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("roles.name = ? AND users.is_active = ? AND users.id <> ?", models.RoleAdmin, true, userID).
		Count(&others).Error
	if err != nil {
		return err
	}
	if others == 0 {
		return errs.Validation("roles", "at least one active Admin must remain")
	}
	return nil
}

//
// ROLE <-> CONSULTANT RECONCILIATION
//

type consultantEvent int

const (
	roleGranted consultantEvent = iota
	roleRevoked
	consultantCreated
	consultantDeleted
)

func (e consultantEvent) String() string {
	switch e {
	case roleGranted:
		return "role granted"
	case roleRevoked:
		return "role revoked"
	case consultantCreated:
		return "consultant created"
	case consultantDeleted:
		return "consultant deleted"
	}
	return "unknown"
}

// reconcileConsultant restores "user has a Consultant row iff the user holds
// the Consultant role" after event. It runs on the caller's transaction.
func reconcileConsultant(tx *gorm.DB, userID uint, event consultantEvent) error {
	switch event {
	case roleGranted:
		var count int64
		if err := tx.Model(&models.Consultant{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		var user models.User
		if err := first(tx, &user, "user", userID); err != nil {
			return err
		}
		row := defaultConsultant(&user)
		return tx.Create(&row).Error

	case roleRevoked:
		var ids []uint
		if err := tx.Model(&models.Consultant{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		return deleteConsultants(tx, ids)

	case consultantCreated, consultantDeleted:
		var count int64
		if err := tx.Model(&models.Consultant{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		var user models.User
		if err := first(tx.Preload("Roles"), &user, "user", userID); err != nil {
			return err
		}
		role, err := roleByName(tx, models.RoleConsultant)
		if err != nil {
			return err
		}
		has := user.HasRoleNamed(models.RoleConsultant)
		switch {
		case count > 0 && !has:
			return tx.Model(&user).Association("Roles").Append(role)
		case count == 0 && has:
			return tx.Model(&user).Association("Roles").Delete(role)
		}
		return nil
	}
	return fmt.Errorf("unknown consultant event %d", event)
}

func defaultConsultant(u *models.User) models.Consultant {
	name := u.FirstName
	if name == "" {
		name = u.Username
	}
	return models.Consultant{
		UserID:   u.ID,
		Name:     name,
		Surname:  u.LastName,
		FullName: u.DisplayName(),
		Email:    u.Email,
		Status:   models.ConsultantStatusActive,
	}
}

func deleteConsultants(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("consultant_id IN ?", ids).Delete(&models.ConsultantExpertise{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.Consultant{}).Error
}

func roleByName(tx *gorm.DB, name string) (*models.Role, error) {
	var role models.Role
	err := tx.Where("name = ?", name).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("role", name)
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// grantRole adds role to user (Roles must be loaded) and reconciles. It
// reports whether anything changed.
func grantRole(tx *gorm.DB, user *models.User, name string) (bool, error) {
	if user.HasRoleNamed(name) {
		return false, nil
	}
	role, err := roleByName(tx, name)
	if err != nil {
		return false, err
	}
	if err := tx.Model(user).Association("Roles").Append(role); err != nil {
		return false, err
	}
	if name == models.RoleConsultant {
		if err := reconcileConsultant(tx, user.ID, roleGranted); err != nil {
			return false, err
		}
	}
	return true, nil
}

func revokeRole(tx *gorm.DB, user *models.User, name string) (bool, error) {
	if !user.HasRoleNamed(name) {
		return false, nil
	}
	role, err := roleByName(tx, name)
	if err != nil {
		return false, err
	}
	if name == models.RoleAdmin && user.IsActive {
		if err := keepOneAdmin(tx, user.ID); err != nil {
			return false, err
		}
	}
	if err := tx.Model(user).Association("Roles").Delete(role); err != nil {
		return false, err
	}
	if name == models.RoleConsultant {
		if err := reconcileConsultant(tx, user.ID, roleRevoked); err != nil {
			return false, err
		}
	}
	return true, nil
}

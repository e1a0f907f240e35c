package database

import (
	"context"
	"errors"
	"fmt"

	"resplan/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type BootstrapOptions struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Bootstrap seeds roles and the project status list, then guarantees that at
// least one active account holds Admin. If the configured admin account
// exists but lost its role (or was deactivated) it is repaired rather than
// duplicated.
func Bootstrap(ctx context.Context, db *gorm.DB, opts BootstrapOptions, log *zap.Logger) error {
	return WithTx(ctx, db, func(ctx context.Context, tx *gorm.DB) error {
		if err := seedRoles(tx); err != nil {
			return err
		}
		if err := seedStatusList(tx, log); err != nil {
			return err
		}
		return ensureAdmin(tx, opts, log)
	})
}

func seedRoles(tx *gorm.DB) error {
	for _, r := range models.DefaultRoles {
		role := r
		if err := tx.Where("name = ?", role.Name).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed role %s: %w", role.Name, err)
		}
	}
	return nil
}

func seedStatusList(tx *gorm.DB, log *zap.Logger) error {
	var count int64
	if err := tx.Model(&models.LookupList{}).
		Where("name = ?", models.ProjectStatusList).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	list := models.LookupList{Name: models.ProjectStatusList, Description: "Project Status Options"}
	if err := tx.Create(&list).Error; err != nil {
		return err
	}
	for i, v := range models.DefaultProjectStatuses {
		item := models.LookupItem{ListID: list.ID, Value: v, Order: i}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
	}
	log.Info("seeded project status list", zap.Int("items", len(models.DefaultProjectStatuses)))
	return nil
}

func ensureAdmin(tx *gorm.DB, opts BootstrapOptions, log *zap.Logger) error {
	var adminRole models.Role
	if err := tx.Where("name = ?", models.RoleAdmin).First(&adminRole).Error; err != nil {
		return err
	}

	var count int64
	if err := tx.Table("user_roles").
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("user_roles.role_id = ? AND users.is_active = ?", adminRole.ID, true).
		Count(&count).Error; err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if count > 0 {
		// an active admin already exists
		return nil
	}

	var user models.User
	err := tx.Where("username = ?", opts.AdminUsername).First(&user).Error
	switch {
	case err == nil:
		user.IsActive = true
		if err := tx.Model(&user).Update("is_active", true).Error; err != nil {
			return err
		}
		if err := tx.Model(&user).Association("Roles").Append(&adminRole); err != nil {
			return err
		}
		log.Warn("repaired admin role assignment", zap.String("username", user.Username))
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	if opts.AdminPassword == "" {
		return errors.New("no active admin exists and ADMIN_PASSWORD is not set")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash default admin password: %w", err)
	}

	admin := models.User{
		Username:     opts.AdminUsername,
		Email:        opts.AdminEmail,
		PasswordHash: string(hash),
		IsActive:     true,
		Roles:        []models.Role{adminRole},
	}
	if err := tx.Create(&admin).Error; err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}

	log.Info("created default admin user", zap.String("username", admin.Username))
	return nil
}

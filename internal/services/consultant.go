package services

import (
	"context"
	"strings"
	"time"

	"resplan/internal/database"
	"resplan/internal/errs"
	"resplan/internal/models"
	"resplan/internal/policy"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxAvailabilityDays = 31

type ConsultantService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewConsultantService(db *gorm.DB, log *zap.Logger) *ConsultantService {
	return &ConsultantService{db: db, log: log.Named("consultants")}
}

type ConsultantInput struct {
	UserID           uint           `json:"user_id"`
	Name             string         `json:"name"`
	Surname          string         `json:"surname"`
	Email            string         `json:"email"`
	PhoneNumber      string         `json:"phone_number"`
	AvailabilityDays int            `json:"availability_days"`
	Status           string         `json:"status"`
	StartDate        *time.Time     `json:"start_date"`
	EndDate          *time.Time     `json:"end_date"`
	Notes            string         `json:"notes"`
	CalendarName     string         `json:"calendar_name"`
	Attributes       map[string]any `json:"attributes"`
}

func (in ConsultantInput) validate() error {
	if in.UserID == 0 {
		return &errs.ValidationError{Field: "user_id", Message: "user is required", Input: in}
	}
	if in.AvailabilityDays < 0 || in.AvailabilityDays > maxAvailabilityDays {
		return &errs.ValidationError{Field: "availability_days", Message: "availability must be between 0 and 31 days", Input: in}
	}
	if err := checkLengths(in,
		maxLen{"name", in.Name, 50},
		maxLen{"surname", in.Surname, 50},
		maxLen{"email", in.Email, 120},
		maxLen{"phone_number", in.PhoneNumber, 20},
		maxLen{"status", in.Status, 20},
		maxLen{"calendar_name", in.CalendarName, 100},
	); err != nil {
		return err
	}
	return checkDates(in.StartDate, in.EndDate, "end_date")
}

// apply copies input onto c, falling back to the user's profile for names.
func (in ConsultantInput) apply(c *models.Consultant, u *models.User) {
	c.UserID = u.ID
	c.Name = trim(in.Name)
	if c.Name == "" {
		c.Name = u.FirstName
	}
	if c.Name == "" {
		c.Name = u.Username
	}
	c.Surname = trim(in.Surname)
	if c.Surname == "" {
		c.Surname = u.LastName
	}
	c.FullName = strings.TrimSpace(c.Name + " " + c.Surname)
	c.Email = trim(in.Email)
	if c.Email == "" {
		c.Email = u.Email
	}
	c.PhoneNumber = trim(in.PhoneNumber)
	c.AvailabilityDays = in.AvailabilityDays
	c.Status = trim(in.Status)
	if c.Status == "" {
		c.Status = models.ConsultantStatusActive
	}
	c.StartDate = in.StartDate
	c.EndDate = in.EndDate
	c.Notes = trim(in.Notes)
	c.CalendarName = trim(in.CalendarName)
	c.Attributes = datatypes.JSONMap(in.Attributes)
}

// CreateConsultant adds the consultant record for a user and grants the
// Consultant role when missing.
func (s *ConsultantService) CreateConsultant(ctx context.Context, actor *models.User, in ConsultantInput) (*models.Consultant, error) {
	if err := policy.Require(policy.CanManageConsultants(actor), actor, "create consultants"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var c models.Consultant
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var user models.User
		if err := first(tx, &user, "user", in.UserID); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Consultant{}).Where("user_id = ?", in.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &errs.ValidationError{Field: "user_id", Message: "user already has a consultant record", Input: in}
		}

		in.apply(&c, &user)
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		if err := reconcileConsultant(tx, user.ID, consultantCreated); err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "consultant", c.ID, "create", "created consultant "+c.FullName)
	})
	err = errs.AsSync("create consultant", err)
	logResult(s.log, "create consultant", err, zap.Uint("user_id", in.UserID))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ConsultantService) UpdateConsultant(ctx context.Context, actor *models.User, id uint, in ConsultantInput) (*models.Consultant, error) {
	if err := policy.Require(policy.CanManageConsultants(actor), actor, "edit consultants"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var c models.Consultant
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := first(tx, &c, "consultant", id); err != nil {
			return err
		}
		if in.UserID != c.UserID {
			return &errs.ValidationError{Field: "user_id", Message: "a consultant cannot be moved to another user", Input: in}
		}
		var user models.User
		if err := first(tx, &user, "user", c.UserID); err != nil {
			return err
		}
		in.apply(&c, &user)
		if err := tx.Omit("Expertise").Save(&c).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "consultant", id, "update", "updated consultant "+c.FullName)
	})
	err = errs.AsPersistence("update consultant", err)
	logResult(s.log, "update consultant", err, zap.Uint("consultant_id", id))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteConsultant removes the record and its expertise, then revokes the
// Consultant role if the user has no consultant record left.
func (s *ConsultantService) DeleteConsultant(ctx context.Context, actor *models.User, id uint) error {
	if err := policy.Require(policy.CanManageConsultants(actor), actor, "delete consultants"); err != nil {
		return err
	}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var c models.Consultant
		if err := first(tx, &c, "consultant", id); err != nil {
			return err
		}
		if err := deleteConsultants(tx, []uint{id}); err != nil {
			return err
		}
		if err := reconcileConsultant(tx, c.UserID, consultantDeleted); err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "consultant", id, "delete", "deleted consultant "+c.FullName)
	})
	err = errs.AsSync("delete consultant", err)
	logResult(s.log, "delete consultant", err, zap.Uint("consultant_id", id))
	return err
}

func (s *ConsultantService) GetConsultant(ctx context.Context, id uint) (*models.Consultant, error) {
	var c models.Consultant
	tx := database.Conn(ctx, s.db).Preload("Expertise", func(db *gorm.DB) *gorm.DB {
		return db.Order("target_kind asc, target_id asc")
	})
	if err := first(tx, &c, "consultant", id); err != nil {
		return nil, errs.AsPersistence("get consultant", err)
	}
	return &c, nil
}

// ConsultantFilter: Query matches name, surname or email; Status is exact.
type ConsultantFilter struct {
	Query  string
	Status string
}

// ListConsultants runs the reconciliation sweep before reading.
func (s *ConsultantService) ListConsultants(ctx context.Context, f ConsultantFilter) ([]models.Consultant, error) {
	if _, err := s.EnsureConsultantEntries(ctx); err != nil {
		return nil, err
	}

	q := database.Conn(ctx, s.db).Order("full_name asc")
	if query := strings.ToLower(trim(f.Query)); query != "" {
		like := "%" + query + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(surname) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if status := trim(f.Status); status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Consultant
	err := q.Find(&out).Error
	return out, errs.AsPersistence("list consultants", err)
}

type SyncReport struct {
	RowsCreated  int `json:"rows_created"`
	RolesGranted int `json:"roles_granted"`
}

// EnsureConsultantEntries repairs the role/record invariant for every user:
// role holders without a record get one, record holders without the role get
// the role. Running it twice is a no-op the second time.
func (s *ConsultantService) EnsureConsultantEntries(ctx context.Context) (SyncReport, error) {
	var report SyncReport
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		role, err := roleByName(tx, models.RoleConsultant)
		if err != nil {
			return err
		}

		var missingRow []uint
		if err := tx.Table("user_roles").
			Where("role_id = ?", role.ID).
			Where("user_id NOT IN (SELECT user_id FROM consultants)").
			Pluck("user_id", &missingRow).Error; err != nil {
			return err
		}
		for _, id := range missingRow {
			if err := reconcileConsultant(tx, id, roleGranted); err != nil {
				return err
			}
		}

		var holders []uint
		if err := tx.Model(&models.Consultant{}).
			Where("user_id IN (SELECT id FROM users)").
			Where("user_id NOT IN (SELECT user_id FROM user_roles WHERE role_id = ?)", role.ID).
			Pluck("user_id", &holders).Error; err != nil {
			return err
		}
		seen := make(map[uint]bool, len(holders))
		for _, id := range holders {
			if seen[id] {
				continue
			}
			seen[id] = true
			if err := reconcileConsultant(tx, id, consultantCreated); err != nil {
				return err
			}
		}

		report = SyncReport{RowsCreated: len(missingRow), RolesGranted: len(seen)}
		return nil
	})
	err = errs.AsSync("ensure consultant entries", err)
	if err != nil {
		s.log.Error("consultant sweep rolled back", zap.Error(err))
		return SyncReport{}, err
	}
	if report.RowsCreated > 0 || report.RolesGranted > 0 {
		s.log.Info("consultant sweep repaired entries",
			zap.Int("rows_created", report.RowsCreated),
			zap.Int("roles_granted", report.RolesGranted))
	}
	return report, nil
}

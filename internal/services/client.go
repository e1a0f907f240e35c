package services

import (
	"context"
	"strings"

	"resplan/internal/database"
	"resplan/internal/errs"
	"resplan/internal/models"
	"resplan/internal/policy"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ClientService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewClientService(db *gorm.DB, log *zap.Logger) *ClientService {
	return &ClientService{db: db, log: log.Named("clients")}
}

type ClientInput struct {
	Name           string `json:"name"`
	Address        string `json:"address"`
	City           string `json:"city"`
	CountryID      *uint  `json:"country_id"`
	IndustryID     *uint  `json:"industry_id"`
	SalesPerson    string `json:"sales_person"`
	ProjectManager string `json:"project_manager"`
	Active         bool   `json:"active"`
	Notes          string `json:"notes"`
}

// ParseBool reads a checkbox-style field. An absent field is false; any
// value outside the accepted spellings is a ValidationError.
func ParseBool(field, raw string, present bool) (bool, error) {
	if !present {
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "on", "1", "yes":
		return true, nil
	case "false", "off", "0", "no", "":
		return false, nil
	}
	return false, &errs.ValidationError{Field: field, Message: "not a boolean value", Input: raw}
}

func (in ClientInput) validate() error {
	if trim(in.Name) == "" {
		return &errs.ValidationError{Field: "name", Message: "client name is required", Input: in}
	}
	return checkLengths(in,
		maxLen{"name", in.Name, 100},
		maxLen{"address", in.Address, 200},
		maxLen{"city", in.City, 100},
		maxLen{"sales_person", in.SalesPerson, 100},
		maxLen{"project_manager", in.ProjectManager, 100},
	)
}

func (in ClientInput) apply(c *models.Client) {
	c.Name = trim(in.Name)
	c.Address = trim(in.Address)
	c.City = trim(in.City)
	c.CountryID = in.CountryID
	c.IndustryID = in.IndustryID
	c.SalesPerson = trim(in.SalesPerson)
	c.ProjectManager = trim(in.ProjectManager)
	c.Active = in.Active
	c.Notes = trim(in.Notes)
}

func checkClientLookups(tx *gorm.DB, in ClientInput) error {
	if err := lookupRef(tx, in.CountryID, models.CountryList, "country"); err != nil {
		return err
	}
	return lookupRef(tx, in.IndustryID, models.IndustryList, "industry")
}

func (s *ClientService) CreateClient(ctx context.Context, actor *models.User, in ClientInput) (*models.Client, error) {
	if err := policy.Require(policy.CanManageClients(actor), actor, "create clients"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var c models.Client
	in.apply(&c)
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := checkClientLookups(tx, in); err != nil {
			return err
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "client", c.ID, "create", "created client "+c.Name)
	})
	err = errs.AsPersistence("create client", err)
	logResult(s.log, "create client", err, zap.String("name", c.Name), zap.Bool("active", c.Active))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ClientService) UpdateClient(ctx context.Context, actor *models.User, id uint, in ClientInput) (*models.Client, error) {
	if err := policy.Require(policy.CanManageClients(actor), actor, "edit clients"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var c models.Client
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := first(tx, &c, "client", id); err != nil {
			return err
		}
		if err := checkClientLookups(tx, in); err != nil {
			return err
		}
		in.apply(&c)
		if err := tx.Save(&c).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "client", id, "update", "updated client "+c.Name)
	})
	err = errs.AsPersistence("update client", err)
	logResult(s.log, "update client", err, zap.Uint("client_id", id), zap.Bool("active", c.Active))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ClientService) GetClient(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	if err := first(database.Conn(ctx, s.db), &c, "client", id); err != nil {
		return nil, errs.AsPersistence("get client", err)
	}
	return &c, nil
}

func (s *ClientService) ListClients(ctx context.Context, activeOnly bool) ([]models.Client, error) {
	q := database.Conn(ctx, s.db).Order("name asc")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.Client
	err := q.Find(&out).Error
	return out, errs.AsPersistence("list clients", err)
}

// DeleteClient is refused while any project references the client.
// Templates pointing at it lose the reference.
func (s *ClientService) DeleteClient(ctx context.Context, actor *models.User, id uint) error {
	if err := policy.Require(policy.CanManageClients(actor), actor, "delete clients"); err != nil {
		return err
	}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var c models.Client
		if err := first(tx, &c, "client", id); err != nil {
			return err
		}
		var projects int64
		if err := tx.Model(&models.Project{}).Where("client_id = ?", id).Count(&projects).Error; err != nil {
			return err
		}
		if projects > 0 {
			return &errs.HasDependentsError{Entity: "client", ID: id, Dependents: "projects", Count: projects}
		}
		if err := tx.Model(&models.ProjectTemplate{}).Where("client_id = ?", id).Update("client_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(&c).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "client", id, "delete", "deleted client "+c.Name)
	})
	err = errs.AsPersistence("delete client", err)
	logResult(s.log, "delete client", err, zap.Uint("client_id", id))
	return err
}

package services

import (
	"context"
	"fmt"

	"resplan/internal/database"
	"resplan/internal/errs"
	"resplan/internal/models"
	"resplan/internal/policy"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TemplateService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTemplateService(db *gorm.DB, log *zap.Logger) *TemplateService {
	return &TemplateService{db: db, log: log.Named("templates")}
}

type PhaseTemplateInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	DurationDays *int   `json:"duration_days,omitempty"`
}

type TemplateInput struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	ClientID    *uint                `json:"client_id,omitempty"`
	ManagerID   *uint                `json:"manager_id,omitempty"`
	Phases      []PhaseTemplateInput `json:"phases"`
	ProductIDs  []uint               `json:"product_ids"`
}

func (in TemplateInput) validate() error {
	if trim(in.Name) == "" {
		return &errs.ValidationError{Field: "name", Message: "template name is required", Input: in}
	}
	if err := checkLengths(in, maxLen{"name", in.Name, 100}); err != nil {
		return err
	}
	for i, ph := range in.Phases {
		if trim(ph.Name) == "" {
			return &errs.ValidationError{Field: fieldPath("phases", i, "name"), Message: "phase name is required", Input: in}
		}
		if ph.DurationDays != nil && *ph.DurationDays < 0 {
			return &errs.ValidationError{Field: fieldPath("phases", i, "duration_days"), Message: "duration must not be negative", Input: in}
		}
		if err := checkLengths(in, maxLen{fieldPath("phases", i, "name"), ph.Name, 100}); err != nil {
			return err
		}
	}
	return nil
}

// writeTemplateChildren replaces phases and product links of tpl.
func writeTemplateChildren(tx *gorm.DB, tpl *models.ProjectTemplate, in TemplateInput) error {
	if err := tx.Where("template_id = ?", tpl.ID).Delete(&models.PhaseTemplate{}).Error; err != nil {
		return err
	}
	for i, ph := range in.Phases {
		row := models.PhaseTemplate{
			TemplateID:   tpl.ID,
			Name:         trim(ph.Name),
			Description:  trim(ph.Description),
			Order:        i,
			DurationDays: ph.DurationDays,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
	}

	products, err := loadProducts(tx, in.ProductIDs)
	if err != nil {
		return err
	}
	if err := tx.Model(tpl).Association("Products").Clear(); err != nil {
		return err
	}
	if len(products) > 0 {
		return tx.Model(tpl).Association("Products").Append(products)
	}
	return nil
}

func checkTemplateRefs(tx *gorm.DB, in TemplateInput) error {
	if err := mustExist(tx, &models.Client{}, "client", in.ClientID); err != nil {
		return err
	}
	return mustExist(tx, &models.User{}, "user", in.ManagerID)
}

func (s *TemplateService) CreateTemplate(ctx context.Context, actor *models.User, in TemplateInput) (*models.ProjectTemplate, error) {
	if err := policy.Require(policy.CanManageTemplates(actor), actor, "create templates"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	tpl := models.ProjectTemplate{
		Name:        trim(in.Name),
		Description: trim(in.Description),
		ClientID:    in.ClientID,
		ManagerID:   in.ManagerID,
	}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := checkTemplateRefs(tx, in); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&tpl).Error; err != nil {
			return err
		}
		if err := writeTemplateChildren(tx, &tpl, in); err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "template", tpl.ID, "create",
			fmt.Sprintf("created template %s with %d phases", tpl.Name, len(in.Phases)))
	})
	err = errs.AsPersistence("create template", err)
	logResult(s.log, "create template", err, zap.String("name", tpl.Name))
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, tpl.ID)
}

// UpdateTemplate replaces fields, phases and product links.
func (s *TemplateService) UpdateTemplate(ctx context.Context, actor *models.User, id uint, in TemplateInput) (*models.ProjectTemplate, error) {
	if err := policy.Require(policy.CanManageTemplates(actor), actor, "edit templates"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var tpl models.ProjectTemplate
		if err := first(tx, &tpl, "template", id); err != nil {
			return err
		}
		if err := checkTemplateRefs(tx, in); err != nil {
			return err
		}
		tpl.Name = trim(in.Name)
		tpl.Description = trim(in.Description)
		tpl.ClientID = in.ClientID
		tpl.ManagerID = in.ManagerID
		if err := tx.Omit(clause.Associations).Save(&tpl).Error; err != nil {
			return err
		}
		if err := writeTemplateChildren(tx, &tpl, in); err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "template", id, "update", "updated template "+tpl.Name)
	})
	err = errs.AsPersistence("update template", err)
	logResult(s.log, "update template", err, zap.Uint("template_id", id))
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, id)
}

// DeleteTemplate drops phases and product links; projects created from the
// template keep their own copy and lose the back reference.
func (s *TemplateService) DeleteTemplate(ctx context.Context, actor *models.User, id uint) error {
	if err := policy.Require(policy.CanManageTemplates(actor), actor, "delete templates"); err != nil {
		return err
	}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var tpl models.ProjectTemplate
		if err := first(tx, &tpl, "template", id); err != nil {
			return err
		}
		if err := tx.Where("template_id = ?", id).Delete(&models.PhaseTemplate{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&tpl).Association("Products").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("template_id = ?", id).Update("template_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Delete(&tpl).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "template", id, "delete", "deleted template "+tpl.Name)
	})
	err = errs.AsPersistence("delete template", err)
	logResult(s.log, "delete template", err, zap.Uint("template_id", id))
	return err
}

func (s *TemplateService) GetTemplate(ctx context.Context, id uint) (*models.ProjectTemplate, error) {
	var tpl models.ProjectTemplate
	q := database.Conn(ctx, s.db).Preload("Phases", orderByPosition).Preload("Products")
	if err := first(q, &tpl, "template", id); err != nil {
		return nil, errs.AsPersistence("get template", err)
	}
	return &tpl, nil
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]models.ProjectTemplate, error) {
	var out []models.ProjectTemplate
	err := database.Conn(ctx, s.db).Order("name asc").Find(&out).Error
	return out, errs.AsPersistence("list templates", err)
}

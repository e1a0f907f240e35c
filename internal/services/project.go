package services

import (
	"context"
	"time"

	"resplan/internal/database"
	"resplan/internal/errs"
	"resplan/internal/models"
	"resplan/internal/policy"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewProjectService(db *gorm.DB, log *zap.Logger) *ProjectService {
	return &ProjectService{db: db, log: log.Named("projects")}
}

// PhaseSpec and GroupSpec describe a project tree to materialize. Slice
// position becomes the stored order.
type PhaseSpec struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	DurationID       *uint  `json:"duration_id,omitempty"`
	Online           bool   `json:"online"`
	ProductElementID *uint  `json:"product_element_id,omitempty"`
}

type GroupSpec struct {
	ProductGroupID uint        `json:"product_group_id"`
	Phases         []PhaseSpec `json:"phases"`
}

// ProjectInput carries every editable project field. On update, a nil
// Groups keeps the current tree and a non-nil one replaces it; ProductIDs
// behaves the same way for product links. TemplateID is read on create only.
type ProjectInput struct {
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	ClientID       uint        `json:"client_id"`
	ManagerID      uint        `json:"manager_id"`
	TemplateID     *uint       `json:"template_id,omitempty"`
	StatusID       *uint       `json:"status_id,omitempty"`
	IndustryID     *uint       `json:"industry_id,omitempty"`
	ProfitCenterID *uint       `json:"profit_center_id,omitempty"`
	StartDate      *time.Time  `json:"start_date,omitempty"`
	EndDate        *time.Time  `json:"end_date,omitempty"`
	ProductIDs     []uint      `json:"product_ids,omitempty"`
	Groups         []GroupSpec `json:"groups,omitempty"`
}

func (in ProjectInput) validate() error {
	switch {
	case trim(in.Name) == "":
		return &errs.ValidationError{Field: "name", Message: "project name is required", Input: in}
	case in.ClientID == 0:
		return &errs.ValidationError{Field: "client_id", Message: "client is required", Input: in}
	case in.ManagerID == 0:
		return &errs.ValidationError{Field: "manager_id", Message: "project manager is required", Input: in}
	}
	if err := checkLengths(in, maxLen{"name", in.Name, 100}); err != nil {
		return err
	}
	if err := checkDates(in.StartDate, in.EndDate, "end_date"); err != nil {
		return err
	}
	for gi, g := range in.Groups {
		if g.ProductGroupID == 0 {
			return &errs.ValidationError{Field: fieldPath("groups", gi, "product_group_id"), Message: "product group is required", Input: in}
		}
		for pi, ph := range g.Phases {
			if trim(ph.Name) == "" {
				return &errs.ValidationError{Field: fieldPath("groups", gi, "phases", pi, "name"), Message: "phase name is required", Input: in}
			}
			if err := checkLengths(in, maxLen{fieldPath("groups", gi, "phases", pi, "name"), ph.Name, 200}); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyFields copies the scalar fields and references; status is resolved
// separately.
func (in ProjectInput) applyFields(p *models.Project) {
	p.Name = trim(in.Name)
	p.Description = trim(in.Description)
	p.ClientID = in.ClientID
	p.ManagerID = in.ManagerID
	p.IndustryID = in.IndustryID
	p.ProfitCenterID = in.ProfitCenterID
	p.StartDate = in.StartDate
	p.EndDate = in.EndDate
}

func checkProjectRefs(tx *gorm.DB, in ProjectInput) error {
	if err := mustExist(tx, &models.Client{}, "client", &in.ClientID); err != nil {
		return err
	}
	var manager models.User
	if err := first(tx.Preload("Roles"), &manager, "user", in.ManagerID); err != nil {
		return err
	}
	if !policy.CanManageProject(&manager) {
		return &errs.ValidationError{
			Field:   "manager_id",
			Message: "manager must be an active Admin, Manager or Project Manager",
			Input:   in,
		}
	}
	if err := lookupRef(tx, in.IndustryID, models.IndustryList, "industry"); err != nil {
		return err
	}
	return lookupRef(tx, in.ProfitCenterID, models.ProfitCenterList, "profit center")
}

// resolveStatus maps the requested status to a ProjectStatusList item. With
// no request it falls back to the "Preparation" item, or nil when the list
// has none.
func resolveStatus(tx *gorm.DB, requested *uint) (*uint, error) {
	if requested != nil {
		item, err := itemInList(tx, *requested, models.ProjectStatusList, "project status")
		if err != nil {
			return nil, err
		}
		return &item.ID, nil
	}
	item, err := findItemByValue(tx, models.ProjectStatusList, models.DefaultProjectStatus)
	if err != nil || item == nil {
		return nil, err
	}
	return &item.ID, nil
}

// CreateProject persists the project row, links template and explicit
// products, and builds the group/phase tree in one transaction.
func (s *ProjectService) CreateProject(ctx context.Context, actor *models.User, in ProjectInput) (*ProjectView, error) {
	if err := policy.Require(policy.CanCreateProject(actor), actor, "create projects"); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var p models.Project
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := checkProjectRefs(tx, in); err != nil {
			return err
		}
		statusID, err := resolveStatus(tx, in.StatusID)
		if err != nil {
			return err
		}

		in.applyFields(&p)
		p.StatusID = statusID
		p.TemplateID = in.TemplateID
		if err := tx.Omit(clause.Associations).Create(&p).Error; err != nil {
			return err
		}

		var products []models.ProductService
		if in.TemplateID != nil {
			var tpl models.ProjectTemplate
			if err := first(tx.Preload("Products"), &tpl, "template", *in.TemplateID); err != nil {
				return err
			}
			products = append(products, tpl.Products...)
		}
		explicit, err := loadProducts(tx, in.ProductIDs)
		if err != nil {
			return err
		}
		products = mergeProducts(products, explicit)
		if len(products) > 0 {
			if err := tx.Model(&p).Association("Products").Append(products); err != nil {
				return err
			}
		}

		if err := buildTree(tx, p.ID, in.Groups); err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "project", p.ID, "create", "created project "+p.Name)
	})
	err = errs.AsPersistence("create project", err)
	logResult(s.log, "create project", err, zap.String("name", in.Name), zap.Int("groups", len(in.Groups)))
	if err != nil {
		return nil, err
	}
	return s.GetProject(ctx, p.ID)
}

// UpdateProject rewrites the project fields. A non-nil Groups deletes the
// whole tree and rebuilds it; on any failure the previous tree survives.
func (s *ProjectService) UpdateProject(ctx context.Context, actor *models.User, id uint, in ProjectInput) (*ProjectView, error) {
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var p models.Project
		if err := first(tx, &p, "project", id); err != nil {
			return err
		}
		if err := policy.Require(policy.CanEditProject(actor, &p), actor, "edit this project"); err != nil {
			return err
		}
		if err := in.validate(); err != nil {
			return err
		}
		if err := checkProjectRefs(tx, in); err != nil {
			return err
		}
		statusID, err := resolveStatus(tx, in.StatusID)
		if err != nil {
			return err
		}

		in.applyFields(&p)
		p.StatusID = statusID
		if err := tx.Omit(clause.Associations).Save(&p).Error; err != nil {
			return err
		}

		if in.ProductIDs != nil {
			products, err := loadProducts(tx, in.ProductIDs)
			if err != nil {
				return err
			}
			if err := tx.Model(&p).Association("Products").Clear(); err != nil {
				return err
			}
			if len(products) > 0 {
				if err := tx.Model(&p).Association("Products").Append(products); err != nil {
					return err
				}
			}
		}

		if in.Groups != nil {
			if err := deleteTree(tx, id); err != nil {
				return err
			}
			if err := buildTree(tx, id, in.Groups); err != nil {
				return err
			}
		}
		return database.CreateAuditLog(tx, actor, "project", id, "update", "updated project "+p.Name)
	})
	err = errs.AsPersistence("update project", err)
	logResult(s.log, "update project", err, zap.Uint("project_id", id), zap.Bool("tree_replaced", in.Groups != nil))
	if err != nil {
		return nil, err
	}
	return s.GetProject(ctx, id)
}

func (s *ProjectService) DeleteProject(ctx context.Context, actor *models.User, id uint) error {
	if err := policy.Require(policy.CanDeleteProject(actor), actor, "delete projects"); err != nil {
		return err
	}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var p models.Project
		if err := first(tx, &p, "project", id); err != nil {
			return err
		}
		if err := deleteTree(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&p).Association("Products").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&p).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "project", id, "delete", "deleted project "+p.Name)
	})
	err = errs.AsPersistence("delete project", err)
	logResult(s.log, "delete project", err, zap.Uint("project_id", id))
	return err
}

// GetProject returns the project with its ordered tree and every lookup
// reference resolved to its display value.
func (s *ProjectService) GetProject(ctx context.Context, id uint) (*ProjectView, error) {
	tx := database.Conn(ctx, s.db)
	var p models.Project
	q := tx.Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("name asc") }).
		Preload("Groups", orderByPosition).
		Preload("Groups.Phases", orderByPosition)
	if err := first(q, &p, "project", id); err != nil {
		return nil, errs.AsPersistence("get project", err)
	}
	views, err := projectViews(tx, []models.Project{p}, true)
	if err != nil {
		return nil, errs.AsPersistence("get project", err)
	}
	return &views[0], nil
}

// ProjectFilter narrows ListProjects; zero values match everything.
type ProjectFilter struct {
	ClientID uint
	StatusID uint
}

// ListProjects returns summaries without the tree. Admin and Manager see
// everything, a Project Manager sees the projects they manage.
func (s *ProjectService) ListProjects(ctx context.Context, actor *models.User, f ProjectFilter) ([]ProjectView, error) {
	tx := database.Conn(ctx, s.db)
	q := tx.Order("created_at desc, id desc")
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.StatusID != 0 {
		q = q.Where("status_id = ?", f.StatusID)
	}
	switch {
	case policy.CanSeeAllProjects(actor):
	case policy.HasRole(actor, models.RoleProjectManager):
		q = q.Where("manager_id = ?", actor.ID)
	default:
		return []ProjectView{}, nil
	}

	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, errs.AsPersistence("list projects", err)
	}
	views, err := projectViews(tx, projects, false)
	return views, errs.AsPersistence("list projects", err)
}

func loadProducts(tx *gorm.DB, ids []uint) ([]models.ProductService, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.ProductService
	if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	found := make(map[uint]bool, len(products))
	for _, p := range products {
		found[p.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return nil, errs.NotFound("product", id)
		}
	}
	return products, nil
}

func mergeProducts(a, b []models.ProductService) []models.ProductService {
	seen := make(map[uint]bool, len(a)+len(b))
	out := make([]models.ProductService, 0, len(a)+len(b))
	for _, p := range append(a, b...) {
		if !seen[p.ID] {
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}

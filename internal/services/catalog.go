package services

import (
	"context"
	"fmt"
	"strings"

	"resplan/internal/database"
	"resplan/internal/errs"
	"resplan/internal/models"
	"resplan/internal/policy"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CatalogService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewCatalogService(db *gorm.DB, log *zap.Logger) *CatalogService {
	return &CatalogService{db: db, log: log.Named("catalog")}
}

type GroupInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DurationID  *uint  `json:"duration_id,omitempty"`
}

type ElementInput struct {
	Label    string `json:"label"`
	Activity string `json:"activity"`
}

type ServiceInput struct {
	GroupID     uint   `json:"group_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

//
// PRODUCT GROUPS
//

func (s *CatalogService) CreateGroup(ctx context.Context, actor *models.User, in GroupInput) (*models.ProductGroup, error) {
	if err := policy.Require(policy.CanManageCatalog(actor), actor, "create product groups"); err != nil {
		return nil, err
	}
	name := trim(in.Name)
	if name == "" {
		return nil, &errs.ValidationError{Field: "name", Message: "group name is required", Input: in}
	}
	if err := checkLengths(in, maxLen{"name", name, 100}); err != nil {
		return nil, err
	}

	group := models.ProductGroup{Name: name, Description: trim(in.Description), DurationID: in.DurationID}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := uniqueGroupName(tx, name, 0); err != nil {
			return err
		}
		if err := lookupRef(tx, in.DurationID, models.DurationList, "duration"); err != nil {
			return err
		}
		if err := tx.Create(&group).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "product_group", group.ID, "create", "created group "+name)
	})
	err = errs.AsPersistence("create product group", err)
	logResult(s.log, "create product group", err, zap.String("name", name))
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// UpdateGroup rewrites the group row and replaces all of its elements with
// the given ones. ProductServices are untouched.
func (s *CatalogService) UpdateGroup(ctx context.Context, actor *models.User, id uint, in GroupInput, elements []ElementInput) (*models.ProductGroup, error) {
	if err := policy.Require(policy.CanManageCatalog(actor), actor, "edit product groups"); err != nil {
		return nil, err
	}
	name := trim(in.Name)
	if name == "" {
		return nil, &errs.ValidationError{Field: "name", Message: "group name is required", Input: in}
	}
	if err := checkLengths(in, maxLen{"name", name, 100}); err != nil {
		return nil, err
	}
	for i, el := range elements {
		if trim(el.Label) == "" {
			return nil, &errs.ValidationError{Field: fmt.Sprintf("elements[%d].label", i), Message: "label is required", Input: elements}
		}
		if err := checkLengths(elements, maxLen{fmt.Sprintf("elements[%d].label", i), el.Label, 200}); err != nil {
			return nil, err
		}
	}

	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var group models.ProductGroup
		if err := first(tx, &group, "product group", id); err != nil {
			return err
		}
		if err := uniqueGroupName(tx, name, id); err != nil {
			return err
		}
		if err := lookupRef(tx, in.DurationID, models.DurationList, "duration"); err != nil {
			return err
		}

		group.Name = name
		group.Description = trim(in.Description)
		group.DurationID = in.DurationID
		if err := tx.Save(&group).Error; err != nil {
			return err
		}

		var oldIDs []uint
		if err := tx.Model(&models.ProductElement{}).Where("group_id = ?", id).Pluck("id", &oldIDs).Error; err != nil {
			return err
		}
		if err := deleteElements(tx, oldIDs); err != nil {
			return err
		}

		for i, el := range elements {
			row := models.ProductElement{GroupID: id, Label: trim(el.Label), Activity: trim(el.Activity), Order: i}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return database.CreateAuditLog(tx, actor, "product_group", id, "update",
			fmt.Sprintf("updated group %s with %d elements", name, len(elements)))
	})
	err = errs.AsPersistence("update product group", err)
	logResult(s.log, "update product group", err, zap.Uint("group_id", id))
	if err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, id)
}

// DeleteGroup refuses while services or project groups still point at the
// group; otherwise elements go with it.
func (s *CatalogService) DeleteGroup(ctx context.Context, actor *models.User, id uint) error {
	if err := policy.Require(policy.CanManageCatalog(actor), actor, "delete product groups"); err != nil {
		return err
	}

	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var group models.ProductGroup
		if err := first(tx, &group, "product group", id); err != nil {
			return err
		}

		var services int64
		if err := tx.Model(&models.ProductService{}).Where("group_id = ?", id).Count(&services).Error; err != nil {
			return err
		}
		if services > 0 {
			return &errs.HasDependentsError{Entity: "product group", ID: id, Dependents: "products/services", Count: services}
		}
		var used int64
		if err := tx.Model(&models.ProjectGroup{}).Where("product_group_id = ?", id).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return &errs.HasDependentsError{Entity: "product group", ID: id, Dependents: "project groups", Count: used}
		}

		var elementIDs []uint
		if err := tx.Model(&models.ProductElement{}).Where("group_id = ?", id).Pluck("id", &elementIDs).Error; err != nil {
			return err
		}
		if err := deleteElements(tx, elementIDs); err != nil {
			return err
		}
		if err := tx.Where("target_kind = ? AND target_id = ?", models.ExpertiseGroup, id).
			Delete(&models.ConsultantExpertise{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&group).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "product_group", id, "delete", "deleted group "+group.Name)
	})
	err = errs.AsPersistence("delete product group", err)
	logResult(s.log, "delete product group", err, zap.Uint("group_id", id))
	return err
}

func (s *CatalogService) GetGroup(ctx context.Context, id uint) (*models.ProductGroup, error) {
	var group models.ProductGroup
	tx := database.Conn(ctx, s.db).
		Preload("Elements", orderByPosition).
		Preload("Services", func(db *gorm.DB) *gorm.DB { return db.Order("name asc") })
	if err := first(tx, &group, "product group", id); err != nil {
		return nil, errs.AsPersistence("get product group", err)
	}
	return &group, nil
}

func (s *CatalogService) ListGroups(ctx context.Context) ([]models.ProductGroup, error) {
	var groups []models.ProductGroup
	err := database.Conn(ctx, s.db).
		Preload("Elements", orderByPosition).
		Order("name asc").
		Find(&groups).Error
	return groups, errs.AsPersistence("list product groups", err)
}

//
// ELEMENTS (single-row edits)
//

func (s *CatalogService) AddElement(ctx context.Context, actor *models.User, groupID uint, label, activity string) (*models.ProductElement, error) {
	if err := policy.Require(policy.CanManageCatalog(actor), actor, "edit product groups"); err != nil {
		return nil, err
	}
	label = trim(label)
	if label == "" {
		return nil, errs.Validation("label", "label is required")
	}
	if err := checkLengths(label, maxLen{"label", label, 200}); err != nil {
		return nil, err
	}

	var el models.ProductElement
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var group models.ProductGroup
		if err := first(tx, &group, "product group", groupID); err != nil {
			return err
		}
		var next int
		if err := tx.Model(&models.ProductElement{}).
			Where("group_id = ?", groupID).
			Select("COALESCE(MAX(position) + 1, 0)").
			Scan(&next).Error; err != nil {
			return err
		}
		el = models.ProductElement{GroupID: groupID, Label: label, Activity: trim(activity), Order: next}
		return tx.Create(&el).Error
	})
	err = errs.AsPersistence("add product element", err)
	logResult(s.log, "add product element", err, zap.Uint("group_id", groupID))
	if err != nil {
		return nil, err
	}
	return &el, nil
}

func (s *CatalogService) DeleteElement(ctx context.Context, actor *models.User, elementID uint) error {
	if err := policy.Require(policy.CanManageCatalog(actor), actor, "edit product groups"); err != nil {
		return err
	}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var el models.ProductElement
		if err := first(tx, &el, "product element", elementID); err != nil {
			return err
		}
		return deleteElements(tx, []uint{elementID})
	})
	err = errs.AsPersistence("delete product element", err)
	logResult(s.log, "delete product element", err, zap.Uint("element_id", elementID))
	return err
}

// deleteElements drops elements plus the expertise rated against them, and
// detaches project phases that were seeded from them.
func deleteElements(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Model(&models.ProjectPhase{}).
		Where("product_element_id IN ?", ids).
		Update("product_element_id", nil).Error; err != nil {
		return err
	}
	if err := tx.Where("target_kind = ? AND target_id IN ?", models.ExpertiseElement, ids).
		Delete(&models.ConsultantExpertise{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", ids).Delete(&models.ProductElement{}).Error
}

func uniqueGroupName(tx *gorm.DB, name string, exceptID uint) error {
	var count int64
	q := tx.Model(&models.ProductGroup{}).Where("name = ?", name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return &errs.DuplicateNameError{Entity: "product group", Name: name}
	}
	return nil
}

//
// PRODUCTS / SERVICES
//

func (s *CatalogService) CreateService(ctx context.Context, actor *models.User, in ServiceInput) (*models.ProductService, error) {
	if err := policy.Require(policy.CanManageCatalog(actor), actor, "create products"); err != nil {
		return nil, err
	}
	if err := validateService(in); err != nil {
		return nil, err
	}

	svc := models.ProductService{GroupID: in.GroupID, Name: trim(in.Name), Description: trim(in.Description), Type: in.Type}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := mustExist(tx, &models.ProductGroup{}, "product group", &in.GroupID); err != nil {
			return err
		}
		if err := tx.Create(&svc).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "product_service", svc.ID, "create", "created "+svc.Type+" "+svc.Name)
	})
	err = errs.AsPersistence("create product", err)
	logResult(s.log, "create product", err, zap.String("name", svc.Name))
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *CatalogService) UpdateService(ctx context.Context, actor *models.User, id uint, in ServiceInput) (*models.ProductService, error) {
	if err := policy.Require(policy.CanManageCatalog(actor), actor, "edit products"); err != nil {
		return nil, err
	}
	if err := validateService(in); err != nil {
		return nil, err
	}

	var svc models.ProductService
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := first(tx, &svc, "product", id); err != nil {
			return err
		}
		if err := mustExist(tx, &models.ProductGroup{}, "product group", &in.GroupID); err != nil {
			return err
		}
		svc.GroupID = in.GroupID
		svc.Name = trim(in.Name)
		svc.Description = trim(in.Description)
		svc.Type = in.Type
		if err := tx.Save(&svc).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "product_service", id, "update", "updated "+svc.Name)
	})
	err = errs.AsPersistence("update product", err)
	logResult(s.log, "update product", err, zap.Uint("product_id", id))
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// DeleteService unlinks the product from projects and templates first.
func (s *CatalogService) DeleteService(ctx context.Context, actor *models.User, id uint) error {
	if err := policy.Require(policy.CanManageCatalog(actor), actor, "delete products"); err != nil {
		return err
	}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var svc models.ProductService
		if err := first(tx, &svc, "product", id); err != nil {
			return err
		}
		for _, table := range []string{"project_products", "template_products"} {
			if err := tx.Exec("DELETE FROM "+table+" WHERE product_service_id = ?", id).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&svc).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "product_service", id, "delete", "deleted "+svc.Name)
	})
	err = errs.AsPersistence("delete product", err)
	logResult(s.log, "delete product", err, zap.Uint("product_id", id))
	return err
}

// SearchServices matches name or description, case-insensitively.
func (s *CatalogService) SearchServices(ctx context.Context, query string) ([]models.ProductService, error) {
	q := database.Conn(ctx, s.db).Order("name asc")
	if query = strings.ToLower(trim(query)); query != "" {
		like := "%" + query + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	var out []models.ProductService
	err := q.Find(&out).Error
	return out, errs.AsPersistence("search products", err)
}

func validateService(in ServiceInput) error {
	if trim(in.Name) == "" {
		return &errs.ValidationError{Field: "name", Message: "name is required", Input: in}
	}
	if in.GroupID == 0 {
		return &errs.ValidationError{Field: "group_id", Message: "product group is required", Input: in}
	}
	if in.Type != models.ServiceTypeProduct && in.Type != models.ServiceTypeService {
		return &errs.ValidationError{Field: "type", Message: "type must be Product or Service", Input: in}
	}
	return checkLengths(in, maxLen{"name", in.Name, 100})
}

// GroupSpecFromCatalog seeds a project tree: one group per product group,
// one phase per element, each phase carrying the group's default duration.
func (s *CatalogService) GroupSpecFromCatalog(ctx context.Context, groupIDs []uint) ([]GroupSpec, error) {
	tx := database.Conn(ctx, s.db)
	specs := make([]GroupSpec, 0, len(groupIDs))
	for _, id := range groupIDs {
		var group models.ProductGroup
		if err := first(tx.Preload("Elements", orderByPosition), &group, "product group", id); err != nil {
			return nil, errs.AsPersistence("seed from catalog", err)
		}
		spec := GroupSpec{ProductGroupID: group.ID, Phases: make([]PhaseSpec, 0, len(group.Elements))}
		for _, el := range group.Elements {
			elementID := el.ID
			spec.Phases = append(spec.Phases, PhaseSpec{
				Name:             el.Label,
				Description:      el.Activity,
				DurationID:       group.DurationID,
				ProductElementID: &elementID,
			})
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

package services

import (
	"context"
	"errors"
	"fmt"

	"resplan/internal/database"
	"resplan/internal/errs"
	"resplan/internal/models"
	"resplan/internal/policy"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// lookupConsumers lists every column holding a LookupItem id. Deleting an
// item nulls these in the same transaction.
var lookupConsumers = []struct {
	model  any
	column string
}{
	{&models.Client{}, "country_id"},
	{&models.Client{}, "industry_id"},
	{&models.Project{}, "status_id"},
	{&models.Project{}, "industry_id"},
	{&models.Project{}, "profit_center_id"},
	{&models.ProjectPhase{}, "duration_id"},
	{&models.ProductGroup{}, "duration_id"},
}

type LookupService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewLookupService(db *gorm.DB, log *zap.Logger) *LookupService {
	return &LookupService{db: db, log: log.Named("lookups")}
}

// LookupItemInput: ID set means "update this item"; Order nil means
// "use the position in the input".
type LookupItemInput struct {
	ID          *uint  `json:"id,omitempty"`
	Value       string `json:"value"`
	Description string `json:"description"`
	Order       *int   `json:"order,omitempty"`
}

func (s *LookupService) CreateList(ctx context.Context, actor *models.User, name, description string) (*models.LookupList, error) {
	if err := policy.Require(policy.CanManageLookups(actor), actor, "create lookup lists"); err != nil {
		return nil, err
	}
	name = trim(name)
	if name == "" {
		return nil, errs.Validation("name", "list name is required")
	}
	if err := checkLengths(name, maxLen{"name", name, 100}); err != nil {
		return nil, err
	}

	list := models.LookupList{Name: name, Description: trim(description)}
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.LookupList{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return &errs.DuplicateNameError{Entity: "lookup list", Name: name}
		}
		if err := tx.Create(&list).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "lookup_list", list.ID, "create", "created list "+name)
	})
	err = errs.AsPersistence("create lookup list", err)
	logResult(s.log, "create lookup list", err, zap.String("name", name))
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (s *LookupService) ListLists(ctx context.Context) ([]models.LookupList, error) {
	var lists []models.LookupList
	err := database.Conn(ctx, s.db).Order("name asc").Find(&lists).Error
	return lists, errs.AsPersistence("list lookup lists", err)
}

func (s *LookupService) GetList(ctx context.Context, id uint) (*models.LookupList, error) {
	var list models.LookupList
	tx := database.Conn(ctx, s.db).Preload("Items", orderByPosition)
	if err := first(tx, &list, "lookup list", id); err != nil {
		return nil, errs.AsPersistence("get lookup list", err)
	}
	return &list, nil
}

// FindListByName returns NotFoundError for an unknown name.
func (s *LookupService) FindListByName(ctx context.Context, name string) (*models.LookupList, error) {
	var list models.LookupList
	err := database.Conn(ctx, s.db).Preload("Items", orderByPosition).Where("name = ?", name).First(&list).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound("lookup list", name)
	}
	if err != nil {
		return nil, errs.AsPersistence("find lookup list", err)
	}
	return &list, nil
}

// SetItems replaces the ordered item set of a list.
func (s *LookupService) SetItems(ctx context.Context, actor *models.User, listID uint, items []LookupItemInput) ([]models.LookupItem, error) {
	if err := policy.Require(policy.CanManageLookups(actor), actor, "edit lookup lists"); err != nil {
		return nil, err
	}
	for i, in := range items {
		if trim(in.Value) == "" {
			v := errs.Validation(fmt.Sprintf("items[%d].value", i), "value is required")
			v.Input = items
			return nil, v
		}
		if err := checkLengths(items, maxLen{fmt.Sprintf("items[%d].value", i), in.Value, 100}); err != nil {
			return nil, err
		}
	}

	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var list models.LookupList
		if err := first(tx, &list, "lookup list", listID); err != nil {
			return err
		}

		var existing []models.LookupItem
		if err := tx.Where("list_id = ?", listID).Find(&existing).Error; err != nil {
			return err
		}
		byID := make(map[uint]models.LookupItem, len(existing))
		for _, it := range existing {
			byID[it.ID] = it
		}

		keep := make(map[uint]bool, len(items))
		for i, in := range items {
			order := i
			if in.Order != nil {
				order = *in.Order
			}

			if in.ID != nil {
				if item, ok := byID[*in.ID]; ok && !keep[item.ID] {
					item.Value = trim(in.Value)
					item.Description = trim(in.Description)
					item.Order = order
					if err := tx.Save(&item).Error; err != nil {
						return err
					}
					keep[item.ID] = true
					continue
				}
			}

			// unknown or missing id: a new item
			item := models.LookupItem{ListID: listID, Value: trim(in.Value), Description: trim(in.Description), Order: order}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
			keep[item.ID] = true
		}

		var removed []uint
		for _, it := range existing {
			if !keep[it.ID] {
				removed = append(removed, it.ID)
			}
		}
		if err := deleteLookupItems(tx, removed); err != nil {
			return err
		}

		return database.CreateAuditLog(tx, actor, "lookup_list", listID, "update",
			fmt.Sprintf("set %d items, removed %d", len(items), len(removed)))
	})
	err = errs.AsPersistence("set lookup items", err)
	logResult(s.log, "set lookup items", err, zap.Uint("list_id", listID), zap.Int("items", len(items)))
	if err != nil {
		return nil, err
	}
	return s.GetItems(ctx, listID)
}

// GetItems returns the items of a list by ascending order.
func (s *LookupService) GetItems(ctx context.Context, listID uint) ([]models.LookupItem, error) {
	tx := database.Conn(ctx, s.db)
	ok, err := exists(tx, &models.LookupList{}, listID)
	if err != nil {
		return nil, errs.AsPersistence("get lookup items", err)
	}
	if !ok {
		return nil, errs.NotFound("lookup list", listID)
	}

	var items []models.LookupItem
	err = tx.Where("list_id = ?", listID).Scopes(orderByPosition).Find(&items).Error
	return items, errs.AsPersistence("get lookup items", err)
}

func (s *LookupService) GetItem(ctx context.Context, id uint) (*models.LookupItem, error) {
	var item models.LookupItem
	if err := first(database.Conn(ctx, s.db), &item, "lookup item", id); err != nil {
		return nil, errs.AsPersistence("get lookup item", err)
	}
	return &item, nil
}

// FindItemByValue returns (nil, nil) when the list or the value is absent.
func (s *LookupService) FindItemByValue(ctx context.Context, listName, value string) (*models.LookupItem, error) {
	item, err := findItemByValue(database.Conn(ctx, s.db), listName, value)
	return item, errs.AsPersistence("find lookup item", err)
}

// DeleteList removes the list and its items; references to those items are
// set to NULL.
func (s *LookupService) DeleteList(ctx context.Context, actor *models.User, listID uint) error {
	if err := policy.Require(policy.CanManageLookups(actor), actor, "delete lookup lists"); err != nil {
		return err
	}

	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var list models.LookupList
		if err := first(tx, &list, "lookup list", listID); err != nil {
			return err
		}
		var ids []uint
		if err := tx.Model(&models.LookupItem{}).Where("list_id = ?", listID).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if err := deleteLookupItems(tx, ids); err != nil {
			return err
		}
		if err := tx.Delete(&list).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, actor, "lookup_list", listID, "delete", "deleted list "+list.Name)
	})
	err = errs.AsPersistence("delete lookup list", err)
	logResult(s.log, "delete lookup list", err, zap.Uint("list_id", listID))
	return err
}

func deleteLookupItems(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	for _, c := range lookupConsumers {
		if err := tx.Model(c.model).Where(c.column+" IN ?", ids).Update(c.column, nil).Error; err != nil {
			return fmt.Errorf("clear %s references: %w", c.column, err)
		}
	}
	return tx.Where("id IN ?", ids).Delete(&models.LookupItem{}).Error
}

func findItemByValue(tx *gorm.DB, listName, value string) (*models.LookupItem, error) {
	var item models.LookupItem
	err := tx.Joins("JOIN lookup_lists ON lookup_lists.id = lookup_items.list_id").
		Where("lookup_lists.name = ? AND lookup_items.value = ?", listName, value).
		Order("lookup_items.position asc").
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// itemInList loads a LookupItem and checks it belongs to the named list.
func itemInList(tx *gorm.DB, id uint, listName, entity string) (*models.LookupItem, error) {
	var item models.LookupItem
	err := tx.Joins("JOIN lookup_lists ON lookup_lists.id = lookup_items.list_id").
		Where("lookup_items.id = ? AND lookup_lists.name = ?", id, listName).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.NotFound(entity, id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// lookupRef checks an optional reference against its list; nil passes.
func lookupRef(tx *gorm.DB, id *uint, listName, entity string) error {
	if id == nil {
		return nil
	}
	_, err := itemInList(tx, *id, listName, entity)
	return err
}

// lookupValues resolves item ids to display values; nil ids are skipped.
func lookupValues(tx *gorm.DB, ids ...*uint) (map[uint]string, error) {
	var want []uint
	for _, id := range ids {
		if id != nil {
			want = append(want, *id)
		}
	}
	out := make(map[uint]string, len(want))
	if len(want) == 0 {
		return out, nil
	}
	var items []models.LookupItem
	if err := tx.Where("id IN ?", want).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it.Value
	}
	return out, nil
}

func valueOf(values map[uint]string, id *uint) string {
	if id == nil {
		return ""
	}
	return values[*id]
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position asc").Order("id asc")
}

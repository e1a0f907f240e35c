// Package services implements the resource-planning core: lookup lists, the
// product catalog, users/roles/consultants, clients, templates and the
// project composition engine. Every mutating call runs in one transaction.
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"resplan/internal/errs"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Services struct {
	Lookups     *LookupService
	Catalog     *CatalogService
	Identity    *IdentityService
	Consultants *ConsultantService
	Clients     *ClientService
	Templates   *TemplateService
	Projects    *ProjectService
}

func New(db *gorm.DB, log *zap.Logger) *Services {
	return &Services{
		Lookups:     NewLookupService(db, log),
		Catalog:     NewCatalogService(db, log),
		Identity:    NewIdentityService(db, log),
		Consultants: NewConsultantService(db, log),
		Clients:     NewClientService(db, log),
		Templates:   NewTemplateService(db, log),
		Projects:    NewProjectService(db, log),
	}
}

// first loads dest by id, turning gorm.ErrRecordNotFound into NotFoundError.
func first(tx *gorm.DB, dest any, entity string, id uint) error {
	err := tx.First(dest, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.NotFound(entity, id)
	}
	return err
}

func exists(tx *gorm.DB, model any, id uint) (bool, error) {
	var count int64
	err := tx.Model(model).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// mustExist returns NotFoundError when id is set but absent.
func mustExist(tx *gorm.DB, model any, entity string, id *uint) error {
	if id == nil {
		return nil
	}
	ok, err := exists(tx, model, *id)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NotFound(entity, *id)
	}
	return nil
}

func checkDates(start, end *time.Time, field string) error {
	if start != nil && end != nil && end.Before(*start) {
		return errs.Validation(field, "end date must not precede start date")
	}
	return nil
}

// maxLen pairs a field with the size of its column.
type maxLen struct {
	field string
	value string
	max   int
}

// checkLengths rejects trimmed values longer than their column allows.
func checkLengths(input any, rules ...maxLen) error {
	for _, r := range rules {
		if utf8.RuneCountInString(trim(r.value)) > r.max {
			return &errs.ValidationError{
				Field:   r.field,
				Message: fmt.Sprintf("must be at most %d characters", r.max),
				Input:   input,
			}
		}
	}
	return nil
}

func trim(s string) string { return strings.TrimSpace(s) }

// logResult logs expected failures at debug level and faults at error level.
func logResult(log *zap.Logger, op string, err error, fields ...zap.Field) {
	switch {
	case err == nil:
		log.Info(op, fields...)
	case errs.IsExpected(err):
		log.Debug(op+" rejected", append(fields, zap.Error(err))...)
	default:
		log.Error(op+" rolled back", append(fields, zap.Error(err))...)
	}
}

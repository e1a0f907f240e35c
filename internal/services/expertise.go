package services

import (
	"context"
	"errors"

	"resplan/internal/database"
	"resplan/internal/errs"
	"resplan/internal/models"
	"resplan/internal/policy"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	minRating = 1
	maxRating = 5
)

// SetExpertise rates a consultant against a catalog group or element.
// Rating 0 removes the record and returns (nil, nil); 1..5 upserts the
// single record for the pair; anything else is rejected without change.
func (s *ConsultantService) SetExpertise(ctx context.Context, actor *models.User, consultantID uint, target models.ExpertiseTarget, rating int, notes string) (*models.ConsultantExpertise, error) {
	if err := policy.Require(policy.CanManageConsultants(actor), actor, "rate consultants"); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, &errs.ValidationError{Field: "target", Message: "target must be a product group or a product element", Input: target}
	}
	if rating != 0 && (rating < minRating || rating > maxRating) {
		return nil, &errs.ValidationError{Field: "rating", Message: "rating must be between 1 and 5, or 0 to remove", Input: rating}
	}

	var out *models.ConsultantExpertise
	err := database.WithTx(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var c models.Consultant
		if err := first(tx, &c, "consultant", consultantID); err != nil {
			return err
		}
		if err := targetExists(tx, target); err != nil {
			return err
		}

		var existing models.ConsultantExpertise
		err := tx.Where("consultant_id = ? AND target_kind = ? AND target_id = ?", consultantID, target.Kind, target.RefID).
			First(&existing).Error
		found := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if rating == 0 {
			if !found {
				return nil
			}
			return tx.Delete(&existing).Error
		}

		if found {
			existing.Rating = rating
			existing.Notes = trim(notes)
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			out = &existing
			return nil
		}
		row := models.ConsultantExpertise{ConsultantID: consultantID, Target: target, Rating: rating, Notes: trim(notes)}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		out = &row
		return nil
	})
	err = errs.AsPersistence("set expertise", err)
	logResult(s.log, "set expertise", err,
		zap.Uint("consultant_id", consultantID),
		zap.String("target_kind", string(target.Kind)),
		zap.Uint("target_id", target.RefID),
		zap.Int("rating", rating))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func targetExists(tx *gorm.DB, t models.ExpertiseTarget) error {
	if t.Kind == models.ExpertiseGroup {
		return mustExist(tx, &models.ProductGroup{}, "product group", &t.RefID)
	}
	return mustExist(tx, &models.ProductElement{}, "product element", &t.RefID)
}

package purchases

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"household-ledger/internal/apperr"
	"household-ledger/internal/family"
	"household-ledger/internal/models"
)

// Delete removes a purchase and its children. Only the family owner or the
// purchase author may delete; purchases of other families are reported as
// not found. The returned count is the number of purchase rows removed.
func (s *Service) Delete(ctx context.Context, m *family.Membership, purchaseID string) (int64, error) {
	db := s.db.WithContext(ctx)

	var p models.Purchase
	err := db.Select("id", "family_id", "created_by_user_id").Where("id = ?", purchaseID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && p.FamilyID != m.FamilyID) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, apperr.Internal("purchase_delete_failed", err)
	}
	if !m.IsOwner() && p.CreatedByUserID != m.UserID {
		return 0, ErrForbidden
	}

	var removed int64
	err = db.Transaction(func(tx *gorm.DB) error {
		children := []any{&models.PurchaseTag{}, &models.PurchaseItem{}, &models.Installment{}}
		for _, model := range children {
			if err := tx.Where("purchase_id = ?", purchaseID).Delete(model).Error; err != nil {
				return err
			}
		}
		res := tx.Where("id = ?", purchaseID).Delete(&models.Purchase{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, apperr.Internal("purchase_delete_failed", err)
	}
	return removed, nil
}

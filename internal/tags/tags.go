// Package tags owns the per-family tag catalog and its mandatory "Outros"
// fallback tag.
package tags

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"household-ledger/internal/apperr"
	"household-ledger/internal/family"
	"household-ledger/internal/models"
)

var (
	ErrNameRequired        = apperr.Validation("name_required")
	ErrOnlyOwnerCanDelete  = apperr.Forbidden("only_owner_can_delete")
	ErrCannotDeleteBuiltin = apperr.Forbidden("cannot_delete_builtin")
	ErrTagNotFound         = apperr.NotFound("tag_not_found")
	ErrNameTooLong         = apperr.Validation("name_too_long")
	ErrInvalidColor        = apperr.Validation("invalid_color")
)

// Column widths of tags.name and tags.color.
const (
	MaxNameLength  = 80
	MaxColorLength = 16
)

var familyNameKey = []clause.Column{{Name: "family_id"}, {Name: "name_key"}}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// EnsureFallback returns the id of the family's built-in "Outros" tag,
// creating it on first use. db may be a transaction. Concurrent callers
// converge on one row: the loser's insert hits the (family_id, name_key)
// unique index and does nothing, then reads the winner's row.
func EnsureFallback(db *gorm.DB, familyID string) (string, error) {
	id, err := findFallback(db, familyID)
	if err != nil || id != "" {
		return id, err
	}
	color := models.FallbackTagColor
	tag := models.Tag{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		Name:      models.FallbackTagName,
		NameKey:   models.FallbackTagKey,
		Color:     &color,
		IsBuiltin: true,
	}
	err = db.Clauses(clause.OnConflict{Columns: familyNameKey, DoNothing: true}).Create(&tag).Error
	if err != nil {
		return "", err
	}
	id, err = findFallback(db, familyID)
	if err == nil && id == "" {
		err = errors.New("fallback tag missing after insert")
	}
	return id, err
}

func findFallback(db *gorm.DB, familyID string) (string, error) {
	var ids []string
	err := db.Model(&models.Tag{}).
		Where("family_id = ? AND name_key = ?", familyID, models.FallbackTagKey).
		Limit(1).Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return "", err
	}
	return ids[0], nil
}

func (s *Service) EnsureFallback(ctx context.Context, familyID string) (string, error) {
	id, err := EnsureFallback(s.db.WithContext(ctx), familyID)
	if err != nil {
		return "", apperr.Internal("tag_fallback_failed", err)
	}
	return id, nil
}

// ResolveIDs keeps the requested ids that belong to the family, in request
// order and without duplicates. Ids from other families are dropped silently.
// An empty result falls back to the "Outros" tag.
func (s *Service) ResolveIDs(ctx context.Context, familyID string, requested []string) ([]string, error) {
	wanted := uniq(requested)
	if len(wanted) > 0 {
		var found []string
		err := s.db.WithContext(ctx).Model(&models.Tag{}).
			Where("family_id = ? AND id IN ?", familyID, wanted).
			Pluck("id", &found).Error
		if err != nil {
			return nil, apperr.Internal("tag_resolve_failed", err)
		}
		owned := make(map[string]bool, len(found))
		for _, id := range found {
			owned[id] = true
		}
		out := wanted[:0]
		for _, id := range wanted {
			if owned[id] {
				out = append(out, id)
			}
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	id, err := s.EnsureFallback(ctx, familyID)
	if err != nil {
		return nil, err
	}
	return []string{id}, nil
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// List returns the family's tags, "Outros" first and the rest by name.
func (s *Service) List(ctx context.Context, familyID string) ([]models.Tag, error) {
	if _, err := s.EnsureFallback(ctx, familyID); err != nil {
		return nil, err
	}
	out := []models.Tag{}
	err := s.db.WithContext(ctx).
		Where("family_id = ?", familyID).
		Order(clause.Expr{SQL: "CASE WHEN name_key = ? THEN 0 ELSE 1 END, name_key", Vars: []any{models.FallbackTagKey}}).
		Find(&out).Error
	if err != nil {
		return nil, apperr.Internal("tag_list_failed", err)
	}
	return out, nil
}

// Create adds a tag, or renames the existing tag with the same name ignoring
// case. Asking for "outros" returns the fallback tag untouched.
func (s *Service) Create(ctx context.Context, m *family.Membership, name, color string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, ErrNameTooLong
	}
	color = strings.TrimSpace(color)
	if utf8.RuneCountInString(color) > MaxColorLength {
		return nil, ErrInvalidColor
	}
	key := models.TagKey(name)
	db := s.db.WithContext(ctx)

	if key == models.FallbackTagKey {
		if _, err := s.EnsureFallback(ctx, m.FamilyID); err != nil {
			return nil, err
		}
	} else {
		tag := models.Tag{
			ID:              uuid.NewString(),
			FamilyID:        m.FamilyID,
			Name:            name,
			NameKey:         key,
			CreatedByUserID: &m.UserID,
		}
		if color != "" {
			tag.Color = &color
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   familyNameKey,
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).Create(&tag).Error
		if err != nil {
			return nil, apperr.Internal("tag_create_failed", err)
		}
	}

	var out models.Tag
	if err := db.Where("family_id = ? AND name_key = ?", m.FamilyID, key).First(&out).Error; err != nil {
		return nil, apperr.Internal("tag_create_failed", err)
	}
	return &out, nil
}

// Delete removes a tag for the family owner. Purchases left without any tag
// are re-linked to "Outros" in the same transaction. The tag row is locked
// first so concurrent deletes of the same tag serialize and the second one
// sees tag_not_found.
func (s *Service) Delete(ctx context.Context, m *family.Membership, tagID string) error {
	if !m.IsOwner() {
		return ErrOnlyOwnerCanDelete
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND family_id = ?", tagID, m.FamilyID).
			First(&tag).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTagNotFound
		}
		if err != nil {
			return err
		}
		if tag.IsBuiltin {
			return ErrCannotDeleteBuiltin
		}

		fallbackID, err := EnsureFallback(tx, m.FamilyID)
		if err != nil {
			return err
		}

		var orphans []string
		err = tx.Model(&models.PurchaseTag{}).
			Where("tag_id = ?", tagID).
			Where("NOT EXISTS (SELECT 1 FROM purchase_tags x WHERE x.purchase_id = purchase_tags.purchase_id AND x.tag_id <> ?)", tagID).
			Pluck("purchase_id", &orphans).Error
		if err != nil {
			return err
		}
		if len(orphans) > 0 {
			links := make([]models.PurchaseTag, len(orphans))
			for i, pid := range orphans {
				links[i] = models.PurchaseTag{PurchaseID: pid, TagID: fallbackID}
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("tag_id = ?", tagID).Delete(&models.PurchaseTag{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", tagID).Delete(&models.Tag{}).Error
	})

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if err != nil {
		return apperr.Internal("tag_delete_failed", err)
	}
	return nil
}

package family

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"household-ledger/internal/apperr"
	"household-ledger/internal/models"
	"household-ledger/internal/textnorm"
)

// Create registers a family awaiting admin approval, with the caller as its
// active owner.
func (s *Service) Create(ctx context.Context, userID, name, slug string) (*models.Family, error) {
	name = strings.TrimSpace(name)
	if strings.TrimSpace(slug) == "" {
		slug = name
	}
	slug = textnorm.Slug(slug)
	if name == "" || slug == "" {
		return nil, ErrInvalidData
	}

	var dupes int64
	if err := s.db.WithContext(ctx).Model(&models.Family{}).Where("slug = ?", slug).Count(&dupes).Error; err != nil {
		return nil, apperr.Internal("create_family_failed", err)
	}
	if dupes > 0 {
		return nil, ErrSlugInUse
	}

	fam := &models.Family{
		ID:          uuid.NewString(),
		Slug:        slug,
		Name:        name,
		OwnerUserID: userID,
		Status:      models.FamilyStatusPendingAdmin,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(fam).Error; err != nil {
			return err
		}
		return tx.Create(&models.FamilyMember{
			FamilyID:  fam.ID,
			UserID:    userID,
			Role:      models.RoleOwner,
			IsActive:  true,
			CreatedAt: time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return nil, apperr.Internal("create_family_failed", err)
	}
	return fam, nil
}

// Get loads a family by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Family, error) {
	var fam models.Family
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&fam).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal("family_lookup_failed", err)
	}
	return &fam, nil
}

// Cancel deletes a family the caller owns while it still awaits admin approval.
func (s *Service) Cancel(ctx context.Context, userID, familyID string) error {
	fam, err := s.Get(ctx, familyID)
	if err != nil {
		return err
	}
	if fam.OwnerUserID != userID {
		return ErrForbidden
	}
	if fam.Status != models.FamilyStatusPendingAdmin {
		return ErrCannotCancel
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("family_id = ?", familyID).Delete(&models.JoinRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("family_id = ?", familyID).Delete(&models.FamilyMember{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", familyID).Delete(&models.Family{}).Error
	})
	if err != nil {
		return apperr.Internal("cancel_family_failed", err)
	}
	return nil
}

// Decide is the admin gate: a pending family becomes active or rejected.
func (s *Service) Decide(ctx context.Context, slug string, approve bool) (*models.Family, error) {
	var fam models.Family
	err := s.db.WithContext(ctx).Where("slug = ?", textnorm.Slug(slug)).First(&fam).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFamilyNotFound
	}
	if err != nil {
		return nil, apperr.Internal("family_lookup_failed", err)
	}
	if fam.Status != models.FamilyStatusPendingAdmin {
		return nil, ErrNotPending
	}
	fam.Status = models.FamilyStatusRejected
	if approve {
		fam.Status = models.FamilyStatusActive
	}
	err = s.db.WithContext(ctx).Model(&fam).
		Where("status = ?", models.FamilyStatusPendingAdmin).
		Update("status", fam.Status).Error
	if err != nil {
		return nil, apperr.Internal("family_decide_failed", err)
	}
	return &fam, nil
}

// List returns families, optionally restricted to one status.
func (s *Service) List(ctx context.Context, status string) ([]models.Family, error) {
	q := s.db.WithContext(ctx).Order("created_at")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []models.Family
	if err := q.Find(&out).Error; err != nil {
		return nil, apperr.Internal("family_list_failed", err)
	}
	return out, nil
}

// RequestJoin files a pending join request by family id or slug. A second
// request while one is pending is a no-op.
func (s *Service) RequestJoin(ctx context.Context, userID, familyID, slug string) error {
	db := s.db.WithContext(ctx)
	var fam models.Family
	var err error
	switch {
	case strings.TrimSpace(familyID) != "":
		err = db.Where("id = ?", strings.TrimSpace(familyID)).First(&fam).Error
	case strings.TrimSpace(slug) != "":
		err = db.Where("slug = ?", strings.ToLower(strings.TrimSpace(slug))).First(&fam).Error
	default:
		return ErrInvalidData
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrFamilyNotFound
	}
	if err != nil {
		return apperr.Internal("join_request_failed", err)
	}

	var pending int64
	err = db.Model(&models.JoinRequest{}).
		Where("family_id = ? AND requester_user_id = ? AND status = ?", fam.ID, userID, models.JoinStatusPending).
		Count(&pending).Error
	if err != nil {
		return apperr.Internal("join_request_failed", err)
	}
	if pending > 0 {
		return nil
	}
	err = db.Create(&models.JoinRequest{
		ID:              uuid.NewString(),
		FamilyID:        fam.ID,
		RequesterUserID: userID,
		Status:          models.JoinStatusPending,
	}).Error
	if err != nil {
		return apperr.Internal("join_request_failed", err)
	}
	return nil
}

type MyJoinRequest struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"family_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
}

func (s *Service) MyJoinRequests(ctx context.Context, userID string) ([]MyJoinRequest, error) {
	out := []MyJoinRequest{}
	err := s.db.WithContext(ctx).Table("join_requests AS jr").
		Select("jr.id, jr.family_id, jr.status, jr.created_at, f.name, f.slug").
		Joins("JOIN families f ON f.id = jr.family_id").
		Where("jr.requester_user_id = ?", userID).
		Order("jr.created_at DESC").
		Scan(&out).Error
	if err != nil {
		return nil, apperr.Internal("join_requests_failed", err)
	}
	return out, nil
}

func (s *Service) loadJoinRequest(ctx context.Context, id string) (*models.JoinRequest, error) {
	var jr models.JoinRequest
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&jr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Internal("join_request_lookup_failed", err)
	}
	return &jr, nil
}

func (s *Service) CancelJoinRequest(ctx context.Context, userID, id string) error {
	jr, err := s.loadJoinRequest(ctx, id)
	if err != nil {
		return err
	}
	if jr.RequesterUserID != userID {
		return ErrForbidden
	}
	return s.closeJoinRequest(s.db.WithContext(ctx), id, userID, models.JoinStatusCancelled)
}

func (s *Service) closeJoinRequest(db *gorm.DB, id, decidedBy, status string) error {
	now := time.Now().UTC()
	err := db.Model(&models.JoinRequest{}).
		Where("id = ? AND status = ?", id, models.JoinStatusPending).
		Updates(map[string]any{"status": status, "decided_by_user_id": decidedBy, "decided_at": now}).Error
	if err != nil {
		return apperr.Internal("join_request_update_failed", err)
	}
	return nil
}

func (s *Service) requireOwner(ctx context.Context, userID, familyID string) error {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Family{}).
		Where("id = ? AND owner_user_id = ?", familyID, userID).Count(&n).Error
	if err != nil {
		return apperr.Internal("family_lookup_failed", err)
	}
	if n == 0 {
		return ErrNotOwner
	}
	return nil
}

type PendingJoinRequest struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// PendingJoinRequests lists the requests an owner still has to decide.
func (s *Service) PendingJoinRequests(ctx context.Context, userID, familyID string) ([]PendingJoinRequest, error) {
	if err := s.requireOwner(ctx, userID, familyID); err != nil {
		return nil, err
	}
	out := []PendingJoinRequest{}
	err := s.db.WithContext(ctx).Table("join_requests AS jr").
		Select("jr.id, u.username, jr.status, jr.created_at").
		Joins("JOIN users u ON u.id = jr.requester_user_id").
		Where("jr.family_id = ? AND jr.status = ?", familyID, models.JoinStatusPending).
		Order("jr.created_at").
		Scan(&out).Error
	if err != nil {
		return nil, apperr.Internal("join_requests_failed", err)
	}
	return out, nil
}

// DecideJoinRequest approves or rejects a pending request; only the family
// owner may decide. Approval re-activates an old membership or adds a new one.
func (s *Service) DecideJoinRequest(ctx context.Context, userID, id string, approve bool) error {
	jr, err := s.loadJoinRequest(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireOwner(ctx, userID, jr.FamilyID); err != nil {
		return err
	}
	if !approve {
		return s.closeJoinRequest(s.db.WithContext(ctx), id, userID, models.JoinStatusRejected)
	}
	if jr.Status != models.JoinStatusPending {
		return ErrNotPending
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.FamilyMember{}).
			Where("family_id = ? AND user_id = ?", jr.FamilyID, jr.RequesterUserID).
			Update("is_active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			err := tx.Create(&models.FamilyMember{
				FamilyID:  jr.FamilyID,
				UserID:    jr.RequesterUserID,
				Role:      models.RoleMember,
				IsActive:  true,
				CreatedAt: time.Now().UTC(),
			}).Error
			if err != nil {
				return err
			}
		}
		return s.closeJoinRequest(tx, id, userID, models.JoinStatusApproved)
	})
	if err != nil {
		return apperr.Internal("join_request_approve_failed", err)
	}
	return nil
}

type Member struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
}

// Members lists a family's members for another active member.
func (s *Service) Members(ctx context.Context, userID, familyID string, activeOnly bool) ([]Member, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.FamilyMember{}).
		Where("family_id = ? AND user_id = ? AND is_active = ?", familyID, userID, true).Count(&n).Error
	if err != nil {
		return nil, apperr.Internal("members_failed", err)
	}
	if n == 0 {
		return nil, ErrNotMember
	}

	q := s.db.WithContext(ctx).Table("family_members AS fm").
		Select("u.id, u.username, u.display_name, fm.role, fm.is_active").
		Joins("JOIN users u ON u.id = fm.user_id").
		Where("fm.family_id = ?", familyID)
	if activeOnly {
		q = q.Where("fm.is_active = ?", true)
	}
	out := []Member{}
	if err := q.Order("u.display_name, u.username").Scan(&out).Error; err != nil {
		return nil, apperr.Internal("members_failed", err)
	}
	return out, nil
}

// RemoveMember deactivates a membership. Owners cannot remove themselves.
func (s *Service) RemoveMember(ctx context.Context, userID, familyID, memberID string) error {
	if err := s.requireOwner(ctx, userID, familyID); err != nil {
		return err
	}
	if memberID == userID {
		return ErrCannotRemoveSelf
	}
	err := s.db.WithContext(ctx).Model(&models.FamilyMember{}).
		Where("family_id = ? AND user_id = ?", familyID, memberID).
		Update("is_active", false).Error
	if err != nil {
		return apperr.Internal("remove_member_failed", err)
	}
	return nil
}

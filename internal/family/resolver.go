// Package family resolves which family a user works in and runs the
// create/join/approve workflows around family membership.
package family

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"household-ledger/internal/apperr"
	"household-ledger/internal/models"
)

var (
	ErrNoActiveFamily   = apperr.Forbidden("no_active_family")
	ErrNoFamilyAccess   = apperr.Forbidden("no_family_access")
	ErrInvalidData      = apperr.Validation("invalid_data")
	ErrSlugInUse        = apperr.Conflict("slug_in_use")
	ErrFamilyNotFound   = apperr.NotFound("family_not_found")
	ErrNotFound         = apperr.NotFound("not_found")
	ErrForbidden        = apperr.Forbidden("forbidden")
	ErrNotOwner         = apperr.Forbidden("not_owner")
	ErrNotMember        = apperr.Forbidden("not_member")
	ErrCannotCancel     = apperr.Validation("cannot_cancel")
	ErrCannotRemoveSelf = apperr.Validation("cannot_remove_self")
	ErrNotPending       = apperr.Validation("not_pending")
)

// Membership is the caller's single active family context.
type Membership struct {
	FamilyID string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	UserID   string `json:"-"`
}

func (m *Membership) IsOwner() bool { return m.Role == models.RoleOwner }

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

type membershipRow struct {
	FamilyID    string
	Slug        string
	Name        string
	OwnerUserID string
	Role        string
}

// ResolveActive picks the family a user operates in: among active memberships
// of active families, the family the user owns wins, then the earliest
// membership, then the lowest family id. A nil result means the user has no
// usable family yet, which is a normal onboarding state.
func (s *Service) ResolveActive(ctx context.Context, userID string) (*Membership, error) {
	var rows []membershipRow
	err := s.db.WithContext(ctx).
		Table("family_members AS fm").
		Select("fm.family_id, f.slug, f.name, f.owner_user_id, fm.role").
		Joins("JOIN families f ON f.id = fm.family_id").
		Where("fm.user_id = ? AND fm.is_active = ? AND f.status = ?", userID, true, models.FamilyStatusActive).
		Order("CASE WHEN f.owner_user_id = fm.user_id THEN 0 ELSE 1 END, fm.created_at, fm.family_id").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal("family_resolve_failed", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	role := r.Role
	if r.OwnerUserID == userID {
		role = models.RoleOwner
	} else if role == models.RoleOwner {
		role = models.RoleMember
	}
	return &Membership{FamilyID: r.FamilyID, Slug: r.Slug, Name: r.Name, Role: role, UserID: userID}, nil
}

// RequireActive is ResolveActive for handlers that cannot proceed without a
// family; missing is reported with the given error.
func (s *Service) RequireActive(ctx context.Context, userID string, missing error) (*Membership, error) {
	m, err := s.ResolveActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, missing
	}
	return m, nil
}

type FamilyRef struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// Access describes where a user stands in onboarding.
type Access struct {
	Allowed bool       `json:"allowed"`
	Waiting string     `json:"waiting,omitempty"`
	Family  *FamilyRef `json:"family,omitempty"`
}

const (
	WaitingAdminApproval = "admin_approval"
	WaitingOwnerApproval = "owner_approval"
	WaitingNoFamily      = "no_family"
)

func (s *Service) AccessState(ctx context.Context, userID string) (Access, error) {
	m, err := s.ResolveActive(ctx, userID)
	if err != nil {
		return Access{}, err
	}
	if m != nil {
		return Access{Allowed: true, Family: &FamilyRef{ID: m.FamilyID, Slug: m.Slug, Name: m.Name, Role: m.Role}}, nil
	}

	db := s.db.WithContext(ctx)
	var pending models.Family
	err = db.Where("owner_user_id = ? AND status = ?", userID, models.FamilyStatusPendingAdmin).
		Order("created_at").First(&pending).Error
	switch {
	case err == nil:
		return Access{Waiting: WaitingAdminApproval, Family: &FamilyRef{ID: pending.ID, Slug: pending.Slug, Name: pending.Name, Role: models.RoleOwner}}, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return Access{}, apperr.Internal("access_state_failed", err)
	}

	var jr []FamilyRef
	err = db.Table("join_requests AS jr").
		Select("f.id, f.slug, f.name").
		Joins("JOIN families f ON f.id = jr.family_id").
		Where("jr.requester_user_id = ? AND jr.status = ?", userID, models.JoinStatusPending).
		Order("jr.created_at").Limit(1).Scan(&jr).Error
	if err != nil {
		return Access{}, apperr.Internal("access_state_failed", err)
	}
	if len(jr) > 0 {
		return Access{Waiting: WaitingOwnerApproval, Family: &jr[0]}, nil
	}
	return Access{Waiting: WaitingNoFamily}, nil
}

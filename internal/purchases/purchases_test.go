package purchases

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"household-ledger/internal/family"
	"household-ledger/internal/models"
	"household-ledger/internal/tags"
	"household-ledger/internal/testdb"
)

var fixedNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

type env struct {
	db   *gorm.DB
	svc  *Service
	tags *tags.Service
	fx   *testdb.Fixture
	fam  models.Family

	// ana owns the family; bia and caio are plain members.
	ana, bia, caio *family.Membership
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testdb.Open(t)
	fx := testdb.NewFixture(t, db)
	ana := fx.User("ana")
	bia := fx.User("bia")
	caio := fx.User("caio")
	fam := fx.Family("casa", models.FamilyStatusActive, ana)
	fx.Member(fam, bia, models.RoleMember, true)
	fx.Member(fam, caio, models.RoleMember, true)

	tagSvc := tags.NewService(db)
	svc := NewService(db, tagSvc)
	svc.now = func() time.Time { return fixedNow }

	member := func(u models.User, role string) *family.Membership {
		return &family.Membership{FamilyID: fam.ID, Slug: fam.Slug, Name: fam.Name, Role: role, UserID: u.ID}
	}
	return &env{
		db:   db,
		svc:  svc,
		tags: tagSvc,
		fx:   fx,
		fam:  fam,
		ana:  member(ana, models.RoleOwner),
		bia:  member(bia, models.RoleMember),
		caio: member(caio, models.RoleMember),
	}
}

func (e *env) create(t *testing.T, m *family.Membership, in Input) string {
	t.Helper()
	id, err := e.svc.Create(context.Background(), m, in)
	require.NoError(t, err)
	return id
}

func (e *env) purchase(t *testing.T, id string) models.Purchase {
	t.Helper()
	var p models.Purchase
	require.NoError(t, e.db.First(&p, "id = ?", id).Error)
	return p
}

func (e *env) installments(t *testing.T, id string) []models.Installment {
	t.Helper()
	var out []models.Installment
	require.NoError(t, e.db.Where("purchase_id = ?", id).Order("seq").Find(&out).Error)
	return out
}

func (e *env) count(t *testing.T, model any, purchaseID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Where("purchase_id = ?", purchaseID).Count(&n).Error)
	return n
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func fixed(d decimal.Decimal) string { return d.StringFixed(2) }

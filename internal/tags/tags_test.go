package tags

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"household-ledger/internal/family"
	"household-ledger/internal/models"
	"household-ledger/internal/testdb"
)

type env struct {
	db     *gorm.DB
	svc    *Service
	fx     *testdb.Fixture
	fam    models.Family
	owner  *family.Membership
	member *family.Membership
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testdb.Open(t)
	fx := testdb.NewFixture(t, db)
	ana := fx.User("ana")
	bia := fx.User("bia")
	fam := fx.Family("casa", models.FamilyStatusActive, ana)
	fx.Member(fam, bia, models.RoleMember, true)
	return &env{
		db:     db,
		svc:    NewService(db),
		fx:     fx,
		fam:    fam,
		owner:  &family.Membership{FamilyID: fam.ID, UserID: ana.ID, Role: models.RoleOwner},
		member: &family.Membership{FamilyID: fam.ID, UserID: bia.ID, Role: models.RoleMember},
	}
}

func (e *env) link(t *testing.T, purchaseID string, tagIDs ...string) {
	t.Helper()
	for _, id := range tagIDs {
		require.NoError(t, e.db.Create(&models.PurchaseTag{PurchaseID: purchaseID, TagID: id}).Error)
	}
}

func (e *env) linksOf(t *testing.T, purchaseID string) []string {
	t.Helper()
	var ids []string
	require.NoError(t, e.db.Model(&models.PurchaseTag{}).Where("purchase_id = ?", purchaseID).Order("tag_id").Pluck("tag_id", &ids).Error)
	return ids
}

func TestEnsureFallbackIdempotent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.svc.EnsureFallback(ctx, e.fam.ID)
	require.NoError(t, err)
	second, err := e.svc.EnsureFallback(ctx, e.fam.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var tag models.Tag
	require.NoError(t, e.db.First(&tag, "id = ?", first).Error)
	assert.Equal(t, "Outros", tag.Name)
	assert.True(t, tag.IsBuiltin)
	require.NotNil(t, tag.Color)
	assert.Equal(t, "#6B7280", *tag.Color)
}

func TestEnsureFallbackConcurrent(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = e.svc.EnsureFallback(ctx, e.fam.ID)
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var n int64
	require.NoError(t, e.db.Model(&models.Tag{}).Where("family_id = ? AND name_key = ?", e.fam.ID, "outros").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

// A concurrent request inserts "Outros" after this caller's lookup found
// nothing; the conflicting insert must yield to the existing row.
func TestEnsureFallbackLosesInsertRace(t *testing.T) {
	e := setup(t)
	winner := uuid.NewString()
	raced := false
	err := e.db.Callback().Create().Before("gorm:begin_transaction").Register("test:race_fallback", func(tx *gorm.DB) {
		if raced || tx.Statement.Table != "tags" {
			return
		}
		raced = true
		err := e.db.Exec(
			"INSERT INTO tags (id, family_id, name_key, name, color, is_builtin, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			winner, e.fam.ID, models.FallbackTagKey, models.FallbackTagName, models.FallbackTagColor, true, time.Now().UTC(),
		).Error
		if err != nil {
			tx.AddError(err)
		}
	})
	require.NoError(t, err)

	id, err := e.svc.EnsureFallback(context.Background(), e.fam.ID)
	require.NoError(t, err)
	assert.True(t, raced)
	assert.Equal(t, winner, id)

	var n int64
	require.NoError(t, e.db.Model(&models.Tag{}).Where("family_id = ? AND name_key = ?", e.fam.ID, models.FallbackTagKey).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestFallbackIsPerFamily(t *testing.T) {
	e := setup(t)
	other := e.fx.Family("outra", models.FamilyStatusActive, e.fx.User("caio"))

	a, err := e.svc.EnsureFallback(context.Background(), e.fam.ID)
	require.NoError(t, err)
	b, err := e.svc.EnsureFallback(context.Background(), other.ID)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestResolveIDs(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	mercado := e.fx.Tag(e.fam, "Mercado")
	casa := e.fx.Tag(e.fam, "Casa")
	foreign := e.fx.Tag(e.fx.Family("outra", models.FamilyStatusActive, e.fx.User("caio")), "Alheia")

	got, err := e.svc.ResolveIDs(ctx, e.fam.ID, []string{casa.ID, " ", foreign.ID, mercado.ID, casa.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{casa.ID, mercado.ID}, got)

	fallback, err := e.svc.EnsureFallback(ctx, e.fam.ID)
	require.NoError(t, err)
	got, err = e.svc.ResolveIDs(ctx, e.fam.ID, []string{foreign.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{fallback}, got)

	got, err = e.svc.ResolveIDs(ctx, e.fam.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{fallback}, got)
}

func TestListOrdersFallbackFirst(t *testing.T) {
	e := setup(t)
	e.fx.Tag(e.fam, "zebra")
	e.fx.Tag(e.fam, "Academia")

	list, err := e.svc.List(context.Background(), e.fam.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Outros", list[0].Name)
	assert.Equal(t, "Academia", list[1].Name)
	assert.Equal(t, "zebra", list[2].Name)
}

func TestCreate(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, e.member, "  ", "")
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = e.svc.Create(ctx, e.member, strings.Repeat("á", MaxNameLength+1), "")
	assert.ErrorIs(t, err, ErrNameTooLong)
	_, err = e.svc.Create(ctx, e.member, "Casa", strings.Repeat("f", MaxColorLength+1))
	assert.ErrorIs(t, err, ErrInvalidColor)

	long, err := e.svc.Create(ctx, e.member, strings.Repeat("á", MaxNameLength), "")
	require.NoError(t, err)
	assert.Equal(t, MaxNameLength, len([]rune(long.Name)))

	tag, err := e.svc.Create(ctx, e.member, "Farmácia", "#ff0000")
	require.NoError(t, err)
	assert.Equal(t, "Farmácia", tag.Name)
	require.NotNil(t, tag.Color)

	renamed, err := e.svc.Create(ctx, e.member, "FARMÁCIA", "")
	require.NoError(t, err)
	assert.Equal(t, tag.ID, renamed.ID)
	assert.Equal(t, "FARMÁCIA", renamed.Name)
	assert.Equal(t, "#ff0000", *renamed.Color)

	outros, err := e.svc.Create(ctx, e.member, "OUTROS", "#000000")
	require.NoError(t, err)
	assert.True(t, outros.IsBuiltin)
	assert.Equal(t, "Outros", outros.Name)
}

func TestDeleteRelinksOrphans(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	doomed := e.fx.Tag(e.fam, "Viagem")
	kept := e.fx.Tag(e.fam, "Lazer")

	onlyDoomed := uuid.NewString()
	both := uuid.NewString()
	e.link(t, onlyDoomed, doomed.ID)
	e.link(t, both, doomed.ID, kept.ID)

	require.NoError(t, e.svc.Delete(ctx, e.owner, doomed.ID))

	fallback, err := e.svc.EnsureFallback(ctx, e.fam.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{fallback}, e.linksOf(t, onlyDoomed))
	assert.Equal(t, []string{kept.ID}, e.linksOf(t, both))

	var n int64
	require.NoError(t, e.db.Model(&models.Tag{}).Where("id = ?", doomed.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestDeleteGuards(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tag := e.fx.Tag(e.fam, "Viagem")

	assert.ErrorIs(t, e.svc.Delete(ctx, e.member, tag.ID), ErrOnlyOwnerCanDelete)
	assert.ErrorIs(t, e.svc.Delete(ctx, e.owner, uuid.NewString()), ErrTagNotFound)

	fallback, err := e.svc.EnsureFallback(ctx, e.fam.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, e.svc.Delete(ctx, e.owner, fallback), ErrCannotDeleteBuiltin)

	foreign := e.fx.Tag(e.fx.Family("outra", models.FamilyStatusActive, e.fx.User("caio")), "Alheia")
	assert.ErrorIs(t, e.svc.Delete(ctx, e.owner, foreign.ID), ErrTagNotFound)

	require.NoError(t, e.svc.Delete(ctx, e.owner, tag.ID))
	assert.ErrorIs(t, e.svc.Delete(ctx, e.owner, tag.ID), ErrTagNotFound)
}

package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"household-ledger/internal/config"
	"household-ledger/internal/models"
	"household-ledger/internal/testdb"
)

const testSecret = "test-secret"

type harness struct {
	t   *testing.T
	r   *gin.Engine
	db  *gorm.DB
	fx  *testdb.Fixture
	fam models.Family

	ana, bia, caio models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testdb.Open(t)
	fx := testdb.NewFixture(t, db)

	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{
		JWTSecret:     testSecret,
		AllowOrigins:  "*",
		LogLevel:      "error",
		LogFormat:     "text",
		ReqTimeoutSec: 5,
		MaxUploadMB:   1,
	}

	h := &harness{t: t, r: NewServer(cfg, db, log), db: db, fx: fx}
	h.ana = fx.User("ana")
	h.bia = fx.User("bia")
	h.caio = fx.User("caio")
	h.fam = fx.Family("casa", models.FamilyStatusActive, h.ana)
	fx.Member(h.fam, h.bia, models.RoleMember, true)
	fx.Member(h.fam, h.caio, models.RoleMember, true)
	return h
}

func token(t *testing.T, u models.User) string {
	t.Helper()
	claims := Claims{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (h *harness) do(method, path string, as *models.User, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+token(h.t, *as))
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, code, body["error"])
	assert.Equal(t, code, body["code"])
	assert.NotEmpty(t, body["request_id"])
}

func (h *harness) createPurchase(as *models.User, payload map[string]any) string {
	h.t.Helper()
	w := h.do(http.MethodPost, "/api/purchases", as, payload)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	body := decode(h.t, w)
	assert.Equal(h.t, true, body["ok"])
	return body["purchase"].(map[string]any)["id"].(string)
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAuthentication(t *testing.T) {
	h := newHarness(t)

	assertError(t, h.do(http.MethodGet, "/api/me", nil, nil), http.StatusUnauthorized, "unauthenticated")

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	assertError(t, w, http.StatusUnauthorized, "invalid_session")
	assert.Equal(t, "req-123", decode(t, w)["request_id"])

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: token(t, h.ana)})
	w = httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	access := decode(t, w)["access"].(map[string]any)
	assert.Equal(t, true, access["allowed"])
}

func TestMeMirrorsNewUser(t *testing.T) {
	h := newHarness(t)
	newcomer := models.User{ID: "c0ffee00-0000-4000-8000-000000000001", Username: "dora", DisplayName: "Dora"}

	w := h.do(http.MethodGet, "/api/me", &newcomer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "no_family", body["access"].(map[string]any)["waiting"])

	var stored models.User
	require.NoError(t, h.db.First(&stored, "id = ?", newcomer.ID).Error)
	assert.Equal(t, "Dora", stored.DisplayName)

	assertError(t, h.do(http.MethodPost, "/api/purchases", &newcomer, map[string]any{"total": 10}), http.StatusForbidden, "no_active_family")
	assertError(t, h.do(http.MethodDelete, "/api/purchases/x", &newcomer, nil), http.StatusForbidden, "no_family_access")
	assertError(t, h.do(http.MethodGet, "/api/export.csv", &newcomer, nil), http.StatusForbidden, "no_family_access")

	w = h.do(http.MethodGet, "/api/families/mine", &newcomer, nil)
	assert.Equal(t, "null", w.Body.String())
}

func TestCreateAndListPurchases(t *testing.T) {
	h := newHarness(t)
	mercado := h.fx.Tag(h.fam, "Mercado")

	id := h.createPurchase(&h.bia, map[string]any{
		"estabelecimento":    "Mercado Central",
		"emissao":            "2025-01-10T12:00:00Z",
		"mtp":                "Cartão de Crédito",
		"discount":           "10,00",
		"total":              "89.99",
		"pagamento_tipo":     "parcelado",
		"pagamento_parcelas": 3,
		"items": []map[string]any{
			{"name": "Arroz", "qty": 2, "total": "60,00"},
			{"name": "Feijão", "total": 40},
		},
		"tags": []string{mercado.ID},
	})

	w := h.do(http.MethodGet, "/api/purchases?user=all&month=2025-02&view=parcelas", &h.ana, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decode(t, w)["purchases"].([]any)
	require.Len(t, list, 1)
	row := list[0].(map[string]any)
	assert.Equal(t, id, row["id"])
	assert.Equal(t, id+"#2", row["row_key"])
	assert.Equal(t, "bia", row["createdBy"])
	assert.Equal(t, h.bia.ID, row["created_by_user_id"])
	assert.Equal(t, "Mercado Central", row["estabelecimento"])
	assert.Equal(t, "credito", row["mtp"])
	assert.Equal(t, 90.0, row["total"])
	assert.Equal(t, 30.0, row["total_month"])
	assert.Equal(t, 10.0, row["discount"])
	assert.Equal(t, 2.0, row["installment_idx"])
	assert.Equal(t, 3.0, row["installment_count"])
	assert.Equal(t, map[string]any{"tipo": "parcelado", "parcelas": 3.0}, row["pagamento"])
	assert.Len(t, row["items"], 2)
	tagList := row["tags"].([]any)
	require.Len(t, tagList, 1)
	assert.Equal(t, "Mercado", tagList[0].(map[string]any)["name"])

	w = h.do(http.MethodGet, "/api/purchases?month=2025-02", &h.ana, nil)
	assert.Empty(t, decode(t, w)["purchases"])

	w = h.do(http.MethodGet, "/api/purchases?users[]="+h.bia.ID+"&tags[]="+mercado.ID+"&view=compras&month=2025-01", &h.ana, nil)
	assert.Len(t, decode(t, w)["purchases"], 3)
}

func TestCreatePurchaseValidation(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/api/purchases", &h.ana, map[string]any{"items": "nope"})
	assertError(t, w, http.StatusBadRequest, "invalid_payload")
	assert.NotEmpty(t, decode(t, w)["details"])

	assertError(t, h.do(http.MethodPost, "/api/purchases", &h.ana, "{not json"), http.StatusBadRequest, "invalid_payload")
	assertError(t, h.do(http.MethodPost, "/api/purchases", &h.ana, map[string]any{"total": "abc"}), http.StatusBadRequest, "invalid_total")

	id := h.createPurchase(&h.ana, map[string]any{"total": 25, "pagamento_tipo": "parcelado", "pagamento_parcelas": 1})
	var p models.Purchase
	require.NoError(t, h.db.First(&p, "id = ?", id).Error)
	assert.Equal(t, models.PaymentSingle, p.PaymentType)
	assert.Equal(t, 1, p.InstallmentCount)

	assertError(t, h.do(http.MethodGet, "/api/purchases?month=2025-13", &h.ana, nil), http.StatusBadRequest, "invalid_month")
	assertError(t, h.do(http.MethodPost, "/api/purchases", &h.ana, map[string]any{"total": 10, "discount": -1}), http.StatusBadRequest, "invalid_discount")
}

func TestCreatePurchaseBoundsInstallments(t *testing.T) {
	h := newHarness(t)
	huge := map[string]any{"total": 10, "pagamento_tipo": "parcelado", "pagamento_parcelas": 1000000000}

	w := h.do(http.MethodPost, "/api/purchases", &h.ana, huge)
	assertError(t, w, http.StatusBadRequest, "invalid_payload")
	assert.NotEmpty(t, decode(t, w)["details"])

	huge["pagamento_parcelas"] = "1000000000"
	assertError(t, h.do(http.MethodPost, "/api/purchases", &h.ana, huge), http.StatusBadRequest, "invalid_installments")

	var n int64
	require.NoError(t, h.db.Model(&models.Installment{}).Count(&n).Error)
	assert.Zero(t, n)

	id := h.createPurchase(&h.ana, map[string]any{"total": 120, "pagamento_tipo": "parcelado", "pagamento_parcelas": 120})
	require.NoError(t, h.db.Model(&models.Installment{}).Where("purchase_id = ?", id).Count(&n).Error)
	assert.EqualValues(t, 120, n)
}

func TestRequestBodyLimit(t *testing.T) {
	h := newHarness(t)
	body := `{"estabelecimento":"` + strings.Repeat("a", 2<<20) + `","total":10}`
	assertError(t, h.do(http.MethodPost, "/api/purchases", &h.ana, body), http.StatusRequestEntityTooLarge, "payload_too_large")
}

func TestDeletePurchase(t *testing.T) {
	h := newHarness(t)
	id := h.createPurchase(&h.bia, map[string]any{"total": 10})

	assertError(t, h.do(http.MethodDelete, "/api/purchases/"+id, &h.caio, nil), http.StatusForbidden, "forbidden")
	assertError(t, h.do(http.MethodDelete, "/api/purchases/missing", &h.ana, nil), http.StatusNotFound, "not_found")

	w := h.do(http.MethodDelete, "/api/purchases/"+id, &h.ana, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"ok":true,"removed":1}`, w.Body.String())
}

func TestTagEndpoints(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodGet, "/api/tags", &h.bia, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Outros"`)

	assertError(t, h.do(http.MethodPost, "/api/tags", &h.bia, map[string]any{"name": " "}), http.StatusBadRequest, "name_required")
	assertError(t, h.do(http.MethodPost, "/api/tags", &h.bia, map[string]any{"name": strings.Repeat("x", 81)}), http.StatusBadRequest, "name_too_long")

	w = h.do(http.MethodPost, "/api/tags", &h.bia, map[string]any{"name": "Lazer", "color": "#00ff00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tagID := decode(t, w)["id"].(string)

	assertError(t, h.do(http.MethodDelete, "/api/tags/"+tagID, &h.bia, nil), http.StatusForbidden, "only_owner_can_delete")
	w = h.do(http.MethodDelete, "/api/tags/"+tagID, &h.ana, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assertError(t, h.do(http.MethodDelete, "/api/tags/"+tagID, &h.ana, nil), http.StatusNotFound, "tag_not_found")
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	h.createPurchase(&h.ana, map[string]any{"emissao": "2025-01-05", "total": "12,5", "estabelecimento": "Feira"})

	w := h.do(http.MethodGet, "/api/export.csv?month=2025-01", &h.ana, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `attachment; filename="export-2025-01.csv"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv"))
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(w.Body.String(), "\ufeff")), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], ";1/1;12,50"), lines[1])
	assert.Contains(t, lines[1], ";ana;Feira;Outros;;")

	w = h.do(http.MethodGet, "/api/export.xlsx", &h.ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="export-todos.xlsx"`, w.Header().Get("Content-Disposition"))
}

func TestInsights(t *testing.T) {
	h := newHarness(t)
	h.createPurchase(&h.bia, map[string]any{"emissao": "2025-01-05", "total": 30, "mtp": "pix"})

	w := h.do(http.MethodGet, "/api/insights?month=2025-01", &h.ana, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "2025-01", body["month"])
	assert.Equal(t, 30.0, body["spent"])

	assertError(t, h.do(http.MethodGet, "/api/insights?month=janeiro", &h.ana, nil), http.StatusBadRequest, "invalid_month")
}

func TestFamilyOnboarding(t *testing.T) {
	h := newHarness(t)
	dora := h.fx.User("dora")

	w := h.do(http.MethodPost, "/api/families", &dora, map[string]any{"name": "Família Dora"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "familia-dora", decode(t, w)["slug"])

	eva := h.fx.User("eva")
	w = h.do(http.MethodPost, "/api/join-requests", &eva, map[string]any{"family_slug": "casa"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodGet, "/api/families/"+h.fam.ID+"/join-requests", &h.ana, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	require.Len(t, pending, 1)

	assertError(t, h.do(http.MethodGet, "/api/families/"+h.fam.ID+"/join-requests", &h.bia, nil), http.StatusForbidden, "not_owner")

	w = h.do(http.MethodPost, "/api/join-requests/"+pending[0]["id"].(string)+"/approve", &h.ana, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodGet, "/api/families/mine", &eva, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, h.fam.ID, decode(t, w)["id"])
}

package purchases

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"household-ledger/internal/apperr"
	"household-ledger/internal/family"
	"household-ledger/internal/models"
	"household-ledger/internal/money"
)

// View modes. ViewPurchases dates rows by issue date; anything else dates
// them by installment due date.
const (
	ViewInstallments = "parcelas"
	ViewPurchases    = "compras"
)

const (
	UserMe   = "me"
	UserAll  = "all"
	MonthAll = "all"
)

// Filter narrows a ledger listing. All set dimensions are AND-combined.
type Filter struct {
	View string
	// Month is "YYYY-MM" in UTC, "all" or empty.
	Month string
	// Users wins over User when non-empty.
	Users []string
	// User is "me" (default), "all" or a user id.
	User string
	// TagIDs wins over TagName when non-empty.
	TagIDs        []string
	TagName       string
	PaymentMethod string
}

type Item struct {
	Name  string          `json:"name"`
	Qty   decimal.Decimal `json:"qty"`
	Total decimal.Decimal `json:"total"`
}

type TagRef struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Color *string `json:"color"`
}

type Payment struct {
	Type         string `json:"tipo"`
	Installments int    `json:"parcelas"`
}

// Row is one purchase x installment pair.
type Row struct {
	ID               string          `json:"id"`
	RowKey           string          `json:"row_key"`
	CreatedBy        string          `json:"createdBy"`
	CreatedByUserID  string          `json:"created_by_user_id"`
	Establishment    *string         `json:"estabelecimento"`
	Date             time.Time       `json:"emissao"`
	DueDate          time.Time       `json:"vencimento"`
	IssuedAt         time.Time       `json:"-"`
	PaymentMethod    string          `json:"mtp"`
	Discount         decimal.Decimal `json:"discount"`
	Total            decimal.Decimal `json:"total"`
	TotalMonth       decimal.Decimal `json:"total_month"`
	InstallmentIdx   int             `json:"installment_idx"`
	InstallmentCount int             `json:"installment_count"`
	Payment          Payment         `json:"pagamento"`
	Items            []Item          `json:"items"`
	Tags             []TagRef        `json:"tags"`
}

type ledgerRow struct {
	ID               string
	CreatedByUserID  string
	Username         string
	Establishment    *string
	IssuedAt         time.Time
	PaymentMethod    *string
	Discount         decimal.Decimal
	Total            decimal.Decimal
	PaymentType      string
	InstallmentCount int
	Seq              int
	DueDate          time.Time
	Amount           decimal.Decimal
}

var noTagFilter = map[string]bool{
	"all":       true,
	"(todas)":   true,
	"todas":     true,
	"undefined": true,
	"null":      true,
}

// List returns the family's ledger rows ordered by the view's date, then
// purchase id, then installment sequence.
func (s *Service) List(ctx context.Context, m *family.Membership, f Filter) ([]Row, error) {
	dateCol := "i.due_date"
	if f.View == ViewPurchases {
		dateCol = "p.issued_at"
	}

	db := s.db.WithContext(ctx)
	q := db.Table("purchases AS p").
		Select("p.id, p.created_by_user_id, COALESCE(u.username, '') AS username, p.establishment, p.issued_at, "+
			"p.payment_method, p.discount, p.total, p.payment_type, p.installment_count, i.seq, i.due_date, i.amount").
		Joins("JOIN installments i ON i.purchase_id = p.id").
		Joins("LEFT JOIN users u ON u.id = p.created_by_user_id").
		Where("p.family_id = ?", m.FamilyID)

	if users := nonBlank(f.Users); len(users) > 0 {
		q = q.Where("p.created_by_user_id IN ?", users)
	} else {
		switch user := strings.TrimSpace(f.User); user {
		case "", UserMe:
			q = q.Where("p.created_by_user_id = ?", m.UserID)
		case UserAll:
		default:
			q = q.Where("p.created_by_user_id = ?", user)
		}
	}

	if ids := nonBlank(f.TagIDs); len(ids) > 0 {
		q = q.Where("EXISTS (SELECT 1 FROM purchase_tags z WHERE z.purchase_id = p.id AND z.tag_id IN ?)", ids)
	} else if name := strings.TrimSpace(f.TagName); name != "" && !noTagFilter[strings.ToLower(name)] {
		q = q.Where("EXISTS (SELECT 1 FROM purchase_tags z JOIN tags tt ON tt.id = z.tag_id "+
			"WHERE z.purchase_id = p.id AND tt.name_key = ?)", models.TagKey(name))
	}

	if method := NormalizeMethod(f.PaymentMethod); !isNoFilter(method) {
		q = q.Where("COALESCE(p.payment_method, '') = ?", method)
	}

	if month := strings.TrimSpace(f.Month); month != "" && month != MonthAll {
		start, end, err := money.MonthWindow(month)
		if err != nil {
			return nil, ErrInvalidMonth
		}
		q = q.Where(dateCol+" >= ? AND "+dateCol+" < ?", start, end)
	}

	var rows []ledgerRow
	if err := q.Order(dateCol + ", p.id, i.seq").Scan(&rows).Error; err != nil {
		return nil, apperr.Internal("purchase_list_failed", err)
	}

	out := make([]Row, len(rows))
	var ids []string
	seen := map[string]bool{}
	for i, r := range rows {
		out[i] = r.toRow(f.View == ViewPurchases)
		if !seen[r.ID] {
			seen[r.ID] = true
			ids = append(ids, r.ID)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := s.itemsOf(db, ids)
	if err != nil {
		return nil, err
	}
	tagsByPurchase, err := s.tagsOf(db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if v, ok := items[out[i].ID]; ok {
			out[i].Items = v
		}
		if v, ok := tagsByPurchase[out[i].ID]; ok {
			out[i].Tags = v
		}
	}
	return out, nil
}

func (r ledgerRow) toRow(byIssue bool) Row {
	date := r.DueDate
	if byIssue {
		date = r.IssuedAt
	}
	method := ""
	if r.PaymentMethod != nil {
		method = *r.PaymentMethod
	}
	return Row{
		ID:               r.ID,
		RowKey:           r.ID + "#" + strconv.Itoa(r.Seq),
		CreatedBy:        r.Username,
		CreatedByUserID:  r.CreatedByUserID,
		Establishment:    r.Establishment,
		Date:             date.UTC(),
		DueDate:          r.DueDate.UTC(),
		IssuedAt:         r.IssuedAt.UTC(),
		PaymentMethod:    method,
		Discount:         r.Discount,
		Total:            r.Total,
		TotalMonth:       r.Amount,
		InstallmentIdx:   r.Seq,
		InstallmentCount: r.InstallmentCount,
		Payment:          Payment{Type: r.PaymentType, Installments: r.InstallmentCount},
		Items:            []Item{},
		Tags:             []TagRef{},
	}
}

func (s *Service) itemsOf(db *gorm.DB, purchaseIDs []string) (map[string][]Item, error) {
	var items []models.PurchaseItem
	if err := db.Where("purchase_id IN ?", purchaseIDs).Order("purchase_id, id").Find(&items).Error; err != nil {
		return nil, apperr.Internal("purchase_list_failed", err)
	}
	out := make(map[string][]Item)
	for _, it := range items {
		out[it.PurchaseID] = append(out[it.PurchaseID], Item{Name: it.Name, Qty: it.Qty, Total: it.Total})
	}
	return out, nil
}

type purchaseTagRow struct {
	PurchaseID string
	ID         string
	Name       string
	Color      *string
}

func (s *Service) tagsOf(db *gorm.DB, purchaseIDs []string) (map[string][]TagRef, error) {
	var rows []purchaseTagRow
	err := db.Table("purchase_tags AS pt").
		Select("pt.purchase_id, t.id, t.name, t.color").
		Joins("JOIN tags t ON t.id = pt.tag_id").
		Where("pt.purchase_id IN ?", purchaseIDs).
		Order("pt.purchase_id, t.name_key, t.id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal("purchase_list_failed", err)
	}
	out := make(map[string][]TagRef)
	seen := make(map[string]bool)
	for _, r := range rows {
		key := r.PurchaseID + "|" + r.ID
		if seen[key] {
			continue
		}
		seen[key] = true
		out[r.PurchaseID] = append(out[r.PurchaseID], TagRef{ID: r.ID, Name: r.Name, Color: r.Color})
	}
	return out, nil
}

func nonBlank(vs []string) []string {
	var out []string
	for _, v := range vs {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Package purchases records purchases with their installment plans and reads
// them back as installment-level ledger rows.
package purchases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"household-ledger/internal/apperr"
	"household-ledger/internal/family"
	"household-ledger/internal/models"
	"household-ledger/internal/money"
	"household-ledger/internal/tags"
)

var (
	ErrInvalidTotal        = apperr.Validation("invalid_total")
	ErrInvalidDiscount     = apperr.Validation("invalid_discount")
	ErrInvalidInstallments = apperr.Validation("invalid_installments")
	ErrInvalidMonth        = apperr.Validation("invalid_month")
	ErrNotFound            = apperr.NotFound("not_found")
	ErrForbidden           = apperr.Forbidden("forbidden")
)

const defaultItemName = "Item"

// MaxInstallments caps an installment plan at ten years of monthly payments.
const MaxInstallments = 120

// totalTolerance is how far a client total may drift from the item sum
// before the server-side value replaces it.
var totalTolerance = decimal.RequireFromString("0.009")

// ItemInput is one receipt line as sent by clients. Qty and Total accept
// numbers or pt-BR strings.
type ItemInput struct {
	Name  string `json:"name"`
	Qty   any    `json:"qty"`
	Total any    `json:"total"`
}

// Input is the create-purchase payload. Money fields accept numbers or
// strings in either decimal convention; malformed amounts read as zero.
type Input struct {
	Establishment    string      `json:"estabelecimento"`
	IssuedAt         string      `json:"emissao"`
	PaymentMethod    string      `json:"mtp"`
	Discount         any         `json:"discount"`
	Total            any         `json:"total"`
	PaymentType      string      `json:"pagamento_tipo"`
	InstallmentCount any         `json:"pagamento_parcelas"`
	Items            []ItemInput `json:"items"`
	TagIDs           []string    `json:"tags"`
}

// Draft is a validated purchase ready to be persisted.
type Draft struct {
	Establishment    *string
	IssuedAt         time.Time
	PaymentMethod    *string
	Discount         decimal.Decimal
	Total            decimal.Decimal
	PaymentType      string
	InstallmentCount int
	Items            []models.PurchaseItem
	TagIDs           []string
}

var issuedAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseIssuedAt(s string, now time.Time) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range issuedAtLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC()
		}
	}
	return now.UTC()
}

// Normalize applies the writer rules to a raw payload without touching the
// database.
//
// When items are present and their sum minus discount is positive, that
// candidate replaces a client total that is off by more than 0.009 or that
// carries sub-cent precision. Itemless purchases keep the client total.
func Normalize(in Input, now time.Time) (Draft, error) {
	d := Draft{
		IssuedAt: parseIssuedAt(in.IssuedAt, now),
		Discount: money.Round2(money.Parse(in.Discount)),
		TagIDs:   in.TagIDs,
	}
	if d.Discount.IsNegative() {
		return Draft{}, ErrInvalidDiscount
	}
	if est := strings.TrimSpace(in.Establishment); est != "" {
		d.Establishment = &est
	}
	if method := NormalizeMethod(in.PaymentMethod); method != "" {
		d.PaymentMethod = &method
	}

	sum := decimal.Zero
	for _, it := range in.Items {
		item := models.PurchaseItem{
			Name:  strings.TrimSpace(it.Name),
			Qty:   money.Parse(it.Qty),
			Total: money.Round2(money.Parse(it.Total)),
		}
		if item.Name == "" {
			item.Name = defaultItemName
		}
		if item.Qty.IsZero() {
			item.Qty = decimal.NewFromInt(1)
		}
		sum = sum.Add(item.Total)
		d.Items = append(d.Items, item)
	}

	total := money.Parse(in.Total)
	if len(d.Items) > 0 {
		candidate := money.Round2(sum.Sub(d.Discount))
		drifted := candidate.Sub(total).Abs().GreaterThan(totalTolerance) || !total.Equal(money.Round2(total))
		if candidate.IsPositive() && drifted {
			total = candidate
		}
	}
	d.Total = money.Round2(total)
	if !d.Total.IsPositive() {
		return Draft{}, ErrInvalidTotal
	}

	d.PaymentType = models.PaymentSingle
	d.InstallmentCount = 1
	if in.PaymentType == models.PaymentInstallments {
		count := money.Parse(in.InstallmentCount)
		if count.GreaterThan(decimal.NewFromInt(MaxInstallments)) {
			return Draft{}, ErrInvalidInstallments
		}
		if count.GreaterThanOrEqual(decimal.NewFromInt(2)) {
			d.PaymentType = models.PaymentInstallments
			d.InstallmentCount = int(count.IntPart())
		}
	}
	return d, nil
}

// Plan returns the installment rows for a purchase: due dates step one
// calendar month from the issue date and amounts add up to the total.
func (d Draft) Plan(purchaseID string) []models.Installment {
	amounts := []decimal.Decimal{d.Total}
	if d.PaymentType == models.PaymentInstallments {
		amounts = money.SplitEvenly(d.Total, d.InstallmentCount)
	}
	out := make([]models.Installment, len(amounts))
	for i, amount := range amounts {
		out[i] = models.Installment{
			PurchaseID: purchaseID,
			Seq:        i + 1,
			DueDate:    money.AddCalendarMonths(d.IssuedAt, i),
			Amount:     amount,
		}
	}
	return out
}

type Service struct {
	db   *gorm.DB
	tags *tags.Service
	now  func() time.Time
}

func NewService(db *gorm.DB, tagSvc *tags.Service) *Service {
	return &Service{db: db, tags: tagSvc, now: time.Now}
}

// Create validates the payload, resolves its tags and writes the purchase,
// tag links, installments and items in one transaction.
func (s *Service) Create(ctx context.Context, m *family.Membership, in Input) (string, error) {
	d, err := Normalize(in, s.now())
	if err != nil {
		return "", err
	}
	tagIDs, err := s.tags.ResolveIDs(ctx, m.FamilyID, d.TagIDs)
	if err != nil {
		return "", err
	}

	p := models.Purchase{
		ID:               uuid.NewString(),
		FamilyID:         m.FamilyID,
		CreatedByUserID:  m.UserID,
		Establishment:    d.Establishment,
		IssuedAt:         d.IssuedAt,
		PaymentMethod:    d.PaymentMethod,
		Discount:         d.Discount,
		Total:            d.Total,
		PaymentType:      d.PaymentType,
		InstallmentCount: d.InstallmentCount,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}

		links := make([]models.PurchaseTag, len(tagIDs))
		for i, id := range tagIDs {
			links[i] = models.PurchaseTag{PurchaseID: p.ID, TagID: id}
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
			return err
		}

		plan := d.Plan(p.ID)
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}

		if len(d.Items) == 0 {
			return nil
		}
		for i := range d.Items {
			d.Items[i].PurchaseID = p.ID
		}
		return tx.Create(&d.Items).Error
	})
	if err != nil {
		return "", apperr.Internal("purchase_create_failed", err)
	}
	return p.ID, nil
}

package purchases

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"household-ledger/internal/family"
	"household-ledger/internal/models"
	"household-ledger/internal/money"
)

const (
	topEstablishments = 5
	methodUnknown     = "nao_informado"
)

type Share struct {
	Key        string          `json:"key"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage float64         `json:"percentage"`
}

type TagShare struct {
	Share
	// Change is the variation against the previous month, in percent.
	Change float64 `json:"change"`
}

type EstablishmentShare struct {
	Establishment string          `json:"establishment"`
	Amount        decimal.Decimal `json:"amount"`
	Purchases     int             `json:"purchases"`
}

type ReviewItem struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
	Title string `json:"title"`
}

// Summary aggregates the family's installments due in one month.
type Summary struct {
	Month             string               `json:"month"`
	Spent             decimal.Decimal      `json:"spent"`
	PreviousSpent     decimal.Decimal      `json:"previous_spent"`
	Installments      int                  `json:"installments"`
	TagBreakdown      []TagShare           `json:"tag_breakdown"`
	TopEstablishments []EstablishmentShare `json:"top_establishments"`
	MethodSpending    []Share              `json:"method_spending"`
	MemberSpending    []Share              `json:"member_spending"`
	ReviewItems       []ReviewItem         `json:"review_items"`
}

// Summarize reports the month's spending by tag, payment method, member and
// establishment for the whole family. An empty month means the current one.
func (s *Service) Summarize(ctx context.Context, m *family.Membership, month string) (*Summary, error) {
	month = strings.TrimSpace(month)
	if month == "" || month == MonthAll {
		month = money.YearMonth(s.now())
	}
	start, _, err := money.MonthWindow(month)
	if err != nil {
		return nil, ErrInvalidMonth
	}
	previous := money.YearMonth(money.AddCalendarMonths(start, -1))

	cur, err := s.List(ctx, m, Filter{View: ViewInstallments, Month: month, User: UserAll})
	if err != nil {
		return nil, err
	}
	prev, err := s.List(ctx, m, Filter{View: ViewInstallments, Month: previous, User: UserAll})
	if err != nil {
		return nil, err
	}
	return summarize(month, cur, prev), nil
}

func summarize(month string, cur, prev []Row) *Summary {
	res := &Summary{
		Month:             month,
		Spent:             decimal.Zero,
		PreviousSpent:     decimal.Zero,
		Installments:      len(cur),
		TagBreakdown:      []TagShare{},
		TopEstablishments: []EstablishmentShare{},
		MethodSpending:    []Share{},
		MemberSpending:    []Share{},
		ReviewItems:       []ReviewItem{},
	}

	tagThis := map[string]decimal.Decimal{}
	tagLast := map[string]decimal.Decimal{}
	methods := map[string]decimal.Decimal{}
	members := map[string]decimal.Decimal{}
	places := map[string]*EstablishmentShare{}
	placeSeen := map[string]bool{}
	untagged := map[string]bool{}
	noMethod := map[string]bool{}

	for _, r := range cur {
		res.Spent = res.Spent.Add(r.TotalMonth)
		addByTag(tagThis, r)

		method := r.PaymentMethod
		if method == "" {
			method = methodUnknown
			noMethod[r.ID] = true
		}
		methods[method] = methods[method].Add(r.TotalMonth)
		members[r.CreatedBy] = members[r.CreatedBy].Add(r.TotalMonth)

		if name := establishment(r); name != "" {
			p, ok := places[name]
			if !ok {
				p = &EstablishmentShare{Establishment: name, Amount: decimal.Zero}
				places[name] = p
			}
			p.Amount = p.Amount.Add(r.TotalMonth)
			if !placeSeen[r.ID] {
				placeSeen[r.ID] = true
				p.Purchases++
			}
		}

		if len(r.Tags) == 1 && r.Tags[0].Name == models.FallbackTagName {
			untagged[r.ID] = true
		}
	}
	for _, r := range prev {
		res.PreviousSpent = res.PreviousSpent.Add(r.TotalMonth)
		addByTag(tagLast, r)
	}

	for tag, amt := range tagThis {
		share := TagShare{Share: Share{Key: tag, Amount: amt, Percentage: percent(amt, res.Spent)}}
		if last := tagLast[tag]; last.IsPositive() {
			share.Change = percent(amt.Sub(last), last)
		}
		res.TagBreakdown = append(res.TagBreakdown, share)
	}
	sort.Slice(res.TagBreakdown, func(i, j int) bool {
		return byAmount(res.TagBreakdown[i].Share, res.TagBreakdown[j].Share)
	})

	res.MethodSpending = shares(methods, res.Spent)
	res.MemberSpending = shares(members, res.Spent)

	for _, p := range places {
		res.TopEstablishments = append(res.TopEstablishments, *p)
	}
	sort.Slice(res.TopEstablishments, func(i, j int) bool {
		a, b := res.TopEstablishments[i], res.TopEstablishments[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Establishment < b.Establishment
	})
	if len(res.TopEstablishments) > topEstablishments {
		res.TopEstablishments = res.TopEstablishments[:topEstablishments]
	}

	if n := len(untagged); n > 0 {
		res.ReviewItems = append(res.ReviewItems, ReviewItem{Type: "untagged", Count: n, Title: "Compras sem categoria"})
	}
	if n := len(noMethod); n > 0 {
		res.ReviewItems = append(res.ReviewItems, ReviewItem{Type: "missing_method", Count: n, Title: "Compras sem forma de pagamento"})
	}
	return res
}

// addByTag spreads an installment over the purchase's tags so the tag
// breakdown still adds up to the month total.
func addByTag(acc map[string]decimal.Decimal, r Row) {
	if len(r.Tags) == 0 {
		acc[models.FallbackTagName] = acc[models.FallbackTagName].Add(r.TotalMonth)
		return
	}
	parts := money.SplitEvenly(r.TotalMonth, len(r.Tags))
	for i, t := range r.Tags {
		acc[t.Name] = acc[t.Name].Add(parts[i])
	}
}

func shares(acc map[string]decimal.Decimal, total decimal.Decimal) []Share {
	out := make([]Share, 0, len(acc))
	for k, amt := range acc {
		out = append(out, Share{Key: k, Amount: amt, Percentage: percent(amt, total)})
	}
	sort.Slice(out, func(i, j int) bool { return byAmount(out[i], out[j]) })
	return out
}

func byAmount(a, b Share) bool {
	if !a.Amount.Equal(b.Amount) {
		return a.Amount.GreaterThan(b.Amount)
	}
	return a.Key < b.Key
}

var hundred = decimal.NewFromInt(100)

func percent(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Mul(hundred).Div(whole).Round(1).InexactFloat64()
}

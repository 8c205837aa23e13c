// Package money holds the cent-exact helpers behind purchase totals and
// installment plans: pt-BR tolerant parsing, rounding and even splitting.
package money

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Parse reads a monetary amount from a JSON number or a string written with
// either pt-BR ("1.234,56") or dot-decimal ("1234.56") conventions.
//
// Anything empty or unparseable yields zero. Callers rely on that leniency to
// accept partially filled client payloads; it is not an error path.
func Parse(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case float64:
		return decimal.NewFromFloat(x)
	case float32:
		return decimal.NewFromFloat32(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case json.Number:
		return parseString(x.String())
	case string:
		return parseString(x)
	default:
		return decimal.Zero
	}
}

func parseString(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	if strings.Contains(s, ",") {
		// comma is the decimal separator; dots can only be thousands
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Round2 rounds half away from zero on the cent boundary.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Cents converts an amount to integer cents after rounding.
func Cents(d decimal.Decimal) int64 {
	return Round2(d).Shift(2).IntPart()
}

func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// SplitEvenly divides total into n installments. The first cents%n entries
// carry one extra cent, so the parts always add back to Round2(total) and no
// two parts differ by more than a cent.
func SplitEvenly(total decimal.Decimal, n int) []decimal.Decimal {
	if n < 1 {
		n = 1
	}
	cents := Cents(total)
	base := cents / int64(n)
	rem := cents % int64(n)
	if rem < 0 {
		base--
		rem += int64(n)
	}
	parts := make([]decimal.Decimal, n)
	for i := range parts {
		c := base
		if int64(i) < rem {
			c++
		}
		parts[i] = FromCents(c)
	}
	return parts
}

// Sum adds amounts.
func Sum(ds []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}

// FormatBR renders an amount with two decimals and a comma separator, the
// format used in ledger exports.
func FormatBR(d decimal.Decimal) string {
	return strings.Replace(Round2(d).StringFixed(2), ".", ",", 1)
}

package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount reads a money value out of a spreadsheet cell. Currency signs,
// spaces and thin-space thousands separators are discarded. A comma followed
// by exactly one or two trailing digits is the decimal separator ("1 234,56");
// any other comma is a thousands separator ("1,234.56"). Unparsable input
// yields zero, not an error — such rows are summary lines, not payments.
func ParseAmount(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	if i := strings.LastIndex(cleaned, ","); i >= 0 {
		trailing := len(cleaned) - i - 1
		if trailing >= 1 && trailing <= 2 {
			cleaned = strings.ReplaceAll(cleaned[:i], ",", "") + "." + cleaned[i+1:]
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AmountCents reads the charged amount in minor units. Cent fields are taken
// as they are; major-unit fields ("19.90") are scaled by 100 and rounded
// half away from zero. Unparseable or missing amounts yield 0.
func AmountCents(root map[string]any) int64 {
	for _, r := range AmountCentsRules {
		if s, ok := r.String(root); ok {
			if d, err := parseDecimal(s); err == nil {
				return d.Round(0).IntPart()
			}
		}
	}
	for _, r := range AmountMajorRules {
		if s, ok := r.String(root); ok {
			if d, err := parseDecimal(s); err == nil {
				return d.Mul(hundred).Round(0).IntPart()
			}
		}
	}
	return 0
}

// parseDecimal accepts "19.90" and the comma decimal form "19,90".
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}

package protect

import (
	"fmt"
	"strings"
	"time"
)

var policyDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
	time.DateOnly,
}

func FormatCurrency(amount float64) string {
	return fmt.Sprintf("%s %.2f", Currency, amount)
}

// FormatCardNumber splits a card number after its six digit prefix.
func FormatCardNumber(n string) string {
	if len(n) > 6 {
		return n[:6] + " " + n[6:]
	}
	return n
}

// FormatPolicyDate renders a backend date as MM/DD/YYYY. Unparseable input
// is returned as is.
func FormatPolicyDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range policyDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("01/02/2006")
		}
	}
	return s
}

func FormatPeriod(start, end string) string {
	return FormatPolicyDate(start) + " - " + FormatPolicyDate(end)
}

func InsuredName(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}

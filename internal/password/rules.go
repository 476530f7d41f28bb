// Package password builds per-client passwords from a prefix and a date.
package password

import (
	"strings"
	"time"

	"github.com/jmehdipour/monozip/internal/apperr"
	"github.com/jmehdipour/monozip/internal/model"
)

const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, apperr.Validation("date must be in YYYY-MM-DD format")
	}
	return d, nil
}

// MonthDay formats d as MMDD.
func MonthDay(d time.Time) string { return d.Format("0102") }

// CompactDate formats d as YYYYMMDD.
func CompactDate(d time.Time) string { return d.Format("20060102") }

// ForClient returns prefix + MMDD. The client's suffix rule is descriptive
// only; the month/day suffix is always applied.
func ForClient(c model.ClientRecord, d time.Time) (string, error) {
	if strings.TrimSpace(c.Prefix) == "" {
		return "", apperr.Validation("client has no prefix configured")
	}
	return c.Prefix + MonthDay(d), nil
}

// FreeText returns the trimmed text, followed by YYYYMMDD when d is set.
func FreeText(text string, d *time.Time) (string, error) {
	v := strings.TrimSpace(text)
	if v == "" {
		return "", apperr.Validation("enter the free text to build the password from")
	}
	if d == nil {
		return v, nil
	}
	return v + CompactDate(*d), nil
}

// Generate dispatches on the target kind. Client targets without a date use
// now; free-text targets without a date get no suffix.
func Generate(t model.Target, d *time.Time, now time.Time) (string, error) {
	switch t.Kind {
	case model.TargetFreeText:
		return FreeText(t.Text, d)
	case model.TargetClient:
		if t.Client == nil {
			return "", apperr.Validation("select a client")
		}
		day := now
		if d != nil {
			day = *d
		}
		return ForClient(*t.Client, day)
	default:
		return "", apperr.Validation("unknown generation mode")
	}
}

// RuleLabel is the human-readable rule shown next to a client.
func RuleLabel(prefix string) string { return prefix + " + MMDD" }

// FreeTextRuleLabel is the rule shown for the free-text entry.
const FreeTextRuleLabel = "free text + optional date (YYYYMMDD)"

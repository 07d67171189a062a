package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DateLayouts are the accepted production date formats, tried in order.
var DateLayouts = []string{"2006-01-02", "02/01/2006", time.RFC3339}

// ParseTaux reads a percentage as typed by a user: "40", "40,5", "40.5 %".
// It does not check the 0-100 range of a single entry.
func ParseTaux(s string) (float64, error) {
	raw := strings.TrimSpace(s)
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	raw = strings.ReplaceAll(raw, ",", ".")
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidTaux)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTaux, s)
	}
	return v, nil
}

// ParseDate reads a production date in one of DateLayouts.
func ParseDate(s string) (time.Time, error) {
	raw := strings.TrimSpace(s)
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// FormatTaux renders a percentage with two decimals in the given locale.
func FormatTaux(tag language.Tag, v float64) string {
	return message.NewPrinter(tag).Sprintf("%.2f %%", v)
}

// FormatAmount renders an amount in euros with two decimals and the locale's
// grouping.
func FormatAmount(tag language.Tag, v float64) string {
	return message.NewPrinter(tag).Sprintf("%.2f €", v)
}

package validation

import (
	"math"
	"strings"
	"time"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func RequiredDate(field string, t time.Time, v Violations) {
	if t.IsZero() {
		v[field] = "required"
	}
}

func RangeFloat(field string, val, minVal, maxVal float64, v Violations) {
	if math.IsNaN(val) || val < minVal || val > maxVal {
		v[field] = "out_of_range"
	}
}

// Taux checks a single production percentage: 0 to 100 inclusive.
// The cumulative check across entries belongs to the ledger.
func Taux(field string, val float64, v Violations) {
	RangeFloat(field, val, 0, 100, v)
}

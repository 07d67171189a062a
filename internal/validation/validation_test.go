package validation

import (
	"math"
	"testing"
	"time"
)

func TestTaux(t *testing.T) {
	tests := []struct {
		name string
		val  float64
		ok   bool
	}{
		{"zero", 0, true},
		{"middle", 42.5, true},
		{"full", 100, true},
		{"negative", -0.01, false},
		{"over", 100.01, false},
		{"nan", math.NaN(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Violations{}
			Taux("taux", tt.val, v)
			if v.Empty() != tt.ok {
				t.Fatalf("Taux(%v) violations=%v, want ok=%v", tt.val, v, tt.ok)
			}
			if !tt.ok && v["taux"] != "out_of_range" {
				t.Fatalf("unexpected code %q", v["taux"])
			}
		})
	}
}

func TestRequiredHelpers(t *testing.T) {
	v := Violations{}
	Required("name", "  ", v)
	RequiredDate("date", time.Time{}, v)
	if len(v) != 2 {
		t.Fatalf("expected 2 violations got %v", v)
	}

	v = Violations{}
	Required("name", "Gros œuvre", v)
	RequiredDate("date", time.Now(), v)
	if !v.Empty() {
		t.Fatalf("expected no violations got %v", v)
	}
}

package models

import (
	"testing"
)

func TestPhase_AmountForTaux(t *testing.T) {
	tests := []struct {
		name      string
		montantHT float64
		taux      float64
		want      float64
	}{
		{"40% of 1M", 1_000_000, 40, 400_000},
		{"100% of 1M", 1_000_000, 100, 1_000_000},
		{"0%", 250_000, 0, 0},
		{"12.5% of 80k", 80_000, 12.5, 10_000},
		{"zero contract", 0, 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Phase{MontantHT: tt.montantHT}
			got := p.AmountForTaux(tt.taux)
			if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
				t.Errorf("AmountForTaux() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestProduct_Remaining(t *testing.T) {
	p := &Product{Taux: 40, MontantProd: 400_000, Phase: &Phase{MontantHT: 1_000_000}}
	if got := p.RemainingTaux(); got != 60 {
		t.Errorf("RemainingTaux() = %f, want 60", got)
	}
	if got := p.RemainingAmount(); got != 600_000 {
		t.Errorf("RemainingAmount() = %f, want 600000", got)
	}
	if p.IsComplete() {
		t.Error("IsComplete() = true, want false")
	}
}

func TestProduct_RemainingClampsAtZero(t *testing.T) {
	p := &Product{Taux: 100, MontantProd: 1_000_000, Phase: &Phase{MontantHT: 1_000_000}}
	if got := p.RemainingTaux(); got != 0 {
		t.Errorf("RemainingTaux() = %f, want 0", got)
	}
	if got := p.RemainingAmount(); got != 0 {
		t.Errorf("RemainingAmount() = %f, want 0", got)
	}
	if !p.IsComplete() {
		t.Error("IsComplete() = false, want true")
	}

	// Phase not loaded
	if got := (&Product{MontantProd: 10}).RemainingAmount(); got != 0 {
		t.Errorf("RemainingAmount() without phase = %f, want 0", got)
	}
}

func TestSumProductions(t *testing.T) {
	rows := []Production{
		{Taux: 40, MntProd: 400_000},
		{Taux: 35.5, MntProd: 355_000},
		{Taux: 4.5, MntProd: 45_000},
	}
	taux, amount := SumProductions(rows)
	if taux != 80 {
		t.Errorf("taux = %f, want 80", taux)
	}
	if amount != 800_000 {
		t.Errorf("amount = %f, want 800000", amount)
	}

	taux, amount = SumProductions(nil)
	if taux != 0 || amount != 0 {
		t.Errorf("empty sum = (%f, %f), want zeros", taux, amount)
	}
}

package models

import (
	"time"
)

// Product is the billing accumulator attached 1:1 to a Phase.
// Taux and MontantProd are a cache of the sums over Productions and are
// rebuilt after every write; the production rows are the source of truth.
type Product struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PhaseID uint   `gorm:"uniqueIndex;not null" json:"phase_id"`
	Phase   *Phase `gorm:"foreignKey:PhaseID" json:"phase,omitempty"`

	Date        time.Time `json:"date"`
	Taux        float64   `gorm:"not null;default:0" json:"taux"`
	MontantProd float64   `gorm:"not null;default:0" json:"montant_prod"`

	Productions []Production `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"productions,omitempty"`
}

// RemainingTaux returns the percentage still available before reaching 100.
func (p *Product) RemainingTaux() float64 {
	if p.Taux >= 100 {
		return 0
	}
	return 100 - p.Taux
}

// RemainingAmount returns what is left to produce on the phase.
// Requires Phase to be loaded; returns 0 otherwise.
func (p *Product) RemainingAmount() float64 {
	if p.Phase == nil || p.MontantProd >= p.Phase.MontantHT {
		return 0
	}
	return p.Phase.MontantHT - p.MontantProd
}

// IsComplete reports whether the cached taux has reached 100%.
func (p *Product) IsComplete() bool {
	return p.Taux >= 100
}

package models

import (
	"time"
)

// Phase is a contracted unit of work. MontantHT is fixed at creation and is
// the ceiling for every production recorded against the phase's product.
type Phase struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProjectID uint `gorm:"index;not null" json:"project_id"`

	Name      string  `gorm:"size:255;not null" json:"name"`
	MontantHT float64 `gorm:"type:decimal(15,2);not null;default:0" json:"montant_ht"`

	// Product is created lazily on the first production entry.
	Product *Product `gorm:"foreignKey:PhaseID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
}

// AmountForTaux derives the monetary amount of a percentage of the phase.
func (p *Phase) AmountForTaux(taux float64) float64 {
	return p.MontantHT * taux / 100
}

package models

import (
	"time"
)

// Production is one dated ledger line. Taux is the share of the phase
// produced by this entry (not cumulative); MntProd is always derived from
// the phase's MontantHT and never taken from the caller.
type Production struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ProductID uint `gorm:"index;not null" json:"product_id"`

	Date    time.Time `gorm:"not null" json:"date"`
	Taux    float64   `gorm:"not null" json:"taux"`
	MntProd float64   `gorm:"not null" json:"mnt_prod"`
}

// SumProductions returns the total taux and amount of the given rows.
// Each total is accumulated independently, in slice order.
func SumProductions(rows []Production) (taux, amount float64) {
	for _, r := range rows {
		taux += r.Taux
		amount += r.MntProd
	}
	return taux, amount
}

package ledger

import (
	"fmt"
	"math"

	"github.com/diewo77/go-production/internal/models"
)

// MaxTaux is the cumulative percentage ceiling of a product.
const MaxTaux = 100.0

// DefaultTolerance is the relative slack applied to both ceilings so that a
// legitimate boundary total (e.g. 60 + 40) is not rejected because of float
// representation.
const DefaultTolerance = 1e-9

// Validation is the outcome of checking a candidate taux against the
// siblings of a product. It is filled in even when the check fails so that
// callers can explain the shortfall.
type Validation struct {
	DerivedAmount   float64 `json:"derived_amount"`
	CurrentTaux     float64 `json:"current_taux"`
	CurrentAmount   float64 `json:"current_amount"`
	ProjectedTaux   float64 `json:"projected_taux"`
	ProjectedAmount float64 `json:"projected_amount"`
	MontantHT       float64 `json:"montant_ht"`
}

// Evaluate checks candidate against siblings, which must already exclude the
// row being edited. The taux ceiling is checked first, then the amount
// ceiling on the derived amount; either failing returns a *LimitError.
func Evaluate(montantHT float64, siblings []models.Production, candidate, tolerance float64) (Validation, error) {
	if math.IsNaN(candidate) || math.IsInf(candidate, 0) {
		return Validation{MontantHT: montantHT}, fmt.Errorf("%w: %v", ErrInvalidTaux, candidate)
	}

	v := Validation{MontantHT: montantHT}
	v.CurrentTaux, v.CurrentAmount = models.SumProductions(siblings)

	v.ProjectedTaux = v.CurrentTaux + candidate
	if exceeds(v.ProjectedTaux, MaxTaux, tolerance) {
		return v, &LimitError{Kind: ErrTauxExceeded, Projected: v.ProjectedTaux, Limit: MaxTaux}
	}

	phase := models.Phase{MontantHT: montantHT}
	v.DerivedAmount = phase.AmountForTaux(candidate)
	v.ProjectedAmount = v.CurrentAmount + v.DerivedAmount
	if exceeds(v.ProjectedAmount, montantHT, tolerance) {
		return v, &LimitError{Kind: ErrAmountExceeded, Projected: v.ProjectedAmount, Limit: montantHT}
	}
	return v, nil
}

// exceeds is a strict > with a slack proportional to the limit's magnitude.
// Equality, and anything within the slack, is accepted.
func exceeds(projected, limit, tolerance float64) bool {
	return projected > limit+tolerance*math.Max(1, math.Abs(limit))
}

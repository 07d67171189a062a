package ledger

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the ledger. Test with errors.Is.
var (
	ErrNotFound        = errors.New("not_found")
	ErrDuplicate       = errors.New("product_already_exists")
	ErrTauxExceeded    = errors.New("taux_exceeded")
	ErrAmountExceeded  = errors.New("amount_exceeded")
	ErrRecompute       = errors.New("recompute_failed")
	ErrProductMismatch = errors.New("production_product_mismatch")
	ErrInvalidTaux     = errors.New("invalid_taux")
)

// LimitError reports a candidate that would push a product past one of its
// ceilings. Kind is ErrTauxExceeded or ErrAmountExceeded.
type LimitError struct {
	Kind      error
	Projected float64
	Limit     float64
}

func (e *LimitError) Error() string {
	if errors.Is(e.Kind, ErrTauxExceeded) {
		return fmt.Sprintf("%s: total production would reach %.2f%% (max %.2f%%)", e.Kind, e.Projected, e.Limit)
	}
	return fmt.Sprintf("%s: total production would reach %.2f (max %.2f)", e.Kind, e.Projected, e.Limit)
}

func (e *LimitError) Unwrap() error { return e.Kind }

// Excess returns by how much the projected total overshoots the limit.
func (e *LimitError) Excess() float64 {
	return e.Projected - e.Limit
}

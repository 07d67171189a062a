// Package ledger keeps the production (percentage-of-completion) ledger of
// phases consistent: no product may exceed 100% nor its phase's contracted
// amount, and each product's cached totals always match its production rows.
//
// Every mutation for a product runs under a per-product lock and inside a
// transaction that re-reads the product row FOR UPDATE on postgres, so the
// read-sum-check-write sequence cannot interleave with another writer of the
// same product. The cached totals are rebuilt by a full resum after the
// mutation commits.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/go-production/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service exposes the ledger operations called by request handlers.
type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	products  *KeyedLocker[uint]
	phases    *KeyedLocker[uint]
	tolerance float64
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for mutation and recompute events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithTolerance sets the relative slack on the ceilings.
func WithTolerance(tol float64) Option {
	return func(s *Service) {
		if tol >= 0 {
			s.tolerance = tol
		}
	}
}

// WithClock overrides time.Now, used for the date of lazily created products.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a ledger service on top of db.
func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:        db,
		log:       zap.NewNop(),
		products:  NewKeyedLocker[uint](),
		phases:    NewKeyedLocker[uint](),
		tolerance: DefaultTolerance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is a new production entry.
type CreateInput struct {
	ProductID uint
	Date      time.Time
	Taux      float64
}

// UpdateInput edits an existing production entry. ProductID may be zero;
// when set it must be the row's current product.
type UpdateInput struct {
	ProductionID uint
	ProductID    uint
	Date         time.Time
	Taux         float64
}

// Summary is the cached state of a product with what is left to produce.
type Summary struct {
	Product         models.Product `json:"product"`
	MontantHT       float64        `json:"montant_ht"`
	RemainingTaux   float64        `json:"remaining_taux"`
	RemainingAmount float64        `json:"remaining_amount"`
	Complete        bool           `json:"complete"`
	Count           int64          `json:"count"`
}

// Validate checks whether taux can be recorded on the product. When
// excludeProductionID is non-zero that row's current contribution is left
// out of the baseline, as for an edit. It does not write anything.
func (s *Service) Validate(ctx context.Context, productID uint, taux float64, excludeProductionID uint) (Validation, error) {
	tx := s.db.WithContext(ctx)
	product, err := loadProduct(tx, productID, false)
	if err != nil {
		return Validation{}, err
	}
	return s.check(tx, product, taux, excludeProductionID)
}

func (s *Service) check(tx *gorm.DB, product *models.Product, taux float64, exclude uint) (Validation, error) {
	siblings, err := loadSiblings(tx, product.ID, exclude)
	if err != nil {
		return Validation{}, err
	}
	return Evaluate(product.Phase.MontantHT, siblings, taux, s.tolerance)
}

// CreateProduction validates and records a new production entry. The amount
// is always derived from the phase; the product cache is rebuilt afterwards.
func (s *Service) CreateProduction(ctx context.Context, in CreateInput) (*models.Production, error) {
	var row models.Production
	err := s.mutate(ctx, in.ProductID, func(tx *gorm.DB, product *models.Product) error {
		v, err := s.check(tx, product, in.Taux, 0)
		if err != nil {
			return err
		}
		row = models.Production{ProductID: product.ID, Date: in.Date, Taux: in.Taux, MntProd: v.DerivedAmount}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("create production: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("production created",
		zap.Uint("product_id", row.ProductID),
		zap.Uint("production_id", row.ID),
		zap.Float64("taux", row.Taux),
		zap.Float64("mnt_prod", row.MntProd))
	return &row, nil
}

// UpdateProduction overwrites date, taux and derived amount of a row after
// validating it against its siblings without its own previous value.
// Moving a row to another product is not supported and fails with
// ErrProductMismatch.
func (s *Service) UpdateProduction(ctx context.Context, in UpdateInput) (*models.Production, error) {
	current, err := s.getProduction(s.db.WithContext(ctx), in.ProductionID)
	if err != nil {
		return nil, err
	}
	if in.ProductID != 0 && in.ProductID != current.ProductID {
		return nil, fmt.Errorf("%w: production %d belongs to product %d, not %d",
			ErrProductMismatch, current.ID, current.ProductID, in.ProductID)
	}

	var row models.Production
	err = s.mutate(ctx, current.ProductID, func(tx *gorm.DB, product *models.Product) error {
		// re-read under the lock: the row may have gone in the meantime
		r, err := s.getProduction(tx, in.ProductionID)
		if err != nil {
			return err
		}
		v, err := s.check(tx, product, in.Taux, r.ID)
		if err != nil {
			return err
		}
		r.Date = in.Date
		r.Taux = in.Taux
		r.MntProd = v.DerivedAmount
		if err := tx.Model(r).Select("date", "taux", "mnt_prod").Updates(r).Error; err != nil {
			return fmt.Errorf("update production %d: %w", r.ID, err)
		}
		row = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("production updated",
		zap.Uint("product_id", row.ProductID),
		zap.Uint("production_id", row.ID),
		zap.Float64("taux", row.Taux),
		zap.Float64("mnt_prod", row.MntProd))
	return &row, nil
}

// DeleteProduction removes a row and rebuilds its product's cache. There is
// no validation: removing production can only lower the totals.
func (s *Service) DeleteProduction(ctx context.Context, productionID uint) (*models.Production, error) {
	current, err := s.getProduction(s.db.WithContext(ctx), productionID)
	if err != nil {
		return nil, err
	}
	var row models.Production
	err = s.mutate(ctx, current.ProductID, func(tx *gorm.DB, _ *models.Product) error {
		r, err := s.getProduction(tx, productionID)
		if err != nil {
			return err
		}
		if err := tx.Delete(&models.Production{}, r.ID).Error; err != nil {
			return fmt.Errorf("delete production %d: %w", r.ID, err)
		}
		row = *r
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("production deleted",
		zap.Uint("product_id", row.ProductID),
		zap.Uint("production_id", row.ID))
	return &row, nil
}

// ListProductions returns the rows of a product ordered by date.
func (s *Service) ListProductions(ctx context.Context, productID uint) ([]models.Production, error) {
	tx := s.db.WithContext(ctx)
	if err := productExists(tx, productID); err != nil {
		return nil, err
	}
	var rows []models.Production
	if err := tx.Where("product_id = ?", productID).Order("date, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list productions: %w", err)
	}
	return rows, nil
}

// Summary returns the cached totals of a product and what remains.
func (s *Service) Summary(ctx context.Context, productID uint) (*Summary, error) {
	tx := s.db.WithContext(ctx)
	product, err := loadProduct(tx, productID, false)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := tx.Model(&models.Production{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count productions: %w", err)
	}
	return &Summary{
		Product:         *product,
		MontantHT:       product.Phase.MontantHT,
		RemainingTaux:   product.RemainingTaux(),
		RemainingAmount: product.RemainingAmount(),
		Complete:        product.IsComplete(),
		Count:           count,
	}, nil
}

// EnsureProduct creates the product of a phase. It fails with ErrDuplicate
// when the phase already has one and ErrNotFound when the phase is missing.
func (s *Service) EnsureProduct(ctx context.Context, phaseID uint) (*models.Product, error) {
	return s.ensureProduct(ctx, phaseID, false)
}

// ProductForPhase returns the phase's product, creating it on first use.
func (s *Service) ProductForPhase(ctx context.Context, phaseID uint) (*models.Product, error) {
	return s.ensureProduct(ctx, phaseID, true)
}

func (s *Service) ensureProduct(ctx context.Context, phaseID uint, reuse bool) (*models.Product, error) {
	unlock := s.phases.Lock(phaseID)
	defer unlock()

	var product models.Product
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var phase models.Phase
		if err := tx.First(&phase, phaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("phase %d: %w", phaseID, ErrNotFound)
			}
			return fmt.Errorf("load phase %d: %w", phaseID, err)
		}

		err := tx.Where("phase_id = ?", phaseID).First(&product).Error
		switch {
		case err == nil:
			if !reuse {
				return fmt.Errorf("phase %d: %w", phaseID, ErrDuplicate)
			}
			product.Phase = &phase
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("load product of phase %d: %w", phaseID, err)
		}

		product = models.Product{PhaseID: phaseID, Date: s.now()}
		if err := tx.Create(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("phase %d: %w", phaseID, ErrDuplicate)
			}
			return fmt.Errorf("create product: %w", err)
		}
		product.Phase = &phase
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("product created", zap.Uint("phase_id", phaseID), zap.Uint("product_id", product.ID))
	}
	return &product, nil
}

// RecomputeProduct rebuilds the cached taux and amount of a product from all
// of its rows. Calling it again without a mutation in between is a no-op.
func (s *Service) RecomputeProduct(ctx context.Context, productID uint) (*models.Product, error) {
	unlock := s.products.Lock(productID)
	defer unlock()
	return s.recompute(ctx, productID)
}

// RecomputeAll rebuilds every product cache and returns how many succeeded.
// Failures are collected and returned together.
func (s *Service) RecomputeAll(ctx context.Context) (int, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Product{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	var errs []error
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := s.RecomputeProduct(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// DeleteProduct removes a product together with all of its productions.
func (s *Service) DeleteProduct(ctx context.Context, productID uint) error {
	unlock := s.products.Lock(productID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := productExists(tx, productID); err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", productID).Delete(&models.Production{}).Error; err != nil {
			return fmt.Errorf("delete productions of product %d: %w", productID, err)
		}
		if err := tx.Delete(&models.Product{}, productID).Error; err != nil {
			return fmt.Errorf("delete product %d: %w", productID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("product deleted", zap.Uint("product_id", productID))
	return nil
}

// mutate runs fn for productID under the product lock, inside a transaction
// holding the product row, then rebuilds the product cache. A failed rebuild
// is logged and left for the next mutation: the committed rows stay.
func (s *Service) mutate(ctx context.Context, productID uint, fn func(tx *gorm.DB, product *models.Product) error) error {
	unlock := s.products.Lock(productID)
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product, err := loadProduct(tx, productID, true)
		if err != nil {
			return err
		}
		return fn(tx, product)
	})
	if err != nil {
		return err
	}

	if _, err := s.recompute(ctx, productID); err != nil {
		s.log.Warn("product cache left stale", zap.Uint("product_id", productID), zap.Error(err))
	}
	return nil
}

// recompute expects the caller to hold the product lock.
func (s *Service) recompute(ctx context.Context, productID uint) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&product, productID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", productID, ErrNotFound)
			}
			return err
		}
		rows, err := loadSiblings(tx, productID, 0)
		if err != nil {
			return err
		}
		taux, amount := models.SumProductions(rows)
		if err := tx.Model(&product).Updates(map[string]any{"taux": taux, "montant_prod": amount}).Error; err != nil {
			return err
		}
		product.Taux = taux
		product.MontantProd = amount
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecompute, err)
	}
	return &product, nil
}

func (s *Service) getProduction(tx *gorm.DB, productionID uint) (*models.Production, error) {
	var row models.Production
	if err := tx.First(&row, productionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("production %d: %w", productionID, ErrNotFound)
		}
		return nil, fmt.Errorf("load production %d: %w", productionID, err)
	}
	return &row, nil
}

// loadProduct loads a product with its phase joined in, so the contracted
// amount used by the checks is the one stored with the phase.
func loadProduct(tx *gorm.DB, productID uint, lock bool) (*models.Product, error) {
	q := tx
	if lock {
		q = forUpdate(tx)
	}
	var product models.Product
	if err := q.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", productID, ErrNotFound)
		}
		return nil, fmt.Errorf("load product %d: %w", productID, err)
	}
	var phase models.Phase
	if err := tx.First(&phase, product.PhaseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("phase %d of product %d: %w", product.PhaseID, productID, ErrNotFound)
		}
		return nil, fmt.Errorf("load phase %d: %w", product.PhaseID, err)
	}
	product.Phase = &phase
	return &product, nil
}

func loadSiblings(tx *gorm.DB, productID, exclude uint) ([]models.Production, error) {
	q := tx.Where("product_id = ?", productID)
	if exclude != 0 {
		q = q.Where("id <> ?", exclude)
	}
	var rows []models.Production
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load productions of product %d: %w", productID, err)
	}
	return rows, nil
}

func productExists(tx *gorm.DB, productID uint) error {
	var count int64
	if err := tx.Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
		return fmt.Errorf("check product %d: %w", productID, err)
	}
	if count == 0 {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return nil
}

// forUpdate adds a row lock on postgres. sqlite has no row locks; there the
// keyed lock and sqlite's single writer do the serializing.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

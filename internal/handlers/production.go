package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-production/internal/httpx"
	"github.com/diewo77/go-production/internal/ledger"
	"github.com/diewo77/go-production/internal/validation"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// ProductionHandler translates HTTP requests into ledger operations.
// Bodies are JSON or form-encoded; responses are always JSON.
type ProductionHandler struct {
	ledger *ledger.Service
	log    *zap.Logger
	lang   language.Tag
}

func NewProductionHandler(svc *ledger.Service, log *zap.Logger) *ProductionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProductionHandler{ledger: svc, log: log, lang: language.French}
}

// Routes registers the production ledger endpoints on mux.
func (h *ProductionHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /phases/{id}/product", h.EnsureProduct)
	mux.HandleFunc("GET /phases/{id}/product", h.PhaseProduct)
	mux.HandleFunc("GET /products/{id}", h.Summary)
	mux.HandleFunc("POST /products/{id}/recompute", h.Recompute)
	mux.HandleFunc("POST /products/{id}/delete", h.DeleteProduct)
	mux.HandleFunc("GET /products/{id}/productions", h.List)
	mux.HandleFunc("POST /products/{id}/productions", h.Create)
	mux.HandleFunc("POST /productions/{id}", h.Update)
	mux.HandleFunc("POST /productions/{id}/delete", h.Delete)
}

type productionRequest struct {
	ProductID uint     `json:"product_id"`
	Date      string   `json:"date"`
	Taux      *float64 `json:"taux"`
}

// EnsureProduct: POST /phases/{id}/product
func (h *ProductionHandler) EnsureProduct(w http.ResponseWriter, r *http.Request) {
	phaseID, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.ledger.EnsureProduct(r.Context(), phaseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, product)
}

// PhaseProduct: GET /phases/{id}/product, creating the product on first use.
func (h *ProductionHandler) PhaseProduct(w http.ResponseWriter, r *http.Request) {
	phaseID, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.ledger.ProductForPhase(r.Context(), phaseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// Summary: GET /products/{id}
func (h *ProductionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	sum, err := h.ledger.Summary(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

// List: GET /products/{id}/productions
func (h *ProductionHandler) List(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	rows, err := h.ledger.ListProductions(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": rows, "total": len(rows)})
}

// Create: POST /products/{id}/productions – JSON or form
func (h *ProductionHandler) Create(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	req, date, ok := h.readProduction(w, r)
	if !ok {
		return
	}
	if req.ProductID != 0 && req.ProductID != productID {
		httpx.JSONError(w, http.StatusBadRequest, ledger.ErrProductMismatch.Error(), nil)
		return
	}
	row, err := h.ledger.CreateProduction(r.Context(), ledger.CreateInput{ProductID: productID, Date: date, Taux: *req.Taux})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, row)
}

// Update: POST /productions/{id} – JSON or form
func (h *ProductionHandler) Update(w http.ResponseWriter, r *http.Request) {
	productionID, ok := pathID(w, r)
	if !ok {
		return
	}
	req, date, ok := h.readProduction(w, r)
	if !ok {
		return
	}
	row, err := h.ledger.UpdateProduction(r.Context(), ledger.UpdateInput{
		ProductionID: productionID,
		ProductID:    req.ProductID,
		Date:         date,
		Taux:         *req.Taux,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

// Delete: POST /productions/{id}/delete
func (h *ProductionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productionID, ok := pathID(w, r)
	if !ok {
		return
	}
	row, err := h.ledger.DeleteProduction(r.Context(), productionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": row.ID, "product_id": row.ProductID})
}

// Recompute: POST /products/{id}/recompute
func (h *ProductionHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.ledger.RecomputeProduct(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// DeleteProduct: POST /products/{id}/delete
func (h *ProductionHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DeleteProduct(r.Context(), productID); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": productID})
}

// readProduction parses and validates the body; on failure the response is written.
// On success req.Taux is set.
func (h *ProductionHandler) readProduction(w http.ResponseWriter, r *http.Request) (productionRequest, time.Time, bool) {
	var req productionRequest
	v := validation.Violations{}

	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
			return req, time.Time{}, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, "invalid_form", nil)
			return req, time.Time{}, false
		}
		req.Date = r.Form.Get("date")
		if s := r.Form.Get("product_id"); s != "" {
			id, err := strconv.ParseUint(s, 10, 64)
			if err != nil {
				v["product_id"] = "invalid"
			}
			req.ProductID = uint(id)
		}
		if raw := r.Form.Get("taux"); strings.TrimSpace(raw) != "" {
			taux, err := ledger.ParseTaux(raw)
			if err != nil {
				v["taux"] = "invalid"
			} else {
				req.Taux = &taux
			}
		}
	}

	var date time.Time
	validation.Required("date", req.Date, v)
	if _, bad := v["date"]; !bad {
		if d, err := ledger.ParseDate(req.Date); err != nil {
			v["date"] = "invalid"
		} else {
			date = d
			validation.RequiredDate("date", date, v)
		}
	}
	if _, bad := v["taux"]; !bad {
		if req.Taux == nil {
			v["taux"] = "required"
		} else {
			validation.Taux("taux", *req.Taux, v)
		}
	}
	if !v.Empty() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", v)
		return req, time.Time{}, false
	}
	return req, date, true
}

// writeError maps ledger failures to HTTP statuses.
func (h *ProductionHandler) writeError(w http.ResponseWriter, err error) {
	var le *ledger.LimitError
	switch {
	case errors.As(err, &le):
		httpx.JSONErrorMessage(w, http.StatusUnprocessableEntity, le.Kind.Error(), h.limitMessage(le), map[string]float64{
			"projected": le.Projected,
			"limit":     le.Limit,
			"excess":    le.Excess(),
		})
	case errors.Is(err, ledger.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, ledger.ErrNotFound.Error(), nil)
	case errors.Is(err, ledger.ErrDuplicate):
		httpx.JSONError(w, http.StatusConflict, ledger.ErrDuplicate.Error(), nil)
	case errors.Is(err, ledger.ErrProductMismatch), errors.Is(err, ledger.ErrInvalidTaux):
		httpx.JSONError(w, http.StatusBadRequest, rootCode(err), nil)
	default:
		h.log.Error("ledger operation failed", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

func (h *ProductionHandler) limitMessage(le *ledger.LimitError) string {
	if errors.Is(le.Kind, ledger.ErrTauxExceeded) {
		return "La production totale atteindrait " + ledger.FormatTaux(h.lang, le.Projected) +
			" (maximum " + ledger.FormatTaux(h.lang, le.Limit) + "), réduisez le taux."
	}
	return "Le montant produit atteindrait " + ledger.FormatAmount(h.lang, le.Projected) +
		" pour un montant HT de " + ledger.FormatAmount(h.lang, le.Limit) + ", réduisez le taux."
}

func rootCode(err error) string {
	if errors.Is(err, ledger.ErrProductMismatch) {
		return ledger.ErrProductMismatch.Error()
	}
	return ledger.ErrInvalidTaux.Error()
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil || id == 0 {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return 0, false
	}
	return uint(id), true
}

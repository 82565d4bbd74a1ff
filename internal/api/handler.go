package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"cycle-discounts/internal/applicator"
	"cycle-discounts/internal/cart"
	"cycle-discounts/internal/catalog"
	"cycle-discounts/internal/matcher"
	"cycle-discounts/internal/pricing"
)

type DiscountHandler struct {
	App     *applicator.Applicator
	Catalog catalog.Catalog
}

func NewDiscountHandler(app *applicator.Applicator, cat catalog.Catalog) *DiscountHandler {
	return &DiscountHandler{App: app, Catalog: cat}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func productID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type applyRequest struct {
	Config   pricing.Config `json:"config"`
	Quantity int            `json:"quantity"`
}

// ApplyToProduct handles POST /v1/products/{id}/discount.
func (h *DiscountHandler) ApplyToProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := h.App.ApplyToProduct(r.Context(), id, req.Config, matcher.Context{Quantity: req.Quantity})
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

type bulkRequest struct {
	ProductIDs []int64        `json:"product_ids"`
	Config     pricing.Config `json:"config"`
	Quantity   int            `json:"quantity"`
}

// BulkApply handles POST /v1/discounts/bulk.
func (h *DiscountHandler) BulkApply(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.ProductIDs) == 0 {
		writeError(w, http.StatusBadRequest, "product_ids is required")
		return
	}
	out := h.App.BulkApplyDiscounts(r.Context(), req.ProductIDs, req.Config, matcher.Context{Quantity: req.Quantity})
	writeJSON(w, http.StatusOK, out)
}

type cartItemRequest struct {
	Key       string `json:"key"`
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type cartRequest struct {
	Items []cartItemRequest `json:"items"`
}

type cartItemResponse struct {
	Key             string          `json:"key"`
	ProductID       int64           `json:"product_id"`
	Price           decimal.Decimal `json:"price"`
	DiscountApplied bool            `json:"discount_applied"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
}

type cartResponse struct {
	Summary *applicator.CartSummary `json:"summary"`
	Items   []cartItemResponse      `json:"items"`
}

// PriceCart handles POST /v1/cart/price: builds a cart from the
// request, applies the active rule set and returns mutated line
// prices plus the aggregate summary. A line whose product cannot be
// resolved is reported in the summary errors, not dropped silently.
func (h *DiscountHandler) PriceCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items is required")
		return
	}

	c := &cart.Cart{}
	for _, it := range req.Items {
		line := &cart.Item{Key: it.Key, Quantity: it.Quantity}
		p, err := h.Catalog.GetProduct(r.Context(), it.ProductID)
		if err == nil {
			line.Product = p
		}
		c.Items = append(c.Items, line)
	}

	sum := h.App.ModifyCartPrices(r.Context(), c, h.App.Rules())

	resp := cartResponse{Summary: sum}
	for _, it := range c.Items {
		ir := cartItemResponse{
			Key:             it.Key,
			DiscountApplied: it.DiscountApplied,
			DiscountAmount:  it.DiscountAmount,
			OriginalPrice:   it.OriginalPrice,
		}
		if it.Product != nil {
			ir.ProductID = it.Product.ID
			ir.Price = it.Product.Price
		}
		resp.Items = append(resp.Items, ir)
	}
	writeJSON(w, http.StatusOK, resp)
}

type displayPriceRequest struct {
	Config pricing.Config `json:"config"`
}

type displayPriceResponse struct {
	Updated   bool            `json:"updated"`
	Price     decimal.Decimal `json:"price,omitempty"`
	SalePrice decimal.Decimal `json:"sale_price,omitempty"`
}

// UpdateDisplayPrice handles POST /v1/products/{id}/display-price.
func (h *DiscountHandler) UpdateDisplayPrice(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req displayPriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "product lookup failed")
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	if !h.App.UpdateDisplayPrice(p, req.Config) {
		writeJSON(w, http.StatusForbidden, displayPriceResponse{Updated: false})
		return
	}
	writeJSON(w, http.StatusOK, displayPriceResponse{Updated: true, Price: p.Price, SalePrice: p.SalePrice})
}

// GetApplied handles GET /v1/discounts/applied/{id}.
func (h *DiscountHandler) GetApplied(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	rec, ok := h.App.GetAppliedDiscount(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// RemoveApplied handles DELETE /v1/discounts/applied/{id}.
func (h *DiscountHandler) RemoveApplied(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if !h.App.RemoveAppliedDiscount(id) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearApplied handles DELETE /v1/discounts/applied.
func (h *DiscountHandler) ClearApplied(w http.ResponseWriter, _ *http.Request) {
	h.App.ClearAppliedDiscounts()
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /v1/discounts/stats.
func (h *DiscountHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.App.GetStatistics())
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/product"
)

const defaultProductLimit = 20

// ListProducts serves GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r, defaultProductLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	products, total, err := h.products.List(r.Context(), product.ListFilter{
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProduct(p)
	}
	writeData(w, r, http.StatusOK, out, newPagination(page, limit, total))
}

// GetProduct serves GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toProduct(*p), nil)
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type addCartItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	VariantID string `json:"variantId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

type updateCartItemRequest struct {
	// Quantity of zero or less removes the line.
	Quantity *int `json:"quantity" validate:"required,max=99"`
}

// GetCart serves GET /cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.View(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toCart(view), nil)
}

// AddCartItem serves POST /cart/items.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	req := addCartItemRequest{Quantity: 1}
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.carts.AddItem(r.Context(), identity(r).UserID, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toCart(view), nil)
}

// UpdateCartItem serves PATCH /cart/items/{itemId}.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	view, err := h.carts.UpdateItem(r.Context(), identity(r).UserID, chi.URLParam(r, "itemId"), *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toCart(view), nil)
}

// RemoveCartItem serves DELETE /cart/items/{itemId}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.RemoveItem(r.Context(), identity(r).UserID, chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toCart(view), nil)
}

// ClearCart serves DELETE /cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), identity(r).UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "cart cleared")
}

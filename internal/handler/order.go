package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/order"
)

const (
	defaultOrderLimit      = 10
	defaultAdminOrderLimit = 20

	// IdempotencyKeyHeader makes order placement safe to retry.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader is set when a response repeats an earlier checkout.
	ReplayedHeader = "Idempotent-Replayed"
)

type placeOrderRequest struct {
	ShippingAddressID string           `json:"shippingAddressId" validate:"omitempty,uuid"`
	ShippingAddress   *address.Address `json:"shippingAddress"`
	BillingAddressID  string           `json:"billingAddressId" validate:"omitempty,uuid"`
	BillingAddress    *address.Address `json:"billingAddress"`
	SameAsShipping    *bool            `json:"sameAsShipping"`
	PaymentMethod     string           `json:"paymentMethod" validate:"max=50"`
	CouponCode        string           `json:"couponCode" validate:"max=50"`
	Notes             string           `json:"notes" validate:"max=500"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type updatePaymentStatusRequest struct {
	PaymentStatus   string `json:"paymentStatus" validate:"required"`
	PaymentIntentID string `json:"paymentIntentId" validate:"max=255"`
}

// PlaceOrder serves POST /orders.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if len(key) > 255 {
		writeError(w, r, &badRequestError{msg: IdempotencyKeyHeader + " is too long"})
		return
	}

	same := req.SameAsShipping == nil || *req.SameAsShipping
	res, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:         identity(r).UserID,
		Shipping:       order.AddressSource{SavedID: req.ShippingAddressID, Inline: req.ShippingAddress},
		Billing:        order.AddressSource{SavedID: req.BillingAddressID, Inline: req.BillingAddress},
		SameAsShipping: same,
		PaymentMethod:  req.PaymentMethod,
		CouponCode:     req.CouponCode,
		Notes:          req.Notes,
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		w.Header().Set(ReplayedHeader, "true")
		status = http.StatusOK
	}
	writeData(w, r, status, toOrder(res.Order, res.Products), nil)
}

// ListOrders serves GET /orders with the caller's orders.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r, defaultOrderLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.listOrders(w, r, order.ListFilter{
		UserID: identity(r).UserID,
		Status: order.Status(strings.ToUpper(r.URL.Query().Get("status"))),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}, page)
}

// ListAllOrders serves GET /orders/admin/all.
func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageParams(r, defaultAdminOrderLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	h.listOrders(w, r, order.ListFilter{
		Status:        order.Status(strings.ToUpper(q.Get("status"))),
		PaymentStatus: order.PaymentStatus(strings.ToUpper(q.Get("paymentStatus"))),
		Search:        strings.TrimSpace(q.Get("search")),
		Limit:         limit,
		Offset:        (page - 1) * limit,
	}, page)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, f order.ListFilter, page int) {
	orders, total, err := h.orders.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	refs := make([]*order.Order, len(orders))
	for i := range orders {
		refs[i] = &orders[i]
	}
	products, err := h.orders.ProductsFor(r.Context(), refs...)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i := range orders {
		out[i] = toOrder(&orders[i], products)
	}
	writeData(w, r, http.StatusOK, out, newPagination(page, f.Limit, total))
}

// GetOrder serves GET /orders/{id}; id is an order id or order number.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	o, err := h.orders.Get(r.Context(), id.UserID, id.IsAdmin(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrder(w, r, http.StatusOK, o)
}

// CancelOrder serves POST /orders/{id}/cancel.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	o, err := h.orders.Cancel(r.Context(), id.UserID, id.IsAdmin(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrder(w, r, http.StatusOK, o)
}

// UpdateOrderStatus serves PATCH /orders/{id}/status.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	status := order.Status(strings.ToUpper(req.Status))
	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrder(w, r, http.StatusOK, o)
}

// UpdatePaymentStatus serves PATCH /orders/{id}/payment-status.
func (h *Handler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req updatePaymentStatusRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.UpdatePaymentStatus(r.Context(), order.PaymentUpdate{
		OrderID:  chi.URLParam(r, "id"),
		Status:   order.PaymentStatus(strings.ToUpper(req.PaymentStatus)),
		IntentID: req.PaymentIntentID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeOrder(w, r, http.StatusOK, o)
}

func (h *Handler) writeOrder(w http.ResponseWriter, r *http.Request, status int, o *order.Order) {
	products, err := h.orders.ProductsFor(r.Context(), o)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, status, toOrder(o, products), nil)
}


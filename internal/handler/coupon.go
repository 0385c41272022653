package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type validateCouponRequest struct {
	Code       string  `json:"code" validate:"required,max=50"`
	OrderValue float64 `json:"orderValue" validate:"gte=0"`
}

// ValidateCoupon serves POST /coupons/validate. It never consumes a use.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	q, err := h.coupons.Check(r.Context(), req.Code, decimal.NewFromFloat(req.OrderValue))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toCoupon(q), nil)
}

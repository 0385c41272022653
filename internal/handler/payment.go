package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// StripeSignatureHeader carries the webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// maxWebhookBytes bounds webhook payloads.
const maxWebhookBytes = 64 << 10

type checkoutRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

type confirmRequest struct {
	OrderID string `json:"orderId" validate:"required"`
}

type checkoutResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreateCheckout serves POST /payments/checkout.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.payments.CreateCheckout(r.Context(), identity(r).UserID, req.OrderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, checkoutResponse{
		ClientSecret:    c.ClientSecret,
		PaymentIntentID: c.IntentID,
	}, nil)
}

// ConfirmPayment serves POST /payments/confirm.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.payments.Confirm(r.Context(), identity(r).UserID, req.OrderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toPaymentStatus(o), nil)
}

// PaymentStatus serves GET /payments/status/{orderId}.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	o, err := h.payments.Status(r.Context(), identity(r).UserID, chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toPaymentStatus(o), nil)
}

// PaymentWebhook serves POST /payments/webhook. The raw body is needed for
// signature verification.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeError(w, r, &badRequestError{msg: "invalid webhook body", err: err})
		return
	}

	if err := h.payments.HandleWebhook(r.Context(), payload, r.Header.Get(StripeSignatureHeader)); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "received")
}

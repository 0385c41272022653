// Package handler implements the storefront REST API on top of the domain
// services.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/payment"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/review"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Carts is the cart use case surface.
type Carts interface {
	View(ctx context.Context, userID string) (*cart.View, error)
	AddItem(ctx context.Context, userID, productID, variantID string, quantity int) (*cart.View, error)
	UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*cart.View, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*cart.View, error)
	Clear(ctx context.Context, userID string) error
}

// Orders is the order use case surface.
type Orders interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
	Get(ctx context.Context, userID string, admin bool, ref string) (*order.Order, error)
	List(ctx context.Context, f order.ListFilter) ([]order.Order, int, error)
	ProductsFor(ctx context.Context, orders ...*order.Order) (map[string]product.Product, error)
	Cancel(ctx context.Context, userID string, admin bool, orderID string) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, status order.Status) (*order.Order, error)
	UpdatePaymentStatus(ctx context.Context, u order.PaymentUpdate) (*order.Order, error)
}

// Payments is the payment use case surface.
type Payments interface {
	CreateCheckout(ctx context.Context, userID, orderID string) (*payment.Checkout, error)
	Confirm(ctx context.Context, userID, orderID string) (*order.Order, error)
	Status(ctx context.Context, userID, orderID string) (*order.Order, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Reviews is the product review use case surface.
type Reviews interface {
	List(ctx context.Context, f review.ListFilter) ([]review.Review, int, error)
	Get(ctx context.Context, id string) (*review.Review, error)
	Create(ctx context.Context, userID, productID string, in review.Input) (*review.Review, error)
	Update(ctx context.Context, userID, id string, p review.Patch) (*review.Review, error)
	Delete(ctx context.Context, userID string, admin bool, id string) error
	Summary(ctx context.Context, productID string) (review.Summary, error)
}

var (
	_ Carts    = (*cart.Service)(nil)
	_ Orders   = (*order.Service)(nil)
	_ Payments = (*payment.Service)(nil)
	_ Reviews  = (*review.Service)(nil)
)

// Deps are the services behind the API.
type Deps struct {
	Products product.Repository
	Carts    Carts
	Orders   Orders
	Coupons  coupon.Validator
	Payments Payments
	Reviews  Reviews
	Verifier auth.Verifier
}

// Handler serves the REST API.
type Handler struct {
	products product.Repository
	carts    Carts
	orders   Orders
	coupons  coupon.Validator
	payments Payments
	reviews  Reviews
	verifier auth.Verifier
	validate *validator.Validate
}

// New creates a Handler.
func New(deps Deps) *Handler {
	return &Handler{
		products: deps.Products,
		carts:    deps.Carts,
		orders:   deps.Orders,
		coupons:  deps.Coupons,
		payments: deps.Payments,
		reviews:  deps.Reviews,
		verifier: deps.Verifier,
		validate: newValidator(),
	}
}

// Routes returns the API router. Middlewares run inside the router so they
// see the matched route.
func (h *Handler) Routes(middlewares ...httpmiddleware.Middleware) chi.Router {
	r := chi.NewRouter()
	for _, mw := range middlewares {
		r.Use(mw)
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errMethodNotAllowed)
	})

	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)
	r.Get("/products/{id}/rating", h.ProductRating)
	r.Get("/reviews", h.ListReviews)
	r.Get("/reviews/{id}", h.GetReview)
	r.Post("/payments/webhook", h.PaymentWebhook)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Patch("/items/{itemId}", h.UpdateCartItem)
			r.Delete("/items/{itemId}", h.RemoveCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.PlaceOrder)
			r.Get("/{id}", h.GetOrder)
			r.Post("/{id}/cancel", h.CancelOrder)

			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/admin/all", h.ListAllOrders)
				r.Patch("/{id}/status", h.UpdateOrderStatus)
				r.Patch("/{id}/payment-status", h.UpdatePaymentStatus)
			})
		})

		r.Post("/coupons/validate", h.ValidateCoupon)

		r.Post("/products/{id}/reviews", h.CreateReview)
		r.Get("/reviews/mine", h.ListMyReviews)
		r.Patch("/reviews/{id}", h.UpdateReview)
		r.Delete("/reviews/{id}", h.DeleteReview)

		r.Post("/payments/checkout", h.CreateCheckout)
		r.Post("/payments/confirm", h.ConfirmPayment)
		r.Get("/payments/status/{orderId}", h.PaymentStatus)
	})
	return r
}

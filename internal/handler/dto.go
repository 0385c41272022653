package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/address"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// Monetary values are rendered as JSON numbers.

type variantResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	SKU   string  `json:"sku"`
	Size  string  `json:"size,omitempty"`
	Color string  `json:"color,omitempty"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
}

type productResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description,omitempty"`
	Category    string            `json:"category"`
	Price       float64           `json:"price"`
	Images      []string          `json:"images"`
	Variants    []variantResponse `json:"variants"`
}

func toVariant(v product.Variant) variantResponse {
	return variantResponse{
		ID:    v.ID,
		Name:  v.Name,
		SKU:   v.SKU,
		Size:  v.Size,
		Color: v.Color,
		Price: v.Price.InexactFloat64(),
		Stock: v.Stock,
	}
}

func toProduct(p product.Product) productResponse {
	out := productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price.InexactFloat64(),
		Images:      p.Images,
		Variants:    make([]variantResponse, len(p.Variants)),
	}
	if out.Images == nil {
		out.Images = []string{}
	}
	for i, v := range p.Variants {
		out.Variants[i] = toVariant(v)
	}
	return out
}

// productSummary is the product shown next to cart and order lines.
type productSummary struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Slug   string   `json:"slug"`
	Images []string `json:"images"`
}

func toSummary(p product.Product) *productSummary {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return &productSummary{ID: p.ID, Name: p.Name, Slug: p.Slug, Images: images}
}

type totalsResponse struct {
	Subtotal  float64 `json:"subtotal"`
	Discount  float64 `json:"discount"`
	Tax       float64 `json:"tax"`
	Shipping  float64 `json:"shipping"`
	Total     float64 `json:"total"`
	ItemCount int     `json:"itemCount"`
}

func toTotals(t pricing.Totals) totalsResponse {
	return totalsResponse{
		Subtotal:  t.Subtotal.InexactFloat64(),
		Discount:  t.Discount.InexactFloat64(),
		Tax:       t.Tax.InexactFloat64(),
		Shipping:  t.Shipping.InexactFloat64(),
		Total:     t.Total.InexactFloat64(),
		ItemCount: t.ItemCount,
	}
}

type cartItemResponse struct {
	ID        string           `json:"id"`
	Product   *productSummary  `json:"product"`
	Variant   *variantResponse `json:"variant"`
	Quantity  int              `json:"quantity"`
	UnitPrice float64          `json:"unitPrice"`
	LineTotal float64          `json:"lineTotal"`
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	totalsResponse
}

func toCart(v *cart.View) cartResponse {
	out := cartResponse{
		Items:          make([]cartItemResponse, len(v.Items)),
		totalsResponse: toTotals(v.Totals),
	}
	for i, it := range v.Items {
		item := cartItemResponse{
			ID:        it.ID,
			Product:   toSummary(it.Product),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.InexactFloat64(),
			LineTotal: it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).InexactFloat64(),
		}
		if it.Variant != nil {
			vr := toVariant(*it.Variant)
			item.Variant = &vr
		}
		out.Items[i] = item
	}
	return out
}

type orderItemResponse struct {
	ProductID string                `json:"productId"`
	Product   *productSummary       `json:"product,omitempty"`
	Variant   order.VariantSnapshot `json:"variant"`
	Quantity  int                   `json:"quantity"`
	Price     float64               `json:"price"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"orderNumber"`
	Status          order.Status        `json:"status"`
	PaymentStatus   order.PaymentStatus `json:"paymentStatus"`
	PaymentMethod   string              `json:"paymentMethod,omitempty"`
	PaymentIntentID string              `json:"paymentIntentId,omitempty"`
	ShippingAddress address.Address     `json:"shippingAddress"`
	BillingAddress  address.Address     `json:"billingAddress"`
	Items           []orderItemResponse `json:"items"`
	Subtotal        float64             `json:"subtotal"`
	Discount        float64             `json:"discount"`
	Tax             float64             `json:"tax"`
	Shipping        float64             `json:"shipping"`
	Total           float64             `json:"total"`
	CouponCode      string              `json:"couponCode,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// toOrder renders o. Products missing from products are omitted from lines.
func toOrder(o *order.Order, products map[string]product.Product) orderResponse {
	out := orderResponse{
		ID:              o.ID,
		OrderNumber:     o.Number,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentMethod:   o.PaymentMethod,
		PaymentIntentID: o.PaymentIntentID,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		Items:           make([]orderItemResponse, len(o.Items)),
		Subtotal:        o.Subtotal.InexactFloat64(),
		Discount:        o.Discount.InexactFloat64(),
		Tax:             o.Tax.InexactFloat64(),
		Shipping:        o.Shipping.InexactFloat64(),
		Total:           o.Total.InexactFloat64(),
		CouponCode:      o.CouponCode,
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for i, it := range o.Items {
		item := orderItemResponse{
			ProductID: it.ProductID,
			Variant:   it.Variant,
			Quantity:  it.Quantity,
			Price:     it.Price.InexactFloat64(),
		}
		if p, ok := products[it.ProductID]; ok {
			item.Product = toSummary(p)
		}
		out.Items[i] = item
	}
	return out
}

type couponResponse struct {
	Code          string              `json:"code"`
	Description   string              `json:"description,omitempty"`
	DiscountType  coupon.DiscountType `json:"discountType"`
	DiscountValue float64             `json:"discountValue"`
	Discount      float64             `json:"discount"`
	MinOrderValue *float64            `json:"minOrderValue,omitempty"`
	MaxDiscount   *float64            `json:"maxDiscount,omitempty"`
}

func optFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

func toCoupon(q *coupon.Quote) couponResponse {
	return couponResponse{
		Code:          q.Coupon.Code,
		Description:   q.Coupon.Description,
		DiscountType:  q.Coupon.DiscountType,
		DiscountValue: q.Coupon.Value.InexactFloat64(),
		Discount:      q.Discount.InexactFloat64(),
		MinOrderValue: optFloat(q.Coupon.MinOrderValue),
		MaxDiscount:   optFloat(q.Coupon.MaxDiscount),
	}
}

type paymentStatusResponse struct {
	OrderID         string              `json:"orderId"`
	OrderNumber     string              `json:"orderNumber"`
	Status          order.Status        `json:"status"`
	PaymentStatus   order.PaymentStatus `json:"paymentStatus"`
	PaymentIntentID string              `json:"paymentIntentId,omitempty"`
	Total           float64             `json:"total"`
}

func toPaymentStatus(o *order.Order) paymentStatusResponse {
	return paymentStatusResponse{
		OrderID:         o.ID,
		OrderNumber:     o.Number,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		PaymentIntentID: o.PaymentIntentID,
		Total:           o.Total.InexactFloat64(),
	}
}

package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

// Line is a cart item resolved against the current catalog.
type Line struct {
	ItemID   string
	Product  product.Product
	Variant  product.Variant
	Quantity int
}

// PricingLines converts snapshot lines into pricing input.
func PricingLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = pricing.Line{UnitPrice: l.Variant.Price, Quantity: l.Quantity}
	}
	return out
}

// InventoryLines converts snapshot lines into stock reservation input.
func InventoryLines(lines []Line) []inventory.Line {
	out := make([]inventory.Line, len(lines))
	for i, l := range lines {
		out[i] = inventory.Line{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			VariantID:   l.Variant.ID,
			VariantName: l.Variant.Name,
			Quantity:    l.Quantity,
		}
	}
	return out
}

// ViewItem is a cart line for display. Variant is nil when the product no
// longer carries the referenced variant.
type ViewItem struct {
	ID        string
	Product   product.Product
	Variant   *product.Variant
	Quantity  int
	UnitPrice decimal.Decimal
}

// View is a cart with resolved products and computed totals.
type View struct {
	Items  []ViewItem
	Totals pricing.Totals
}

// Service implements cart use cases on top of the cart and catalog
// repositories.
type Service struct {
	carts    Repository
	products product.Repository
	pricing  pricing.Engine
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository, engine pricing.Engine) *Service {
	return &Service{
		carts:    carts,
		products: products,
		pricing:  engine,
	}
}

// Snapshot returns the user's cart resolved to current products and variants
// in insertion order. It fails with ErrEmpty when there is nothing to buy,
// product.ErrNotFound when a referenced product is gone, and
// *product.VariantNotFoundError when a product no longer has the variant.
func (s *Service) Snapshot(ctx context.Context, userID string) ([]Line, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmpty
	}

	byID, err := s.fetchProducts(ctx, c.Items)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(c.Items))
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %s", it.ProductID)
		}
		v, ok := p.Variant(it.VariantID)
		if !ok {
			return nil, &product.VariantNotFoundError{
				ProductID:   p.ID,
				ProductName: p.Name,
				VariantID:   it.VariantID,
			}
		}
		lines = append(lines, Line{
			ItemID:   it.ID,
			Product:  p,
			Variant:  v,
			Quantity: it.Quantity,
		})
	}
	return lines, nil
}

// Lock holds the user's cart for the surrounding transaction so that the
// snapshot taken under it stays current until the cart is cleared.
func (s *Service) Lock(ctx context.Context, userID string) error {
	if err := s.carts.Lock(ctx, userID); err != nil {
		return errors.Wrap(err, "lock cart")
	}
	return nil
}

// View returns the cart for display. Lines whose product was removed from the
// catalog are skipped; lines whose variant is gone fall back to the product
// price.
func (s *Service) View(ctx context.Context, userID string) (*View, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if len(c.Items) == 0 {
		return &View{Items: []ViewItem{}, Totals: s.pricing.Compute(nil, decimal.Zero)}, nil
	}

	byID, err := s.fetchProducts(ctx, c.Items)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx)
	view := &View{Items: make([]ViewItem, 0, len(c.Items))}
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, it := range c.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			lg.Debug("Skipping cart item for missing product",
				zap.String("product_id", it.ProductID),
			)
			continue
		}
		item := ViewItem{ID: it.ID, Product: p, Quantity: it.Quantity, UnitPrice: p.Price}
		if v, ok := p.Variant(it.VariantID); ok {
			item.Variant = &v
			item.UnitPrice = v.Price
		}
		view.Items = append(view.Items, item)
		lines = append(lines, pricing.Line{UnitPrice: item.UnitPrice, Quantity: it.Quantity})
	}
	view.Totals = s.pricing.Compute(lines, decimal.Zero)
	return view, nil
}

// AddItem adds quantity units of a product variant to the cart. Adding an
// existing line increases its quantity; the merged quantity must not exceed
// the variant's stock.
func (s *Service) AddItem(ctx context.Context, userID, productID, variantID string, quantity int) (*View, error) {
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}

	p, v, err := s.variant(ctx, productID, variantID)
	if err != nil {
		return nil, err
	}
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	total := quantity
	for _, it := range c.Items {
		if it.ProductID == productID && it.VariantID == variantID {
			total += it.Quantity
		}
	}
	if err := checkStock(p, v, total); err != nil {
		return nil, err
	}

	if err := s.carts.AddItem(ctx, userID, productID, variantID, quantity); err != nil {
		return nil, errors.Wrap(err, "add cart item")
	}
	return s.View(ctx, userID)
}

// UpdateItem sets the quantity of a cart line. A quantity below one removes
// the line.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*View, error) {
	if quantity < 1 {
		return s.RemoveItem(ctx, userID, itemID)
	}

	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	it, ok := c.Item(itemID)
	if !ok {
		return nil, ErrItemNotFound
	}
	p, v, err := s.variant(ctx, it.ProductID, it.VariantID)
	if err != nil {
		return nil, err
	}
	if err := checkStock(p, v, quantity); err != nil {
		return nil, err
	}

	if err := s.carts.SetQuantity(ctx, userID, itemID, quantity); err != nil {
		return nil, errors.Wrap(err, "update cart item")
	}
	return s.View(ctx, userID)
}

func (s *Service) variant(ctx context.Context, productID, variantID string) (*product.Product, product.Variant, error) {
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, product.Variant{}, errors.Wrap(err, "get product")
	}
	v, ok := p.Variant(variantID)
	if !ok {
		return nil, product.Variant{}, &product.VariantNotFoundError{
			ProductID:   p.ID,
			ProductName: p.Name,
			VariantID:   variantID,
		}
	}
	return p, v, nil
}

// checkStock fails when quantity exceeds the variant's current stock. The
// authoritative check happens when checkout reserves stock.
func checkStock(p *product.Product, v product.Variant, quantity int) error {
	if quantity <= v.Stock {
		return nil
	}
	return &inventory.InsufficientStockError{
		ProductID:   p.ID,
		ProductName: p.Name,
		VariantID:   v.ID,
		VariantName: v.Name,
		Requested:   quantity,
	}
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*View, error) {
	if err := s.carts.RemoveItem(ctx, userID, itemID); err != nil {
		return nil, errors.Wrap(err, "remove cart item")
	}
	return s.View(ctx, userID)
}

// Clear empties the user's cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.carts.Clear(ctx, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

func (s *Service) fetchProducts(ctx context.Context, items []Item) (map[string]product.Product, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}
	return byID, nil
}

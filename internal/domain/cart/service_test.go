package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/inventory"
	"github.com/xenking/storefront/internal/domain/pricing"
	"github.com/xenking/storefront/internal/domain/product"
)

type mockCartRepo struct {
	cart     *Cart
	getErr   error
	added    []Item
	cleared  bool
	setQty   map[string]int
	removeID string
	lockErr  error
	locked   []string
}

func (m *mockCartRepo) Get(_ context.Context, userID string) (*Cart, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cart == nil {
		return &Cart{UserID: userID}, nil
	}
	return m.cart, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, _, productID, variantID string, quantity int) error {
	m.added = append(m.added, Item{ProductID: productID, VariantID: variantID, Quantity: quantity})
	return nil
}

func (m *mockCartRepo) SetQuantity(_ context.Context, _, itemID string, quantity int) error {
	if m.cart == nil {
		return ErrItemNotFound
	}
	if _, ok := m.cart.Item(itemID); !ok {
		return ErrItemNotFound
	}
	if m.setQty == nil {
		m.setQty = map[string]int{}
	}
	m.setQty[itemID] = quantity
	return nil
}

func (m *mockCartRepo) RemoveItem(_ context.Context, _, itemID string) error {
	m.removeID = itemID
	return nil
}

func (m *mockCartRepo) Clear(_ context.Context, _ string) error {
	m.cleared = true
	return nil
}

func (m *mockCartRepo) Lock(_ context.Context, userID string) error {
	m.locked = append(m.locked, userID)
	return m.lockErr
}

type mockProductRepo struct {
	byID map[string]product.Product
}

func (m *mockProductRepo) List(context.Context, product.ListFilter) ([]product.Product, int, error) {
	return nil, 0, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func newCatalog() *mockProductRepo {
	return &mockProductRepo{byID: map[string]product.Product{
		"p1": {
			ID: "p1", Name: "Denim Jacket", Price: decimal.RequireFromString("1999"),
			Variants: []product.Variant{
				{ID: "v1", ProductID: "p1", Name: "M / Blue", Price: decimal.RequireFromString("2099"), Stock: 4},
			},
		},
		"p2": {
			ID: "p2", Name: "Linen Shirt", Price: decimal.RequireFromString("999"),
			Variants: []product.Variant{
				{ID: "v2", ProductID: "p2", Name: "L / White", Price: decimal.RequireFromString("999"), Stock: 2},
			},
		},
	}}
}

func TestService_Snapshot(t *testing.T) {
	tests := []struct {
		name    string
		items   []Item
		wantErr func(t *testing.T, err error)
		want    []string
	}{
		{
			name: "empty cart",
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrEmpty)
			},
		},
		{
			name: "missing product",
			items: []Item{
				{ID: "i1", ProductID: "gone", VariantID: "v1", Quantity: 1},
			},
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, product.ErrNotFound)
			},
		},
		{
			name: "missing variant",
			items: []Item{
				{ID: "i1", ProductID: "p1", VariantID: "v9", Quantity: 1},
			},
			wantErr: func(t *testing.T, err error) {
				var vErr *product.VariantNotFoundError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "Denim Jacket", vErr.ProductName)
				assert.Equal(t, "v9", vErr.VariantID)
			},
		},
		{
			name: "resolves lines in cart order",
			items: []Item{
				{ID: "i2", ProductID: "p2", VariantID: "v2", Quantity: 2},
				{ID: "i1", ProductID: "p1", VariantID: "v1", Quantity: 1},
			},
			want: []string{"i2", "i1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockCartRepo{cart: &Cart{ID: "c1", UserID: "u1", Items: tt.items}}
			svc := NewService(repo, newCatalog(), pricing.NewEngine())

			lines, err := svc.Snapshot(context.Background(), "u1")
			if tt.wantErr != nil {
				tt.wantErr(t, err)
				return
			}
			require.NoError(t, err)
			got := make([]string, len(lines))
			for i, l := range lines {
				got[i] = l.ItemID
			}
			assert.Equal(t, tt.want, got)
			assert.True(t, decimal.RequireFromString("999").Equal(lines[0].Variant.Price))
		})
	}
}

func TestService_Snapshot_RepoError(t *testing.T) {
	svc := NewService(&mockCartRepo{getErr: errors.New("boom")}, newCatalog(), pricing.NewEngine())

	_, err := svc.Snapshot(context.Background(), "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get cart")
}

func TestService_View(t *testing.T) {
	repo := &mockCartRepo{cart: &Cart{ID: "c1", UserID: "u1", Items: []Item{
		{ID: "i1", ProductID: "p1", VariantID: "v1", Quantity: 1},
		{ID: "i2", ProductID: "p1", VariantID: "v-removed", Quantity: 1},
		{ID: "i3", ProductID: "deleted", VariantID: "v3", Quantity: 5},
	}}}
	svc := NewService(repo, newCatalog(), pricing.NewEngine())

	view, err := svc.View(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, view.Items, 2)

	assert.NotNil(t, view.Items[0].Variant)
	assert.Nil(t, view.Items[1].Variant)
	assert.True(t, decimal.RequireFromString("1999").Equal(view.Items[1].UnitPrice))

	// 2099 + 1999 = 4098, free shipping, tax 737.64
	assert.True(t, decimal.RequireFromString("4098").Equal(view.Totals.Subtotal))
	assert.True(t, decimal.Zero.Equal(view.Totals.Shipping))
	assert.True(t, decimal.RequireFromString("4835.64").Equal(view.Totals.Total))
	assert.Equal(t, 2, view.Totals.ItemCount)
}

func TestService_View_Empty(t *testing.T) {
	svc := NewService(&mockCartRepo{}, newCatalog(), pricing.NewEngine())

	view, err := svc.View(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, view.Items)
	assert.True(t, view.Totals.Total.IsZero())
}

func TestService_AddItem(t *testing.T) {
	t.Run("adds known variant", func(t *testing.T) {
		repo := &mockCartRepo{}
		svc := NewService(repo, newCatalog(), pricing.NewEngine())

		_, err := svc.AddItem(context.Background(), "u1", "p1", "v1", 2)
		require.NoError(t, err)
		require.Len(t, repo.added, 1)
		assert.Equal(t, Item{ProductID: "p1", VariantID: "v1", Quantity: 2}, repo.added[0])
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		svc := NewService(&mockCartRepo{}, newCatalog(), pricing.NewEngine())

		_, err := svc.AddItem(context.Background(), "u1", "p1", "v1", 0)
		var qErr *InvalidQuantityError
		require.ErrorAs(t, err, &qErr)
	})

	t.Run("unknown variant", func(t *testing.T) {
		svc := NewService(&mockCartRepo{}, newCatalog(), pricing.NewEngine())

		_, err := svc.AddItem(context.Background(), "u1", "p1", "nope", 1)
		var vErr *product.VariantNotFoundError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("unknown product", func(t *testing.T) {
		svc := NewService(&mockCartRepo{}, newCatalog(), pricing.NewEngine())

		_, err := svc.AddItem(context.Background(), "u1", "nope", "v1", 1)
		require.ErrorIs(t, err, product.ErrNotFound)
	})
}

func TestService_UpdateItem(t *testing.T) {
	newRepo := func() *mockCartRepo {
		return &mockCartRepo{cart: &Cart{ID: "c1", UserID: "u1", Items: []Item{
			{ID: "i1", ProductID: "p1", VariantID: "v1", Quantity: 1},
		}}}
	}

	t.Run("sets quantity", func(t *testing.T) {
		repo := newRepo()
		svc := NewService(repo, newCatalog(), pricing.NewEngine())

		_, err := svc.UpdateItem(context.Background(), "u1", "i1", 3)
		require.NoError(t, err)
		assert.Equal(t, 3, repo.setQty["i1"])
	})

	t.Run("missing item", func(t *testing.T) {
		svc := NewService(newRepo(), newCatalog(), pricing.NewEngine())

		_, err := svc.UpdateItem(context.Background(), "u1", "missing", 3)
		require.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("zero removes the line", func(t *testing.T) {
		repo := newRepo()
		svc := NewService(repo, newCatalog(), pricing.NewEngine())

		_, err := svc.UpdateItem(context.Background(), "u1", "i1", 0)
		require.NoError(t, err)
		assert.Equal(t, "i1", repo.removeID)
		assert.Empty(t, repo.setQty)
	})

	t.Run("above stock", func(t *testing.T) {
		repo := newRepo()
		svc := NewService(repo, newCatalog(), pricing.NewEngine())

		_, err := svc.UpdateItem(context.Background(), "u1", "i1", 5)
		var stockErr *inventory.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, "M / Blue", stockErr.VariantName)
		assert.Equal(t, 5, stockErr.Requested)
		assert.Empty(t, repo.setQty)
	})
}

func TestService_AddItem_MergedStock(t *testing.T) {
	repo := &mockCartRepo{cart: &Cart{ID: "c1", UserID: "u1", Items: []Item{
		{ID: "i1", ProductID: "p2", VariantID: "v2", Quantity: 1},
	}}}
	svc := NewService(repo, newCatalog(), pricing.NewEngine())

	_, err := svc.AddItem(context.Background(), "u1", "p2", "v2", 1)
	require.NoError(t, err)

	// Stock of v2 is 2 and the stored line does not change in the fake.
	_, err = svc.AddItem(context.Background(), "u1", "p2", "v2", 2)
	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Len(t, repo.added, 1)
}

func TestService_Clear(t *testing.T) {
	repo := &mockCartRepo{}
	svc := NewService(repo, newCatalog(), pricing.NewEngine())

	require.NoError(t, svc.Clear(context.Background(), "u1"))
	assert.True(t, repo.cleared)
}

func TestService_Lock(t *testing.T) {
	repo := &mockCartRepo{}
	svc := NewService(repo, newCatalog(), pricing.NewEngine())

	require.NoError(t, svc.Lock(context.Background(), "u1"))
	assert.Equal(t, []string{"u1"}, repo.locked)

	repo.lockErr = assert.AnError
	err := svc.Lock(context.Background(), "u1")
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "lock cart")
}

func TestLines_Conversions(t *testing.T) {
	catalog := newCatalog()
	p := catalog.byID["p1"]
	lines := []Line{{ItemID: "i1", Product: p, Variant: p.Variants[0], Quantity: 2}}

	pl := PricingLines(lines)
	require.Len(t, pl, 1)
	assert.True(t, decimal.RequireFromString("2099").Equal(pl[0].UnitPrice))
	assert.Equal(t, 2, pl[0].Quantity)

	il := InventoryLines(lines)
	require.Len(t, il, 1)
	assert.Equal(t, "Denim Jacket", il[0].ProductName)
	assert.Equal(t, "M / Blue", il[0].VariantName)
	assert.Equal(t, 2, il[0].Quantity)
}

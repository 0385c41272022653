package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/repository"
)

const (
	upsertUserSQL = `INSERT INTO users (id, email, first_name, last_name, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name, role = EXCLUDED.role`

	upsertAddressSQL = `INSERT INTO addresses (id, user_id, first_name, last_name, company, address1, address2,
			city, state, postal_code, country, phone, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			company = EXCLUDED.company, address1 = EXCLUDED.address1, address2 = EXCLUDED.address2,
			city = EXCLUDED.city, state = EXCLUDED.state, postal_code = EXCLUDED.postal_code,
			country = EXCLUDED.country, phone = EXCLUDED.phone, is_default = EXCLUDED.is_default`

	upsertProductSQL = `INSERT INTO products (id, name, slug, description, category, price, images, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, slug = EXCLUDED.slug,
			description = EXCLUDED.description, category = EXCLUDED.category,
			price = EXCLUDED.price, images = EXCLUDED.images`

	upsertVariantSQL = `INSERT INTO product_variants (id, product_id, name, sku, size, color, price, stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, sku = EXCLUDED.sku, size = EXCLUDED.size,
			color = EXCLUDED.color, price = EXCLUDED.price, stock = EXCLUDED.stock`

	upsertCouponSQL = `INSERT INTO coupons (id, code, description, discount_type, discount_value,
			min_order_value, max_discount, usage_limit, active)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, TRUE)
		ON CONFLICT (code) DO UPDATE SET description = EXCLUDED.description,
			discount_type = EXCLUDED.discount_type, discount_value = EXCLUDED.discount_value,
			min_order_value = EXCLUDED.min_order_value, max_discount = EXCLUDED.max_discount,
			usage_limit = EXCLUDED.usage_limit, active = TRUE`
)

type catalog struct {
	Users    []userJSON    `json:"users"`
	Products []productJSON `json:"products"`
	Coupons  []couponJSON  `json:"coupons"`
}

type userJSON struct {
	ID        string        `json:"id"`
	Email     string        `json:"email"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	Role      string        `json:"role"`
	Addresses []addressJSON `json:"addresses"`
}

type addressJSON struct {
	ID         string `json:"id"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Company    string `json:"company"`
	Address1   string `json:"address1"`
	Address2   string `json:"address2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
	IsDefault  bool   `json:"isDefault"`
}

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Images      []string        `json:"images"`
	Variants    []variantJSON   `json:"variants"`
}

type variantJSON struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	SKU   string          `json:"sku"`
	Size  string          `json:"size"`
	Color string          `json:"color"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type couponJSON struct {
	Code          string              `json:"code"`
	Description   string              `json:"description"`
	DiscountType  string              `json:"discountType"`
	Value         decimal.Decimal     `json:"value"`
	MinOrderValue decimal.NullDecimal `json:"minOrderValue"`
	MaxDiscount   decimal.NullDecimal `json:"maxDiscount"`
	UsageLimit    *int                `json:"usageLimit"`
}

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to seed catalog JSON file")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, catalogFile); err != nil {
		lg.Fatal("seed failed", zap.Error(err))
	}

	lg.Info("seed completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, catalogFile string) error {
	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var c catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	lg.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	batch := &pgx.Batch{}
	queueUsers(batch, c.Users)
	queueProducts(batch, c.Products)
	queueCoupons(batch, c.Coupons)

	if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	}); err != nil {
		return errors.Wrap(err, "apply seed batch")
	}

	lg.Info("seeded catalog",
		zap.Int("users", len(c.Users)),
		zap.Int("products", len(c.Products)),
		zap.Int("coupons", len(c.Coupons)),
		zap.Int("statements", batch.Len()),
	)

	return nil
}

func queueUsers(batch *pgx.Batch, users []userJSON) {
	for _, u := range users {
		role := strings.ToUpper(u.Role)
		if role == "" {
			role = "USER"
		}
		batch.Queue(upsertUserSQL, u.ID, strings.ToLower(u.Email), u.FirstName, u.LastName, role)

		for _, a := range u.Addresses {
			country := a.Country
			if country == "" {
				country = "India"
			}
			batch.Queue(upsertAddressSQL, a.ID, u.ID, a.FirstName, a.LastName, a.Company,
				a.Address1, a.Address2, a.City, a.State, a.PostalCode, country, a.Phone, a.IsDefault)
		}
	}
}

func queueProducts(batch *pgx.Batch, products []productJSON) {
	for _, p := range products {
		images := p.Images
		if images == nil {
			images = []string{}
		}
		batch.Queue(upsertProductSQL, p.ID, p.Name, p.Slug, p.Description, p.Category, p.Price, images)

		for _, v := range p.Variants {
			price := v.Price
			if price.IsZero() {
				price = p.Price
			}
			batch.Queue(upsertVariantSQL, v.ID, p.ID, v.Name, v.SKU, v.Size, v.Color, price, v.Stock)
		}
	}
}

func queueCoupons(batch *pgx.Batch, coupons []couponJSON) {
	for _, c := range coupons {
		batch.Queue(upsertCouponSQL, strings.ToUpper(c.Code), c.Description, strings.ToUpper(c.DiscountType),
			c.Value, c.MinOrderValue, c.MaxDiscount, c.UsageLimit)
	}
}

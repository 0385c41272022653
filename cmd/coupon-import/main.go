package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/repository"
)

func main() {
	var (
		databaseURL  string
		discountType string
		value        string
		minOrder     string
		maxDiscount  string
		usageLimit   int
		description  string
		startsAt     string
		expiresAt    string
		batchSize    int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&discountType, "type", string(coupon.DiscountPercentage), "discount type: PERCENTAGE or FIXED")
	flag.StringVar(&value, "value", "10", "discount value (percent or fixed amount)")
	flag.StringVar(&minOrder, "min-order", "", "minimum order value (empty for none)")
	flag.StringVar(&maxDiscount, "max-discount", "", "discount cap for percentage coupons (empty for none)")
	flag.IntVar(&usageLimit, "usage-limit", 0, "maximum number of uses per code (0 for unlimited)")
	flag.StringVar(&description, "description", "", "description stored with every imported code")
	flag.StringVar(&startsAt, "starts-at", "", "RFC 3339 start of the validity window")
	flag.StringVar(&expiresAt, "expires-at", "", "RFC 3339 end of the validity window")
	flag.IntVar(&batchSize, "batch", defaultBatchSize, "number of codes per COPY batch")
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
	files := flag.Args()
	if len(files) == 0 {
		lg.Fatal("at least one gzip-compressed code file is required")
	}

	tmpl, err := parseTemplate(discountType, value, minOrder, maxDiscount, usageLimit, description, startsAt, expiresAt)
	if err != nil {
		lg.Fatal("invalid coupon rule", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, files, tmpl, batchSize); err != nil {
		lg.Fatal("coupon import failed", zap.Error(err))
	}

	lg.Info("coupon import completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string, tmpl coupon.Coupon, batchSize int) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	lg.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := &importer{
		store:     repository.NewCouponRepository(repository.NewDB(pool)),
		lg:        lg,
		template:  tmpl,
		batchSize: batchSize,
	}
	stats, err := imp.Run(ctx, files)
	if err != nil {
		return err
	}

	lg.Info("import summary",
		zap.Uint64("read", stats.Read),
		zap.Uint64("rejected", stats.Rejected),
		zap.Int64("copied", stats.Copied),
		zap.Uint64("inserted", stats.Inserted),
		zap.Uint64("skipped", stats.Skipped),
	)
	return nil
}

// parseTemplate builds the rule applied to every imported code.
func parseTemplate(
	discountType, value, minOrder, maxDiscount string,
	usageLimit int,
	description, startsAt, expiresAt string,
) (coupon.Coupon, error) {
	t := coupon.Coupon{
		DiscountType: coupon.DiscountType(discountType),
		Description:  description,
		Active:       true,
	}
	if !t.DiscountType.Valid() {
		return coupon.Coupon{}, errors.Errorf("unknown discount type %q", discountType)
	}

	v, err := decimal.NewFromString(value)
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse value")
	}
	if v.IsNegative() {
		return coupon.Coupon{}, errors.New("value must not be negative")
	}
	if t.DiscountType == coupon.DiscountPercentage && v.GreaterThan(decimal.NewFromInt(100)) {
		return coupon.Coupon{}, errors.New("percentage must not exceed 100")
	}
	t.Value = v

	if t.MinOrderValue, err = parseOptionalDecimal(minOrder); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse min order")
	}
	if t.MaxDiscount, err = parseOptionalDecimal(maxDiscount); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse max discount")
	}
	if usageLimit > 0 {
		t.UsageLimit = &usageLimit
	}
	if t.StartsAt, err = parseOptionalTime(startsAt); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse starts-at")
	}
	if t.ExpiresAt, err = parseOptionalTime(expiresAt); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "parse expires-at")
	}
	if t.StartsAt != nil && t.ExpiresAt != nil && !t.ExpiresAt.After(*t.StartsAt) {
		return coupon.Coupon{}, errors.New("expires-at must be after starts-at")
	}
	return t, nil
}

func parseOptionalDecimal(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func parseOptionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

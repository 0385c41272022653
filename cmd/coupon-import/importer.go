package main

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/coupon"
)

const (
	bloomCapacity    = 10_000_000
	bloomFPR         = 0.001
	defaultBatchSize = 5_000
	progressEvery    = 1_000_000
	minCodeLen       = 3
	maxCodeLen       = 32
)

// couponStore is the persistence surface used by the importer.
type couponStore interface {
	EachCode(ctx context.Context, fn func(code string)) error
	CopyNew(ctx context.Context, coupons []coupon.Coupon) (int64, error)
	InsertIfAbsent(ctx context.Context, c coupon.Coupon) (bool, error)
}

type importStats struct {
	Read     uint64
	Rejected uint64
	Copied   int64
	Inserted uint64
	Skipped  uint64
}

// importer streams coupon codes from gzip files into the store.
//
// Codes that are definitely unknown to both the database and the current run
// are bulk-copied. Codes the bloom filter may have seen go through
// InsertIfAbsent so that duplicates are skipped instead of failing a COPY.
type importer struct {
	store     couponStore
	lg        *zap.Logger
	template  coupon.Coupon
	batchSize int
}

func (imp *importer) Run(ctx context.Context, files []string) (importStats, error) {
	var stats importStats

	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var existing uint64
	if err := imp.store.EachCode(ctx, func(code string) {
		seen.AddString(code)
		existing++
	}); err != nil {
		return stats, errors.Wrap(err, "load existing codes")
	}
	imp.lg.Info("loaded existing codes", zap.Uint64("count", existing))

	batchSize := imp.batchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	codes := make(chan string, batchSize)
	g, gctx := errgroup.WithContext(ctx)

	readers, rctx := errgroup.WithContext(gctx)
	for i, f := range files {
		readers.Go(func() error {
			return imp.streamFile(rctx, i, f, codes)
		})
	}
	g.Go(func() error {
		defer close(codes)
		return readers.Wait()
	})

	g.Go(func() error {
		batch := make([]coupon.Coupon, 0, batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			n, err := imp.store.CopyNew(gctx, batch)
			if err != nil {
				return errors.Wrap(err, "copy batch")
			}
			stats.Copied += n
			batch = batch[:0]
			return nil
		}

		for code := range codes {
			stats.Read++
			if !validCode(code) {
				stats.Rejected++
				continue
			}

			c := imp.template
			c.Code = code

			if !seen.TestAndAddString(code) {
				batch = append(batch, c)
				if len(batch) == batchSize {
					if err := flush(); err != nil {
						return err
					}
				}
				continue
			}

			// Possible duplicate: pending copies must land first so that
			// InsertIfAbsent sees them.
			if err := flush(); err != nil {
				return err
			}
			inserted, err := imp.store.InsertIfAbsent(gctx, c)
			if err != nil {
				return err
			}
			if inserted {
				stats.Inserted++
			} else {
				stats.Skipped++
			}
		}
		return flush()
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

// streamFile sends every normalized line of a gzip file to out.
func (imp *importer) streamFile(ctx context.Context, idx int, path string, out chan<- string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var count uint64
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		code := normalizeCode(scanner.Text())
		if code == "" {
			continue
		}
		select {
		case out <- code:
		case <-ctx.Done():
			return ctx.Err()
		}
		count++
		if count%progressEvery == 0 {
			imp.lg.Info("import progress", zap.Int("file", idx+1), zap.Uint64("codes", count))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	imp.lg.Info("file complete", zap.String("path", path), zap.Uint64("codes", count))
	return nil
}

func normalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func validCode(code string) bool {
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

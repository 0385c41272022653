package review

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/product"
)

// Products resolves catalog products.
type Products interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Service implements review use cases.
type Service struct {
	reviews   Repository
	products  Products
	purchases Purchases
}

// NewService creates a review Service.
func NewService(reviews Repository, products Products, purchases Purchases) *Service {
	return &Service{reviews: reviews, products: products, purchases: purchases}
}

// List returns a page of reviews, newest first, and the number of matches.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Review, int, error) {
	var (
		reviews []Review
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if reviews, err = s.reviews.List(gctx, f); err != nil {
			return errors.Wrap(err, "list reviews")
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if total, err = s.reviews.Count(gctx, f); err != nil {
			return errors.Wrap(err, "count reviews")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

// Get returns a review by id.
func (s *Service) Get(ctx context.Context, id string) (*Review, error) {
	return s.reviews.GetByID(ctx, id)
}

// Create stores the user's review of an active product. The review is
// verified when the user has a delivered order containing the product.
func (s *Service) Create(ctx context.Context, userID, productID string, in Input) (*Review, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	verified, err := s.purchases.HasDelivered(ctx, userID, productID)
	if err != nil {
		return nil, errors.Wrap(err, "check purchase")
	}

	images := in.Images
	if images == nil {
		images = []string{}
	}
	r := &Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    in.Rating,
		Title:     in.Title,
		Content:   in.Content,
		Images:    images,
		Verified:  verified,
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create review")
	}

	zctx.From(ctx).Info("Review created",
		zap.String("review_id", r.ID),
		zap.String("product_id", productID),
		zap.Bool("verified", verified),
	)
	return s.reviews.GetByID(ctx, r.ID)
}

// Update changes the caller's own review.
func (s *Service) Update(ctx context.Context, userID, id string, p Patch) (*Review, error) {
	r, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, ErrNotFound
	}

	p.apply(r)
	if err := s.reviews.Update(ctx, r); err != nil {
		return nil, errors.Wrap(err, "update review")
	}
	return r, nil
}

// Delete removes a review. Users delete their own reviews, admins any.
func (s *Service) Delete(ctx context.Context, userID string, admin bool, id string) error {
	r, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !admin && r.UserID != userID {
		return ErrNotFound
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete review")
	}
	return nil
}

// Summary returns the rating aggregate of an active product.
func (s *Service) Summary(ctx context.Context, productID string) (Summary, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return Summary{}, err
	}
	sum, err := s.reviews.Summary(ctx, productID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "summarize reviews")
	}
	return sum, nil
}

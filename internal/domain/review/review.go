// Package review holds product reviews. A review is marked verified when its
// author has a delivered order containing the product.
package review

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a review does not exist or is not
	// visible to the caller.
	ErrNotFound = errors.New("review not found")
	// ErrAlreadyReviewed is returned on a second review of the same product
	// by the same user.
	ErrAlreadyReviewed = errors.New("you have already reviewed this product")
)

// Review is a user's rating of a product.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	// AuthorName is the author's display name, resolved on read.
	AuthorName string
	Rating     int
	Title      string
	Content    string
	Images     []string
	Verified   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Input is the content of a new review.
type Input struct {
	Rating  int
	Title   string
	Content string
	Images  []string
}

// Patch changes the fields that are set.
type Patch struct {
	Rating  *int
	Title   *string
	Content *string
	Images  []string
}

func (p Patch) apply(r *Review) {
	if p.Rating != nil {
		r.Rating = *p.Rating
	}
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Content != nil {
		r.Content = *p.Content
	}
	if p.Images != nil {
		r.Images = p.Images
	}
}

// Summary aggregates a product's ratings.
type Summary struct {
	ProductID string
	Count     int
	// Average is rounded to one decimal place and zero without reviews.
	Average decimal.Decimal
}

// ListFilter narrows a review listing. Empty fields match everything.
type ListFilter struct {
	ProductID string
	UserID    string
	Limit     int
	Offset    int
}

// Repository persists reviews.
type Repository interface {
	// Create assigns ID and timestamps. It returns ErrAlreadyReviewed when
	// the user already reviewed the product.
	Create(ctx context.Context, r *Review) error
	GetByID(ctx context.Context, id string) (*Review, error)
	// Update persists rating, title, content and images.
	Update(ctx context.Context, r *Review) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ListFilter) ([]Review, error)
	Count(ctx context.Context, f ListFilter) (int, error)
	Summary(ctx context.Context, productID string) (Summary, error)
}

// Purchases reports whether a user received a product.
type Purchases interface {
	HasDelivered(ctx context.Context, userID, productID string) (bool, error)
}

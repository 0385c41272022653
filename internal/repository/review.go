package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/storefront/internal/domain/review"
)

const (
	reviewProductUserConstraint = "reviews_product_user_key"

	reviewColumns = `r.id, r.product_id, r.user_id, trim(u.first_name || ' ' || u.last_name),
		r.rating, r.title, r.content, r.images, r.verified, r.created_at, r.updated_at`

	createReviewSQL = `INSERT INTO reviews (id, product_id, user_id, rating, title, content, images, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	getReviewByIDSQL = `SELECT ` + reviewColumns + `
		FROM reviews r JOIN users u ON u.id = r.user_id
		WHERE r.id = $1`

	updateReviewSQL = `UPDATE reviews
		SET rating = $2, title = $3, content = $4, images = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteReviewSQL = `DELETE FROM reviews WHERE id = $1`

	reviewFilterSQL = `WHERE ($1::uuid IS NULL OR r.product_id = $1::uuid)
		AND ($2::uuid IS NULL OR r.user_id = $2::uuid)`

	listReviewsSQL = `SELECT ` + reviewColumns + `
		FROM reviews r JOIN users u ON u.id = r.user_id
		` + reviewFilterSQL + `
		ORDER BY r.created_at DESC, r.id
		LIMIT NULLIF($3, 0) OFFSET $4`

	countReviewsSQL = `SELECT count(*) FROM reviews r ` + reviewFilterSQL

	reviewSummarySQL = `SELECT count(*), COALESCE(round(avg(rating), 1), 0)
		FROM reviews WHERE product_id = $1`

	hasDeliveredSQL = `SELECT EXISTS (
		SELECT 1 FROM orders
		WHERE user_id = $1 AND status = 'DELIVERED'
			AND items @> jsonb_build_array(jsonb_build_object('productId', $2::text)))`
)

var (
	_ review.Repository = (*ReviewRepository)(nil)
	_ review.Purchases  = (*OrderRepository)(nil)
)

// ReviewRepository implements review.Repository backed by PostgreSQL.
type ReviewRepository struct {
	db *DB
}

// NewReviewRepository returns a ReviewRepository that uses the given DB.
func NewReviewRepository(db *DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review. A second review of the product by the same user
// yields review.ErrAlreadyReviewed.
func (r *ReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	id := uuid.NewString()
	err := r.db.q(ctx).QueryRow(ctx, createReviewSQL,
		id, rv.ProductID, rv.UserID, rv.Rating, rv.Title, rv.Content, rv.Images, rv.Verified,
	).Scan(&rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, reviewProductUserConstraint) {
			return review.ErrAlreadyReviewed
		}
		return fmt.Errorf("creating review: %w", err)
	}
	rv.ID = id
	return nil
}

// GetByID returns a review with its author's name.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*review.Review, error) {
	if !validID(id) {
		return nil, review.ErrNotFound
	}
	rows, err := r.db.q(ctx).Query(ctx, getReviewByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting review %q: %w", id, err)
	}
	rv, err := pgx.CollectExactlyOneRow(rows, scanReview)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, review.ErrNotFound
		}
		return nil, fmt.Errorf("getting review %q: %w", id, err)
	}
	return &rv, nil
}

// Update persists the editable fields of a review.
func (r *ReviewRepository) Update(ctx context.Context, rv *review.Review) error {
	err := r.db.q(ctx).QueryRow(ctx, updateReviewSQL,
		rv.ID, rv.Rating, rv.Title, rv.Content, rv.Images,
	).Scan(&rv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return review.ErrNotFound
		}
		return fmt.Errorf("updating review %q: %w", rv.ID, err)
	}
	return nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return review.ErrNotFound
	}
	tag, err := r.db.q(ctx).Exec(ctx, deleteReviewSQL, id)
	if err != nil {
		return fmt.Errorf("deleting review %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return review.ErrNotFound
	}
	return nil
}

// List returns reviews matching f, newest first.
func (r *ReviewRepository) List(ctx context.Context, f review.ListFilter) ([]review.Review, error) {
	if !filterIDsValid(f) {
		return nil, nil
	}
	rows, err := r.db.q(ctx).Query(ctx, listReviewsSQL,
		nullableID(f.ProductID), nullableID(f.UserID), f.Limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	reviews, err := pgx.CollectRows(rows, scanReview)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	return reviews, nil
}

// Count returns the number of reviews matching f.
func (r *ReviewRepository) Count(ctx context.Context, f review.ListFilter) (int, error) {
	if !filterIDsValid(f) {
		return 0, nil
	}
	var n int
	err := r.db.q(ctx).QueryRow(ctx, countReviewsSQL,
		nullableID(f.ProductID), nullableID(f.UserID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting reviews: %w", err)
	}
	return n, nil
}

// Summary returns the review count and average rating of a product.
func (r *ReviewRepository) Summary(ctx context.Context, productID string) (review.Summary, error) {
	sum := review.Summary{ProductID: productID}
	if !validID(productID) {
		return sum, nil
	}
	if err := r.db.q(ctx).QueryRow(ctx, reviewSummarySQL, productID).Scan(&sum.Count, &sum.Average); err != nil {
		return sum, fmt.Errorf("summarizing reviews of %q: %w", productID, err)
	}
	return sum, nil
}

// HasDelivered reports whether the user has a delivered order containing the
// product.
func (r *OrderRepository) HasDelivered(ctx context.Context, userID, productID string) (bool, error) {
	if !validID(userID) {
		return false, nil
	}
	var ok bool
	if err := r.db.q(ctx).QueryRow(ctx, hasDeliveredSQL, userID, productID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking delivered orders: %w", err)
	}
	return ok, nil
}

// filterIDsValid reports whether the set ids of f can match any row.
func filterIDsValid(f review.ListFilter) bool {
	return (f.ProductID == "" || validID(f.ProductID)) && (f.UserID == "" || validID(f.UserID))
}

func scanReview(row pgx.CollectableRow) (review.Review, error) {
	var rv review.Review
	err := row.Scan(
		&rv.ID, &rv.ProductID, &rv.UserID, &rv.AuthorName,
		&rv.Rating, &rv.Title, &rv.Content, &rv.Images, &rv.Verified, &rv.CreatedAt, &rv.UpdatedAt,
	)
	return rv, err
}

package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/storefront/internal/domain/review"
)

const defaultReviewLimit = 10

type createReviewRequest struct {
	Rating  int      `json:"rating" validate:"required,min=1,max=5"`
	Title   string   `json:"title" validate:"required,min=3,max=100"`
	Content string   `json:"content" validate:"required,min=10,max=2000"`
	Images  []string `json:"images" validate:"max=10,dive,url"`
}

type updateReviewRequest struct {
	Rating  *int     `json:"rating" validate:"omitempty,min=1,max=5"`
	Title   *string  `json:"title" validate:"omitempty,min=3,max=100"`
	Content *string  `json:"content" validate:"omitempty,min=10,max=2000"`
	Images  []string `json:"images" validate:"omitempty,max=10,dive,url"`
}

type reviewResponse struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"productId"`
	UserID     string    `json:"userId"`
	AuthorName string    `json:"authorName"`
	Rating     int       `json:"rating"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Images     []string  `json:"images"`
	Verified   bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ratingResponse struct {
	ProductID string  `json:"productId"`
	Count     int     `json:"reviewCount"`
	Average   float64 `json:"averageRating"`
}

func toReview(r *review.Review) reviewResponse {
	images := r.Images
	if images == nil {
		images = []string{}
	}
	return reviewResponse{
		ID:         r.ID,
		ProductID:  r.ProductID,
		UserID:     r.UserID,
		AuthorName: r.AuthorName,
		Rating:     r.Rating,
		Title:      r.Title,
		Content:    r.Content,
		Images:     images,
		Verified:   r.Verified,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// ListReviews serves GET /reviews, optionally narrowed by productId.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	h.listReviews(w, r, review.ListFilter{ProductID: r.URL.Query().Get("productId")})
}

// ListMyReviews serves GET /reviews/mine.
func (h *Handler) ListMyReviews(w http.ResponseWriter, r *http.Request) {
	h.listReviews(w, r, review.ListFilter{UserID: identity(r).UserID})
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request, f review.ListFilter) {
	page, limit, err := pageParams(r, defaultReviewLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.Limit, f.Offset = limit, (page-1)*limit

	reviews, total, err := h.reviews.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]reviewResponse, len(reviews))
	for i := range reviews {
		out[i] = toReview(&reviews[i])
	}
	writeData(w, r, http.StatusOK, out, newPagination(page, limit, total))
}

// GetReview serves GET /reviews/{id}.
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	rv, err := h.reviews.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toReview(rv), nil)
}

// ProductRating serves GET /products/{id}/rating.
func (h *Handler) ProductRating(w http.ResponseWriter, r *http.Request) {
	sum, err := h.reviews.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, ratingResponse{
		ProductID: sum.ProductID,
		Count:     sum.Count,
		Average:   sum.Average.InexactFloat64(),
	}, nil)
}

// CreateReview serves POST /products/{id}/reviews.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.reviews.Create(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), review.Input{
		Rating:  req.Rating,
		Title:   req.Title,
		Content: req.Content,
		Images:  req.Images,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, toReview(rv), nil)
}

// UpdateReview serves PATCH /reviews/{id} for the review's author.
func (h *Handler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	var req updateReviewRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.reviews.Update(r.Context(), identity(r).UserID, chi.URLParam(r, "id"), review.Patch{
		Rating:  req.Rating,
		Title:   req.Title,
		Content: req.Content,
		Images:  req.Images,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, toReview(rv), nil)
}

// DeleteReview serves DELETE /reviews/{id}.
func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	if err := h.reviews.Delete(r.Context(), id.UserID, id.IsAdmin(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Review deleted successfully")
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tourhub/tourhub/internal/cache"
	"github.com/tourhub/tourhub/internal/catalog"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
)

type ReviewsService interface {
	ListReviews(ctx context.Context, spec query.Spec) ([]catalog.ReviewView, error)
	GetReview(ctx context.Context, id string) (catalog.ReviewView, error)
	CreateReview(ctx context.Context, actor user.User, tourID string, in catalog.ReviewInput) (catalog.ReviewView, error)
	UpdateReview(ctx context.Context, id string, in catalog.ReviewInput) (catalog.ReviewView, error)
	DeleteReview(ctx context.Context, id string) error
}

// ReviewsHandler serves /reviews and the nested /tours/:id/reviews routes.
// Review writes move tour ratings, so they clear the tour list cache.
type ReviewsHandler struct {
	reviews   ReviewsService
	tourCache *cache.Cache
}

func NewReviewsHandler(reviews ReviewsService, tourCache *cache.Cache) *ReviewsHandler {
	return &ReviewsHandler{reviews: reviews, tourCache: tourCache}
}

func (h *ReviewsHandler) List(ctx *gin.Context) {
	var base []query.Predicate
	if tourID := ctx.Param("id"); tourID != "" {
		oid, err := repo.ParseID(tourID)
		if err != nil {
			Fail(ctx, err)
			return
		}
		base = append(base, query.Predicate{Field: "tour", Op: query.OpEq, Value: oid})
	}
	spec := query.Translate(ctx.Request.URL.Query(), catalog.ReviewSchema, base...)

	reviews, err := h.reviews.ListReviews(ctx.Request.Context(), spec)
	if err != nil {
		Fail(ctx, err)
		return
	}
	items, err := query.Project(reviews, spec.Fields)
	if err != nil {
		Fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, listPayload(items, len(reviews)))
}

func (h *ReviewsHandler) Get(ctx *gin.Context) {
	rv, err := h.reviews.GetReview(ctx.Request.Context(), ctx.Param("reviewId"))
	if err != nil {
		Fail(ctx, err)
		return
	}
	RespondDoc(ctx, http.StatusOK, rv)
}

// Create takes the tour from the nested route when there is one, else from
// the body. The author is always the signed in user.
func (h *ReviewsHandler) Create(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req catalog.ReviewInput
	if !BindJSON(ctx, &req) {
		return
	}

	rv, err := h.reviews.CreateReview(ctx.Request.Context(), actor, ctx.Param("id"), req)
	if err != nil {
		Fail(ctx, err)
		return
	}
	h.invalidate()
	RespondDoc(ctx, http.StatusCreated, rv)
}

func (h *ReviewsHandler) Update(ctx *gin.Context) {
	var req catalog.ReviewInput
	if !BindJSON(ctx, &req) {
		return
	}

	rv, err := h.reviews.UpdateReview(ctx.Request.Context(), ctx.Param("reviewId"), req)
	if err != nil {
		Fail(ctx, err)
		return
	}
	h.invalidate()
	RespondDoc(ctx, http.StatusOK, rv)
}

func (h *ReviewsHandler) Delete(ctx *gin.Context) {
	if err := h.reviews.DeleteReview(ctx.Request.Context(), ctx.Param("reviewId")); err != nil {
		Fail(ctx, err)
		return
	}
	h.invalidate()
	RespondNoContent(ctx)
}

func (h *ReviewsHandler) invalidate() {
	if h.tourCache != nil {
		h.tourCache.DeletePrefix(toursCacheNS + ":")
	}
}

package memory

import (
	"context"

	"github.com/tourhub/tourhub/internal/domain/review"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type ReviewsRepo struct {
	reviews *collection[review.Review]
}

func NewReviewsRepo() *ReviewsRepo {
	return &ReviewsRepo{
		reviews: newCollection(func(r review.Review) bson.ObjectID { return r.ID }),
	}
}

func (r *ReviewsRepo) List(ctx context.Context, spec query.Spec) ([]review.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return apply(r.reviews.snapshot(), spec)
}

func (r *ReviewsRepo) ListByTour(ctx context.Context, tourID bson.ObjectID) ([]review.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.reviews.filter(func(rv review.Review) bool { return rv.Tour == tourID }), nil
}

func (r *ReviewsRepo) GetByID(ctx context.Context, id string) (review.Review, error) {
	if err := ctx.Err(); err != nil {
		return review.Review{}, err
	}
	oid, err := repo.ParseID(id)
	if err != nil {
		return review.Review{}, err
	}
	return r.reviews.get(oid)
}

func (r *ReviewsRepo) Create(ctx context.Context, rv review.Review) (review.Review, error) {
	if err := ctx.Err(); err != nil {
		return review.Review{}, err
	}
	if rv.ID.IsZero() {
		rv.ID = bson.NewObjectID()
	}
	if err := r.reviews.write(rv.ID, rv, false, uniqueAuthor(rv)); err != nil {
		return review.Review{}, err
	}
	return rv, nil
}

func (r *ReviewsRepo) Save(ctx context.Context, rv review.Review) (review.Review, error) {
	if err := ctx.Err(); err != nil {
		return review.Review{}, err
	}
	rv.Version++
	if err := r.reviews.write(rv.ID, rv, true, uniqueAuthor(rv)); err != nil {
		return review.Review{}, err
	}
	return rv, nil
}

func (r *ReviewsRepo) Delete(ctx context.Context, id string) (review.Review, error) {
	if err := ctx.Err(); err != nil {
		return review.Review{}, err
	}
	oid, err := repo.ParseID(id)
	if err != nil {
		return review.Review{}, err
	}
	return r.reviews.remove(oid)
}

func (r *ReviewsRepo) Summarize(ctx context.Context, tourID bson.ObjectID) (review.Summary, error) {
	rs, err := r.ListByTour(ctx, tourID)
	if err != nil {
		return review.Summary{}, err
	}
	return review.Summarize(rs), nil
}

// one review per (tour, user)
func uniqueAuthor(rv review.Review) func(review.Review) error {
	return func(existing review.Review) error {
		if existing.Tour == rv.Tour && existing.User == rv.User {
			return &repo.DuplicateError{Field: "tour, user", Value: rv.Tour.Hex() + ", " + rv.User.Hex()}
		}
		return nil
	}
}

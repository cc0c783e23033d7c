package catalog

import (
	"context"
	"errors"

	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/domain/review"
	"github.com/tourhub/tourhub/internal/domain/tour"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/observability"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel/attribute"
)

var ReviewSchema = query.Schema{
	"id":        query.ID,
	"rating":    query.Number,
	"createdAt": query.Time,
	"tour":      query.ID,
	"user":      query.ID,
}

// ReviewInput is what a client may send. The author always comes from the
// authenticated user.
type ReviewInput struct {
	Review *string  `json:"review"`
	Rating *float64 `json:"rating"`
	Tour   *string  `json:"tour"`
}

func (s *Service) ListReviews(ctx context.Context, spec query.Spec) ([]ReviewView, error) {
	rs, err := s.reviews.List(ctx, spec)
	if err != nil {
		return nil, err
	}
	return s.reviewViews(ctx, rs)
}

func (s *Service) GetReview(ctx context.Context, id string) (ReviewView, error) {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return ReviewView{}, err
	}
	return s.reviewView(ctx, rv)
}

// CreateReview adds actor's review of a tour. tourID, when set by a nested
// route, takes precedence over the body.
func (s *Service) CreateReview(ctx context.Context, actor user.User, tourID string, in ReviewInput) (ReviewView, error) {
	if tourID == "" && in.Tour != nil {
		tourID = *in.Tour
	}
	if tourID == "" {
		return ReviewView{}, apperr.New(apperr.ValidationFailed, "Invalid input data. Review must belong to a tour.")
	}

	t, err := s.tours.GetByID(ctx, tourID)
	if errors.Is(err, repo.ErrNotFound) {
		return ReviewView{}, apperr.New(apperr.NotFoundDocument, "No tour found with that ID")
	}
	if err != nil {
		return ReviewView{}, err
	}

	rv := review.New(s.now())
	review.Input{Review: in.Review, Rating: in.Rating}.Apply(&rv)
	rv.Tour = t.ID
	rv.User = actor.ID
	if err := rv.PrepareWrite(); err != nil {
		return ReviewView{}, err
	}

	created, err := s.reviews.Create(ctx, rv)
	if err != nil {
		return ReviewView{}, err
	}
	s.recomputeRatings(ctx, created.Tour)
	return s.reviewView(ctx, created)
}

// UpdateReview changes the text and rating; the tour and author are fixed.
func (s *Service) UpdateReview(ctx context.Context, id string, in ReviewInput) (ReviewView, error) {
	rv, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return ReviewView{}, err
	}
	review.Input{Review: in.Review, Rating: in.Rating}.Apply(&rv)
	if err := rv.PrepareWrite(); err != nil {
		return ReviewView{}, err
	}

	saved, err := s.reviews.Save(ctx, rv)
	if err != nil {
		return ReviewView{}, err
	}
	s.recomputeRatings(ctx, saved.Tour)
	return s.reviewView(ctx, saved)
}

func (s *Service) DeleteReview(ctx context.Context, id string) error {
	rv, err := s.reviews.Delete(ctx, id)
	if err != nil {
		return err
	}
	s.recomputeRatings(ctx, rv.Tour)
	return nil
}

// recomputeRatings refreshes the rating aggregate of a tour after one of its
// reviews changed. The review write has already happened, so this runs even
// if the client goes away, and a failure is logged rather than returned.
func (s *Service) recomputeRatings(ctx context.Context, tourID bson.ObjectID) {
	ctx, span := observability.StartSpan(context.WithoutCancel(ctx), "catalog.recompute_ratings",
		attribute.String("tour.id", tourID.Hex()))
	defer span.End()

	sum, err := s.reviews.Summarize(ctx, tourID)
	if err != nil {
		span.RecordError(err)
		s.log.ErrorContext(ctx, "summarize reviews", "tour_id", tourID.Hex(), "err", err)
		return
	}
	span.SetAttributes(attribute.Int("ratings.quantity", sum.Quantity))

	quantity, average := sum.Quantity, sum.Average
	if quantity == 0 {
		average = tour.DefaultRatingsAverage
	}
	if err := s.tours.SetRatings(ctx, tourID, quantity, average); err != nil && !errors.Is(err, repo.ErrNotFound) {
		s.log.ErrorContext(ctx, "update tour ratings", "tour_id", tourID.Hex(), "err", err)
	}
}

func (s *Service) reviewView(ctx context.Context, rv review.Review) (ReviewView, error) {
	views, err := s.reviewViews(ctx, []review.Review{rv})
	if err != nil {
		return ReviewView{}, err
	}
	return views[0], nil
}

func (s *Service) reviewViews(ctx context.Context, rs []review.Review) ([]ReviewView, error) {
	ids := make([]bson.ObjectID, 0, len(rs))
	for _, rv := range rs {
		ids = append(ids, rv.User)
	}
	authors, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]ReviewView, 0, len(rs))
	for _, rv := range rs {
		v := ReviewView{Review: rv, User: user.Summary{ID: rv.User}}
		if a, ok := authors[rv.User]; ok {
			v.User = a.Author()
		}
		out = append(out, v)
	}
	return out, nil
}

// Package catalog serves tours and their reviews: CRUD, the derived fields
// shown on reads, rating aggregates and geo queries.
package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/tourhub/tourhub/internal/domain/review"
	"github.com/tourhub/tourhub/internal/domain/tour"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/query"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type ToursStore interface {
	List(ctx context.Context, spec query.Spec) ([]tour.Tour, error)
	GetByID(ctx context.Context, id string) (tour.Tour, error)
	GetBySlug(ctx context.Context, slug string) (tour.Tour, error)
	Create(ctx context.Context, t tour.Tour) (tour.Tour, error)
	Save(ctx context.Context, t tour.Tour) (tour.Tour, error)
	Delete(ctx context.Context, id string) (tour.Tour, error)
	SetRatings(ctx context.Context, id bson.ObjectID, quantity int, average float64) error
	Stats(ctx context.Context) ([]tour.Stat, error)
	MonthlyPlan(ctx context.Context, year int) ([]tour.MonthPlan, error)
	Within(ctx context.Context, lng, lat, radiusRadians float64) ([]tour.Tour, error)
	Distances(ctx context.Context, lng, lat, multiplier float64) ([]tour.Distance, error)
}

type ReviewsStore interface {
	List(ctx context.Context, spec query.Spec) ([]review.Review, error)
	ListByTour(ctx context.Context, tourID bson.ObjectID) ([]review.Review, error)
	GetByID(ctx context.Context, id string) (review.Review, error)
	Create(ctx context.Context, rv review.Review) (review.Review, error)
	Save(ctx context.Context, rv review.Review) (review.Review, error)
	Delete(ctx context.Context, id string) (review.Review, error)
	Summarize(ctx context.Context, tourID bson.ObjectID) (review.Summary, error)
}

type UserFinder interface {
	FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]user.User, error)
}

// TourView is a tour as rendered to clients, with its derived fields.
type TourView struct {
	tour.Tour
	DurationWeeks float64        `json:"durationWeeks"`
	Guides        []user.Summary `json:"guides"`
	Reviews       []ReviewView   `json:"reviews,omitempty"`
}

// ReviewView shows the author instead of a bare user id.
type ReviewView struct {
	review.Review
	User user.Summary `json:"user"`
}

type Service struct {
	tours   ToursStore
	reviews ReviewsStore
	users   UserFinder
	log     *slog.Logger
	now     func() time.Time
}

func NewService(tours ToursStore, reviews ReviewsStore, users UserFinder, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		tours:   tours,
		reviews: reviews,
		users:   users,
		log:     log,
		now:     time.Now,
	}
}

// usersByID resolves ids to active users; unknown ids are left out.
func (s *Service) usersByID(ctx context.Context, ids []bson.ObjectID) (map[bson.ObjectID]user.User, error) {
	out := make(map[bson.ObjectID]user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range found {
		out[u.ID] = u
	}
	return out, nil
}

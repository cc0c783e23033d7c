package catalog

import (
	"context"

	"github.com/tourhub/tourhub/internal/domain/tour"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/query"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// TourSchema types the filterable tour fields for the query translator.
var TourSchema = query.Schema{
	"id":              query.ID,
	"name":            query.String,
	"slug":            query.String,
	"duration":        query.Number,
	"maxGroupSize":    query.Number,
	"difficulty":      query.String,
	"ratingsAverage":  query.Number,
	"ratingsQuantity": query.Number,
	"price":           query.Number,
	"priceDiscount":   query.Number,
	"createdAt":       query.Time,
	"startDates":      query.Time,
	"secretTour":      query.Bool,
	"guides":          query.ID,
}

func (s *Service) ListTours(ctx context.Context, spec query.Spec) ([]TourView, error) {
	tours, err := s.tours.List(ctx, spec)
	if err != nil {
		return nil, err
	}
	return s.tourViews(ctx, tours)
}

// GetTour returns one tour with guides and reviews resolved.
func (s *Service) GetTour(ctx context.Context, id string) (TourView, error) {
	t, err := s.tours.GetByID(ctx, id)
	if err != nil {
		return TourView{}, err
	}
	return s.tourDetail(ctx, t)
}

func (s *Service) GetTourBySlug(ctx context.Context, slug string) (TourView, error) {
	t, err := s.tours.GetBySlug(ctx, slug)
	if err != nil {
		return TourView{}, err
	}
	return s.tourDetail(ctx, t)
}

func (s *Service) CreateTour(ctx context.Context, in tour.Input) (TourView, error) {
	t := tour.New(s.now())
	in.Apply(&t)
	if err := t.PrepareWrite(); err != nil {
		return TourView{}, err
	}

	created, err := s.tours.Create(ctx, t)
	if err != nil {
		return TourView{}, err
	}
	return s.tourView(ctx, created)
}

func (s *Service) UpdateTour(ctx context.Context, id string, in tour.Input) (TourView, error) {
	t, err := s.tours.GetByID(ctx, id)
	if err != nil {
		return TourView{}, err
	}
	in.Apply(&t)
	if err := t.PrepareWrite(); err != nil {
		return TourView{}, err
	}

	saved, err := s.tours.Save(ctx, t)
	if err != nil {
		return TourView{}, err
	}
	return s.tourView(ctx, saved)
}

func (s *Service) DeleteTour(ctx context.Context, id string) error {
	_, err := s.tours.Delete(ctx, id)
	return err
}

func (s *Service) TourStats(ctx context.Context) ([]tour.Stat, error) {
	return s.tours.Stats(ctx)
}

func (s *Service) MonthlyPlan(ctx context.Context, year int) ([]tour.MonthPlan, error) {
	return s.tours.MonthlyPlan(ctx, year)
}

func (s *Service) tourView(ctx context.Context, t tour.Tour) (TourView, error) {
	views, err := s.tourViews(ctx, []tour.Tour{t})
	if err != nil {
		return TourView{}, err
	}
	return views[0], nil
}

// tourViews resolves the guides of every tour with a single lookup.
func (s *Service) tourViews(ctx context.Context, tours []tour.Tour) ([]TourView, error) {
	var ids []bson.ObjectID
	seen := map[bson.ObjectID]bool{}
	for _, t := range tours {
		for _, id := range t.Guides {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	guides, err := s.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]TourView, 0, len(tours))
	for _, t := range tours {
		v := TourView{Tour: t, DurationWeeks: t.DurationWeeks(), Guides: []user.Summary{}}
		for _, id := range t.Guides {
			if g, ok := guides[id]; ok {
				v.Guides = append(v.Guides, g.Summary())
			}
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) tourDetail(ctx context.Context, t tour.Tour) (TourView, error) {
	v, err := s.tourView(ctx, t)
	if err != nil {
		return TourView{}, err
	}

	rs, err := s.reviews.ListByTour(ctx, t.ID)
	if err != nil {
		return TourView{}, err
	}
	v.Reviews, err = s.reviewViews(ctx, rs)
	if err != nil {
		return TourView{}, err
	}
	return v, nil
}

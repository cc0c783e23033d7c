package memory

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"

	"github.com/tourhub/tourhub/internal/domain/tour"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type ToursRepo struct {
	tours *collection[tour.Tour]
}

func NewToursRepo() *ToursRepo {
	return &ToursRepo{
		tours: newCollection(func(t tour.Tour) bson.ObjectID { return t.ID }),
	}
}

func (r *ToursRepo) List(ctx context.Context, spec query.Spec) ([]tour.Tour, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return apply(r.tours.snapshot(), spec)
}

func (r *ToursRepo) GetByID(ctx context.Context, id string) (tour.Tour, error) {
	if err := ctx.Err(); err != nil {
		return tour.Tour{}, err
	}
	oid, err := repo.ParseID(id)
	if err != nil {
		return tour.Tour{}, err
	}
	return r.tours.get(oid)
}

func (r *ToursRepo) GetBySlug(ctx context.Context, slug string) (tour.Tour, error) {
	if err := ctx.Err(); err != nil {
		return tour.Tour{}, err
	}
	return r.tours.find(func(t tour.Tour) bool { return t.Slug == slug })
}

func (r *ToursRepo) Create(ctx context.Context, t tour.Tour) (tour.Tour, error) {
	if err := ctx.Err(); err != nil {
		return tour.Tour{}, err
	}
	if t.ID.IsZero() {
		t.ID = bson.NewObjectID()
	}
	if err := r.tours.write(t.ID, t, false, uniqueName(t)); err != nil {
		return tour.Tour{}, err
	}
	return t, nil
}

func (r *ToursRepo) Save(ctx context.Context, t tour.Tour) (tour.Tour, error) {
	if err := ctx.Err(); err != nil {
		return tour.Tour{}, err
	}
	t.Version++
	if err := r.tours.write(t.ID, t, true, uniqueName(t)); err != nil {
		return tour.Tour{}, err
	}
	return t, nil
}

func (r *ToursRepo) Delete(ctx context.Context, id string) (tour.Tour, error) {
	if err := ctx.Err(); err != nil {
		return tour.Tour{}, err
	}
	oid, err := repo.ParseID(id)
	if err != nil {
		return tour.Tour{}, err
	}
	return r.tours.remove(oid)
}

func (r *ToursRepo) SetRatings(ctx context.Context, id bson.ObjectID, quantity int, average float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.tours.update(id, func(t *tour.Tour) {
		t.RatingsQuantity = quantity
		t.RatingsAverage = tour.RoundRating(average)
	})
}

func (r *ToursRepo) Stats(ctx context.Context) ([]tour.Stat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type acc struct {
		stat      tour.Stat
		ratingSum float64
		priceSum  float64
	}
	groups := map[string]*acc{}

	for _, t := range r.tours.snapshot() {
		if t.RatingsAverage < 4.5 {
			continue
		}
		key := strings.ToUpper(string(t.Difficulty))
		g, ok := groups[key]
		if !ok {
			g = &acc{stat: tour.Stat{Difficulty: key, MinPrice: t.Price, MaxPrice: t.Price}}
			groups[key] = g
		}
		g.stat.NumTours++
		g.stat.NumRatings += t.RatingsQuantity
		g.ratingSum += t.RatingsAverage
		g.priceSum += t.Price
		g.stat.MinPrice = math.Min(g.stat.MinPrice, t.Price)
		g.stat.MaxPrice = math.Max(g.stat.MaxPrice, t.Price)
	}

	out := make([]tour.Stat, 0, len(groups))
	for _, g := range groups {
		n := float64(g.stat.NumTours)
		g.stat.AvgRating = g.ratingSum / n
		g.stat.AvgPrice = g.priceSum / n
		out = append(out, g.stat)
	}
	slices.SortFunc(out, func(a, b tour.Stat) int {
		if a.AvgPrice != b.AvgPrice {
			return cmp.Compare(a.AvgPrice, b.AvgPrice)
		}
		return strings.Compare(a.Difficulty, b.Difficulty)
	})
	return out, nil
}

func (r *ToursRepo) MonthlyPlan(ctx context.Context, year int) ([]tour.MonthPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	months := map[int]*tour.MonthPlan{}
	for _, t := range r.tours.snapshot() {
		for _, d := range t.StartDates {
			d = d.UTC()
			if d.Year() != year {
				continue
			}
			m := int(d.Month())
			p, ok := months[m]
			if !ok {
				p = &tour.MonthPlan{Month: m}
				months[m] = p
			}
			p.NumTourStarts++
			p.Tours = append(p.Tours, t.Name)
		}
	}

	out := make([]tour.MonthPlan, 0, len(months))
	for _, p := range months {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b tour.MonthPlan) int {
		if a.NumTourStarts != b.NumTourStarts {
			return b.NumTourStarts - a.NumTourStarts
		}
		return a.Month - b.Month
	})
	if len(out) > 12 {
		out = out[:12]
	}
	return out, nil
}

func (r *ToursRepo) Within(ctx context.Context, lng, lat, radiusRadians float64) ([]tour.Tour, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.tours.filter(func(t tour.Tour) bool {
		if t.StartLocation == nil || len(t.StartLocation.Coordinates) != 2 {
			return false
		}
		c := t.StartLocation.Coordinates
		return centralAngle(lng, lat, c[0], c[1]) <= radiusRadians
	}), nil
}

func (r *ToursRepo) Distances(ctx context.Context, lng, lat, multiplier float64) ([]tour.Distance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []tour.Distance
	for _, t := range r.tours.snapshot() {
		if t.StartLocation == nil || len(t.StartLocation.Coordinates) != 2 {
			continue
		}
		c := t.StartLocation.Coordinates
		meters := centralAngle(lng, lat, c[0], c[1]) * earthRadiusMeters
		out = append(out, tour.Distance{ID: t.ID, Name: t.Name, Distance: meters * multiplier})
	}
	slices.SortFunc(out, func(a, b tour.Distance) int { return cmp.Compare(a.Distance, b.Distance) })
	return out, nil
}

func (r *ToursRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

// earthRadiusMeters matches the spherical model of the store's geoNear.
const earthRadiusMeters = 6378100.0

// centralAngle is the haversine angle, in radians, between two lng/lat points.
func centralAngle(lng1, lat1, lng2, lat2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func uniqueName(t tour.Tour) func(tour.Tour) error {
	return func(existing tour.Tour) error {
		if existing.Name == t.Name {
			return &repo.DuplicateError{Field: "name", Value: t.Name}
		}
		return nil
	}
}

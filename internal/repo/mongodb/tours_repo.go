package mongodb

import (
	"context"
	"time"

	"github.com/tourhub/tourhub/internal/domain/tour"
	"github.com/tourhub/tourhub/internal/observability"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type ToursRepo struct {
	col  *mongo.Collection
	prom *observability.Prom
}

func (r *ToursRepo) List(ctx context.Context, spec query.Spec) ([]tour.Tour, error) {
	out := []tour.Tour{}
	err := observe(r.prom, "tours.list", func() error {
		cur, err := r.col.Find(ctx, toFilter(spec.Predicates), findOptions(spec))
		if err != nil {
			return err
		}
		return cur.All(ctx, &out)
	})
	return out, err
}

func (r *ToursRepo) GetByID(ctx context.Context, id string) (tour.Tour, error) {
	oid, err := repo.ParseID(id)
	if err != nil {
		return tour.Tour{}, err
	}
	return r.findOne(ctx, "tours.get", bson.D{{Key: "_id", Value: oid}})
}

func (r *ToursRepo) GetBySlug(ctx context.Context, slug string) (tour.Tour, error) {
	return r.findOne(ctx, "tours.get_by_slug", bson.D{{Key: "slug", Value: slug}})
}

func (r *ToursRepo) Create(ctx context.Context, t tour.Tour) (tour.Tour, error) {
	if t.ID.IsZero() {
		t.ID = bson.NewObjectID()
	}
	err := observe(r.prom, "tours.create", func() error {
		_, err := r.col.InsertOne(ctx, t)
		return err
	})
	if isDuplicateKey(err) {
		return tour.Tour{}, &repo.DuplicateError{Field: "name", Value: t.Name}
	}
	if err != nil {
		return tour.Tour{}, err
	}
	return t, nil
}

func (r *ToursRepo) Save(ctx context.Context, t tour.Tour) (tour.Tour, error) {
	t.Version++
	var matched int64
	err := observe(r.prom, "tours.save", func() error {
		res, err := r.col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: t.ID}}, t)
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		return nil
	})
	switch {
	case isDuplicateKey(err):
		return tour.Tour{}, &repo.DuplicateError{Field: "name", Value: t.Name}
	case err != nil:
		return tour.Tour{}, err
	case matched == 0:
		return tour.Tour{}, repo.ErrNotFound
	}
	return t, nil
}

// Delete removes the tour and returns what was stored.
func (r *ToursRepo) Delete(ctx context.Context, id string) (tour.Tour, error) {
	oid, err := repo.ParseID(id)
	if err != nil {
		return tour.Tour{}, err
	}
	var t tour.Tour
	err = observe(r.prom, "tours.delete", func() error {
		return r.col.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&t)
	})
	if err != nil {
		return tour.Tour{}, mapErr(err)
	}
	return t, nil
}

func (r *ToursRepo) SetRatings(ctx context.Context, id bson.ObjectID, quantity int, average float64) error {
	var matched int64
	err := observe(r.prom, "tours.set_ratings", func() error {
		res, err := r.col.UpdateOne(ctx,
			bson.D{{Key: "_id", Value: id}},
			bson.D{{Key: "$set", Value: bson.D{
				{Key: "ratingsQuantity", Value: quantity},
				{Key: "ratingsAverage", Value: tour.RoundRating(average)},
			}}},
		)
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		return nil
	})
	if err != nil {
		return err
	}
	if matched == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *ToursRepo) Stats(ctx context.Context) ([]tour.Stat, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "ratingsAverage", Value: bson.D{{Key: "$gte", Value: 4.5}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$toUpper", Value: "$difficulty"}}},
			{Key: "numTours", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "numRatings", Value: bson.D{{Key: "$sum", Value: "$ratingsQuantity"}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$ratingsAverage"}}},
			{Key: "avgPrice", Value: bson.D{{Key: "$avg", Value: "$price"}}},
			{Key: "minPrice", Value: bson.D{{Key: "$min", Value: "$price"}}},
			{Key: "maxPrice", Value: bson.D{{Key: "$max", Value: "$price"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}, {Key: "_id", Value: 1}}}},
	}

	out := []tour.Stat{}
	err := r.aggregate(ctx, "tours.stats", pipeline, &out)
	return out, err
}

func (r *ToursRepo) MonthlyPlan(ctx context.Context, year int) ([]tour.MonthPlan, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)

	pipeline := mongo.Pipeline{
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.D{{Key: "startDates", Value: bson.D{
			{Key: "$gte", Value: from},
			{Key: "$lt", Value: to},
		}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: bson.D{{Key: "$month", Value: "$startDates"}}},
			{Key: "numTourStarts", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "tours", Value: bson.D{{Key: "$push", Value: "$name"}}},
		}}},
		{{Key: "$addFields", Value: bson.D{{Key: "month", Value: "$_id"}}}},
		{{Key: "$project", Value: bson.D{{Key: "_id", Value: 0}}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}

	out := []tour.MonthPlan{}
	err := r.aggregate(ctx, "tours.monthly_plan", pipeline, &out)
	return out, err
}

// Within finds tours whose start location lies inside a spherical cap.
func (r *ToursRepo) Within(ctx context.Context, lng, lat, radiusRadians float64) ([]tour.Tour, error) {
	filter := bson.D{{Key: "startLocation", Value: bson.D{{Key: "$geoWithin", Value: bson.D{
		{Key: "$centerSphere", Value: bson.A{bson.A{lng, lat}, radiusRadians}},
	}}}}}

	out := []tour.Tour{}
	err := observe(r.prom, "tours.within", func() error {
		cur, err := r.col.Find(ctx, filter)
		if err != nil {
			return err
		}
		return cur.All(ctx, &out)
	})
	return out, err
}

// Distances lists every located tour by distance from the point, in meters
// scaled by multiplier.
func (r *ToursRepo) Distances(ctx context.Context, lng, lat, multiplier float64) ([]tour.Distance, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: tour.PointType},
				{Key: "coordinates", Value: bson.A{lng, lat}},
			}},
			{Key: "distanceField", Value: "distance"},
			{Key: "distanceMultiplier", Value: multiplier},
			{Key: "spherical", Value: true},
		}}},
		{{Key: "$project", Value: bson.D{{Key: "distance", Value: 1}, {Key: "name", Value: 1}}}},
	}

	out := []tour.Distance{}
	err := r.aggregate(ctx, "tours.distances", pipeline, &out)
	return out, err
}

func (r *ToursRepo) Ping(ctx context.Context) error {
	return r.col.Database().Client().Ping(ctx, nil)
}

func (r *ToursRepo) findOne(ctx context.Context, op string, filter bson.D) (tour.Tour, error) {
	var t tour.Tour
	err := observe(r.prom, op, func() error {
		return r.col.FindOne(ctx, filter).Decode(&t)
	})
	if err != nil {
		return tour.Tour{}, mapErr(err)
	}
	return t, nil
}

func (r *ToursRepo) aggregate(ctx context.Context, op string, pipeline mongo.Pipeline, out any) error {
	return observe(r.prom, op, func() error {
		cur, err := r.col.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		return cur.All(ctx, out)
	})
}

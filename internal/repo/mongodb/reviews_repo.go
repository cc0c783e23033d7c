package mongodb

import (
	"context"

	"github.com/tourhub/tourhub/internal/domain/review"
	"github.com/tourhub/tourhub/internal/observability"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type ReviewsRepo struct {
	col  *mongo.Collection
	prom *observability.Prom
}

func (r *ReviewsRepo) List(ctx context.Context, spec query.Spec) ([]review.Review, error) {
	return r.find(ctx, "reviews.list", toFilter(spec.Predicates), findOptions(spec))
}

func (r *ReviewsRepo) ListByTour(ctx context.Context, tourID bson.ObjectID) ([]review.Review, error) {
	return r.find(ctx, "reviews.list_by_tour",
		bson.D{{Key: "tour", Value: tourID}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
}

func (r *ReviewsRepo) GetByID(ctx context.Context, id string) (review.Review, error) {
	oid, err := repo.ParseID(id)
	if err != nil {
		return review.Review{}, err
	}
	var rv review.Review
	err = observe(r.prom, "reviews.get", func() error {
		return r.col.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&rv)
	})
	if err != nil {
		return review.Review{}, mapErr(err)
	}
	return rv, nil
}

func (r *ReviewsRepo) Create(ctx context.Context, rv review.Review) (review.Review, error) {
	if rv.ID.IsZero() {
		rv.ID = bson.NewObjectID()
	}
	err := observe(r.prom, "reviews.create", func() error {
		_, err := r.col.InsertOne(ctx, rv)
		return err
	})
	if isDuplicateKey(err) {
		return review.Review{}, duplicateAuthor(rv)
	}
	if err != nil {
		return review.Review{}, err
	}
	return rv, nil
}

func (r *ReviewsRepo) Save(ctx context.Context, rv review.Review) (review.Review, error) {
	rv.Version++
	var matched int64
	err := observe(r.prom, "reviews.save", func() error {
		res, err := r.col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: rv.ID}}, rv)
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		return nil
	})
	switch {
	case isDuplicateKey(err):
		return review.Review{}, duplicateAuthor(rv)
	case err != nil:
		return review.Review{}, err
	case matched == 0:
		return review.Review{}, repo.ErrNotFound
	}
	return rv, nil
}

func (r *ReviewsRepo) Delete(ctx context.Context, id string) (review.Review, error) {
	oid, err := repo.ParseID(id)
	if err != nil {
		return review.Review{}, err
	}
	var rv review.Review
	err = observe(r.prom, "reviews.delete", func() error {
		return r.col.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&rv)
	})
	if err != nil {
		return review.Review{}, mapErr(err)
	}
	return rv, nil
}

// Summarize aggregates the ratings of one tour; no reviews yields a zero Summary.
func (r *ReviewsRepo) Summarize(ctx context.Context, tourID bson.ObjectID) (review.Summary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "tour", Value: tourID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "nRating", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
	}

	var rows []struct {
		Quantity int     `bson:"nRating"`
		Average  float64 `bson:"avgRating"`
	}
	err := observe(r.prom, "reviews.summarize", func() error {
		cur, err := r.col.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		return cur.All(ctx, &rows)
	})
	if err != nil || len(rows) == 0 {
		return review.Summary{}, err
	}
	return review.Summary{Quantity: rows[0].Quantity, Average: rows[0].Average}, nil
}

func (r *ReviewsRepo) find(ctx context.Context, op string, filter bson.D, opts *options.FindOptionsBuilder) ([]review.Review, error) {
	out := []review.Review{}
	err := observe(r.prom, op, func() error {
		cur, err := r.col.Find(ctx, filter, opts)
		if err != nil {
			return err
		}
		return cur.All(ctx, &out)
	})
	return out, err
}

func duplicateAuthor(rv review.Review) error {
	return &repo.DuplicateError{Field: "tour, user", Value: rv.Tour.Hex() + ", " + rv.User.Hex()}
}

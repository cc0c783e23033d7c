package mongodb

import (
	"context"
	"time"

	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/observability"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// UsersRepo hides deactivated accounts from every read.
type UsersRepo struct {
	col  *mongo.Collection
	prom *observability.Prom
}

var activeOnly = bson.E{Key: "active", Value: bson.M{"$ne": false}}

func (r *UsersRepo) List(ctx context.Context, spec query.Spec) ([]user.User, error) {
	out := []user.User{}
	err := observe(r.prom, "users.list", func() error {
		cur, err := r.col.Find(ctx, toFilter(spec.Predicates, activeOnly), findOptions(spec))
		if err != nil {
			return err
		}
		return cur.All(ctx, &out)
	})
	return out, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	oid, err := repo.ParseID(id)
	if err != nil {
		return user.User{}, err
	}
	return r.findOne(ctx, "users.get", bson.D{{Key: "_id", Value: oid}, activeOnly})
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.findOne(ctx, "users.get_by_email", bson.D{{Key: "email", Value: user.NormalizeEmail(email)}, activeOnly})
}

// GetByResetToken matches a stored token hash that expires after now.
func (r *UsersRepo) GetByResetToken(ctx context.Context, hash string, now time.Time) (user.User, error) {
	if hash == "" {
		return user.User{}, repo.ErrNotFound
	}
	return r.findOne(ctx, "users.get_by_reset_token", bson.D{
		{Key: "passwordResetToken", Value: hash},
		{Key: "passwordResetExpires", Value: bson.M{"$gt": now.UTC()}},
		activeOnly,
	})
}

// ConsumeResetToken stores u's new password only while hash is still the
// account's unexpired reset token, clearing the token in the same update.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, hash string, now time.Time, u user.User) (user.User, error) {
	if hash == "" {
		return user.User{}, repo.ErrNotFound
	}
	filter := bson.D{
		{Key: "_id", Value: u.ID},
		{Key: "passwordResetToken", Value: hash},
		{Key: "passwordResetExpires", Value: bson.M{"$gt": now.UTC()}},
		activeOnly,
	}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password", Value: u.PasswordHash},
			{Key: "passwordChangedAt", Value: u.PasswordChangedAt},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "passwordResetToken", Value: ""},
			{Key: "passwordResetExpires", Value: ""},
		}},
		{Key: "$inc", Value: bson.D{{Key: "__v", Value: 1}}},
	}

	var out user.User
	err := observe(r.prom, "users.consume_reset_token", func() error {
		return r.col.FindOneAndUpdate(ctx, filter, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&out)
	})
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return out, nil
}

func (r *UsersRepo) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]user.User, error) {
	out := []user.User{}
	if len(ids) == 0 {
		return out, nil
	}
	err := observe(r.prom, "users.find_by_ids", func() error {
		filter := bson.D{{Key: "_id", Value: bson.M{"$in": ids}}, activeOnly}
		cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
		if err != nil {
			return err
		}
		return cur.All(ctx, &out)
	})
	return out, err
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	err := observe(r.prom, "users.create", func() error {
		_, err := r.col.InsertOne(ctx, u)
		return err
	})
	if isDuplicateKey(err) {
		return user.User{}, &repo.DuplicateError{Field: "email", Value: u.Email}
	}
	if err != nil {
		return user.User{}, err
	}
	return u, nil
}

// Save replaces the stored record, including inactive ones, and bumps its version.
func (r *UsersRepo) Save(ctx context.Context, u user.User) (user.User, error) {
	u.Version++
	var matched int64
	err := observe(r.prom, "users.save", func() error {
		res, err := r.col.ReplaceOne(ctx, bson.D{{Key: "_id", Value: u.ID}}, u)
		if err != nil {
			return err
		}
		matched = res.MatchedCount
		return nil
	})
	switch {
	case isDuplicateKey(err):
		return user.User{}, &repo.DuplicateError{Field: "email", Value: u.Email}
	case err != nil:
		return user.User{}, err
	case matched == 0:
		return user.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	oid, err := repo.ParseID(id)
	if err != nil {
		return err
	}
	var deleted int64
	err = observe(r.prom, "users.delete", func() error {
		res, err := r.col.DeleteOne(ctx, bson.D{{Key: "_id", Value: oid}})
		if err != nil {
			return err
		}
		deleted = res.DeletedCount
		return nil
	})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// Seed inserts u unless an account with its email exists already.
func (r *UsersRepo) Seed(ctx context.Context, u user.User) (bool, error) {
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	var upserted int64
	err := observe(r.prom, "users.seed", func() error {
		res, err := r.col.UpdateOne(ctx,
			bson.D{{Key: "email", Value: u.Email}},
			bson.D{{Key: "$setOnInsert", Value: u}},
			options.UpdateOne().SetUpsert(true),
		)
		if err != nil {
			return err
		}
		upserted = res.UpsertedCount
		return nil
	})
	return upserted == 1, err
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.col.Database().Client().Ping(ctx, nil)
}

func (r *UsersRepo) findOne(ctx context.Context, op string, filter bson.D) (user.User, error) {
	var u user.User
	err := observe(r.prom, op, func() error {
		return r.col.FindOne(ctx, filter).Decode(&u)
	})
	if err != nil {
		return user.User{}, mapErr(err)
	}
	return u, nil
}

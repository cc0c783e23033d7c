package memory

import (
	"context"
	"errors"
	"time"

	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// UsersRepo hides inactive accounts from every lookup, like the mongo adapter.
type UsersRepo struct {
	users *collection[user.User]
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		users: newCollection(func(u user.User) bson.ObjectID { return u.ID }),
	}
}

func (r *UsersRepo) List(ctx context.Context, spec query.Spec) ([]user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return apply(r.users.filter(isActive), spec)
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	oid, err := repo.ParseID(id)
	if err != nil {
		return user.User{}, err
	}
	u, err := r.users.get(oid)
	if err != nil || !u.Active {
		return user.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	email = user.NormalizeEmail(email)
	return r.users.find(func(u user.User) bool {
		return u.Active && u.Email == email
	})
}

func (r *UsersRepo) GetByResetToken(ctx context.Context, hash string, now time.Time) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	return r.users.find(func(u user.User) bool {
		return redeemable(u, hash, now)
	})
}

// ConsumeResetToken stores u's new password only while hash is still the
// account's unexpired reset token, clearing the token in the same write.
func (r *UsersRepo) ConsumeResetToken(ctx context.Context, hash string, now time.Time, u user.User) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	return r.users.updateIf(u.ID, func(cur *user.User) bool {
		if !redeemable(*cur, hash, now) {
			return false
		}
		cur.PasswordHash = u.PasswordHash
		cur.PasswordChangedAt = u.PasswordChangedAt
		cur.ClearPasswordReset()
		cur.Version++
		return true
	})
}

func (r *UsersRepo) FindByIDs(ctx context.Context, ids []bson.ObjectID) ([]user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[bson.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.users.filter(func(u user.User) bool {
		_, ok := want[u.ID]
		return ok && u.Active
	}), nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	if u.ID.IsZero() {
		u.ID = bson.NewObjectID()
	}
	if err := r.users.write(u.ID, u, false, uniqueEmail(u)); err != nil {
		return user.User{}, err
	}
	return u, nil
}

// Save replaces the stored record, including inactive ones, and bumps its version.
func (r *UsersRepo) Save(ctx context.Context, u user.User) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}
	u.Version++
	if err := r.users.write(u.ID, u, true, uniqueEmail(u)); err != nil {
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	oid, err := repo.ParseID(id)
	if err != nil {
		return err
	}
	_, err = r.users.remove(oid)
	return err
}

// Seed inserts u unless an account with its email exists already.
func (r *UsersRepo) Seed(ctx context.Context, u user.User) (bool, error) {
	_, err := r.Create(ctx, u)
	if errors.Is(err, repo.ErrDuplicate) {
		return false, nil
	}
	return err == nil, err
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

func isActive(u user.User) bool { return u.Active }

func redeemable(u user.User, hash string, now time.Time) bool {
	return u.Active &&
		u.PasswordResetToken != "" &&
		u.PasswordResetToken == hash &&
		u.PasswordResetExpires != nil &&
		u.PasswordResetExpires.After(now)
}

func uniqueEmail(u user.User) func(user.User) error {
	return func(existing user.User) error {
		if existing.Email == u.Email {
			return &repo.DuplicateError{Field: "email", Value: u.Email}
		}
		return nil
	}
}

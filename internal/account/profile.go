package account

import (
	"context"

	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/query"
)

// UserSchema types the filterable user fields for the query translator.
var UserSchema = query.Schema{
	"id":    query.ID,
	"name":  query.String,
	"email": query.String,
	"role":  query.String,
	"photo": query.String,
}

type ProfileInput struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

// AdminUpdate never carries a password; passwords change only through the
// password endpoints.
type AdminUpdate struct {
	Name   *string    `json:"name"`
	Email  *string    `json:"email"`
	Photo  *string    `json:"photo"`
	Role   *user.Role `json:"role"`
	Active *bool      `json:"active"`
}

func (s *Service) Me(ctx context.Context, actor user.User) (user.User, error) {
	return s.users.GetByID(ctx, actor.ID.Hex())
}

// UpdateMe changes name and email only.
func (s *Service) UpdateMe(ctx context.Context, actor user.User, in ProfileInput) (user.User, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return user.User{}, apperr.New(apperr.BadRequest, "This route is not for password updates. Please use /updateMyPassword")
	}

	u, err := s.users.GetByID(ctx, actor.ID.Hex())
	if err != nil {
		return user.User{}, err
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if err := u.PrepareWrite(); err != nil {
		return user.User{}, err
	}
	return s.users.Save(ctx, u)
}

// DeleteMe deactivates the account; the record stays but every default
// lookup stops seeing it.
func (s *Service) DeleteMe(ctx context.Context, actor user.User) error {
	u, err := s.users.GetByID(ctx, actor.ID.Hex())
	if err != nil {
		return err
	}
	u.Active = false
	_, err = s.users.Save(ctx, u)
	return err
}

func (s *Service) ListUsers(ctx context.Context, spec query.Spec) ([]user.User, error) {
	return s.users.List(ctx, spec)
}

func (s *Service) GetUser(ctx context.Context, id string) (user.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, id string, in AdminUpdate) (user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Photo != nil {
		u.Photo = *in.Photo
	}
	if in.Role != nil {
		u.Role = *in.Role
	}
	if in.Active != nil {
		u.Active = *in.Active
	}
	if err := u.PrepareWrite(); err != nil {
		return user.User{}, err
	}
	return s.users.Save(ctx, u)
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.users.Delete(ctx, id)
}

// EnsureAdmin seeds an admin account on startup when credentials are configured.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) error {
	if email == "" || password == "" {
		return nil
	}
	if name == "" {
		name = "Admin"
	}

	u := user.New(name, email)
	u.Role = user.RoleAdmin
	if err := u.PrepareWrite(); err != nil {
		return err
	}
	if err := u.SetPassword(user.Password{Password: password, PasswordConfirm: password}, s.now()); err != nil {
		return err
	}

	created, err := s.users.Seed(ctx, u)
	if err != nil {
		return err
	}
	if created {
		s.log.InfoContext(ctx, "admin user seeded", "email", u.Email)
	}
	return nil
}

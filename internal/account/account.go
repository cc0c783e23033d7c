// Package account implements signup, login, password management and the
// self-service and admin user operations.
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/mail"
	"github.com/tourhub/tourhub/internal/query"
	"github.com/tourhub/tourhub/internal/repo"
	"github.com/tourhub/tourhub/internal/security"
)

type UsersStore interface {
	List(ctx context.Context, spec query.Spec) ([]user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByResetToken(ctx context.Context, hash string, now time.Time) (user.User, error)
	ConsumeResetToken(ctx context.Context, hash string, now time.Time, u user.User) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	Save(ctx context.Context, u user.User) (user.User, error)
	Delete(ctx context.Context, id string) error
	Seed(ctx context.Context, u user.User) (bool, error)
}

type TokenIssuer interface {
	Issue(subjectID string) (string, error)
}

// Session is an authenticated user together with a freshly issued token.
type Session struct {
	User  user.User
	Token string
}

type Service struct {
	users  UsersStore
	tokens TokenIssuer
	mailer mail.Mailer
	log    *slog.Logger
	now    func() time.Time
}

func NewService(users UsersStore, tokens TokenIssuer, mailer mail.Mailer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		mailer: mailer,
		log:    log,
		now:    time.Now,
	}
}

// WithClock returns a copy of s reading time from now.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

type SignupInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Signup creates a regular user account. A role sent by the client is never
// honored; the welcome email is best effort.
func (s *Service) Signup(ctx context.Context, in SignupInput, profileURL string) (Session, error) {
	u := user.New(in.Name, in.Email)
	if err := u.PrepareWrite(); err != nil {
		return Session{}, err
	}
	if err := u.SetPassword(user.Password{Password: in.Password, PasswordConfirm: in.PasswordConfirm}, s.now()); err != nil {
		return Session{}, err
	}

	created, err := s.users.Create(ctx, u)
	if err != nil {
		return Session{}, err
	}

	if err := s.mailer.Send(ctx, mail.Welcome(created.Email, created.Name, profileURL)); err != nil {
		s.log.WarnContext(ctx, "welcome email failed", "user_id", created.ID.Hex(), "err", err)
	}

	return s.session(created)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, apperr.New(apperr.BadRequest, "Please provide email and password!")
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return Session{}, err
	}
	if err != nil || !u.CorrectPassword(password) {
		return Session{}, apperr.New(apperr.InvalidCredentials, "Incorrect email or password")
	}
	return s.session(u)
}

// RequestReset emails a single-use reset link built by resetURL from the raw
// token. Only the token's hash is stored. If delivery fails the pending reset
// is withdrawn.
func (s *Service) RequestReset(ctx context.Context, email string, resetURL func(raw string) string) error {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return apperr.New(apperr.NotFound, "There is no user with that email address.")
	}
	if err != nil {
		return err
	}

	raw, err := u.StartPasswordReset(s.now())
	if err != nil {
		return err
	}
	if u, err = s.users.Save(ctx, u); err != nil {
		return err
	}

	sendErr := s.mailer.Send(ctx, mail.PasswordReset(u.Email, u.Name, resetURL(raw)))
	if sendErr == nil {
		return nil
	}

	s.log.ErrorContext(ctx, "password reset email failed", "user_id", u.ID.Hex(), "err", sendErr)
	u.ClearPasswordReset()
	if _, err := s.users.Save(context.WithoutCancel(ctx), u); err != nil {
		s.log.ErrorContext(ctx, "withdraw password reset", "user_id", u.ID.Hex(), "err", err)
	}
	return apperr.Wrap(apperr.DeliveryFailed, "There was an error sending the email. Try again later!", sendErr)
}

// ResetPassword redeems a reset token. The store consumes the token in the
// same write that stores the new password, so concurrent redemptions of one
// token cannot both succeed.
func (s *Service) ResetPassword(ctx context.Context, raw string, p user.Password) (Session, error) {
	hash := security.HashResetToken(raw)
	now := s.now()

	u, err := s.users.GetByResetToken(ctx, hash, now)
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, errInvalidResetToken()
	}
	if err != nil {
		return Session{}, err
	}

	if err := u.SetPassword(p, now); err != nil {
		return Session{}, err
	}
	u.ClearPasswordReset()
	if err := u.PrepareWrite(); err != nil {
		return Session{}, err
	}

	saved, err := s.users.ConsumeResetToken(ctx, hash, now, u)
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, errInvalidResetToken()
	}
	if err != nil {
		return Session{}, err
	}
	return s.session(saved)
}

func errInvalidResetToken() error {
	return apperr.New(apperr.InvalidOrExpired, "Token is invalid or has expired")
}

func (s *Service) UpdatePassword(ctx context.Context, actor user.User, current string, p user.Password) (Session, error) {
	u, err := s.users.GetByID(ctx, actor.ID.Hex())
	if err != nil {
		return Session{}, err
	}
	if !u.CorrectPassword(current) {
		return Session{}, apperr.New(apperr.InvalidCredentials, "Incorrect password")
	}

	if err := u.SetPassword(p, s.now()); err != nil {
		return Session{}, err
	}
	saved, err := s.users.Save(ctx, u)
	if err != nil {
		return Session{}, err
	}
	return s.session(saved)
}

func (s *Service) session(u user.User) (Session, error) {
	token, err := s.tokens.Issue(u.ID.Hex())
	if err != nil {
		return Session{}, err
	}
	return Session{User: u, Token: token}, nil
}

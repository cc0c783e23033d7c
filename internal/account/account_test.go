package account

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/auth"
	"github.com/tourhub/tourhub/internal/domain/user"
	"github.com/tourhub/tourhub/internal/mail"
	"github.com/tourhub/tourhub/internal/repo"
	"github.com/tourhub/tourhub/internal/repo/memory"
	"github.com/tourhub/tourhub/internal/security"
)

type fakeMailer struct {
	sendFn func(ctx context.Context, msg mail.Message) error
	sent   []mail.Message
}

func (f *fakeMailer) Send(ctx context.Context, msg mail.Message) error {
	f.sent = append(f.sent, msg)
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return nil
}

type fixture struct {
	svc    *Service
	users  *memory.UsersRepo
	tokens *auth.Manager
	mailer *fakeMailer
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users:  memory.NewUsersRepo(),
		tokens: auth.NewManager("test-secret", time.Hour),
		mailer: &fakeMailer{},
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.users, f.tokens, f.mailer, nil).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) signup(t *testing.T, email string) Session {
	t.Helper()
	s, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Jonas Schmedtmann", Email: email, Password: "pass1234", PasswordConfirm: "pass1234",
	}, "http://localhost/me")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	return s
}

func TestSignupCreatesRegularUser(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "Jonas@Example.com ")

	if s.User.Role != user.RoleUser || s.User.Email != "jonas@example.com" || !s.User.Active {
		t.Fatalf("unexpected user: %+v", s.User)
	}
	if s.User.PasswordChangedAt != nil {
		t.Fatalf("a new account has never changed its password")
	}

	b, _ := json.Marshal(s.User)
	if strings.Contains(string(b), "password\"") || strings.Contains(string(b), s.User.PasswordHash) {
		t.Fatalf("password hash leaked: %s", b)
	}

	claims, err := f.tokens.Verify(context.Background(), s.Token)
	if err != nil || claims.SubjectID != s.User.ID.Hex() {
		t.Fatalf("token does not bind the new user: %v", err)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0].Subject != mail.WelcomeSubject {
		t.Fatalf("welcome email not sent: %+v", f.mailer.sent)
	}
}

func TestSignupRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "jonas@example.com")

	tests := []struct {
		name string
		in   SignupInput
		kind apperr.Kind
	}{
		{"mismatched confirm", SignupInput{Name: "A", Email: "a@example.com", Password: "pass1234", PasswordConfirm: "pass12345"}, apperr.ValidationFailed},
		{"short password", SignupInput{Name: "A", Email: "a@example.com", Password: "short", PasswordConfirm: "short"}, apperr.ValidationFailed},
		{"bad email", SignupInput{Name: "A", Email: "nope", Password: "pass1234", PasswordConfirm: "pass1234"}, apperr.ValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(context.Background(), tt.in, "")
			if !apperr.IsKind(err, tt.kind) {
				t.Fatalf("got %v, want %s", err, tt.kind)
			}
		})
	}

	_, err := f.svc.Signup(context.Background(), SignupInput{
		Name: "Other", Email: "jonas@example.com", Password: "pass1234", PasswordConfirm: "pass1234",
	}, "")
	if !errors.Is(err, repo.ErrDuplicate) {
		t.Fatalf("got %v, want duplicate email", err)
	}
}

func TestSignupSurvivesWelcomeFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.sendFn = func(context.Context, mail.Message) error { return errors.New("smtp down") }
	f.signup(t, "jonas@example.com")
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "jonas@example.com")

	tests := []struct {
		name     string
		email    string
		password string
		kind     apperr.Kind
	}{
		{"missing password", "jonas@example.com", "", apperr.BadRequest},
		{"missing email", " ", "pass1234", apperr.BadRequest},
		{"wrong password", "jonas@example.com", "wrong-pass", apperr.InvalidCredentials},
		{"unknown email", "nobody@example.com", "pass1234", apperr.InvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(context.Background(), tt.email, tt.password)
			if !apperr.IsKind(err, tt.kind) {
				t.Fatalf("got %v, want %s", err, tt.kind)
			}
		})
	}

	s, err := f.svc.Login(context.Background(), "JONAS@example.com", "pass1234")
	if err != nil || s.Token == "" {
		t.Fatalf("login: %v", err)
	}
}

// resetLink captures the raw token from the emailed link.
func resetLink(raw *string) func(string) string {
	return func(token string) string {
		*raw = token
		return "http://localhost/api/v1/users/resetPassword/" + token
	}
}

func TestPasswordResetIsSingleUse(t *testing.T) {
	f := newFixture(t)
	signed := f.signup(t, "jonas@example.com")
	ctx := context.Background()

	var raw string
	if err := f.svc.RequestReset(ctx, "jonas@example.com", resetLink(&raw)); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("raw token should be 64 hex chars, got %q", raw)
	}

	stored, _ := f.users.GetByID(ctx, signed.User.ID.Hex())
	if stored.PasswordResetToken != security.HashResetToken(raw) || stored.PasswordResetToken == raw {
		t.Fatalf("only the hash of the token may be stored")
	}
	last := f.mailer.sent[len(f.mailer.sent)-1]
	if last.Subject != mail.PasswordResetSubject || !strings.Contains(last.Text, raw) {
		t.Fatalf("reset email missing link: %+v", last)
	}

	f.now = f.now.Add(5 * time.Minute)
	s, err := f.svc.ResetPassword(ctx, raw, user.Password{Password: "newpass123", PasswordConfirm: "newpass123"})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.User.PasswordResetToken != "" || s.User.PasswordResetExpires != nil {
		t.Fatalf("reset fields must be cleared")
	}
	if s.User.PasswordChangedAt == nil || !s.User.PasswordChangedAt.Equal(f.now.Add(-time.Second)) {
		t.Fatalf("passwordChangedAt = %v", s.User.PasswordChangedAt)
	}

	_, err = f.svc.ResetPassword(ctx, raw, user.Password{Password: "another123", PasswordConfirm: "another123"})
	if !apperr.IsKind(err, apperr.InvalidOrExpired) {
		t.Fatalf("second use: got %v, want InvalidOrExpired", err)
	}

	if _, err := f.svc.Login(ctx, "jonas@example.com", "pass1234"); !apperr.IsKind(err, apperr.InvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "jonas@example.com", "newpass123"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

// lookupBarrier holds every reset token lookup until n of them have read the account.
type lookupBarrier struct {
	*memory.UsersRepo
	wg sync.WaitGroup
}

func (b *lookupBarrier) GetByResetToken(ctx context.Context, hash string, now time.Time) (user.User, error) {
	u, err := b.UsersRepo.GetByResetToken(ctx, hash, now)
	b.wg.Done()
	b.wg.Wait()
	return u, err
}

func TestPasswordResetConcurrentRedemption(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "jonas@example.com")
	ctx := context.Background()

	var raw string
	if err := f.svc.RequestReset(ctx, "jonas@example.com", resetLink(&raw)); err != nil {
		t.Fatalf("request reset: %v", err)
	}

	store := &lookupBarrier{UsersRepo: f.users}
	store.wg.Add(2)
	svc := NewService(store, f.tokens, f.mailer, nil).WithClock(func() time.Time { return f.now })

	passwords := []string{"first-pass1", "second-pass2"}
	errs := make([]error, len(passwords))
	var done sync.WaitGroup
	for i, pw := range passwords {
		done.Add(1)
		go func() {
			defer done.Done()
			_, errs[i] = svc.ResetPassword(ctx, raw, user.Password{Password: pw, PasswordConfirm: pw})
		}()
	}
	done.Wait()

	winner := -1
	for i, err := range errs {
		switch {
		case err == nil:
			if winner >= 0 {
				t.Fatalf("token redeemed twice: %v", errs)
			}
			winner = i
		case !apperr.IsKind(err, apperr.InvalidOrExpired):
			t.Fatalf("reset %d: got %v, want InvalidOrExpired", i, err)
		}
	}
	if winner < 0 {
		t.Fatalf("no reset succeeded: %v", errs)
	}

	loser := passwords[1-winner]
	if _, err := f.svc.Login(ctx, "jonas@example.com", passwords[winner]); err != nil {
		t.Fatalf("winning password: %v", err)
	}
	if _, err := f.svc.Login(ctx, "jonas@example.com", loser); !apperr.IsKind(err, apperr.InvalidCredentials) {
		t.Fatalf("losing password must not be stored, got %v", err)
	}
}

func TestPasswordResetExpires(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "jonas@example.com")
	ctx := context.Background()

	var raw string
	if err := f.svc.RequestReset(ctx, "jonas@example.com", resetLink(&raw)); err != nil {
		t.Fatalf("request reset: %v", err)
	}

	f.now = f.now.Add(user.ResetWindow + time.Second)
	_, err := f.svc.ResetPassword(ctx, raw, user.Password{Password: "newpass123", PasswordConfirm: "newpass123"})
	if !apperr.IsKind(err, apperr.InvalidOrExpired) {
		t.Fatalf("got %v, want InvalidOrExpired", err)
	}
}

func TestPasswordResetValidatesNewPassword(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "jonas@example.com")
	ctx := context.Background()

	var raw string
	_ = f.svc.RequestReset(ctx, "jonas@example.com", resetLink(&raw))

	_, err := f.svc.ResetPassword(ctx, raw, user.Password{Password: "newpass123", PasswordConfirm: "different1"})
	if !apperr.IsKind(err, apperr.ValidationFailed) {
		t.Fatalf("got %v, want ValidationFailed", err)
	}
	// a rejected attempt does not burn the token
	if _, err := f.svc.ResetPassword(ctx, raw, user.Password{Password: "newpass123", PasswordConfirm: "newpass123"}); err != nil {
		t.Fatalf("retry with valid password: %v", err)
	}
}

func TestPasswordResetValidatesAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	broken := user.New("  ", "broken@example.com")
	raw, err := broken.StartPasswordReset(f.now)
	if err != nil {
		t.Fatalf("start reset: %v", err)
	}
	if _, err := f.users.Create(ctx, broken); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = f.svc.ResetPassword(ctx, raw, user.Password{Password: "newpass123", PasswordConfirm: "newpass123"})
	if !apperr.IsKind(err, apperr.ValidationFailed) || !strings.Contains(err.Error(), "tell us your name") {
		t.Fatalf("got %v, want ValidationFailed on name", err)
	}
	if _, err := f.users.GetByResetToken(ctx, security.HashResetToken(raw), f.now); err != nil {
		t.Fatalf("a rejected reset must leave the token in place: %v", err)
	}
}

func TestRequestResetUnknownEmail(t *testing.T) {
	f := newFixture(t)
	err := f.svc.RequestReset(context.Background(), "ghost@example.com", func(string) string { return "" })
	if !apperr.IsKind(err, apperr.NotFound) {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestRequestResetWithdrawsTokenWhenDeliveryFails(t *testing.T) {
	f := newFixture(t)
	signed := f.signup(t, "jonas@example.com")
	f.mailer.sendFn = func(context.Context, mail.Message) error { return mail.ErrCircuitOpen }

	var raw string
	err := f.svc.RequestReset(context.Background(), "jonas@example.com", resetLink(&raw))
	if !apperr.IsKind(err, apperr.DeliveryFailed) || !errors.Is(err, mail.ErrCircuitOpen) {
		t.Fatalf("got %v, want DeliveryFailed wrapping the transport error", err)
	}

	stored, _ := f.users.GetByID(context.Background(), signed.User.ID.Hex())
	if stored.PasswordResetToken != "" || stored.PasswordResetExpires != nil {
		t.Fatalf("undelivered token must be withdrawn: %+v", stored)
	}
	if _, err := f.svc.ResetPassword(context.Background(), raw, user.Password{Password: "newpass123", PasswordConfirm: "newpass123"}); !apperr.IsKind(err, apperr.InvalidOrExpired) {
		t.Fatalf("undelivered token must not redeem, got %v", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "jonas@example.com")
	ctx := context.Background()

	_, err := f.svc.UpdatePassword(ctx, s.User, "wrong-pass", user.Password{Password: "newpass123", PasswordConfirm: "newpass123"})
	if !apperr.IsKind(err, apperr.InvalidCredentials) {
		t.Fatalf("got %v, want InvalidCredentials", err)
	}

	f.now = f.now.Add(time.Minute)
	updated, err := f.svc.UpdatePassword(ctx, s.User, "pass1234", user.Password{Password: "newpass123", PasswordConfirm: "newpass123"})
	if err != nil {
		t.Fatalf("update password: %v", err)
	}
	if updated.Token == "" || updated.User.PasswordChangedAt == nil {
		t.Fatalf("expected a fresh token and a change stamp")
	}
}

func TestUpdateMeAndDeleteMe(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "jonas@example.com")
	ctx := context.Background()

	_, err := f.svc.UpdateMe(ctx, s.User, ProfileInput{Password: "sneaky123"})
	if !apperr.IsKind(err, apperr.BadRequest) {
		t.Fatalf("got %v, want BadRequest", err)
	}

	name := "  Jonas S  "
	u, err := f.svc.UpdateMe(ctx, s.User, ProfileInput{Name: &name})
	if err != nil || u.Name != "Jonas S" || u.Email != "jonas@example.com" {
		t.Fatalf("update me: %v %+v", err, u)
	}

	if err := f.svc.DeleteMe(ctx, s.User); err != nil {
		t.Fatalf("delete me: %v", err)
	}
	if _, err := f.svc.Login(ctx, "jonas@example.com", "pass1234"); !apperr.IsKind(err, apperr.InvalidCredentials) {
		t.Fatalf("deactivated account must not log in, got %v", err)
	}
	if _, err := f.svc.Me(ctx, s.User); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestAdminUpdateUser(t *testing.T) {
	f := newFixture(t)
	s := f.signup(t, "jonas@example.com")
	ctx := context.Background()

	role := user.RoleGuide
	u, err := f.svc.UpdateUser(ctx, s.User.ID.Hex(), AdminUpdate{Role: &role})
	if err != nil || u.Role != user.RoleGuide {
		t.Fatalf("update role: %v %+v", err, u)
	}

	bad := user.Role("overlord")
	if _, err := f.svc.UpdateUser(ctx, s.User.ID.Hex(), AdminUpdate{Role: &bad}); !apperr.IsKind(err, apperr.ValidationFailed) {
		t.Fatalf("got %v, want ValidationFailed", err)
	}

	if err := f.svc.DeleteUser(ctx, s.User.ID.Hex()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetUser(ctx, s.User.ID.Hex()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("got %v, want not found", err)
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.EnsureAdmin(ctx, "", "", ""); err != nil {
		t.Fatalf("no credentials configured is a no-op: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := f.svc.EnsureAdmin(ctx, "Root", "admin@example.com", "admin1234"); err != nil {
			t.Fatalf("ensure admin #%d: %v", i, err)
		}
	}

	s, err := f.svc.Login(ctx, "admin@example.com", "admin1234")
	if err != nil || s.User.Role != user.RoleAdmin {
		t.Fatalf("admin login: %v %+v", err, s.User)
	}
}

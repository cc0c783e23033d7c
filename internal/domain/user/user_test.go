package user

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tourhub/tourhub/internal/apperr"
	"github.com/tourhub/tourhub/internal/security"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestChangedPasswordAfterUsesSeconds(t *testing.T) {
	changed := time.Date(2026, 5, 1, 12, 0, 10, 900_000_000, time.UTC)
	u := User{PasswordChangedAt: &changed}

	tests := []struct {
		name string
		iat  time.Time
		want bool
	}{
		{"token minted before change", changed.Add(-5 * time.Second), true},
		{"token minted same second", changed.Truncate(time.Second), false},
		{"token minted after change", changed.Add(3 * time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := u.ChangedPasswordAfter(tt.iat); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}

	if (User{}).ChangedPasswordAfter(time.Now()) {
		t.Fatalf("an account that never changed its password is never stale")
	}
}

func TestSetPassword(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	fresh := New("Jonas", "jonas@example.com")
	if err := fresh.SetPassword(Password{Password: "pass1234", PasswordConfirm: "pass1234"}, now); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if fresh.PasswordChangedAt != nil {
		t.Fatalf("new accounts must not get passwordChangedAt")
	}
	if security.CheckPassword(fresh.PasswordHash, "pass1234") != nil {
		t.Fatalf("hash does not verify")
	}

	existing := New("Jonas", "jonas@example.com")
	existing.ID = bson.NewObjectID()
	existing.PasswordHash = fresh.PasswordHash
	if err := existing.SetPassword(Password{Password: "newpass123", PasswordConfirm: "newpass123"}, now); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if existing.PasswordChangedAt == nil || !existing.PasswordChangedAt.Equal(now.Add(-time.Second)) {
		t.Fatalf("got passwordChangedAt %v, want now-1s", existing.PasswordChangedAt)
	}
}

func TestSetPasswordValidation(t *testing.T) {
	tests := []struct {
		name string
		in   Password
	}{
		{"too short", Password{Password: "short", PasswordConfirm: "short"}},
		{"mismatch", Password{Password: "pass1234", PasswordConfirm: "pass12345"}},
		{"missing confirm", Password{Password: "pass1234"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := New("Jonas", "jonas@example.com")
			err := u.SetPassword(tt.in, time.Now())
			if !apperr.IsKind(err, apperr.ValidationFailed) {
				t.Fatalf("got %v, want ValidationFailed", err)
			}
			if u.PasswordHash != "" {
				t.Fatalf("password must not be stored on validation failure")
			}
		})
	}
}

func TestPrepareWriteNormalizes(t *testing.T) {
	u := User{Name: "  Jonas ", Email: "  Jonas@Example.COM "}
	if err := u.PrepareWrite(); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if u.Email != "jonas@example.com" || u.Name != "Jonas" || u.Role != RoleUser || u.Photo != DefaultPhoto {
		t.Fatalf("unexpected normalization: %+v", u)
	}

	bad := User{Name: "x", Email: "not-an-email", Role: "king"}
	if err := bad.PrepareWrite(); !apperr.IsKind(err, apperr.ValidationFailed) {
		t.Fatalf("got %v, want ValidationFailed", err)
	}
}

func TestStartPasswordReset(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	u := New("Jonas", "jonas@example.com")

	raw, err := u.StartPasswordReset(now)
	if err != nil {
		t.Fatalf("start reset: %v", err)
	}
	if u.PasswordResetToken != security.HashResetToken(raw) {
		t.Fatalf("stored token must be the hash of the raw token")
	}
	if !u.PasswordResetExpires.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("got expiry %v", u.PasswordResetExpires)
	}

	u.ClearPasswordReset()
	if u.PasswordResetToken != "" || u.PasswordResetExpires != nil {
		t.Fatalf("reset fields should be cleared")
	}
}

func TestJSONHidesStoreFields(t *testing.T) {
	expires := time.Now().Add(ResetWindow)
	u := New("Jonas", "jonas@example.com")
	u.PasswordHash = "hash-value"
	u.PasswordResetToken = "reset-value"
	u.PasswordResetExpires = &expires
	u.Version = 3

	b, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, hidden := range []string{"__v", "hash-value", "reset-value", "passwordResetExpires", "active"} {
		if strings.Contains(string(b), hidden) {
			t.Fatalf("%q leaked: %s", hidden, b)
		}
	}
}

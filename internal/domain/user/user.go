package user

import (
	"strings"
	"time"

	"github.com/tourhub/tourhub/internal/domain/validation"
	"github.com/tourhub/tourhub/internal/security"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

const (
	DefaultPhoto = "default.jpg"

	// ResetWindow is how long a password reset token stays redeemable.
	ResetWindow = 10 * time.Minute
)

type User struct {
	ID                   bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                 string        `bson:"name" json:"name" validate:"required"`
	Email                string        `bson:"email" json:"email" validate:"required,email"`
	Photo                string        `bson:"photo,omitempty" json:"photo,omitempty"`
	Role                 Role          `bson:"role" json:"role" validate:"oneof=user guide lead-guide admin"`
	PasswordHash         string        `bson:"password" json:"-"` // never expose hash in JSON
	PasswordChangedAt    *time.Time    `bson:"passwordChangedAt,omitempty" json:"passwordChangedAt,omitempty"`
	PasswordResetToken   string        `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time    `bson:"passwordResetExpires,omitempty" json:"-"`
	Active               bool          `bson:"active" json:"-"`
	Version              int           `bson:"__v" json:"-"`
}

// Summary is the public projection embedded in tours (guides) and reviews (author).
type Summary struct {
	ID    bson.ObjectID `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email,omitempty"`
	Photo string        `json:"photo,omitempty"`
	Role  Role          `json:"role,omitempty"`
}

type Password struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

var messages = validation.Messages{
	"name.required":            "Please tell us your name!",
	"email.required":           "Please provide your email",
	"email.email":              "Please provide a valid email",
	"password.required":        "Please provide a password",
	"password.min":             "Password must have at least 8 characters",
	"passwordConfirm.required": "Please confirm your password",
	"passwordConfirm.eqfield":  "Passwords are not the same!",
}

// New returns a fresh, active account with default role and photo.
func New(name, email string) User {
	return User{
		Name:   name,
		Email:  email,
		Photo:  DefaultPhoto,
		Role:   RoleUser,
		Active: true,
	}
}

// PrepareWrite normalizes and validates the record before it is persisted.
func (u *User) PrepareWrite() error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = NormalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.Photo == "" {
		u.Photo = DefaultPhoto
	}
	return validation.Check(u, messages)
}

// SetPassword validates and hashes a new password. Existing accounts get
// PasswordChangedAt one second in the past so a token minted right after the
// change is not considered stale.
func (u *User) SetPassword(p Password, now time.Time) error {
	if err := validation.Check(p, messages); err != nil {
		return err
	}

	hash, err := security.HashPassword(p.Password)
	if err != nil {
		return err
	}

	isNew := u.PasswordHash == "" && u.ID.IsZero()
	u.PasswordHash = hash
	if !isNew {
		changed := now.Add(-time.Second).UTC()
		u.PasswordChangedAt = &changed
	}
	return nil
}

func (u User) CorrectPassword(plain string) bool {
	return u.PasswordHash != "" && security.CheckPassword(u.PasswordHash, plain) == nil
}

// ChangedPasswordAfter compares at second granularity, the resolution of a token's iat.
func (u User) ChangedPasswordAfter(iat time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return iat.Unix() < u.PasswordChangedAt.Unix()
}

// StartPasswordReset stores the hash of a new reset token and returns the raw token.
func (u *User) StartPasswordReset(now time.Time) (string, error) {
	raw, hash, err := security.NewResetToken()
	if err != nil {
		return "", err
	}

	expires := now.Add(ResetWindow).UTC()
	u.PasswordResetToken = hash
	u.PasswordResetExpires = &expires
	return raw, nil
}

func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
}

func (u User) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, Photo: u.Photo, Role: u.Role}
}

// Author is the slimmer summary shown next to a review.
func (u User) Author() Summary {
	return Summary{ID: u.ID, Name: u.Name, Photo: u.Photo}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ParseRole(s string) (Role, bool) {
	switch r := Role(s); r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return r, true
	}
	return "", false
}

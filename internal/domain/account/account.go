// Package account manages customer accounts: registration, password
// recovery and the customer profile.
package account

import (
	"context"
	"slices"
	"strings"
	"unicode"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/qorikusi/storefront/internal/domain/form"
)

var (
	// ErrAlreadyExists is returned when the email or username is taken.
	ErrAlreadyExists = errors.New("account already exists")
	// ErrNotFound is returned when no customer matches.
	ErrNotFound = errors.New("customer not found")
	// ErrResetTokenInvalid is returned for an unknown, tampered or expired
	// password reset token.
	ErrResetTokenInvalid = errors.New("reset token invalid")
	// ErrWrongPassword is returned when the current password or email given
	// to confirm a change does not match.
	ErrWrongPassword = errors.New("current credentials do not match")
)

// ZodiacSigns are the accepted values of Profile.ZodiacSign.
var ZodiacSigns = []string{
	"Aries", "Tauro", "Géminis", "Cáncer", "Leo", "Virgo",
	"Libra", "Escorpio", "Sagitario", "Capricornio", "Acuario", "Piscis",
}

// MoonPhases are the accepted values of Profile.MoonPhase.
var MoonPhases = []string{"Luna Nueva", "Luna Creciente", "Luna Llena", "Luna Menguante"}

// Profile is the customer data kept by the customer service.
type Profile struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
	Points     int    `json:"points"`
	ZodiacSign string `json:"zodiacSign,omitempty"`
	MoonPhase  string `json:"moonPhase,omitempty"`
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FirstName  string `json:"firstName" validate:"required,max=100"`
	LastName   string `json:"lastName" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"required,max=20,numeric"`
	ZodiacSign string `json:"zodiacSign,omitempty"`
	MoonPhase  string `json:"moonPhase,omitempty"`
}

// Registration creates a customer account.
type Registration struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// PasswordReset completes a forgotten-password flow.
type PasswordReset struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
	Confirm  string `json:"confirmPassword" validate:"required,eqfield=Password"`
}

// EmailChange moves the account to a new email.
type EmailChange struct {
	Current string `json:"currentEmail" validate:"required,email"`
	New     string `json:"newEmail" validate:"required,email,nefield=Current"`
	Confirm string `json:"confirmEmail" validate:"required,eqfield=New"`
}

// PasswordChange replaces the password of the logged-in customer.
type PasswordChange struct {
	Current string `json:"currentPassword" validate:"required"`
	New     string `json:"newPassword" validate:"required,min=8"`
	Confirm string `json:"confirmPassword" validate:"required,eqfield=New"`
}

// Backend is the remote auth and customer services.
type Backend interface {
	Register(ctx context.Context, email, password string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
	Profile(ctx context.Context) (*Profile, error)
	UpdateProfile(ctx context.Context, u ProfileUpdate) (*Profile, error)
	ChangeEmail(ctx context.Context, current, next string) error
	ChangePassword(ctx context.Context, current, next string) error
}

// Service validates account forms before they reach the backend. Calls that
// act on the logged-in customer need the session token in ctx.
type Service struct {
	backend  Backend
	validate *form.Validator
	lg       *zap.Logger
}

// NewService creates a Service.
func NewService(backend Backend, lg *zap.Logger) *Service {
	v := form.New()
	v.RegisterStructValidation(registrationRules, Registration{})
	v.RegisterStructValidation(profileRules, ProfileUpdate{})
	v.RegisterStructValidation(passwordChangeRules, PasswordChange{})
	v.RegisterStructValidation(passwordResetRules, PasswordReset{})
	v.Message("password", passwordRule)
	v.Message("newPassword", passwordRule)
	v.Message("zodiacSign", "is not a known zodiac sign")
	v.Message("moonPhase", "is not a known moon phase")
	v.Message("newEmail", "must be a different valid email address")
	v.Message("confirmEmail", "does not match the new email")
	v.Message("confirmPassword", "does not match the new password")
	return &Service{backend: backend, validate: v, lg: lg}
}

// Register creates a customer account. It does not log in.
func (s *Service) Register(ctx context.Context, r Registration) error {
	r.Email = strings.TrimSpace(r.Email)
	if err := s.validate.Struct(r); err != nil {
		return err
	}
	if err := s.backend.Register(ctx, r.Email, r.Password); err != nil {
		return errors.Wrap(err, "register")
	}
	s.lg.Info("Customer registered")
	return nil
}

// ForgotPassword asks the auth service to mail a reset link.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !s.validate.Valid(email, "required,email") {
		return form.Field("email", "must be a valid email address")
	}
	return errors.Wrap(s.backend.ForgotPassword(ctx, email), "forgot password")
}

// ResetPassword sets a new password with the token from the reset link.
func (s *Service) ResetPassword(ctx context.Context, r PasswordReset) error {
	r.Token = strings.TrimSpace(r.Token)
	if err := s.validate.Struct(r); err != nil {
		return err
	}
	return errors.Wrap(s.backend.ResetPassword(ctx, r.Token, r.Password), "reset password")
}

// Profile returns the logged-in customer's profile.
func (s *Service) Profile(ctx context.Context) (*Profile, error) {
	p, err := s.backend.Profile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get profile")
	}
	return p, nil
}

// UpdateProfile replaces the editable profile fields.
func (s *Service) UpdateProfile(ctx context.Context, u ProfileUpdate) (*Profile, error) {
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.Phone = strings.TrimSpace(u.Phone)
	if err := s.validate.Struct(u); err != nil {
		return nil, err
	}
	p, err := s.backend.UpdateProfile(ctx, u)
	if err != nil {
		return nil, errors.Wrap(err, "update profile")
	}
	return p, nil
}

// ChangeEmail moves the account to a new email.
func (s *Service) ChangeEmail(ctx context.Context, c EmailChange) error {
	c.Current = strings.TrimSpace(c.Current)
	c.New = strings.TrimSpace(c.New)
	c.Confirm = strings.TrimSpace(c.Confirm)
	if err := s.validate.Struct(c); err != nil {
		return err
	}
	return errors.Wrap(s.backend.ChangeEmail(ctx, c.Current, c.New), "change email")
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, c PasswordChange) error {
	if err := s.validate.Struct(c); err != nil {
		return err
	}
	return errors.Wrap(s.backend.ChangePassword(ctx, c.Current, c.New), "change password")
}

// StrongPassword reports whether pw mixes upper and lower case letters, a
// digit and a symbol.
func StrongPassword(pw string) bool {
	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

const (
	weakPassword = "strong"
	passwordRule = "must have at least 8 characters mixing upper and lower case letters, a digit and a symbol"
)

func registrationRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(Registration)
	if r.Password != "" && !StrongPassword(r.Password) {
		sl.ReportError(r.Password, "password", "Password", weakPassword, "")
	}
}

func passwordResetRules(sl validator.StructLevel) {
	r := sl.Current().Interface().(PasswordReset)
	if r.Password != "" && !StrongPassword(r.Password) {
		sl.ReportError(r.Password, "password", "Password", weakPassword, "")
	}
}

func passwordChangeRules(sl validator.StructLevel) {
	c := sl.Current().Interface().(PasswordChange)
	if c.New != "" && !StrongPassword(c.New) {
		sl.ReportError(c.New, "newPassword", "New", weakPassword, "")
	}
}

func profileRules(sl validator.StructLevel) {
	u := sl.Current().Interface().(ProfileUpdate)
	if u.ZodiacSign != "" && !slices.Contains(ZodiacSigns, u.ZodiacSign) {
		sl.ReportError(u.ZodiacSign, "zodiacSign", "ZodiacSign", "oneof", "")
	}
	if u.MoonPhase != "" && !slices.Contains(MoonPhases, u.MoonPhase) {
		sl.ReportError(u.MoonPhase, "moonPhase", "MoonPhase", "oneof", "")
	}
}

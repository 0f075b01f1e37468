// Package users resolves platform users for the project services.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrUserNotFound       = apperrors.New(apperrors.KindNotFound, "errors.user.notFound")
	ErrEmailTaken         = apperrors.New(apperrors.KindInvariantViolation, "errors.user.emailTaken")
	ErrInvalidCredentials = apperrors.New(apperrors.KindAccessDenied, "errors.user.invalidCredentials")
	ErrInvalidEmail       = apperrors.New(apperrors.KindBadRequest, "errors.user.invalidEmail")
	ErrWeakPassword       = apperrors.New(apperrors.KindBadRequest, "errors.user.weakPassword")
)

// Directory looks users up by id or email.
type Directory struct{}

func NewDirectory() *Directory {
	return &Directory{}
}

func (d *Directory) FindByID(ctx context.Context, q store.Queries, id uuid.UUID) (*store.User, error) {
	u, err := q.Users().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return u, nil
}

// FindByEmail returns nil without error when no user has the address.
func (d *Directory) FindByEmail(ctx context.Context, q store.Queries, email string) (*store.User, error) {
	u, err := q.Users().GetByEmail(ctx, validation.NormalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return u, nil
}

// FindByEmails resolves a batch of addresses. The returned map is keyed by
// normalized email; missing lists the submitted addresses with no user, in
// submission order and without duplicates.
func (d *Directory) FindByEmails(ctx context.Context, q store.Queries, emails []string) (found map[string]store.User, missing []string, err error) {
	normalized := make([]string, 0, len(emails))
	seen := make(map[string]bool, len(emails))
	for _, e := range emails {
		n := validation.NormalizeEmail(e)
		if seen[n] {
			continue
		}
		seen[n] = true
		normalized = append(normalized, n)
	}

	list, err := q.Users().ListByEmails(ctx, normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve emails: %w", err)
	}

	found = make(map[string]store.User, len(list))
	for _, u := range list {
		found[validation.NormalizeEmail(u.Email)] = u
	}
	for _, n := range normalized {
		if _, ok := found[n]; !ok {
			missing = append(missing, n)
		}
	}
	return found, missing, nil
}

// CreateParams describes a new platform user.
type CreateParams struct {
	Email        string
	DisplayName  string
	Password     string
	PlatformRole store.PlatformRole
	Locale       string
}

// Create registers a user with a bcrypt password hash.
func (d *Directory) Create(ctx context.Context, q store.Queries, params CreateParams) (*store.User, error) {
	email := validation.NormalizeEmail(params.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := validation.ValidatePassword(params.Password); err != nil {
		return nil, ErrWeakPassword
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &store.User{
		Email:        email,
		DisplayName:  params.DisplayName,
		PasswordHash: hash,
		PlatformRole: params.PlatformRole,
		Locale:       params.Locale,
	}
	if u.DisplayName == "" {
		u.DisplayName = email
	}
	if err := q.Users().Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().
		Str("user_id", u.ID.String()).
		Str("email", u.Email).
		Msg("User created")
	return u, nil
}

// Authenticate checks an email and password pair. Unknown users and wrong
// passwords produce the same error.
func (d *Directory) Authenticate(ctx context.Context, q store.Queries, email, password string) (*store.User, error) {
	u, err := d.FindByEmail(ctx, q, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		log.Debug().Str("email", email).Msg("Login failed: user not found")
		return nil, ErrInvalidCredentials
	}
	if err := VerifyPassword(u.PasswordHash, password); err != nil {
		log.Debug().Str("user_id", u.ID.String()).Msg("Login failed: wrong password")
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// ResetPassword replaces the password hash of the user with the given email.
func (d *Directory) ResetPassword(ctx context.Context, q store.Queries, email, password string) (*store.User, error) {
	if err := validation.ValidatePassword(password); err != nil {
		return nil, ErrWeakPassword
	}
	u, err := d.FindByEmail(ctx, q, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := q.Users().UpdatePassword(ctx, u.ID, hash); err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	return u, nil
}

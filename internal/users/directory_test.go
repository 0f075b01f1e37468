package users

import (
	"context"
	"errors"
	"testing"

	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/store/memory"
	"github.com/stretchr/testify/require"
)

func TestCreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	d := NewDirectory()

	u, err := d.Create(ctx, st, CreateParams{Email: " Alice@X.com ", Password: "correct-horse"})
	require.NoError(t, err)
	require.Equal(t, "alice@x.com", u.Email)
	require.Equal(t, store.PlatformUser, u.PlatformRole)
	require.NotEqual(t, "correct-horse", u.PasswordHash)

	got, err := d.Authenticate(ctx, st, "ALICE@x.com", "correct-horse")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)

	_, err = d.Authenticate(ctx, st, "alice@x.com", "wrong-password")
	require.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = d.Authenticate(ctx, st, "nobody@x.com", "correct-horse")
	require.True(t, errors.Is(err, ErrInvalidCredentials))
}

func TestCreateRejectsDuplicateAndInvalidInput(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	d := NewDirectory()

	_, err := d.Create(ctx, st, CreateParams{Email: "a@x.com", Password: "12345678"})
	require.NoError(t, err)

	_, err = d.Create(ctx, st, CreateParams{Email: "A@x.com", Password: "12345678"})
	require.True(t, errors.Is(err, ErrEmailTaken))

	_, err = d.Create(ctx, st, CreateParams{Email: "not-an-email", Password: "12345678"})
	require.True(t, errors.Is(err, ErrInvalidEmail))

	_, err = d.Create(ctx, st, CreateParams{Email: "b@x.com", Password: "short"})
	require.True(t, errors.Is(err, ErrWeakPassword))
}

func TestFindByEmailReturnsNilWhenAbsent(t *testing.T) {
	u, err := NewDirectory().FindByEmail(context.Background(), memory.New(), "ghost@x.com")
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestFindByEmailsCollectsAllMissing(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	d := NewDirectory()

	_, err := d.Create(ctx, st, CreateParams{Email: "a@x.com", Password: "12345678"})
	require.NoError(t, err)

	found, missing, err := d.FindByEmails(ctx, st, []string{"A@x.com", "b@x.com", "c@x.com", "B@X.com"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Contains(t, found, "a@x.com")
	require.Equal(t, []string{"b@x.com", "c@x.com"}, missing)
}

func TestResetPassword(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	d := NewDirectory()

	_, err := d.Create(ctx, st, CreateParams{Email: "a@x.com", Password: "12345678"})
	require.NoError(t, err)

	_, err = d.ResetPassword(ctx, st, "a@x.com", "new-password")
	require.NoError(t, err)

	_, err = d.Authenticate(ctx, st, "a@x.com", "new-password")
	require.NoError(t, err)

	_, err = d.ResetPassword(ctx, st, "ghost@x.com", "new-password")
	require.True(t, errors.Is(err, ErrUserNotFound))
}

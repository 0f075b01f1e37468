//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/app"
	"github.com/aliuyar1234/projecthub/internal/config"
	"github.com/aliuyar1234/projecthub/internal/db"
	"github.com/aliuyar1234/projecthub/internal/filestore"
	"github.com/aliuyar1234/projecthub/internal/metrics"
	"github.com/aliuyar1234/projecthub/internal/projects"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/store/postgres"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// newStore starts a disposable PostgreSQL container, applies the migrations
// and returns a store over it.
func newStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	if _, err := testcontainers.ProviderDocker.GetProvider(); err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("projecthub_test"),
		tcpostgres.WithUsername("projecthub"),
		tcpostgres.WithPassword("projecthub"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(ctr); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.Connect(ctx, dsn, db.PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx, pool))

	st := postgres.New(pool)
	t.Cleanup(st.Close)
	return st
}

func TestIntegration_UserEmailIsCaseInsensitiveUnique(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	u := &store.User{Email: "ala@example.com", DisplayName: "Ala", PasswordHash: "x", PlatformRole: store.PlatformUser}
	require.NoError(t, st.Users().Create(ctx, u))

	dup := &store.User{Email: "ALA@example.com", DisplayName: "Ala", PasswordHash: "x", PlatformRole: store.PlatformUser}
	require.ErrorIs(t, st.Users().Create(ctx, dup), store.ErrConflict)

	found, err := st.Users().GetByEmail(ctx, "Ala@Example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, found.ID)
}

func TestIntegration_RollbackDropsWritesAndHooks(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	hookRan := false
	boom := errors.New("boom")
	err := st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		u := &store.User{Email: "gone@example.com", DisplayName: "Gone", PasswordHash: "x", PlatformRole: store.PlatformUser}
		require.NoError(t, q.Users().Create(ctx, u))
		q.AfterCommit(func(context.Context) { hookRan = true })
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, hookRan)

	_, err = st.Users().GetByEmail(ctx, "gone@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestIntegration_OnePendingInvitationPerPair(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	inviter := &store.User{Email: "a@example.com", DisplayName: "A", PasswordHash: "x", PlatformRole: store.PlatformUser}
	invitee := &store.User{Email: "b@example.com", DisplayName: "B", PasswordHash: "x", PlatformRole: store.PlatformUser}
	require.NoError(t, st.Users().Create(ctx, inviter))
	require.NoError(t, st.Users().Create(ctx, invitee))
	p := &store.Project{Name: "P", CreatedByUserID: inviter.ID}
	require.NoError(t, st.Projects().Create(ctx, p))

	first := &store.Invitation{ProjectID: p.ID, InviteeUserID: invitee.ID, InviterUserID: inviter.ID, Status: store.InvitationPending}
	require.NoError(t, st.Invitations().Insert(ctx, first))

	second := &store.Invitation{ProjectID: p.ID, InviteeUserID: invitee.ID, InviterUserID: inviter.ID, Status: store.InvitationPending}
	require.ErrorIs(t, st.Invitations().Insert(ctx, second), store.ErrConflict)

	moved, err := st.Invitations().Transition(ctx, first.ID, store.InvitationPending, store.InvitationAccepted, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, moved)

	moved, err = st.Invitations().Transition(ctx, first.ID, store.InvitationPending, store.InvitationRejected, time.Now().UTC())
	require.NoError(t, err)
	require.False(t, moved)

	// A resolved invitation no longer blocks a new one.
	require.NoError(t, st.Invitations().Insert(ctx, second))
}

func TestIntegration_ProjectLifecycle(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	cfg := &config.Config{Languages: []string{"en", "pl"}, RoleCacheSize: 16, RoleCacheTTL: time.Minute}
	svc, err := app.NewServices(ctx, cfg, st, nil, filestore.Disabled{}, metrics.New())
	require.NoError(t, err)

	owner := &store.User{Email: "owner@example.com", DisplayName: "Owner", PasswordHash: "x", PlatformRole: store.PlatformUser}
	guest := &store.User{Email: "guest@example.com", DisplayName: "Guest", PasswordHash: "x", PlatformRole: store.PlatformUser}
	require.NoError(t, st.Users().Create(ctx, owner))
	require.NoError(t, st.Users().Create(ctx, guest))

	member, err := st.Roles().GetByCode(ctx, "MEMBER")
	require.NoError(t, err)

	actor := access.Actor{UserID: owner.ID, PlatformRole: store.PlatformUser}
	p, err := svc.Projects.Create(ctx, actor, projects.CreateInput{
		Name:             "Apollo",
		Categories:       []projects.LabelInput{{Name: "Backend", Color: "#112233"}},
		MembersWithRoles: []projects.MemberInput{{Email: "guest@example.com", RoleID: member.ID}},
	})
	require.NoError(t, err)

	pending, err := svc.Invitations.ListPendingForUser(ctx, st, guest.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NoError(t, svc.Invitations.Accept(ctx, pending[0].ID, guest.ID))

	details, err := svc.Projects.FindOneWithDetails(ctx, actor, p.ID, "pl")
	require.NoError(t, err)
	require.Len(t, details.Members, 2)
	require.Len(t, details.Categories, 1)
	require.Equal(t, "Backend", details.Categories[0].Name)

	_, err = svc.Projects.Update(ctx, actor, p.ID, projects.UpdateInput{
		UsersWithRoles: []projects.MemberInput{
			{Email: "owner@example.com", RoleID: member.ID},
			{Email: "guest@example.com", RoleID: member.ID},
		},
	})
	require.ErrorIs(t, err, projects.ErrLastManagerCannotBeRemoved)

	require.NoError(t, svc.Projects.Remove(ctx, actor, p.ID))
	_, err = st.Projects().GetByID(ctx, p.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := st.Memberships().CountWithRole(ctx, p.ID, member.ID)
	require.NoError(t, err)
	require.Zero(t, n)
}

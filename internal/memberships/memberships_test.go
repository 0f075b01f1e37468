package memberships_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/aliuyar1234/projecthub/internal/memberships"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUpsertReplacesRole(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ms := memberships.NewStore()

	owner := env.User(t, "owner@x.com")
	user := env.User(t, "user@x.com")
	p := env.Project(t, "Alpha", owner)

	first, err := ms.Upsert(ctx, env.Store, p.ID, user.ID, env.Role(t, roles.CodeClient).ID)
	require.NoError(t, err)

	second, err := ms.Upsert(ctx, env.Store, p.ID, user.ID, env.Role(t, roles.CodeMember).ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	code, err := ms.RoleCodeOf(ctx, env.Store, p.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, roles.CodeMember, code)

	list, err := ms.ListByProject(ctx, env.Store, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "user@x.com", list[0].Email)
	require.Equal(t, roles.CodeMember, list[0].RoleCode)
}

func TestRemoveIsNoopWhenAbsent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ms := memberships.NewStore()

	owner := env.User(t, "owner@x.com")
	p := env.Project(t, "Alpha", owner)

	removed, err := ms.Remove(ctx, env.Store, p.ID, uuid.New())
	require.NoError(t, err)
	require.False(t, removed)

	code, err := ms.RoleCodeOf(ctx, env.Store, p.ID, owner.ID)
	require.NoError(t, err)
	require.Empty(t, code)
}

func TestAtMostOneMembershipPerPair(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ms := memberships.NewStore()
	rng := rand.New(rand.NewSource(42))

	owner := env.User(t, "owner@x.com")
	projects := []*store.Project{env.Project(t, "A", owner), env.Project(t, "B", owner)}
	users := []*store.User{owner, env.User(t, "u1@x.com"), env.User(t, "u2@x.com")}
	roleIDs := []uuid.UUID{
		env.Role(t, roles.CodeManager).ID,
		env.Role(t, roles.CodeMember).ID,
		env.Role(t, roles.CodeClient).ID,
	}

	for i := 0; i < 300; i++ {
		p := projects[rng.Intn(len(projects))]
		u := users[rng.Intn(len(users))]
		err := env.Store.InTx(ctx, func(ctx context.Context, q store.Queries) error {
			if rng.Intn(3) == 0 {
				_, err := ms.Remove(ctx, q, p.ID, u.ID)
				return err
			}
			_, err := ms.Upsert(ctx, q, p.ID, u.ID, roleIDs[rng.Intn(len(roleIDs))])
			return err
		})
		require.NoError(t, err)

		for _, proj := range projects {
			list, err := ms.ListByProject(ctx, env.Store, proj.ID)
			require.NoError(t, err)
			seen := map[uuid.UUID]bool{}
			for _, m := range list {
				require.False(t, seen[m.UserID], "duplicate membership for %s", m.Email)
				seen[m.UserID] = true
			}
		}
	}
}

func TestCountWithRole(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ms := memberships.NewStore()

	owner := env.User(t, "owner@x.com")
	other := env.User(t, "other@x.com")
	p := env.Project(t, "Alpha", owner)
	env.Member(t, p, owner, roles.CodeManager)
	env.Member(t, p, other, roles.CodeManager)

	n, err := ms.CountWithRole(ctx, env.Store, p.ID, env.Role(t, roles.CodeManager).ID)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	byUser, err := ms.ListByUser(ctx, env.Store, other.ID)
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	require.Equal(t, p.ID, byUser[0].ProjectID)
}

func TestGuardLastManager(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	ms := memberships.NewStore()
	manager := env.Role(t, roles.CodeManager).ID

	owner := env.User(t, "owner@x.com")
	other := env.User(t, "other@x.com")
	p := env.Project(t, "Alpha", owner)

	sole, err := ms.Upsert(ctx, env.Store, p.ID, owner.ID, manager)
	require.NoError(t, err)
	require.ErrorIs(t, ms.GuardLastManager(ctx, env.Store, sole, manager), memberships.ErrLastManagerCannotBeRemoved)

	client, err := ms.Upsert(ctx, env.Store, p.ID, other.ID, env.Role(t, roles.CodeClient).ID)
	require.NoError(t, err)
	require.NoError(t, ms.GuardLastManager(ctx, env.Store, client, manager))

	_, err = ms.Upsert(ctx, env.Store, p.ID, other.ID, manager)
	require.NoError(t, err)
	require.NoError(t, ms.GuardLastManager(ctx, env.Store, sole, manager))
	require.NoError(t, ms.GuardLastManager(ctx, env.Store, nil, manager))
}

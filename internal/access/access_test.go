package access_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestEffectivePermissions(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	eval := access.NewEvaluator(env.Catalog)

	owner := env.User(t, "owner@x.com")
	client := env.User(t, "client@x.com")
	stranger := env.User(t, "stranger@x.com")
	p := env.Project(t, "Alpha", owner)
	env.Member(t, p, owner, roles.CodeManager)
	env.Member(t, p, client, roles.CodeClient)

	perms, err := eval.EffectivePermissions(ctx, env.Store, p.ID, owner.ID)
	require.NoError(t, err)
	require.True(t, perms.Has(roles.PermDeleteProject))

	perms, err = eval.EffectivePermissions(ctx, env.Store, p.ID, client.ID)
	require.NoError(t, err)
	require.Equal(t, []string{roles.PermShowTasks, roles.PermViewProject}, perms.Codes())

	perms, err = eval.EffectivePermissions(ctx, env.Store, p.ID, stranger.ID)
	require.NoError(t, err)
	require.Empty(t, perms)
}

func TestRequirePermissionIgnoresPlatformAdmin(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	eval := access.NewEvaluator(env.Catalog)

	owner := env.User(t, "owner@x.com")
	admin := env.Admin(t, "admin@x.com")
	p := env.Project(t, "Alpha", owner)
	env.Member(t, p, owner, roles.CodeManager)

	require.NoError(t, eval.RequirePermission(ctx, env.Store, p.ID, owner.ID, roles.PermEditProject, roles.PermDeleteProject))

	err := eval.RequirePermission(ctx, env.Store, p.ID, admin.ID, roles.PermEditProject, roles.PermDeleteProject)
	require.True(t, errors.Is(err, access.ErrAccessDenied))
}

func TestRequireRoleLetsPlatformAdminThrough(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	eval := access.NewEvaluator(env.Catalog)

	owner := env.User(t, "owner@x.com")
	member := env.User(t, "member@x.com")
	admin := env.Admin(t, "admin@x.com")
	p := env.Project(t, "Alpha", owner)
	env.Member(t, p, owner, roles.CodeManager)
	env.Member(t, p, member, roles.CodeMember)

	require.NoError(t, eval.RequireRole(ctx, env.Store, p.ID, access.Actor{UserID: owner.ID}, roles.CodeManager))
	require.NoError(t, eval.RequireRole(ctx, env.Store, p.ID, access.Actor{UserID: admin.ID, PlatformRole: admin.PlatformRole}, roles.CodeManager))

	err := eval.RequireRole(ctx, env.Store, p.ID, access.Actor{UserID: member.ID, PlatformRole: member.PlatformRole}, roles.CodeManager)
	require.True(t, errors.Is(err, access.ErrAccessDenied))

	err = eval.RequireRole(ctx, env.Store, p.ID, access.Actor{UserID: admin.ID}, roles.CodeManager)
	require.True(t, errors.Is(err, access.ErrAccessDenied), "admin flag comes from the actor, not the user row")
}

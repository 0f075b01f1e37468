package roles_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/store/memory"
	"github.com/aliuyar1234/projecthub/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestSyncIsIdempotent(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	before, err := env.Catalog.ListAll(ctx, env.Store, "en")
	require.NoError(t, err)
	require.Len(t, before, 3)

	defs, err := roles.DefaultDefinitions()
	require.NoError(t, err)
	require.NoError(t, env.Catalog.Sync(ctx, env.Store, defs))

	after, err := env.Catalog.ListAll(ctx, env.Store, "en")
	require.NoError(t, err)
	require.Equal(t, before, after)

	types, err := env.Store.Projects().ListTypes(ctx)
	require.NoError(t, err)
	require.Len(t, types, 3)
}

func TestListAllOrderedAndActiveOnly(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	catalog := roles.NewCatalog(8, time.Minute, nil)

	defs, err := roles.ParseDefinitions([]byte(`
permissions:
  - code: VIEW_PROJECT
roles:
  - code: A
    permissions: [VIEW_PROJECT]
  - code: B
    inactive: true
  - code: C
`))
	require.NoError(t, err)
	require.NoError(t, catalog.Sync(ctx, st, defs))

	list, err := catalog.ListAll(ctx, st, "en")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Less(t, list[0].ID.String(), list[1].ID.String())
	for _, r := range list {
		require.NotEqual(t, "B", r.Code)
	}
}

func TestFindByIDFallsBackToFirstTranslation(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	manager := env.Role(t, roles.CodeManager)

	pl, err := env.Catalog.FindByID(ctx, env.Store, manager.ID, "pl")
	require.NoError(t, err)
	require.Equal(t, "Kierownik", pl.Name)

	de, err := env.Catalog.FindByID(ctx, env.Store, manager.ID, "de")
	require.NoError(t, err)
	require.Equal(t, "Manager", de.Name)
	require.Contains(t, de.Permissions, roles.PermEditProject)
}

func TestFindByCodeNotFound(t *testing.T) {
	env := testutil.NewEnv(t)

	_, err := env.Catalog.FindByCode(context.Background(), env.Store, "OWNER")
	require.True(t, errors.Is(err, roles.ErrRoleNotFound))
}

func TestManagerRoleNotConfigured(t *testing.T) {
	catalog := roles.NewCatalog(8, time.Minute, nil)

	_, err := catalog.Manager(context.Background(), memory.New())
	require.True(t, errors.Is(err, roles.ErrManagerRoleNotConfigured))
}

func TestPermissionsAreCachedUntilPurge(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	client := env.Role(t, roles.CodeClient)

	perms, err := env.Catalog.Permissions(ctx, env.Store, client.ID)
	require.NoError(t, err)
	require.True(t, perms.Has(roles.PermViewProject))
	require.False(t, perms.Has(roles.PermInviteUsers))

	require.NoError(t, env.Store.Roles().SetPermissions(ctx, client.ID, []string{roles.PermInviteUsers}))

	cached, err := env.Catalog.Permissions(ctx, env.Store, client.ID)
	require.NoError(t, err)
	require.True(t, cached.Has(roles.PermViewProject))

	env.Catalog.Purge()
	fresh, err := env.Catalog.Permissions(ctx, env.Store, client.ID)
	require.NoError(t, err)
	require.Equal(t, []string{roles.PermInviteUsers}, fresh.Codes())
}

func TestParseDefinitionsRejectsUnknownPermission(t *testing.T) {
	_, err := roles.ParseDefinitions([]byte(`
permissions:
  - code: VIEW_PROJECT
roles:
  - code: MANAGER
    permissions: [VIEW_PROJECT, FLY]
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "FLY")
}

func TestPermissionSetHasAny(t *testing.T) {
	s := roles.NewPermissionSet(roles.PermShowTasks, roles.PermViewProject)

	require.True(t, s.HasAny(roles.PermEditProject, roles.PermViewProject))
	require.False(t, s.HasAny(roles.PermEditProject, roles.PermDeleteProject))
	require.False(t, s.HasAny())
}

func TestPermissionsInsideTransactionDoNotWaitOnBlockedReads(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	manager := env.Role(t, roles.CodeManager)
	catalog := roles.NewCatalog(8, time.Minute, nil)

	readDone := make(chan error, 1)
	txDone := make(chan error, 1)
	go func() {
		txDone <- env.Store.InTx(ctx, func(ctx context.Context, q store.Queries) error {
			// This read queues behind the open transaction.
			go func() {
				_, err := catalog.Permissions(ctx, env.Store, manager.ID)
				readDone <- err
			}()
			time.Sleep(100 * time.Millisecond)

			perms, err := catalog.Permissions(ctx, q, manager.ID)
			if err != nil {
				return err
			}
			if !perms.Has(roles.PermManageMembers) {
				return errors.New("manager permissions not loaded")
			}
			return nil
		})
	}()

	select {
	case err := <-txDone:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("transaction blocked on a permission load")
	}
	require.NoError(t, <-readDone)
}

func TestPermissionsHonorCallerCancellation(t *testing.T) {
	env := testutil.NewEnv(t)
	manager := env.Role(t, roles.CodeManager)
	catalog := roles.NewCatalog(8, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := catalog.Permissions(ctx, env.Store, manager.ID)
	require.ErrorIs(t, err, context.Canceled)

	perms, err := catalog.Permissions(context.Background(), env.Store, manager.ID)
	require.NoError(t, err)
	require.True(t, perms.Has(roles.PermManageMembers))
}

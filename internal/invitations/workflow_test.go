package invitations_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/audit"
	"github.com/aliuyar1234/projecthub/internal/invitations"
	"github.com/aliuyar1234/projecthub/internal/memberships"
	"github.com/aliuyar1234/projecthub/internal/notifications"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/testutil"
	"github.com/aliuyar1234/projecthub/internal/users"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	env      *testutil.Env
	workflow *invitations.Workflow
	owner    *store.User
	invitee  *store.User
	project  *store.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)

	wf := invitations.NewWorkflow(invitations.Deps{
		Store:         env.Store,
		Directory:     users.NewDirectory(),
		Memberships:   memberships.NewStore(),
		Catalog:       env.Catalog,
		Evaluator:     access.NewEvaluator(env.Catalog),
		Notifications: notifications.NewService(nil, nil),
		Auditor:       audit.NewWriter(env.Store),
	})

	owner := env.User(t, "owner@x.com")
	invitee := env.User(t, "a@x.com")
	project := env.Project(t, "Alpha", owner)
	env.Member(t, project, owner, roles.CodeManager)

	return &fixture{env: env, workflow: wf, owner: owner, invitee: invitee, project: project}
}

func (f *fixture) invite(t *testing.T, email string, roleCode string) *store.Invitation {
	t.Helper()
	var roleID *uuid.UUID
	if roleCode != "" {
		id := f.env.Role(t, roleCode).ID
		roleID = &id
	}
	var inv *store.Invitation
	require.NoError(t, f.env.Store.InTx(context.Background(), func(ctx context.Context, q store.Queries) error {
		var err error
		inv, err = f.workflow.Invite(ctx, q, f.project.ID, f.owner.ID, email, roleID)
		return err
	}))
	return inv
}

func (f *fixture) invitationNotifications(t *testing.T) []store.Notification {
	t.Helper()
	list, err := f.env.Store.Notifications().ListByRecipient(context.Background(), f.invitee.ID, notifications.TypeProjectInvitation, 0)
	require.NoError(t, err)
	return list
}

func TestInviteUnknownEmailIsNoop(t *testing.T) {
	f := newFixture(t)

	inv := f.invite(t, "ghost@x.com", roles.CodeClient)
	require.Nil(t, inv)

	pending, err := f.env.Store.Invitations().ListPendingByProject(context.Background(), f.project.ID)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestReinviteUpdatesPendingInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.invite(t, "a@x.com", roles.CodeClient)
	second := f.invite(t, "A@X.com", roles.CodeMember)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, f.env.Role(t, roles.CodeMember).ID, *second.RoleID)

	pending, err := f.env.Store.Invitations().ListPendingByProject(ctx, f.project.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	notes := f.invitationNotifications(t)
	require.Len(t, notes, 2)
	for _, n := range notes {
		require.Equal(t, first.ID.String(), n.Data[notifications.DataInvitationID])
		require.Equal(t, "PENDING", n.Data[notifications.DataInvitationStatus])
		require.Equal(t, "Alpha", n.Data[notifications.DataProjectName])
	}
}

func TestAcceptGrantsRoleAndPatchesNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@x.com", roles.CodeClient)

	require.NoError(t, f.workflow.Accept(ctx, inv.ID, f.invitee.ID))

	code, err := memberships.NewStore().RoleCodeOf(ctx, f.env.Store, f.project.ID, f.invitee.ID)
	require.NoError(t, err)
	require.Equal(t, roles.CodeClient, code)

	got, err := f.env.Store.Invitations().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, store.InvitationAccepted, got.Status)

	for _, n := range f.invitationNotifications(t) {
		require.Equal(t, "ACCEPTED", n.Data[notifications.DataInvitationStatus])
	}
}

func TestSecondResolutionFailsWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@x.com", roles.CodeClient)
	require.NoError(t, f.workflow.Accept(ctx, inv.ID, f.invitee.ID))

	before, err := f.env.Store.Memberships().ListByProject(ctx, f.project.ID)
	require.NoError(t, err)

	err = f.workflow.Accept(ctx, inv.ID, f.invitee.ID)
	require.True(t, errors.Is(err, invitations.ErrInvitationAlreadyHandled))
	err = f.workflow.Reject(ctx, inv.ID, f.invitee.ID)
	require.True(t, errors.Is(err, invitations.ErrInvitationAlreadyHandled))

	after, err := f.env.Store.Memberships().ListByProject(ctx, f.project.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)

	for _, n := range f.invitationNotifications(t) {
		require.Equal(t, "ACCEPTED", n.Data[notifications.DataInvitationStatus])
	}
}

func TestAcceptByOtherUserIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@x.com", roles.CodeClient)
	intruder := f.env.User(t, "b@x.com")

	err := f.workflow.Accept(ctx, inv.ID, intruder.ID)
	require.True(t, errors.Is(err, invitations.ErrNotInvitee))

	_, err = f.env.Store.Memberships().Get(ctx, f.project.ID, intruder.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.env.Store.Memberships().Get(ctx, f.project.ID, f.invitee.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	got, err := f.env.Store.Invitations().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, store.InvitationPending, got.Status)
}

func TestAcceptWithoutRoleAddsNoMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@x.com", "")

	require.NoError(t, f.workflow.Accept(ctx, inv.ID, f.invitee.ID))

	_, err := f.env.Store.Memberships().Get(ctx, f.project.ID, f.invitee.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@x.com", roles.CodeMember)

	require.NoError(t, f.workflow.Reject(ctx, inv.ID, f.invitee.ID))

	_, err := f.env.Store.Memberships().Get(ctx, f.project.ID, f.invitee.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	for _, n := range f.invitationNotifications(t) {
		require.Equal(t, "REJECTED", n.Data[notifications.DataInvitationStatus])
	}

	// A new invitation can be sent once the previous one is resolved.
	next := f.invite(t, "a@x.com", roles.CodeMember)
	require.NotEqual(t, inv.ID, next.ID)
}

func TestResolveUnknownInvitation(t *testing.T) {
	f := newFixture(t)

	err := f.workflow.Accept(context.Background(), uuid.New(), f.invitee.ID)
	require.True(t, errors.Is(err, invitations.ErrInvitationNotFound))
}

func TestInviteMemberRequiresPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.env.User(t, "client@x.com")
	f.env.Member(t, f.project, client, roles.CodeClient)
	clientRole := f.env.Role(t, roles.CodeClient).ID

	_, err := f.workflow.InviteMember(ctx, access.Actor{UserID: client.ID}, f.project.ID, "a@x.com", &clientRole)
	require.True(t, errors.Is(err, access.ErrAccessDenied))

	inv, err := f.workflow.InviteMember(ctx, access.Actor{UserID: f.owner.ID}, f.project.ID, "a@x.com", &clientRole)
	require.NoError(t, err)
	require.NotNil(t, inv)

	bogus := uuid.New()
	_, err = f.workflow.InviteMember(ctx, access.Actor{UserID: f.owner.ID}, f.project.ID, "a@x.com", &bogus)
	require.True(t, errors.Is(err, roles.ErrRoleNotFound))

	_, err = f.workflow.InviteMember(ctx, access.Actor{UserID: f.owner.ID}, uuid.New(), "a@x.com", &clientRole)
	require.Error(t, err)
}

type racingInvitations struct {
	store.InvitationRepository
}

// FindPending pretends a concurrent transaction has not committed yet.
func (racingInvitations) FindPending(ctx context.Context, projectID, inviteeID uuid.UUID) (*store.Invitation, error) {
	return nil, store.ErrNotFound
}

type racingQueries struct {
	store.Queries
}

func (q racingQueries) Invitations() store.InvitationRepository {
	return racingInvitations{q.Queries.Invitations()}
}

func TestConcurrentDuplicateMapsToInvariantViolation(t *testing.T) {
	f := newFixture(t)
	f.invite(t, "a@x.com", roles.CodeClient)

	err := f.env.Store.InTx(context.Background(), func(ctx context.Context, q store.Queries) error {
		_, err := f.workflow.Invite(ctx, racingQueries{q}, f.project.ID, f.owner.ID, "a@x.com", nil)
		return err
	})
	require.True(t, errors.Is(err, invitations.ErrDuplicatePendingInvitation))
}

func TestAtMostOnePendingInvitationPerPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	emails := []string{"a@x.com", "b@x.com", "c@x.com", "nobody@x.com"}
	f.env.User(t, "b@x.com")
	f.env.User(t, "c@x.com")
	codes := []string{"", roles.CodeClient, roles.CodeMember, roles.CodeManager}

	for i := 0; i < 100; i++ {
		f.invite(t, emails[rng.Intn(len(emails))], codes[rng.Intn(len(codes))])

		pending, err := f.env.Store.Invitations().ListPendingByProject(ctx, f.project.ID)
		require.NoError(t, err)
		seen := map[uuid.UUID]bool{}
		for _, inv := range pending {
			require.False(t, seen[inv.InviteeUserID])
			seen[inv.InviteeUserID] = true
		}
	}
}

func TestListViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.invite(t, "a@x.com", roles.CodeClient)

	mine, err := f.workflow.ListPendingForUser(ctx, f.env.Store, f.invitee.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Alpha", mine[0].ProjectName)
	require.Equal(t, "owner@x.com", mine[0].InviterEmail)
	require.Equal(t, roles.CodeClient, mine[0].RoleCode)

	byProject, err := f.workflow.ListByProject(ctx, f.env.Store, f.project.ID)
	require.NoError(t, err)
	require.Equal(t, mine, byProject)
}

func TestInviteMemberRejectsOwnEmail(t *testing.T) {
	f := newFixture(t)
	clientRole := f.env.Role(t, roles.CodeClient).ID

	_, err := f.workflow.InviteMember(context.Background(), access.Actor{UserID: f.owner.ID}, f.project.ID, " OWNER@x.com ", &clientRole)
	require.True(t, errors.Is(err, invitations.ErrCannotInviteYourself))

	pending, err := f.env.Store.Invitations().ListPendingByProject(context.Background(), f.project.ID)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestInviteMemberRejectsInactiveRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	retired := &store.Role{Code: "RETIRED", Active: false}
	require.NoError(t, f.env.Store.Roles().Upsert(ctx, retired))

	_, err := f.workflow.InviteMember(ctx, access.Actor{UserID: f.owner.ID}, f.project.ID, "a@x.com", &retired.ID)
	require.True(t, errors.Is(err, roles.ErrRoleNotFound))
}

func TestAcceptCannotDemoteLastManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.invite(t, "owner@x.com", roles.CodeClient)
	require.NotNil(t, inv)

	err := f.workflow.Accept(ctx, inv.ID, f.owner.ID)
	require.True(t, errors.Is(err, invitations.ErrLastManagerCannotBeRemoved))
	require.Equal(t, apperrors.KindInvariantViolation, apperrors.KindOf(err))

	code, err := memberships.NewStore().RoleCodeOf(ctx, f.env.Store, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	require.Equal(t, roles.CodeManager, code)

	stored, err := f.env.Store.Invitations().GetByID(ctx, inv.ID)
	require.NoError(t, err)
	require.Equal(t, store.InvitationPending, stored.Status)

	// Rejecting is still possible.
	require.NoError(t, f.workflow.Reject(ctx, inv.ID, f.owner.ID))
}

func TestCoManagersCannotDemoteEachOtherToZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.env.Member(t, f.project, f.invitee, roles.CodeManager)

	forInvitee := f.invite(t, "a@x.com", roles.CodeClient)
	forOwner := f.invite(t, "owner@x.com", roles.CodeClient)

	require.NoError(t, f.workflow.Accept(ctx, forInvitee.ID, f.invitee.ID))

	err := f.workflow.Accept(ctx, forOwner.ID, f.owner.ID)
	require.True(t, errors.Is(err, invitations.ErrLastManagerCannotBeRemoved))

	managers, err := f.env.Store.Memberships().CountWithRole(ctx, f.project.ID, f.env.Role(t, roles.CodeManager).ID)
	require.NoError(t, err)
	require.Equal(t, 1, managers)
}

func TestAcceptManagerRoleKeepsManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv := f.invite(t, "owner@x.com", roles.CodeManager)
	require.NoError(t, f.workflow.Accept(ctx, inv.ID, f.owner.ID))

	code, err := memberships.NewStore().RoleCodeOf(ctx, f.env.Store, f.project.ID, f.owner.ID)
	require.NoError(t, err)
	require.Equal(t, roles.CodeManager, code)
}

// Package invitations runs the invitation lifecycle: PENDING moves to
// ACCEPTED or REJECTED exactly once, and accepting with a role grants that
// role in the project.
package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/audit"
	"github.com/aliuyar1234/projecthub/internal/memberships"
	"github.com/aliuyar1234/projecthub/internal/metrics"
	"github.com/aliuyar1234/projecthub/internal/notifications"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/users"
	"github.com/aliuyar1234/projecthub/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrInvitationNotFound         = apperrors.New(apperrors.KindNotFound, "errors.invitation.notFound")
	ErrInvitationAlreadyHandled   = apperrors.New(apperrors.KindInvalidState, "errors.invitation.alreadyHandled")
	ErrNotInvitee                 = apperrors.New(apperrors.KindAccessDenied, "errors.invitation.notInvitee")
	ErrDuplicatePendingInvitation = apperrors.New(apperrors.KindInvariantViolation, "errors.invitation.duplicatePending")
	ErrCannotInviteYourself       = apperrors.New(apperrors.KindInvariantViolation, "errors.invitation.cannotInviteYourself")
	ErrLastManagerCannotBeRemoved = memberships.ErrLastManagerCannotBeRemoved

	errProjectNotFound = apperrors.New(apperrors.KindNotFound, "errors.project.notFound")
	errInvalidEmail    = apperrors.New(apperrors.KindBadRequest, "errors.user.invalidEmail")
)

const (
	titleKey   = "notifications.projectInvitation.title"
	messageKey = "notifications.projectInvitation.message"
)

var tracer = otel.Tracer("github.com/aliuyar1234/projecthub/internal/invitations")

// Workflow creates and resolves invitations.
type Workflow struct {
	st            store.Store
	directory     *users.Directory
	memberships   *memberships.Store
	catalog       *roles.Catalog
	evaluator     *access.Evaluator
	notifications *notifications.Service
	auditor       *audit.Writer
	metrics       *metrics.Metrics
	now           func() time.Time
}

type Deps struct {
	Store         store.Store
	Directory     *users.Directory
	Memberships   *memberships.Store
	Catalog       *roles.Catalog
	Evaluator     *access.Evaluator
	Notifications *notifications.Service
	Auditor       *audit.Writer
	Metrics       *metrics.Metrics
}

func NewWorkflow(d Deps) *Workflow {
	return &Workflow{
		st:            d.Store,
		directory:     d.Directory,
		memberships:   d.Memberships,
		catalog:       d.Catalog,
		evaluator:     d.Evaluator,
		notifications: d.Notifications,
		auditor:       d.Auditor,
		metrics:       d.Metrics,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Invite offers membership of a project to the user with the given email.
//
// An unknown email is logged and ignored, returning (nil, nil). A pending
// invitation for the same user is rewritten in place instead of duplicated.
// Every invitation written produces one notification for the invitee.
func (w *Workflow) Invite(ctx context.Context, q store.Queries, projectID, inviterID uuid.UUID, email string, roleID *uuid.UUID) (*store.Invitation, error) {
	ctx, span := tracer.Start(ctx, "invitations.Invite", trace.WithAttributes(
		attribute.String("project.id", projectID.String()),
	))
	defer span.End()

	invitee, err := w.directory.FindByEmail(ctx, q, email)
	if err != nil {
		return nil, failSpan(span, err)
	}
	if invitee == nil {
		log.Warn().
			Str("project_id", projectID.String()).
			Str("email", email).
			Msg("Invitee not found, skipping invitation")
		return nil, nil
	}

	project, err := q.Projects().GetByID(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, failSpan(span, errProjectNotFound)
	}
	if err != nil {
		return nil, failSpan(span, fmt.Errorf("failed to load project: %w", err))
	}

	reinvite := true
	inv, err := q.Invitations().FindPending(ctx, projectID, invitee.ID)
	switch {
	case err == nil:
		inv.RoleID = roleID
		inv.InviterUserID = inviterID
		if err := q.Invitations().Update(ctx, inv); err != nil {
			return nil, failSpan(span, fmt.Errorf("failed to update invitation: %w", err))
		}
	case errors.Is(err, store.ErrNotFound):
		reinvite = false
		inv = &store.Invitation{
			ProjectID:     projectID,
			InviteeUserID: invitee.ID,
			InviterUserID: inviterID,
			RoleID:        roleID,
			Status:        store.InvitationPending,
		}
		if err := q.Invitations().Insert(ctx, inv); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, failSpan(span, ErrDuplicatePendingInvitation)
			}
			return nil, failSpan(span, fmt.Errorf("failed to create invitation: %w", err))
		}
	default:
		return nil, failSpan(span, fmt.Errorf("failed to look up pending invitation: %w", err))
	}

	_, err = w.notifications.CreateNotification(ctx, q, notifications.Params{
		Type:        notifications.TypeProjectInvitation,
		RecipientID: invitee.ID,
		TitleKey:    titleKey,
		MessageKey:  messageKey,
		SendEmail:   true,
		Data: map[string]any{
			notifications.DataInvitationID:     inv.ID.String(),
			notifications.DataInvitationStatus: string(inv.Status),
			notifications.DataProjectID:        project.ID.String(),
			notifications.DataProjectName:      project.Name,
			notifications.DataInviterID:        inviterID.String(),
		},
	})
	if err != nil {
		return nil, failSpan(span, err)
	}

	w.auditor.RecordInvitationCreated(q, projectID, inviterID, inv.ID, invitee.ID, reinvite)
	action := "created"
	if reinvite {
		action = "reinvited"
	}
	q.AfterCommit(func(context.Context) { w.metrics.ObserveInvitation(action) })

	log.Info().
		Str("project_id", projectID.String()).
		Str("invitation_id", inv.ID.String()).
		Str("invitee_user_id", invitee.ID.String()).
		Bool("reinvite", reinvite).
		Msg("Invitation sent")
	return inv, nil
}

// InviteMember is the permission-checked single invite. The caller needs
// INVITE_USERS or MANAGE_MEMBERS in the project.
func (w *Workflow) InviteMember(ctx context.Context, actor access.Actor, projectID uuid.UUID, email string, roleID *uuid.UUID) (*store.Invitation, error) {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, errInvalidEmail
	}

	var out *store.Invitation
	err := w.st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		if _, err := q.Projects().GetByID(ctx, projectID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errProjectNotFound
			}
			return fmt.Errorf("failed to load project: %w", err)
		}
		if err := w.evaluator.RequirePermission(ctx, q, projectID, actor.UserID, roles.PermInviteUsers, roles.PermManageMembers); err != nil {
			return err
		}
		if roleID != nil {
			role, err := q.Roles().GetByID(ctx, *roleID)
			if errors.Is(err, store.ErrNotFound) || (err == nil && !role.Active) {
				return roles.ErrRoleNotFound.WithDetails(roleID.String())
			}
			if err != nil {
				return fmt.Errorf("failed to load role: %w", err)
			}
		}

		inviter, err := q.Users().GetByID(ctx, actor.UserID)
		if err != nil {
			return fmt.Errorf("failed to load inviter: %w", err)
		}
		if validation.NormalizeEmail(inviter.Email) == email {
			return ErrCannotInviteYourself
		}

		inv, err := w.Invite(ctx, q, projectID, actor.UserID, email, roleID)
		if err != nil {
			return err
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Accept resolves the invitation as ACCEPTED and grants its role, if any.
func (w *Workflow) Accept(ctx context.Context, invitationID, actingUserID uuid.UUID) error {
	return w.resolve(ctx, invitationID, actingUserID, store.InvitationAccepted)
}

// Reject resolves the invitation as REJECTED.
func (w *Workflow) Reject(ctx context.Context, invitationID, actingUserID uuid.UUID) error {
	return w.resolve(ctx, invitationID, actingUserID, store.InvitationRejected)
}

func (w *Workflow) resolve(ctx context.Context, invitationID, actingUserID uuid.UUID, to store.InvitationStatus) error {
	ctx, span := tracer.Start(ctx, "invitations.Resolve", trace.WithAttributes(
		attribute.String("invitation.id", invitationID.String()),
		attribute.String("invitation.status", string(to)),
	))
	defer span.End()

	err := w.st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		inv, err := q.Invitations().GetByID(ctx, invitationID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvitationNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load invitation: %w", err)
		}
		if inv.Status != store.InvitationPending {
			return ErrInvitationAlreadyHandled
		}
		if inv.InviteeUserID != actingUserID {
			log.Info().
				Str("invitation_id", inv.ID.String()).
				Str("user_id", actingUserID.String()).
				Msg("RBAC: invitation belongs to another user")
			return ErrNotInvitee
		}

		if to == store.InvitationAccepted && inv.RoleID != nil {
			if err := w.guardDemotion(ctx, q, inv); err != nil {
				return err
			}
			if _, err := w.memberships.Upsert(ctx, q, inv.ProjectID, inv.InviteeUserID, *inv.RoleID); err != nil {
				return err
			}
		}

		moved, err := q.Invitations().Transition(ctx, inv.ID, store.InvitationPending, to, w.now())
		if err != nil {
			return fmt.Errorf("failed to update invitation: %w", err)
		}
		if !moved {
			return ErrInvitationAlreadyHandled
		}

		if _, err := w.notifications.UpdateInvitationStatus(ctx, q, inv.InviteeUserID, inv.ID, to); err != nil {
			return err
		}

		w.auditor.RecordInvitationHandled(q, inv.ProjectID, actingUserID, inv.ID, to)
		q.AfterCommit(func(context.Context) {
			w.metrics.ObserveInvitation(string(to))
			log.Info().
				Str("invitation_id", inv.ID.String()).
				Str("project_id", inv.ProjectID.String()).
				Str("status", string(to)).
				Msg("Invitation resolved")
		})
		return nil
	})
	return failSpan(span, err)
}

// guardDemotion refuses an acceptance that would replace the project's last
// manager role with a lesser one.
func (w *Workflow) guardDemotion(ctx context.Context, q store.Queries, inv *store.Invitation) error {
	member, err := q.Memberships().Get(ctx, inv.ProjectID, inv.InviteeUserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}
	manager, err := w.catalog.Manager(ctx, q)
	if err != nil {
		return err
	}
	if *inv.RoleID == manager.ID {
		return nil
	}
	return w.memberships.GuardLastManager(ctx, q, member, manager.ID)
}

func failSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

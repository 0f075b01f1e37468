package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/memberships"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/validation"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type invitee struct {
	email  string
	roleID *uuid.UUID
}

// inviteAll validates every email and role of the batch before inviting
// anybody. The inviter's own address is skipped.
func (m *Manager) inviteAll(ctx context.Context, q store.Queries, projectID uuid.UUID, inviter *store.User, list []invitee) error {
	if len(list) == 0 {
		return nil
	}

	emails := make([]string, 0, len(list))
	var roleIDs []uuid.UUID
	for _, inv := range list {
		emails = append(emails, inv.email)
		if inv.roleID != nil {
			roleIDs = append(roleIDs, *inv.roleID)
		}
	}
	if _, missing, err := m.directory.FindByEmails(ctx, q, emails); err != nil {
		return err
	} else if len(missing) > 0 {
		return ErrUsersNotFoundByEmails.WithDetails(missing...)
	}
	if err := validateRoles(ctx, q, roleIDs); err != nil {
		return err
	}

	self := validation.NormalizeEmail(inviter.Email)
	seen := map[string]bool{self: true}
	for _, inv := range list {
		email := validation.NormalizeEmail(inv.email)
		if seen[email] {
			continue
		}
		seen[email] = true
		if _, err := m.invitations.Invite(ctx, q, projectID, inviter.ID, email, inv.roleID); err != nil {
			return err
		}
	}
	return nil
}

// validateRoles fails with one batch error naming every unknown or
// inactive role.
func validateRoles(ctx context.Context, q store.Queries, ids []uuid.UUID) error {
	var missing []string
	checked := map[uuid.UUID]bool{}
	for _, id := range ids {
		if checked[id] {
			continue
		}
		checked[id] = true

		role, err := q.Roles().GetByID(ctx, id)
		if errors.Is(err, store.ErrNotFound) || (err == nil && !role.Active) {
			missing = append(missing, id.String())
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load role: %w", err)
		}
	}
	if len(missing) > 0 {
		return ErrRolesNotFoundByIDs.WithDetails(missing...)
	}
	return nil
}

// handleUsersUpdate makes the project's member list match list. Checks run
// in a fixed order and nothing is written until all of them pass:
// the updater must be listed, every email and role must exist, the updater
// cannot drop out, and at least one manager must remain. Then roles are
// rewritten, missing members removed and new emails invited.
func (m *Manager) handleUsersUpdate(ctx context.Context, q store.Queries, p *store.Project, actor access.Actor, list []MemberInput) error {
	ctx, span := tracer.Start(ctx, "projects.handleUsersUpdate", trace.WithAttributes(
		attribute.String("project.id", p.ID.String()),
		attribute.Int("members.count", len(list)),
	))
	defer span.End()

	updater, err := m.directory.FindByID(ctx, q, actor.UserID)
	if err != nil {
		return failSpan(span, err)
	}
	updaterEmail := validation.NormalizeEmail(updater.Email)

	listed := false
	emails := make([]string, 0, len(list))
	roleIDs := make([]uuid.UUID, 0, len(list))
	for _, mi := range list {
		if validation.NormalizeEmail(mi.Email) == updaterEmail {
			listed = true
		}
		emails = append(emails, mi.Email)
		roleIDs = append(roleIDs, mi.RoleID)
	}
	if !listed {
		return failSpan(span, ErrUpdaterNotInNewUsersList)
	}

	found, missing, err := m.directory.FindByEmails(ctx, q, emails)
	if err != nil {
		return failSpan(span, err)
	}
	if len(missing) > 0 {
		return failSpan(span, ErrUsersNotFoundByEmails.WithDetails(missing...))
	}
	if err := validateRoles(ctx, q, roleIDs); err != nil {
		return failSpan(span, err)
	}

	// First occurrence of an email wins.
	desired := make(map[uuid.UUID]uuid.UUID, len(list))
	order := make([]uuid.UUID, 0, len(list))
	emailOf := make(map[uuid.UUID]string, len(list))
	for _, mi := range list {
		email := validation.NormalizeEmail(mi.Email)
		u := found[email]
		if _, dup := desired[u.ID]; dup {
			continue
		}
		desired[u.ID] = mi.RoleID
		emailOf[u.ID] = email
		order = append(order, u.ID)
	}

	current, err := m.memberships.ListByProject(ctx, q, p.ID)
	if err != nil {
		return failSpan(span, err)
	}
	manager, err := m.catalog.Manager(ctx, q)
	if err != nil {
		return failSpan(span, err)
	}

	var removals, changes []store.MemberDetail
	managersBefore, managersAfter := 0, 0
	isMember := make(map[uuid.UUID]bool, len(current))
	for _, cm := range current {
		isMember[cm.UserID] = true
		if cm.RoleID == manager.ID {
			managersBefore++
		}
		roleID, keep := desired[cm.UserID]
		if !keep {
			removals = append(removals, cm)
			continue
		}
		if roleID == manager.ID {
			managersAfter++
		}
		if roleID != cm.RoleID {
			changes = append(changes, cm)
		}
	}

	for _, r := range removals {
		if r.UserID == actor.UserID {
			return failSpan(span, ErrCannotRemoveYourself)
		}
	}
	if managersBefore > 0 && managersAfter == 0 {
		log.Info().
			Str("project_id", p.ID.String()).
			Str("user_id", actor.UserID.String()).
			Msg("Rejected member update that leaves no manager")
		return failSpan(span, ErrLastManagerCannotBeRemoved)
	}

	for _, c := range changes {
		roleID := desired[c.UserID]
		if _, err := m.memberships.Upsert(ctx, q, p.ID, c.UserID, roleID); err != nil {
			return failSpan(span, err)
		}
		m.auditor.RecordMemberRoleUpdated(q, p.ID, actor.UserID, c.UserID, c.RoleCode, roleCode(ctx, q, roleID))
	}
	for _, r := range removals {
		if _, err := m.memberships.Remove(ctx, q, p.ID, r.UserID); err != nil {
			return failSpan(span, err)
		}
		m.auditor.RecordMemberRemoved(q, p.ID, actor.UserID, r.UserID, r.RoleCode)
	}
	invited := 0
	for _, userID := range order {
		if isMember[userID] {
			continue
		}
		roleID := desired[userID]
		if _, err := m.invitations.Invite(ctx, q, p.ID, actor.UserID, emailOf[userID], &roleID); err != nil {
			return failSpan(span, err)
		}
		invited++
	}

	log.Info().
		Str("project_id", p.ID.String()).
		Int("role_changes", len(changes)).
		Int("removed", len(removals)).
		Int("invited", invited).
		Msg("Project members updated")
	return nil
}

func roleCode(ctx context.Context, q store.Queries, id uuid.UUID) string {
	role, err := q.Roles().GetByID(ctx, id)
	if err != nil {
		return id.String()
	}
	return role.Code
}

// RemoveMember takes a single user out of the project. The actor needs
// MANAGE_MEMBERS and cannot remove themself or the last manager.
func (m *Manager) RemoveMember(ctx context.Context, actor access.Actor, projectID, userID uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "projects.RemoveMember", trace.WithAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.String("member.id", userID.String()),
	))
	defer span.End()
	defer func() {
		m.metrics.ObserveOperation("remove_member", err)
		failSpan(span, err)
	}()

	return m.st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		if _, err := loadProject(ctx, q, projectID); err != nil {
			return err
		}
		if err := m.evaluator.RequirePermission(ctx, q, projectID, actor.UserID, roles.PermManageMembers); err != nil {
			return err
		}
		if userID == actor.UserID {
			return ErrCannotRemoveYourself
		}

		member, err := q.Memberships().Get(ctx, projectID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return memberships.ErrMembershipNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load membership: %w", err)
		}

		manager, err := m.catalog.Manager(ctx, q)
		if err != nil {
			return err
		}
		if err := m.memberships.GuardLastManager(ctx, q, member, manager.ID); err != nil {
			return err
		}

		if _, err := m.memberships.Remove(ctx, q, projectID, userID); err != nil {
			return err
		}
		m.auditor.RecordMemberRemoved(q, projectID, actor.UserID, userID, roleCode(ctx, q, member.RoleID))
		return nil
	})
}

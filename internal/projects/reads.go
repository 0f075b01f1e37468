package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/audit"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

// Reads run outside a transaction and may observe writes that commit
// concurrently.

// FindAll returns the public projects and the projects the actor belongs
// to, newest first.
func (m *Manager) FindAll(ctx context.Context, actor access.Actor, locale string) ([]ProjectView, error) {
	list, err := m.st.Projects().ListVisible(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	locale = m.locale(locale, actor)
	types := map[uuid.UUID]*store.ProjectType{}
	out := make([]ProjectView, 0, len(list))
	for _, p := range list {
		typ, err := m.projectType(ctx, p.TypeID, types)
		if err != nil {
			return nil, err
		}
		out = append(out, newProjectView(p, typ, locale))
	}
	return out, nil
}

// FindOneWithDetails returns a project with its labels, members, pending
// invitations, the role catalog and the actor's permissions. Private
// projects need VIEW_PROJECT.
func (m *Manager) FindOneWithDetails(ctx context.Context, actor access.Actor, id uuid.UUID, locale string) (*Details, error) {
	p, err := loadProject(ctx, m.st, id)
	if err != nil {
		return nil, err
	}

	perms, err := m.evaluator.EffectivePermissions(ctx, m.st, id, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !p.IsPublic {
		if err := m.evaluator.RequirePermission(ctx, m.st, id, actor.UserID, roles.PermViewProject); err != nil {
			return nil, err
		}
	}

	locale = m.locale(locale, actor)
	typ, err := m.projectType(ctx, p.TypeID, map[uuid.UUID]*store.ProjectType{})
	if err != nil {
		return nil, err
	}
	d := &Details{
		ProjectView: newProjectView(*p, typ, locale),
		Permissions: perms.Codes(),
	}

	for _, kind := range []store.LabelKind{store.LabelCategory, store.LabelStatus} {
		labels, err := m.st.Labels().ListByProject(ctx, kind, id)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s labels: %w", kind, err)
		}
		views := make([]LabelView, 0, len(labels))
		for _, l := range labels {
			views = append(views, newLabelView(l, locale))
		}
		if kind == store.LabelCategory {
			d.Categories = views
		} else {
			d.Statuses = views
		}
	}

	members, err := m.memberships.ListByProject(ctx, m.st, id)
	if err != nil {
		return nil, err
	}
	d.Members = make([]MemberView, 0, len(members))
	for _, mb := range members {
		d.Members = append(d.Members, MemberView{
			UserID:     mb.UserID,
			Email:      mb.Email,
			RoleID:     mb.RoleID,
			RoleCode:   mb.RoleCode,
			AssignedAt: mb.AssignedAt,
		})
	}

	if d.Invitations, err = m.invitations.ListByProject(ctx, m.st, id); err != nil {
		return nil, err
	}
	if d.Roles, err = m.catalog.ListAll(ctx, m.st, locale); err != nil {
		return nil, err
	}
	return d, nil
}

// ListTypes returns the project types rendered in locale.
func (m *Manager) ListTypes(ctx context.Context, actor access.Actor, locale string) ([]TypeView, error) {
	types, err := m.st.Projects().ListTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list project types: %w", err)
	}
	locale = m.locale(locale, actor)
	out := make([]TypeView, 0, len(types))
	for _, t := range types {
		out = append(out, TypeView{ID: t.ID, Code: t.Code, Name: store.PickTranslation(t.Translations, locale).Name})
	}
	return out, nil
}

// ListRoles returns the active roles of the catalog rendered in locale.
func (m *Manager) ListRoles(ctx context.Context, actor access.Actor, locale string) ([]roles.Role, error) {
	return m.catalog.ListAll(ctx, m.st, m.locale(locale, actor))
}

// ListAudit returns the newest audit events of a project. Managers and
// platform administrators may read it.
func (m *Manager) ListAudit(ctx context.Context, actor access.Actor, projectID uuid.UUID, limit int) ([]audit.ListItem, error) {
	if _, err := loadProject(ctx, m.st, projectID); err != nil {
		return nil, err
	}
	if err := m.evaluator.RequireRole(ctx, m.st, projectID, actor, roles.CodeManager); err != nil {
		return nil, err
	}
	return audit.NewReader(m.st).ListByProject(ctx, projectID, limit)
}

func (m *Manager) projectType(ctx context.Context, id *uuid.UUID, seen map[uuid.UUID]*store.ProjectType) (*store.ProjectType, error) {
	if id == nil {
		return nil, nil
	}
	if t, ok := seen[*id]; ok {
		return t, nil
	}
	t, err := m.st.Projects().GetType(ctx, *id)
	if errors.Is(err, store.ErrNotFound) {
		seen[*id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project type: %w", err)
	}
	seen[*id] = t
	return t, nil
}

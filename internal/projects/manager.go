// Package projects orchestrates project creation, update and removal. Each
// mutating operation runs in one transaction that also carries the
// membership, invitation and label changes it implies.
package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aliuyar1234/projecthub/internal/access"
	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/audit"
	"github.com/aliuyar1234/projecthub/internal/filestore"
	"github.com/aliuyar1234/projecthub/internal/invitations"
	"github.com/aliuyar1234/projecthub/internal/memberships"
	"github.com/aliuyar1234/projecthub/internal/metrics"
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
	ErrProjectNotFound            = apperrors.New(apperrors.KindNotFound, "errors.project.notFound")
	ErrTypeNotFound               = apperrors.New(apperrors.KindNotFound, "errors.project.typeNotFound")
	ErrInvalidName                = apperrors.New(apperrors.KindBadRequest, "errors.project.invalidName")
	ErrUpdaterNotInNewUsersList   = apperrors.New(apperrors.KindInvariantViolation, "errors.project.updaterNotInNewUsersList")
	ErrCannotRemoveYourself       = apperrors.New(apperrors.KindInvariantViolation, "errors.project.cannotRemoveYourself")
	ErrLastManagerCannotBeRemoved = memberships.ErrLastManagerCannotBeRemoved
	ErrUsersNotFoundByEmails      = apperrors.New(apperrors.KindValidationBatch, "errors.users.notFoundByEmails")
	ErrRolesNotFoundByIDs         = apperrors.New(apperrors.KindValidationBatch, "errors.role.notFoundByIds")

	errInvalidRequest = apperrors.New(apperrors.KindBadRequest, "errors.request.invalid")
)

var tracer = otel.Tracer("github.com/aliuyar1234/projecthub/internal/projects")

// Manager is the entry point for project lifecycle operations.
type Manager struct {
	st            store.Store
	catalog       *roles.Catalog
	evaluator     *access.Evaluator
	memberships   *memberships.Store
	invitations   *invitations.Workflow
	directory     *users.Directory
	files         filestore.Store
	auditor       *audit.Writer
	metrics       *metrics.Metrics
	languages     []string
	defaultLocale string
}

type Deps struct {
	Store       store.Store
	Catalog     *roles.Catalog
	Evaluator   *access.Evaluator
	Memberships *memberships.Store
	Invitations *invitations.Workflow
	Directory   *users.Directory
	Files       filestore.Store
	Auditor     *audit.Writer
	Metrics     *metrics.Metrics

	// Languages lists every locale a category or status is written in.
	// The first entry is the default locale for reads.
	Languages []string
}

func NewManager(d Deps) *Manager {
	langs := d.Languages
	if len(langs) == 0 {
		langs = []string{"en"}
	}
	files := d.Files
	if files == nil {
		files = filestore.Disabled{}
	}
	return &Manager{
		st:            d.Store,
		catalog:       d.Catalog,
		evaluator:     d.Evaluator,
		memberships:   d.Memberships,
		invitations:   d.Invitations,
		directory:     d.Directory,
		files:         files,
		auditor:       d.Auditor,
		metrics:       d.Metrics,
		languages:     langs,
		defaultLocale: langs[0],
	}
}

// Create persists a project, makes the actor its manager, writes the
// initial categories and statuses and invites the listed members.
func (m *Manager) Create(ctx context.Context, actor access.Actor, in CreateInput) (_ *store.Project, err error) {
	ctx, span := tracer.Start(ctx, "projects.Create", trace.WithAttributes(
		attribute.String("user.id", actor.UserID.String()),
	))
	defer span.End()
	defer func() {
		m.metrics.ObserveOperation("create", err)
		failSpan(span, err)
	}()

	name, err := checkName(in.Name)
	if err != nil {
		return nil, err
	}

	icon, err := m.uploadIcon(ctx, in.Icon)
	if err != nil {
		return nil, err
	}

	var project *store.Project
	err = m.st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		creator, err := m.directory.FindByID(ctx, q, actor.UserID)
		if err != nil {
			return err
		}
		if in.TypeID != nil {
			if err := checkType(ctx, q, *in.TypeID); err != nil {
				return err
			}
		}

		p := &store.Project{
			Name:            name,
			Description:     strings.TrimSpace(in.Description),
			IsPublic:        in.IsPublic,
			TypeID:          in.TypeID,
			CreatedByUserID: actor.UserID,
		}
		if icon != nil {
			p.IconKey, p.IconURL = &icon.ID, &icon.URL
		}
		if err := q.Projects().Create(ctx, p); err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		manager, err := m.catalog.Manager(ctx, q)
		if err != nil {
			return err
		}
		if _, err := m.memberships.Upsert(ctx, q, p.ID, actor.UserID, manager.ID); err != nil {
			return err
		}

		if err := m.createLabels(ctx, q, p.ID, store.LabelCategory, in.Categories); err != nil {
			return err
		}
		if err := m.createLabels(ctx, q, p.ID, store.LabelStatus, in.Statuses); err != nil {
			return err
		}

		invitees := make([]invitee, 0, len(in.Members)+len(in.MembersWithRoles))
		for _, email := range in.Members {
			invitees = append(invitees, invitee{email: email})
		}
		for _, mr := range in.MembersWithRoles {
			roleID := mr.RoleID
			invitees = append(invitees, invitee{email: mr.Email, roleID: &roleID})
		}
		if err := m.inviteAll(ctx, q, p.ID, creator, invitees); err != nil {
			return err
		}

		m.auditor.RecordProjectCreated(q, p.ID, actor.UserID, p.Name)
		project = p
		return nil
	})
	if err != nil {
		m.discardIcon(ctx, icon)
		return nil, err
	}

	log.Info().
		Str("project_id", project.ID.String()).
		Str("user_id", actor.UserID.String()).
		Msg("Project created")
	return project, nil
}

// Update applies in to the project. The actor needs EDIT_PROJECT or
// DELETE_PROJECT.
func (m *Manager) Update(ctx context.Context, actor access.Actor, id uuid.UUID, in UpdateInput) (_ *store.Project, err error) {
	ctx, span := tracer.Start(ctx, "projects.Update", trace.WithAttributes(
		attribute.String("project.id", id.String()),
		attribute.String("user.id", actor.UserID.String()),
	))
	defer span.End()
	defer func() {
		m.metrics.ObserveOperation("update", err)
		failSpan(span, err)
	}()

	var name string
	if in.Name != nil {
		if name, err = checkName(*in.Name); err != nil {
			return nil, err
		}
	}

	// Check access before storing a file for a caller who cannot use it.
	if in.Icon != nil {
		if _, err := m.authorize(ctx, m.st, id, actor); err != nil {
			return nil, err
		}
	}
	icon, err := m.uploadIcon(ctx, in.Icon)
	if err != nil {
		return nil, err
	}

	var project *store.Project
	err = m.st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		p, err := m.authorize(ctx, q, id, actor)
		if err != nil {
			return err
		}

		changes := map[string]interface{}{}
		if in.Name != nil && name != p.Name {
			p.Name = name
			changes["name"] = name
		}
		if in.Description != nil {
			p.Description = strings.TrimSpace(*in.Description)
			changes["description"] = true
		}
		if in.IsPublic != nil && *in.IsPublic != p.IsPublic {
			p.IsPublic = *in.IsPublic
			changes["is_public"] = p.IsPublic
		}
		switch {
		case in.ClearType:
			p.TypeID = nil
			changes["type_id"] = nil
		case in.TypeID != nil:
			if err := checkType(ctx, q, *in.TypeID); err != nil {
				return err
			}
			p.TypeID = in.TypeID
			changes["type_id"] = in.TypeID.String()
		}

		var staleIcon *string
		switch {
		case icon != nil:
			staleIcon = p.IconKey
			p.IconKey, p.IconURL = &icon.ID, &icon.URL
			changes["icon"] = "replaced"
		case in.RemoveIcon && p.IconKey != nil:
			staleIcon = p.IconKey
			p.IconKey, p.IconURL = nil, nil
			changes["icon"] = "removed"
		}

		if in.Categories != nil {
			if err := m.syncLabels(ctx, q, p.ID, store.LabelCategory, in.Categories); err != nil {
				return err
			}
			changes["categories"] = len(in.Categories)
		}
		if in.Statuses != nil {
			if err := m.syncLabels(ctx, q, p.ID, store.LabelStatus, in.Statuses); err != nil {
				return err
			}
			changes["statuses"] = len(in.Statuses)
		}
		if in.UsersWithRoles != nil {
			if err := m.handleUsersUpdate(ctx, q, p, actor, in.UsersWithRoles); err != nil {
				return err
			}
			changes["members"] = len(in.UsersWithRoles)
		}

		if err := q.Projects().Update(ctx, p); err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}

		if staleIcon != nil {
			key := *staleIcon
			q.AfterCommit(func(ctx context.Context) { m.deleteIcon(ctx, key) })
		}
		m.auditor.RecordProjectUpdated(q, p.ID, actor.UserID, changes)
		project = p
		return nil
	})
	if err != nil {
		m.discardIcon(ctx, icon)
		return nil, err
	}

	log.Info().
		Str("project_id", project.ID.String()).
		Str("user_id", actor.UserID.String()).
		Msg("Project updated")
	return project, nil
}

// Remove deletes the project with its labels, invitations and memberships.
// The actor needs EDIT_PROJECT or DELETE_PROJECT.
func (m *Manager) Remove(ctx context.Context, actor access.Actor, id uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "projects.Remove", trace.WithAttributes(
		attribute.String("project.id", id.String()),
		attribute.String("user.id", actor.UserID.String()),
	))
	defer span.End()
	defer func() {
		m.metrics.ObserveOperation("remove", err)
		failSpan(span, err)
	}()

	return m.st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		p, err := m.authorize(ctx, q, id, actor)
		if err != nil {
			return err
		}

		// Children first, then the project row.
		for _, kind := range []store.LabelKind{store.LabelCategory, store.LabelStatus} {
			if _, err := q.Labels().DeleteByProject(ctx, kind, p.ID); err != nil {
				return fmt.Errorf("failed to delete %s labels: %w", kind, err)
			}
		}
		if _, err := q.Invitations().DeleteByProject(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to delete invitations: %w", err)
		}
		removed, err := m.memberships.RemoveAll(ctx, q, p.ID)
		if err != nil {
			return err
		}
		if err := q.Projects().Delete(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}

		if p.IconKey != nil {
			key := *p.IconKey
			q.AfterCommit(func(ctx context.Context) { m.deleteIcon(ctx, key) })
		}
		m.auditor.RecordProjectRemoved(q, p.ID, actor.UserID, p.Name)
		q.AfterCommit(func(context.Context) {
			log.Info().
				Str("project_id", p.ID.String()).
				Int64("members_removed", removed).
				Msg("Project removed")
		})
		return nil
	})
}

// authorize loads the project and checks the edit permission gate.
func (m *Manager) authorize(ctx context.Context, q store.Queries, id uuid.UUID, actor access.Actor) (*store.Project, error) {
	p, err := loadProject(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if err := m.evaluator.RequirePermission(ctx, q, id, actor.UserID, roles.PermEditProject, roles.PermDeleteProject); err != nil {
		return nil, err
	}
	return p, nil
}

func loadProject(ctx context.Context, q store.Queries, id uuid.UUID) (*store.Project, error) {
	p, err := q.Projects().GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return p, nil
}

func checkType(ctx context.Context, q store.Queries, id uuid.UUID) error {
	_, err := q.Projects().GetType(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTypeNotFound.WithDetails(id.String())
	}
	if err != nil {
		return fmt.Errorf("failed to load project type: %w", err)
	}
	return nil
}

func checkName(name string) (string, error) {
	if err := validation.ValidateName(name); err != nil {
		return "", ErrInvalidName
	}
	return strings.TrimSpace(name), nil
}

func (m *Manager) locale(locale string, actor access.Actor) string {
	if locale != "" {
		return locale
	}
	if actor.Locale != "" {
		return actor.Locale
	}
	return m.defaultLocale
}

func failSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Package access answers authorization questions for project operations.
//
// Two independent gates exist. RequirePermission checks the permission set
// of the caller's project role and never considers the platform role.
// RequireRole checks the role code itself and lets platform administrators
// through unconditionally.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrAccessDenied = apperrors.New(apperrors.KindAccessDenied, "errors.access.denied")

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID       uuid.UUID
	PlatformRole store.PlatformRole
	Locale       string
}

func (a Actor) IsAdmin() bool {
	return a.PlatformRole == store.PlatformAdmin
}

type Evaluator struct {
	catalog *roles.Catalog
}

func NewEvaluator(catalog *roles.Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// EffectivePermissions returns the permissions granted to userID in the
// project, or an empty set when the user is not a member.
func (e *Evaluator) EffectivePermissions(ctx context.Context, q store.Queries, projectID, userID uuid.UUID) (roles.PermissionSet, error) {
	m, err := q.Memberships().Get(ctx, projectID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return roles.NewPermissionSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}
	return e.catalog.Permissions(ctx, q, m.RoleID)
}

// RequirePermission fails with ErrAccessDenied unless the user holds at
// least one of anyOf in the project.
func (e *Evaluator) RequirePermission(ctx context.Context, q store.Queries, projectID, userID uuid.UUID, anyOf ...string) error {
	perms, err := e.EffectivePermissions(ctx, q, projectID, userID)
	if err != nil {
		return err
	}
	if !perms.HasAny(anyOf...) {
		log.Info().
			Str("project_id", projectID.String()).
			Str("user_id", userID.String()).
			Strs("required_any", anyOf).
			Msg("RBAC: permission denied")
		return ErrAccessDenied
	}
	return nil
}

// RequireRole fails with ErrAccessDenied unless the actor is a platform
// administrator or holds one of the listed role codes in the project.
func (e *Evaluator) RequireRole(ctx context.Context, q store.Queries, projectID uuid.UUID, actor Actor, anyOf ...string) error {
	if actor.IsAdmin() {
		return nil
	}

	m, err := q.Memberships().Get(ctx, projectID, actor.UserID)
	if errors.Is(err, store.ErrNotFound) {
		log.Info().
			Str("project_id", projectID.String()).
			Str("user_id", actor.UserID.String()).
			Msg("RBAC: not a project member")
		return ErrAccessDenied
	}
	if err != nil {
		return fmt.Errorf("failed to load membership: %w", err)
	}

	role, err := q.Roles().GetByID(ctx, m.RoleID)
	if err != nil {
		return fmt.Errorf("failed to load role: %w", err)
	}
	for _, code := range anyOf {
		if role.Code == code {
			return nil
		}
	}

	log.Info().
		Str("project_id", projectID.String()).
		Str("user_id", actor.UserID.String()).
		Str("role", role.Code).
		Strs("required_any", anyOf).
		Msg("RBAC: insufficient role")
	return ErrAccessDenied
}

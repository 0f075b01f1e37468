// Package memberships manages the (project, user, role) triples.
package memberships

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aliuyar1234/projecthub/internal/apperrors"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/google/uuid"
)

var (
	ErrMembershipNotFound         = apperrors.New(apperrors.KindNotFound, "errors.membership.notFound")
	ErrLastManagerCannotBeRemoved = apperrors.New(apperrors.KindInvariantViolation, "errors.project.lastManagerCannotBeRemoved")
)

// Store wraps the membership repository with find-then-write semantics.
// Callers run it inside their own transaction.
type Store struct {
	now func() time.Time
}

func NewStore() *Store {
	return &Store{now: func() time.Time { return time.Now().UTC() }}
}

// Upsert assigns roleID to the user in the project, replacing an existing
// role or creating the membership. It always writes.
func (s *Store) Upsert(ctx context.Context, q store.Queries, projectID, userID, roleID uuid.UUID) (*store.Membership, error) {
	now := s.now()

	existing, err := q.Memberships().Get(ctx, projectID, userID)
	switch {
	case err == nil:
		if err := q.Memberships().UpdateRole(ctx, existing.ID, roleID, now); err != nil {
			return nil, fmt.Errorf("failed to update membership role: %w", err)
		}
		existing.RoleID = roleID
		existing.AssignedAt = now
		return existing, nil
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load membership: %w", err)
	}

	m := &store.Membership{
		ProjectID:  projectID,
		UserID:     userID,
		RoleID:     roleID,
		AssignedAt: now,
	}
	if err := q.Memberships().Insert(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to insert membership: %w", err)
	}
	return m, nil
}

// Remove deletes the membership if present and reports whether it existed.
func (s *Store) Remove(ctx context.Context, q store.Queries, projectID, userID uuid.UUID) (bool, error) {
	removed, err := q.Memberships().Delete(ctx, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to remove membership: %w", err)
	}
	return removed, nil
}

// RoleCodeOf returns the role code of the user in the project, or "" when
// the user is not a member.
func (s *Store) RoleCodeOf(ctx context.Context, q store.Queries, projectID, userID uuid.UUID) (string, error) {
	m, err := q.Memberships().Get(ctx, projectID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load membership: %w", err)
	}
	role, err := q.Roles().GetByID(ctx, m.RoleID)
	if err != nil {
		return "", fmt.Errorf("failed to load role: %w", err)
	}
	return role.Code, nil
}

func (s *Store) ListByProject(ctx context.Context, q store.Queries, projectID uuid.UUID) ([]store.MemberDetail, error) {
	members, err := q.Memberships().ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	return members, nil
}

func (s *Store) ListByUser(ctx context.Context, q store.Queries, userID uuid.UUID) ([]store.MemberDetail, error) {
	members, err := q.Memberships().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user memberships: %w", err)
	}
	return members, nil
}

func (s *Store) CountWithRole(ctx context.Context, q store.Queries, projectID, roleID uuid.UUID) (int, error) {
	n, err := q.Memberships().CountWithRole(ctx, projectID, roleID)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

// GuardLastManager fails with ErrLastManagerCannotBeRemoved when member holds
// managerRoleID and is the only one in the project who does. Call it before
// a write that drops the member's manager role.
func (s *Store) GuardLastManager(ctx context.Context, q store.Queries, member *store.Membership, managerRoleID uuid.UUID) error {
	if member == nil || member.RoleID != managerRoleID {
		return nil
	}
	n, err := s.CountWithRole(ctx, q, member.ProjectID, managerRoleID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return ErrLastManagerCannotBeRemoved
	}
	return nil
}

// RemoveAll deletes every membership of a project.
func (s *Store) RemoveAll(ctx context.Context, q store.Queries, projectID uuid.UUID) (int64, error) {
	n, err := q.Memberships().DeleteByProject(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove project members: %w", err)
	}
	return n, nil
}
